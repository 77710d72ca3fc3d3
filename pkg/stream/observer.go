package stream

import "time"

// Observer receives store activity for metrics. Implementations must be safe
// for concurrent use.
type Observer interface {
	ObserveWrite(stream string, bytes int, elapsed time.Duration, err error)
	ObserveDecodeSkip(stream string)
	ObserveDelete(stream string, removed int64)
	ObserveTrim(stream string, removed int64, fallback bool)
	ObserveTailBackoff(stream string)
}

// NoopObserver discards all observations.
type NoopObserver struct{}

func (NoopObserver) ObserveWrite(string, int, time.Duration, error) {}
func (NoopObserver) ObserveDecodeSkip(string)                       {}
func (NoopObserver) ObserveDelete(string, int64)                    {}
func (NoopObserver) ObserveTrim(string, int64, bool)                {}
func (NoopObserver) ObserveTailBackoff(string)                      {}
