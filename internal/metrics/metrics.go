package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rzbill/tideline/internal/eventlog"
	pebblestore "github.com/rzbill/tideline/internal/storage/pebble"
	"github.com/rzbill/tideline/pkg/id"
	"github.com/rzbill/tideline/pkg/stream"
)

const namespace = "tideline"

// StreamStats holds running totals for one stream.
type StreamStats struct {
	Writes        uint64    `json:"writes"`
	WriteErrors   uint64    `json:"write_errors"`
	DecodeSkips   uint64    `json:"decode_skips"`
	Deleted       uint64    `json:"deleted"`
	Trimmed       uint64    `json:"trimmed"`
	TailBackoffs  uint64    `json:"tail_backoffs"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// Snapshot is a point-in-time copy of per-stream totals.
type Snapshot struct {
	Streams     map[string]StreamStats `json:"streams"`
	CollectedAt time.Time              `json:"collected_at"`
}

// Metrics implements the store, engine and trim observation hooks.
type Metrics struct {
	mu      sync.RWMutex
	streams map[string]*StreamStats

	writesTotal       *prometheus.CounterVec
	writeErrorsTotal  *prometheus.CounterVec
	writeBytes        *prometheus.HistogramVec
	writeSeconds      *prometheus.HistogramVec
	decodeSkipsTotal  *prometheus.CounterVec
	deletedTotal      *prometheus.CounterVec
	trimmedTotal      *prometheus.CounterVec
	tailBackoffsTotal *prometheus.CounterVec

	storageSeconds *prometheus.HistogramVec
	storageBytes   *prometheus.CounterVec

	registerer prometheus.Registerer
	registered bool
}

var (
	_ stream.Observer         = (*Metrics)(nil)
	_ eventlog.TrimHook       = (*Metrics)(nil)
	_ pebblestore.MetricsHook = storageHook{}
)

func newCounterVec(subsystem, name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newHistogramVec(subsystem, name, help string, buckets []float64, labels []string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		labels,
	)
}

// New creates the collectors. A nil registerer selects the default one.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &Metrics{
		streams:           make(map[string]*StreamStats),
		registerer:        registerer,
		writesTotal:       newCounterVec("stream", "writes_total", "Total number of events written", []string{"stream"}),
		writeErrorsTotal:  newCounterVec("stream", "write_errors_total", "Total number of failed writes", []string{"stream"}),
		writeBytes:        newHistogramVec("stream", "write_bytes", "Encoded event size", prometheus.ExponentialBuckets(64, 4, 8), []string{"stream"}),
		writeSeconds:      newHistogramVec("stream", "write_seconds", "Write latency including encoding", prometheus.DefBuckets, []string{"stream"}),
		decodeSkipsTotal:  newCounterVec("stream", "decode_skips_total", "Entries skipped because they failed to decode", []string{"stream"}),
		deletedTotal:      newCounterVec("stream", "deleted_total", "Entries removed by filtered deletes", []string{"stream"}),
		trimmedTotal:      newCounterVec("stream", "trimmed_total", "Entries removed by retention", []string{"stream", "reason"}),
		tailBackoffsTotal: newCounterVec("stream", "tail_backoffs_total", "Tail polls that failed and backed off", []string{"stream"}),
		storageSeconds:    newHistogramVec("storage", "op_seconds", "Storage engine operation latency", prometheus.DefBuckets, []string{"op"}),
		storageBytes:      newCounterVec("storage", "bytes_total", "Bytes moved by storage engine operations", []string{"op"}),
	}
}

// Register registers the collectors. Safe to call multiple times.
func (m *Metrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registered {
		return nil
	}
	collectors := []prometheus.Collector{
		m.writesTotal,
		m.writeErrorsTotal,
		m.writeBytes,
		m.writeSeconds,
		m.decodeSkipsTotal,
		m.deletedTotal,
		m.trimmedTotal,
		m.tailBackoffsTotal,
		m.storageSeconds,
		m.storageBytes,
	}
	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	m.registered = true
	return nil
}

// stats returns the totals for name. Caller holds m.mu.
func (m *Metrics) stats(name string) *StreamStats {
	s, ok := m.streams[name]
	if !ok {
		s = &StreamStats{}
		m.streams[name] = s
	}
	s.LastUpdatedAt = time.Now()
	return s
}

func (m *Metrics) ObserveWrite(name string, bytes int, elapsed time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats(name)
	if err != nil {
		s.WriteErrors++
		m.writeErrorsTotal.WithLabelValues(name).Inc()
		return
	}
	s.Writes++
	m.writesTotal.WithLabelValues(name).Inc()
	m.writeBytes.WithLabelValues(name).Observe(float64(bytes))
	m.writeSeconds.WithLabelValues(name).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveDecodeSkip(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats(name).DecodeSkips++
	m.decodeSkipsTotal.WithLabelValues(name).Inc()
}

func (m *Metrics) ObserveDelete(name string, removed int64) {
	if removed <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats(name).Deleted += uint64(removed)
	m.deletedTotal.WithLabelValues(name).Add(float64(removed))
}

// ObserveTrim counts age trims done through the client-side fallback. Native
// trims are counted by OnTrim when the engine reports them.
func (m *Metrics) ObserveTrim(name string, removed int64, fallback bool) {
	if !fallback || removed <= 0 {
		return
	}
	m.recordTrim(name, "scan", removed)
}

// OnTrim counts entries removed by the embedded engine's retention.
func (m *Metrics) OnTrim(name string, reason eventlog.TrimReason, _, _ id.ID, removed int64) {
	m.recordTrim(name, string(reason), removed)
}

func (m *Metrics) recordTrim(name, reason string, removed int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats(name).Trimmed += uint64(removed)
	m.trimmedTotal.WithLabelValues(name, reason).Add(float64(removed))
}

func (m *Metrics) ObserveTailBackoff(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats(name).TailBackoffs++
	m.tailBackoffsTotal.WithLabelValues(name).Inc()
}

// Storage returns the hook to pass as pebblestore.Options.Metrics.
func (m *Metrics) Storage() pebblestore.MetricsHook { return storageHook{m} }

type storageHook struct{ m *Metrics }

func (h storageHook) observe(op string, elapsed time.Duration, bytes int) {
	h.m.storageSeconds.WithLabelValues(op).Observe(elapsed.Seconds())
	h.m.storageBytes.WithLabelValues(op).Add(float64(bytes))
}

func (h storageHook) ObserveRead(elapsed time.Duration, bytes int) { h.observe("read", elapsed, bytes) }
func (h storageHook) ObserveBatchCommit(elapsed time.Duration, _ int, bytes int) {
	h.observe("commit", elapsed, bytes)
}

// Snapshot copies the per-stream totals.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := Snapshot{Streams: make(map[string]StreamStats, len(m.streams)), CollectedAt: time.Now()}
	for k, v := range m.streams {
		out.Streams[k] = *v
	}
	return out
}
