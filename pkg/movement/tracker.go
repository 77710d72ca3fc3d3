package movement

import "time"

// DefaultMaxSize is the history cap used when NewTracker gets a non-positive size.
const DefaultMaxSize = 500

// Sample is one observation.
type Sample struct {
	Time  time.Time
	Value float64
}

// Tracker keeps the most recent samples up to a fixed cap, evicting the
// oldest first.
type Tracker struct {
	maxSize int
	samples []Sample
}

// NewTracker returns an empty tracker holding at most maxSize samples.
func NewTracker(maxSize int) *Tracker {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Tracker{maxSize: maxSize, samples: make([]Sample, 0, min(maxSize, 64))}
}

// MaxSize returns the history cap.
func (t *Tracker) MaxSize() int { return t.maxSize }

// Add appends a sample and evicts the oldest when over capacity.
func (t *Tracker) Add(at time.Time, value float64) {
	t.samples = append(t.samples, Sample{Time: at, Value: value})
	if over := len(t.samples) - t.maxSize; over > 0 {
		// shift down instead of reslicing so the backing array does not grow forever
		n := copy(t.samples, t.samples[over:])
		clear(t.samples[n:])
		t.samples = t.samples[:n]
	}
}

// Clear drops every sample.
func (t *Tracker) Clear() { t.samples = t.samples[:0] }

// Len returns the number of held samples.
func (t *Tracker) Len() int { return len(t.samples) }

// Samples returns a copy of the history, oldest first.
func (t *Tracker) Samples() []Sample { return append([]Sample(nil), t.samples...) }

// Latest returns the newest sample.
func (t *Tracker) Latest() (Sample, bool) {
	if len(t.samples) == 0 {
		return Sample{}, false
	}
	return t.samples[len(t.samples)-1], true
}

// Window returns the samples strictly newer than latest - lookback.
func (t *Tracker) Window(lookback time.Duration) []Sample {
	latest, ok := t.Latest()
	if !ok {
		return nil
	}
	cutoff := latest.Time.Add(-lookback)
	// samples are time ordered, so the window is a suffix
	i := len(t.samples)
	for i > 0 && t.samples[i-1].Time.After(cutoff) {
		i--
	}
	return append([]Sample(nil), t.samples[i:]...)
}

// Compute returns the percentage change from the first to the last sample of
// the window ending at the newest sample. It returns 0 with fewer than two
// samples, an empty window, or a window starting at 0.
func (t *Tracker) Compute(lookback time.Duration) float64 {
	if len(t.samples) < 2 {
		return 0
	}
	w := t.Window(lookback)
	if len(w) == 0 {
		return 0
	}
	first, last := w[0].Value, w[len(w)-1].Value
	if first == 0 {
		return 0
	}
	return (last - first) / first * 100
}

// ComputeMinutes is Compute with the lookback given in minutes.
func (t *Tracker) ComputeMinutes(minutes float64) float64 {
	return t.Compute(time.Duration(minutes * float64(time.Minute)))
}
