package movement

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Gauge shares a Tracker between a feeding goroutine and a prometheus
// scrape. All tracker access goes through its mutex.
type Gauge struct {
	mu       sync.Mutex
	tracker  *Tracker
	lookback time.Duration
	gauge    prometheus.GaugeFunc
}

// NewGauge wraps tracker and exposes Compute(lookback) as a gauge named by opts.
func NewGauge(tracker *Tracker, lookback time.Duration, opts prometheus.GaugeOpts) *Gauge {
	g := &Gauge{tracker: tracker, lookback: lookback}
	g.gauge = prometheus.NewGaugeFunc(opts, g.Movement)
	return g
}

// Add feeds a sample.
func (g *Gauge) Add(at time.Time, value float64) {
	g.mu.Lock()
	g.tracker.Add(at, value)
	g.mu.Unlock()
}

// Clear empties the tracker.
func (g *Gauge) Clear() {
	g.mu.Lock()
	g.tracker.Clear()
	g.mu.Unlock()
}

// Movement returns the current percentage movement.
func (g *Gauge) Movement() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tracker.Compute(g.lookback)
}

// Len returns the tracker size.
func (g *Gauge) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tracker.Len()
}

func (g *Gauge) Describe(ch chan<- *prometheus.Desc) { g.gauge.Describe(ch) }
func (g *Gauge) Collect(ch chan<- prometheus.Metric) { g.gauge.Collect(ch) }
