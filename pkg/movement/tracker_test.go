package movement

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func TestAddEvictsOldestFirst(t *testing.T) {
	tr := NewTracker(500)
	for i := 0; i < 501; i++ {
		tr.Add(t0.Add(time.Duration(i)*time.Second), float64(i))
	}
	require.Equal(t, 500, tr.Len())
	s := tr.Samples()
	require.Equal(t, 1.0, s[0].Value)
	require.Equal(t, 500.0, s[len(s)-1].Value)
}

func TestDefaultMaxSize(t *testing.T) {
	require.Equal(t, DefaultMaxSize, NewTracker(0).MaxSize())
	require.Equal(t, 3, NewTracker(3).MaxSize())
}

func TestComputeExample(t *testing.T) {
	tr := NewTracker(500)
	tr.Add(t0, 100)
	tr.Add(t0.Add(time.Minute), 100)
	tr.Add(t0.Add(4*time.Minute), 110)
	require.InDelta(t, 10.0, tr.Compute(5*time.Minute), 1e-9)
	require.InDelta(t, 10.0, tr.ComputeMinutes(5), 1e-9)
}

func TestComputeEdges(t *testing.T) {
	tr := NewTracker(10)
	require.Zero(t, tr.Compute(time.Minute))

	tr.Add(t0, 100)
	require.Zero(t, tr.Compute(time.Minute), "single sample")

	tr.Clear()
	tr.Add(t0, 0)
	tr.Add(t0.Add(time.Second), 50)
	require.Zero(t, tr.Compute(time.Minute), "zero first value")

	tr.Clear()
	tr.Add(t0, 100)
	tr.Add(t0.Add(time.Minute), 120)
	// zero lookback leaves an empty window since the filter is strictly newer
	require.Zero(t, tr.Compute(0))
}

func TestWindowIsStrictlyNewer(t *testing.T) {
	tr := NewTracker(10)
	tr.Add(t0, 50)
	tr.Add(t0.Add(time.Minute), 100)
	tr.Add(t0.Add(3*time.Minute), 80)

	// cutoff equals the first sample time, which is excluded
	w := tr.Window(3 * time.Minute)
	require.Len(t, w, 2)
	require.InDelta(t, -20.0, tr.Compute(3*time.Minute), 1e-9)
}

func TestClear(t *testing.T) {
	tr := NewTracker(10)
	tr.Add(t0, 1)
	tr.Clear()
	require.Zero(t, tr.Len())
	_, ok := tr.Latest()
	require.False(t, ok)
}

func TestGaugeExportsMovement(t *testing.T) {
	g := NewGauge(NewTracker(10), 5*time.Minute, prometheus.GaugeOpts{
		Name: "tideline_movement_percent",
		Help: "Percentage movement over the lookback window.",
	})
	g.Add(t0, 100)
	g.Add(t0.Add(time.Minute), 100)
	g.Add(t0.Add(4*time.Minute), 110)

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(g))
	expected := `
# HELP tideline_movement_percent Percentage movement over the lookback window.
# TYPE tideline_movement_percent gauge
tideline_movement_percent 10
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "tideline_movement_percent"))
}
