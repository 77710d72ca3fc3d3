// Package movement tracks a bounded time series and reports percentage
// movement over a lookback window.
//
//	tr := movement.NewTracker(500)
//	tr.Add(t0, 100)
//	tr.Add(t0.Add(time.Minute), 100)
//	tr.Add(t0.Add(4*time.Minute), 110)
//	tr.Compute(5 * time.Minute) // 10
//
// Samples must be added in non-decreasing time order. A Tracker is not safe
// for concurrent use; Gauge shows one way to share it behind a mutex.
package movement
