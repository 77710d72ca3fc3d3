package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/rzbill/tideline/pkg/event"
	"github.com/rzbill/tideline/pkg/id"
	"github.com/rzbill/tideline/pkg/movement"
)

// watchLine is printed for every event that carried a numeric value.
type watchLine struct {
	ID          string  `json:"id"`
	Value       float64 `json:"value"`
	MovementPct float64 `json:"movement_pct"`
	Samples     int     `json:"samples"`
}

// sampleOf extracts the numeric field and a sample time from a tail record.
// The time is the event's timestamp field in ms when numeric, else the id time.
func sampleOf(rec tailRecord, field string) (time.Time, float64, bool) {
	var ev event.Event
	if err := json.Unmarshal(rec.Event, &ev); err != nil {
		return time.Time{}, 0, false
	}
	v, ok := ev.Get(field)
	if !ok {
		return time.Time{}, 0, false
	}
	value, ok := v.AsNumber()
	if !ok {
		return time.Time{}, 0, false
	}
	if ts, ok := ev.Timestamp(); ok {
		if ms, ok := ts.AsNumber(); ok {
			return time.UnixMilli(int64(ms)), value, true
		}
	}
	eid, err := id.Parse(rec.ID)
	if err != nil {
		return time.Time{}, 0, false
	}
	return eid.Time(), value, true
}

// newStreamWatchCommand constructs the `stream watch` subcommand. It tails a
// stream and prints the movement of a numeric field over a lookback window.
func newStreamWatchCommand(baseURL BaseURLFunc) *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Tail a stream and print the % movement of a numeric field",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := requireStream(cmd)
			if err != nil {
				return err
			}
			field, _ := cmd.Flags().GetString("field")
			if field == "" {
				return errors.New("--field is required")
			}
			lookback, _ := cmd.Flags().GetDuration("lookback")
			maxSize, _ := cmd.Flags().GetInt("max-size")
			after, _ := cmd.Flags().GetString("after")
			limit, _ := cmd.Flags().GetInt("limit")
			metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

			gauge := movement.NewGauge(movement.NewTracker(maxSize), lookback, prometheus.GaugeOpts{
				Namespace:   "tideline",
				Subsystem:   "watch",
				Name:        "movement_percent",
				Help:        "Percentage movement of the watched field over the lookback window",
				ConstLabels: prometheus.Labels{"stream": st, "field": field},
			})
			if metricsAddr != "" {
				stop, err := serveGauge(cmd.Context(), metricsAddr, gauge)
				if err != nil {
					return err
				}
				defer stop()
			}

			body, err := openTail(cmd.Context(), baseURL(), st, after, limit)
			if err != nil {
				return err
			}
			defer func() { _ = body.Close() }()
			enc := json.NewEncoder(cmd.OutOrStdout())
			err = readSSE(cmd.Context(), body, func(rec tailRecord) error {
				at, value, ok := sampleOf(rec, field)
				if !ok {
					return nil
				}
				gauge.Add(at, value)
				return enc.Encode(watchLine{ID: rec.ID, Value: value, MovementPct: gauge.Movement(), Samples: gauge.Len()})
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	watchCmd.Flags().String("stream", "", "Stream")
	watchCmd.Flags().String("field", "", "Numeric field to track, e.g. price")
	watchCmd.Flags().Duration("lookback", 5*time.Minute, "Movement window")
	watchCmd.Flags().Int("max-size", movement.DefaultMaxSize, "Samples kept by the tracker")
	watchCmd.Flags().String("after", "", "Start after this entry id (default: replay from the first entry)")
	watchCmd.Flags().Int("limit", 0, "Stop after N events (0 = infinite)")
	watchCmd.Flags().String("metrics-addr", "", "Expose the movement gauge on this address at /metrics")
	return watchCmd
}

// serveGauge exposes g on addr until the returned stop func is called.
func serveGauge(ctx context.Context, addr string, g *movement.Gauge) (func(), error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(g); err != nil {
		return nil, fmt.Errorf("register gauge: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = srv.ListenAndServe() }()
	return func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}, nil
}
