package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cfgpkg "github.com/rzbill/tideline/internal/config"
	"github.com/rzbill/tideline/internal/eventlog"
	"github.com/rzbill/tideline/internal/metrics"
	pebblestore "github.com/rzbill/tideline/internal/storage/pebble"
	redisstore "github.com/rzbill/tideline/internal/storage/redis"
	"github.com/rzbill/tideline/pkg/event"
	logpkg "github.com/rzbill/tideline/pkg/log"
	"github.com/rzbill/tideline/pkg/logstore"
	"github.com/rzbill/tideline/pkg/stream"
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	Logger logpkg.Logger
	// Registerer receives the store metrics. Nil selects the default registerer.
	Registerer prometheus.Registerer
}

// Runtime wires config, storage, metrics and the stream store for a single node.
type Runtime struct {
	config  cfgpkg.Config
	log     logpkg.Logger
	backend logstore.Backend
	metrics *metrics.Metrics
	streams *stream.Store
	gather  prometheus.Gatherer
	closed  atomic.Bool
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Open validates cfg, opens the configured backend and returns a Runtime.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.Nop()
	}
	codec, err := event.CodecByName(cfg.Streams.Codec)
	if err != nil {
		return nil, err
	}
	gather := prometheus.DefaultGatherer
	if g, ok := opts.Registerer.(prometheus.Gatherer); ok {
		gather = g
	}
	m := metrics.New(opts.Registerer)
	if err := m.Register(); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	backend, err := openBackend(ctx, cfg, m)
	if err != nil {
		return nil, err
	}
	logger.Info("runtime.open", logpkg.Str("backend", cfg.Backend), logpkg.Str("codec", codec.Name()))

	streams := stream.New(backend, stream.Options{
		Codec:       codec,
		Logger:      logger,
		Observer:    m,
		TailBlock:   time.Duration(cfg.Streams.TailBlockMs) * time.Millisecond,
		TailBackoff: time.Duration(cfg.Streams.TailBackoffMs) * time.Millisecond,
		ScanBatch:   cfg.Streams.ScanBatch,
	})
	return &Runtime{config: cfg, log: logger, backend: backend, metrics: m, streams: streams, gather: gather}, nil
}

func openBackend(ctx context.Context, cfg cfgpkg.Config, m *metrics.Metrics) (logstore.Backend, error) {
	switch cfg.Backend {
	case cfgpkg.BackendRedis:
		b, err := redisstore.Open(ctx, redisstore.Options{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			Password: cfg.Redis.Password,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	case cfgpkg.BackendPebble, "":
		fsync, err := pebblestore.ParseFsyncMode(cfg.Fsync)
		if err != nil {
			return nil, err
		}
		s, err := eventlog.Open(eventlog.Options{
			Pebble: pebblestore.Options{
				DataDir:       cfg.DataDir,
				Fsync:         fsync,
				FsyncInterval: time.Duration(cfg.FsyncIntervalMs) * time.Millisecond,
				Metrics:       m.Storage(),
			},
			TrimHook: m,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("runtime: unknown backend %q", cfg.Backend)
}

// Close closes underlying resources. Later calls are no-ops.
func (r *Runtime) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	return r.backend.Close()
}

// CheckHealth reports whether the backend answers.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.closed.Load() {
		return errors.New("backend not open")
	}
	if p, ok := r.backend.(pinger); ok {
		return p.Ping(ctx)
	}
	_, err := r.backend.Streams(ctx)
	return err
}

// Streams returns the stream store.
func (r *Runtime) Streams() *stream.Store { return r.streams }

// Metrics returns the prometheus collectors backing the store observer.
func (r *Runtime) Metrics() *metrics.Metrics { return r.metrics }

// Gatherer returns the registry holding the store metrics, for /metrics.
func (r *Runtime) Gatherer() prometheus.Gatherer { return r.gather }

// Backend exposes the raw log backend (internal use only).
func (r *Runtime) Backend() logstore.Backend { return r.backend }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// Logger returns the runtime logger.
func (r *Runtime) Logger() logpkg.Logger { return r.log }
