package serverrun

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	cfgpkg "github.com/rzbill/tideline/internal/config"
	"github.com/rzbill/tideline/internal/runtime"
	grpcserver "github.com/rzbill/tideline/internal/server/grpc"
	httpserver "github.com/rzbill/tideline/internal/server/http"
	logpkg "github.com/rzbill/tideline/pkg/log"
)

// Options configures Run. Config carries every tunable; flags are applied to
// it by the caller.
type Options struct {
	Config cfgpkg.Config
	// Logger overrides the logger built from Config.Log.
	Logger logpkg.Logger
}

// storeDir is where the pebble backend keeps its files under the data dir.
func storeDir(dataDir string) string {
	if dataDir == "" {
		dataDir = cfgpkg.DefaultDataDir()
	}
	return filepath.Join(dataDir, "store")
}

// buildLogger builds the process-wide logger from cfg, falling back to
// info/text when the config is unusable.
func buildLogger(cfg cfgpkg.LogConfig) logpkg.Logger {
	lc := &logpkg.Config{Level: cfg.Level, Format: cfg.Format}
	logger, err := logpkg.ApplyConfig(lc)
	if err != nil {
		lvl := logpkg.InfoLevel
		if l, e := logpkg.ParseLevel(cfg.Level); e == nil {
			lvl = l
		}
		logger = logpkg.NewLogger(logpkg.WithLevel(lvl), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	}
	return logger
}

// Run starts the gRPC and HTTP servers and blocks until ctx is cancelled.
// An empty listen address disables that server.
func Run(ctx context.Context, opts Options) error {
	// Layer a local signal context over the provided one so callers that
	// don't pass a signal-aware context still shut down cleanly.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := opts.Config
	procLogger := opts.Logger
	if procLogger == nil {
		procLogger = buildLogger(cfg.Log)
	}
	// Redirect stdlib logs (e.g., Pebble) to our logger
	logpkg.RedirectStdLog(procLogger)

	if cfg.Backend == cfgpkg.BackendPebble {
		cfg.DataDir = storeDir(cfg.DataDir)
	}
	rt, err := runtime.Open(sctx, runtime.Options{Config: cfg, Logger: procLogger.With(logpkg.Component("runtime"))})
	if err != nil {
		return err
	}
	defer rt.Close()

	procLogger.Info("server.start",
		logpkg.Str("backend", cfg.Backend),
		logpkg.Str("grpc", cfg.GRPC.Addr),
		logpkg.Str("http", cfg.HTTP.Addr),
		logpkg.Str("level", cfg.Log.Level),
		logpkg.Str("format", cfg.Log.Format),
	)

	var wg sync.WaitGroup
	var gsrv *grpcserver.Server
	if cfg.GRPC.Addr != "" {
		gsrv = grpcserver.New(rt, procLogger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := gsrv.ListenAndServe(sctx, cfg.GRPC.Addr); err != nil && sctx.Err() == nil {
				procLogger.Error("server.grpc_failed", logpkg.Err(err))
			}
		}()
	}

	var hsrv *httpserver.Server
	if cfg.HTTP.Addr != "" {
		hsrv = httpserver.New(rt, procLogger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := hsrv.ListenAndServe(sctx, cfg.HTTP.Addr); err != nil && sctx.Err() == nil {
				procLogger.Error("server.http_failed", logpkg.Err(err))
			}
		}()
	}

	<-sctx.Done()
	// Shut the servers down before the deferred runtime close.
	if gsrv != nil {
		gsrv.Close()
	}
	if hsrv != nil {
		hsrv.Close()
	}
	wg.Wait()
	procLogger.Info("server.stop")
	return nil
}
