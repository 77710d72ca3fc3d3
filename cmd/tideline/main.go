package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	clientcmd "github.com/rzbill/tideline/internal/cmd/client"
	serverrun "github.com/rzbill/tideline/internal/cmd/server"
	cfgpkg "github.com/rzbill/tideline/internal/config"
	logpkg "github.com/rzbill/tideline/pkg/log"
)

func main() {
	// Respect TIDELINE_LOG_LEVEL for CLI output
	level := os.Getenv("TIDELINE_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)
	logpkg.RedirectStdLog(logger)

	rootCmd := &cobra.Command{
		Use:          "tideline",
		Short:        "tideline event stream CLI",
		Long:         "tideline stores JSON events in named streams on Pebble or Redis. This CLI runs the server and talks to it.",
		SilenceUsage: true,
	}

	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start tideline server (gRPC and HTTP)",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := serverrun.Run(ctx, serverrun.Options{Config: cfg}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			// brief delay to allow logs flush
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}
	f := serverStartCmd.Flags()
	f.String("config", os.Getenv("TIDELINE_CONFIG"), "Config file (.json, .yaml, .toml)")
	f.String("backend", "", "Storage backend: pebble|redis")
	f.String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	f.String("redis-addr", "", "Redis address for --backend=redis")
	f.String("grpc", "", "gRPC listen address (default :50051)")
	f.String("http", "", "HTTP listen address (default :8080)")
	f.String("fsync", "", "Fsync mode: always|interval|never")
	f.Int("fsync-interval-ms", 0, "When --fsync=interval, group-commit window in ms (default 5)")
	f.Int64("default-max-len", -1, "Approximate max length applied to writes without max_len (0 = unbounded)")
	f.String("codec", "", "Event codec: json|proto")
	f.String("log-level", "", "Log level: debug|info|warn|error")
	f.String("log-format", "", "Log format: text|json (default text)")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	rootCmd.AddCommand(clientcmd.NewStreamCommand(apiURL))
	rootCmd.AddCommand(clientcmd.NewHealthCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig layers defaults, the config file, TIDELINE_* env and flags.
func loadConfig(cmd *cobra.Command) (cfgpkg.Config, error) {
	cfg := cfgpkg.Default()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := cfgpkg.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	cfgpkg.FromEnv(&cfg)

	flags := cmd.Flags()
	str := func(name string, dst *string) {
		if v, _ := flags.GetString(name); v != "" {
			*dst = v
		}
	}
	str("backend", &cfg.Backend)
	str("data-dir", &cfg.DataDir)
	str("redis-addr", &cfg.Redis.Addr)
	str("grpc", &cfg.GRPC.Addr)
	str("http", &cfg.HTTP.Addr)
	str("fsync", &cfg.Fsync)
	str("codec", &cfg.Streams.Codec)
	str("log-level", &cfg.Log.Level)
	str("log-format", &cfg.Log.Format)
	if v, _ := flags.GetInt("fsync-interval-ms"); v > 0 {
		cfg.FsyncIntervalMs = v
	}
	if v, _ := flags.GetInt64("default-max-len"); v >= 0 {
		cfg.Streams.DefaultMaxLen = v
	}
	return cfg, cfg.Validate()
}

func apiURL() string {
	if v := os.Getenv("TIDELINE_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}
