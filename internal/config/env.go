package config

import (
	"os"
	"strconv"
)

// FromEnv overlays TIDELINE_* environment variables onto cfg. Unparseable
// numbers are ignored.
func FromEnv(cfg *Config) {
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("TIDELINE_BACKEND", &cfg.Backend)
	str("TIDELINE_DATA_DIR", &cfg.DataDir)
	str("TIDELINE_FSYNC", &cfg.Fsync)
	num("TIDELINE_FSYNC_INTERVAL_MS", &cfg.FsyncIntervalMs)

	str("TIDELINE_REDIS_ADDR", &cfg.Redis.Addr)
	num("TIDELINE_REDIS_DB", &cfg.Redis.DB)
	str("TIDELINE_REDIS_PASSWORD", &cfg.Redis.Password)

	if v := os.Getenv("TIDELINE_STREAMS_DEFAULT_MAX_LEN"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Streams.DefaultMaxLen = n
		}
	}
	str("TIDELINE_STREAMS_CODEC", &cfg.Streams.Codec)
	num("TIDELINE_STREAMS_TAIL_BLOCK_MS", &cfg.Streams.TailBlockMs)
	num("TIDELINE_STREAMS_TAIL_BACKOFF_MS", &cfg.Streams.TailBackoffMs)
	num("TIDELINE_STREAMS_SCAN_BATCH", &cfg.Streams.ScanBatch)

	num("TIDELINE_TRACKER_MAX_SIZE", &cfg.Tracker.MaxSize)

	str("TIDELINE_LOG_LEVEL", &cfg.Log.Level)
	str("TIDELINE_LOG_FORMAT", &cfg.Log.Format)

	str("TIDELINE_HTTP_ADDR", &cfg.HTTP.Addr)
	str("TIDELINE_GRPC_ADDR", &cfg.GRPC.Addr)
}
