package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Backend names.
const (
	BackendPebble = "pebble"
	BackendRedis  = "redis"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	Backend         string        `json:"backend" yaml:"backend" toml:"backend"`
	DataDir         string        `json:"dataDir" yaml:"dataDir" toml:"dataDir"`
	Fsync           string        `json:"fsync" yaml:"fsync" toml:"fsync"`
	FsyncIntervalMs int           `json:"fsyncIntervalMs" yaml:"fsyncIntervalMs" toml:"fsyncIntervalMs"`
	Redis           RedisConfig   `json:"redis" yaml:"redis" toml:"redis"`
	Streams         StreamsConfig `json:"streams" yaml:"streams" toml:"streams"`
	Tracker         TrackerConfig `json:"tracker" yaml:"tracker" toml:"tracker"`
	Log             LogConfig     `json:"log" yaml:"log" toml:"log"`
	HTTP            ListenConfig  `json:"http" yaml:"http" toml:"http"`
	GRPC            ListenConfig  `json:"grpc" yaml:"grpc" toml:"grpc"`
}

// RedisConfig addresses the Redis backend.
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr" toml:"addr"`
	DB       int    `json:"db" yaml:"db" toml:"db"`
	Password string `json:"password" yaml:"password" toml:"password"`
}

// StreamsConfig holds stream store defaults.
type StreamsConfig struct {
	// DefaultMaxLen applies when a write does not name a max length. 0 is unbounded.
	DefaultMaxLen int64  `json:"defaultMaxLen" yaml:"defaultMaxLen" toml:"defaultMaxLen"`
	Codec         string `json:"codec" yaml:"codec" toml:"codec"`
	TailBlockMs   int    `json:"tailBlockMs" yaml:"tailBlockMs" toml:"tailBlockMs"`
	TailBackoffMs int    `json:"tailBackoffMs" yaml:"tailBackoffMs" toml:"tailBackoffMs"`
	ScanBatch     int    `json:"scanBatch" yaml:"scanBatch" toml:"scanBatch"`
}

// TrackerConfig sizes movement trackers created by the CLI.
type TrackerConfig struct {
	MaxSize int `json:"maxSize" yaml:"maxSize" toml:"maxSize"`
}

// LogConfig selects log level and format (text|json).
type LogConfig struct {
	Level  string `json:"level" yaml:"level" toml:"level"`
	Format string `json:"format" yaml:"format" toml:"format"`
}

// ListenConfig is a listen address; empty disables the server.
type ListenConfig struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Backend:         BackendPebble,
		DataDir:         DefaultDataDir(),
		Fsync:           "interval",
		FsyncIntervalMs: 5,
		Redis:           RedisConfig{Addr: "127.0.0.1:6379"},
		Streams: StreamsConfig{
			Codec:         "json",
			TailBlockMs:   1000,
			TailBackoffMs: 500,
			ScanBatch:     512,
		},
		Tracker: TrackerConfig{MaxSize: 500},
		Log:     LogConfig{Level: "info", Format: "text"},
		HTTP:    ListenConfig{Addr: ":8080"},
		GRPC:    ListenConfig{Addr: ":50051"},
	}
}

// Load reads configuration from a JSON, YAML or TOML file (by extension) on
// top of Default(). If path is empty, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(b), &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Validate checks enumerations and limits.
func (c Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendPebble:
		if c.DataDir == "" {
			errs = append(errs, errors.New("dataDir is required for the pebble backend"))
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("backend %q: use pebble|redis", c.Backend))
	}
	switch strings.ToLower(c.Fsync) {
	case "", "always", "interval", "never":
	default:
		errs = append(errs, fmt.Errorf("fsync %q: use always|interval|never", c.Fsync))
	}
	switch strings.ToLower(c.Streams.Codec) {
	case "", "json", "proto", "protobuf":
	default:
		errs = append(errs, fmt.Errorf("streams.codec %q: use json|proto", c.Streams.Codec))
	}
	if c.Streams.DefaultMaxLen < 0 {
		errs = append(errs, errors.New("streams.defaultMaxLen must not be negative"))
	}
	if c.Tracker.MaxSize < 0 {
		errs = append(errs, errors.New("tracker.maxSize must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
