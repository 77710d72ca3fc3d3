// Package config provides loading and environment overlay for tideline
// configuration. It exposes a Default() baseline, file loading by extension
// (JSON, YAML, TOML) and a TIDELINE_* environment overlay.
//
// Example:
//
//	cfg, err := config.Load("/etc/tideline.yaml") // empty path returns Default()
//	if err != nil { /* handle */ }
//	config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil { /* handle */ }
//	rt, _ := runtime.Open(ctx, runtime.Options{Config: cfg, Logger: logger})
//	defer rt.Close()
package config
