// Package log provides tideline's structured logging facade and utilities.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// simple Field type for structured context. Internally it is backed by Go's
// standard library slog via a bridge handler that routes records through a
// formatter and a set of outputs, so every component emits the same shape of
// line whether it logs through the facade or through a *slog.Logger.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("stream"), log.Str("stream", "prices"))
//	l.Info("stream.write", log.Int("bytes", 128))
//
// # Configuration
//
// Use ApplyConfig to build a logger from a declarative Config, supporting JSON
// or text formatting and multiple outputs (console, file, null). Redaction and
// per-message sampling are applied in the bridge handler.
//
// # Interop
//
// To integrate with libraries expecting *log.Logger (Pebble, net/http), use
// ToStdLogger or RedirectStdLog. Slog() returns a *slog.Logger sharing the same
// pipeline for libraries that accept one.
package log
