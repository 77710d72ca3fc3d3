// Package logstore defines the contract between the stream store and the
// underlying append-only log engine.
//
// A Backend keeps one ordered log per stream name. Every entry carries an
// id.ID assigned at append time and a small map of byte fields. Two
// implementations ship with tideline: the embedded Pebble engine
// (internal/eventlog) and Redis Streams (internal/storage/redis).
//
// Backends report transport or engine failures wrapped with Unavailable so
// callers can test for ErrUnavailable with errors.Is. Optional capabilities
// that a backend cannot serve return ErrUnsupported.
package logstore
