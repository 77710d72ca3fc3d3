// Package metrics holds tideline's prometheus collectors. One Metrics value
// observes the stream store (stream.Observer), the Pebble engine
// (pebblestore.MetricsHook) and retention trims (eventlog.TrimHook).
package metrics
