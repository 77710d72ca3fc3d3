package controllers

import (
	"encoding/json"

	"github.com/rzbill/tideline/pkg/event"
)

// Common request/response types for HTTP controllers

// writeReq represents a request to append one event to a stream.
type writeReq struct {
	Stream string      `json:"stream"`
	Event  event.Event `json:"event"`
	// MaxLen overrides the configured default when set. 0 is unbounded.
	MaxLen *int64 `json:"max_len"`
}

// deleteReq represents a field-equality delete.
type deleteReq struct {
	Stream string          `json:"stream"`
	Field  string          `json:"field"`
	Value  json.RawMessage `json:"value"`
}

// deleteWhereReq represents a CEL filtered delete.
type deleteWhereReq struct {
	Stream string `json:"stream"`
	Filter string `json:"filter"`
}

// trimReq represents an age trim. OlderThan is a Go duration ("24h");
// Before is an absolute cutoff in ms or RFC3339. OlderThan wins when both are set.
type trimReq struct {
	Stream    string `json:"stream"`
	OlderThan string `json:"older_than"`
	Before    string `json:"before"`
}

// dropReq represents a request to delete a whole stream.
type dropReq struct {
	Stream string `json:"stream"`
}

// recordJSON is one event with its entry id.
type recordJSON struct {
	ID    string      `json:"id"`
	Event event.Event `json:"event"`
}
