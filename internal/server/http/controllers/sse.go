package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/rzbill/tideline/pkg/stream"
)

// sseSink writes stream records as Server-Sent Events.
type sseSink struct {
	w http.ResponseWriter
}

// Send formats and sends a record as an SSE data event with its id.
//
// The record is JSON-encoded and sent with the "data: " prefix followed by
// two newlines as required by the SSE specification.
func (s sseSink) Send(rec stream.Record) error {
	b, err := json.Marshal(recordJSON{ID: rec.ID.String(), Event: rec.Event})
	if err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("id: " + rec.ID.String() + "\ndata: ")); err != nil {
		return err
	}
	if _, err := s.w.Write(b); err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("\n\n")); err != nil {
		return err
	}
	return nil
}

// Flush flushes the HTTP response writer if it supports flushing.
//
// This ensures that SSE events are immediately sent to the client.
func (s sseSink) Flush() {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
}
