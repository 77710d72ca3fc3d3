package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rzbill/tideline/pkg/event"
	"github.com/rzbill/tideline/pkg/logstore"
	"github.com/rzbill/tideline/pkg/stream"
)

// Helper functions for common HTTP responses

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeJSON writes a JSON response with the given data.
func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

// writeJSONStatus writes a JSON response with a non-200 status.
func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// statusFor maps store errors onto HTTP status codes.
func statusFor(err error) int {
	var encErr *event.EncodingError
	switch {
	case errors.As(err, &encErr), errors.Is(err, stream.ErrEmptyName):
		return http.StatusBadRequest
	case errors.Is(err, logstore.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeValue parses a JSON scalar, list or object into an event value.
func decodeValue(raw json.RawMessage) (event.Value, error) {
	if len(raw) == 0 {
		return event.Null(), nil
	}
	wrapped := make([]byte, 0, len(raw)+6)
	wrapped = append(wrapped, `{"v":`...)
	wrapped = append(wrapped, raw...)
	wrapped = append(wrapped, '}')
	ev, err := event.JSONCodec{}.Decode(wrapped)
	if err != nil {
		return event.Value{}, err
	}
	v, _ := ev.Get("v")
	return v, nil
}

// queryValue reads a query parameter as JSON when it parses, otherwise as a
// plain string, so ?value=BTC and ?value=42 both work.
func queryValue(s string) event.Value {
	if json.Valid([]byte(s)) {
		if v, err := decodeValue(json.RawMessage(s)); err == nil {
			return v
		}
	}
	return event.String(s)
}

// parseLimit parses a limit string and returns a valid limit value.
//
// Returns 0 for empty strings or invalid values.
func parseLimit(limitStr string) int {
	if limitStr == "" {
		return 0
	}
	if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
		return limit
	}
	return 0
}

// parseTimestamp parses a timestamp string.
//
// Supports both RFC3339 format and raw millisecond timestamps.
func parseTimestamp(ts string) (time.Time, bool) {
	if ts == "" {
		return time.Time{}, false
	}
	if ms, err := strconv.ParseInt(ts, 10, 64); err == nil {
		return time.UnixMilli(ms), true
	}
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// parseBool parses a boolean string and returns the boolean value.
//
// Returns true for "true" or "1", false otherwise.
func parseBool(s string) bool {
	return s == "true" || s == "1"
}
