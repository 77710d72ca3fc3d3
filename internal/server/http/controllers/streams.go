package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rzbill/tideline/internal/runtime"
	"github.com/rzbill/tideline/pkg/event"
	"github.com/rzbill/tideline/pkg/id"
	logpkg "github.com/rzbill/tideline/pkg/log"
	"github.com/rzbill/tideline/pkg/stream"
)

// maxFilterLen bounds CEL filters accepted over HTTP.
const maxFilterLen = 2048

// StreamsController handles all stream-related HTTP endpoints.
//
// It exposes the stream store: writes, full reads, SSE tails, filtered
// deletes, latest lookups, age trims, drops and listing.
type StreamsController struct {
	rt  *runtime.Runtime
	st  *stream.Store
	log logpkg.Logger
}

// NewStreamsController creates a new streams controller.
func NewStreamsController(rt *runtime.Runtime, logger logpkg.Logger) *StreamsController {
	if logger == nil {
		logger = logpkg.Nop()
	}
	return &StreamsController{rt: rt, st: rt.Streams(), log: logger}
}

// RegisterRoutes registers all stream-related routes with the given mux.
func (c *StreamsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/streams", c.handleListStreams)
	mux.HandleFunc("/v1/streams/write", c.handleWrite)
	mux.HandleFunc("/v1/streams/read", c.handleRead)
	mux.HandleFunc("/v1/streams/tail", c.handleTailSSE)
	mux.HandleFunc("/v1/streams/delete", c.handleDelete)
	mux.HandleFunc("/v1/streams/delete-where", c.handleDeleteWhere)
	mux.HandleFunc("/v1/streams/latest", c.handleLatest)
	mux.HandleFunc("/v1/streams/trim", c.handleTrim)
	mux.HandleFunc("/v1/streams/drop", c.handleDrop)
	mux.HandleFunc("/v1/streams/len", c.handleLen)
}

// handleListStreams lists all streams.
func (c *StreamsController) handleListStreams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	list, err := c.st.Streams(r.Context())
	if err != nil {
		writeError(w, statusFor(err), "Failed to list streams")
		return
	}
	if list == nil {
		list = []string{}
	}
	writeJSON(w, map[string]any{"streams": list})
}

// handleWrite appends one event to a stream.
func (c *StreamsController) handleWrite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	start := time.Now()
	var req writeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	maxLen := c.rt.Config().Streams.DefaultMaxLen
	if req.MaxLen != nil {
		maxLen = *req.MaxLen
	}
	if maxLen < 0 {
		writeError(w, http.StatusBadRequest, "max_len must not be negative")
		return
	}
	eid, err := c.st.Write(r.Context(), req.Stream, req.Event, maxLen)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	// Expose basic timing for client-side debugging
	w.Header().Set("X-Write-Latency-Ms", strconv.FormatInt(time.Since(start).Milliseconds(), 10))
	writeJSONStatus(w, http.StatusCreated, map[string]string{"stream": req.Stream, "id": eid.String()})
}

// handleRead returns every decodable event of a stream.
//
// ordered=true sorts by the timestamp field when the stream allows it;
// ids=true includes entry ids.
func (c *StreamsController) handleRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	q := r.URL.Query()
	st := q.Get("stream")
	if st == "" {
		writeError(w, http.StatusBadRequest, "Stream parameter is required")
		return
	}
	if parseBool(q.Get("ids")) {
		recs, err := c.st.Records(r.Context(), st)
		if err != nil {
			writeError(w, statusFor(err), "Failed to read stream")
			return
		}
		items := make([]recordJSON, 0, len(recs))
		for _, rec := range recs {
			items = append(items, recordJSON{ID: rec.ID.String(), Event: rec.Event})
		}
		writeJSON(w, map[string]any{"stream": st, "records": items})
		return
	}
	events, err := c.st.ReadAll(r.Context(), st, parseBool(q.Get("ordered")))
	if err != nil {
		writeError(w, statusFor(err), "Failed to read stream")
		return
	}
	if events == nil {
		events = []event.Event{}
	}
	writeJSON(w, map[string]any{"stream": st, "events": events})
}

// handleTailSSE streams records as Server-Sent Events until the client
// disconnects or limit records were sent.
//
// after=<id> starts after that entry; without it the stream is replayed
// from the beginning.
func (c *StreamsController) handleTailSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	q := r.URL.Query()
	st := q.Get("stream")
	if st == "" {
		writeError(w, http.StatusBadRequest, "Stream parameter is required")
		return
	}
	after := id.Zero
	if s := q.Get("after"); s != "" {
		parsed, err := id.Parse(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid after id")
			return
		}
		after = parsed
	}
	limit := parseLimit(q.Get("limit"))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	sink := sseSink{w: w}
	sink.Flush()

	t := c.st.TailFrom(st, after)
	for sent := 0; limit == 0 || sent < limit; sent++ {
		rec, err := t.Next(r.Context())
		if err != nil {
			return
		}
		if err := sink.Send(rec); err != nil {
			c.log.Debug("http.tail_closed", logpkg.Str("stream", st), logpkg.Err(err))
			return
		}
		sink.Flush()
	}
}

// handleDelete removes entries whose field equals value.
func (c *StreamsController) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req deleteReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Stream == "" || req.Field == "" {
		writeError(w, http.StatusBadRequest, "stream and field are required")
		return
	}
	value, err := decodeValue(req.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid value")
		return
	}
	removed, err := c.st.FilteredDelete(r.Context(), req.Stream, req.Field, value)
	if err != nil {
		writeJSONStatus(w, statusFor(err), map[string]any{"error": err.Error(), "removed": removed})
		return
	}
	writeJSON(w, map[string]any{"stream": req.Stream, "removed": removed})
}

// handleDeleteWhere removes entries matching a CEL filter.
func (c *StreamsController) handleDeleteWhere(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req deleteWhereReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Stream == "" {
		writeError(w, http.StatusBadRequest, "stream is required")
		return
	}
	if len(req.Filter) > maxFilterLen {
		writeError(w, http.StatusBadRequest, "Filter too long")
		return
	}
	m, err := stream.CEL(req.Filter)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	removed, err := c.st.DeleteMatching(r.Context(), req.Stream, m)
	if err != nil {
		writeJSONStatus(w, statusFor(err), map[string]any{"error": err.Error(), "removed": removed})
		return
	}
	writeJSON(w, map[string]any{"stream": req.Stream, "removed": removed})
}

// handleLatest returns the newest event matching field=value or a CEL filter.
//
// Returns 404 when nothing matches.
func (c *StreamsController) handleLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	q := r.URL.Query()
	st := q.Get("stream")
	if st == "" {
		writeError(w, http.StatusBadRequest, "Stream parameter is required")
		return
	}
	var m stream.Matcher
	switch {
	case q.Get("filter") != "":
		filter := q.Get("filter")
		if len(filter) > maxFilterLen {
			writeError(w, http.StatusBadRequest, "Filter too long")
			return
		}
		cm, err := stream.CEL(filter)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		m = cm
	case q.Get("field") != "":
		m = stream.FieldEquals(q.Get("field"), queryValue(q.Get("value")))
	default:
		writeError(w, http.StatusBadRequest, "field or filter is required")
		return
	}
	rec, found, err := c.st.LatestWhere(r.Context(), st, m)
	if err != nil {
		writeError(w, statusFor(err), "Failed to search stream")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "No matching event")
		return
	}
	writeJSON(w, recordJSON{ID: rec.ID.String(), Event: rec.Event})
}

// handleTrim removes entries older than a cutoff.
func (c *StreamsController) handleTrim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req trimReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Stream == "" {
		writeError(w, http.StatusBadRequest, "stream is required")
		return
	}
	var cutoff time.Time
	switch {
	case req.OlderThan != "":
		d, err := time.ParseDuration(req.OlderThan)
		if err != nil || d < 0 {
			writeError(w, http.StatusBadRequest, "Invalid older_than duration")
			return
		}
		cutoff = time.Now().Add(-d)
	case req.Before != "":
		t, ok := parseTimestamp(req.Before)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid before timestamp")
			return
		}
		cutoff = t
	default:
		writeError(w, http.StatusBadRequest, "older_than or before is required")
		return
	}
	res := c.st.TrimOlderThan(r.Context(), req.Stream, cutoff)
	writeJSON(w, map[string]any{"stream": req.Stream, "removed": res.Removed, "known": res.Known})
}

// handleDrop deletes a whole stream.
func (c *StreamsController) handleDrop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req dropReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Stream == "" {
		writeError(w, http.StatusBadRequest, "stream is required")
		return
	}
	existed := c.st.DeleteStream(r.Context(), req.Stream)
	writeJSON(w, map[string]any{"stream": req.Stream, "existed": existed})
}

// handleLen returns the number of entries in a stream.
func (c *StreamsController) handleLen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	st := r.URL.Query().Get("stream")
	if st == "" {
		writeError(w, http.StatusBadRequest, "Stream parameter is required")
		return
	}
	n, err := c.st.Len(r.Context(), st)
	if err != nil {
		writeError(w, statusFor(err), "Failed to count stream")
		return
	}
	writeJSON(w, map[string]any{"stream": st, "len": n})
}
