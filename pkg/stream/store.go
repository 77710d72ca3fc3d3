package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rzbill/tideline/pkg/event"
	"github.com/rzbill/tideline/pkg/id"
	logpkg "github.com/rzbill/tideline/pkg/log"
	"github.com/rzbill/tideline/pkg/logstore"
)

// DataField is the entry field holding the encoded event.
const DataField = "data"

const tracerName = "github.com/rzbill/tideline/pkg/stream"

// ErrEmptyName is returned when writing to a stream without a name.
var ErrEmptyName = errors.New("stream: empty stream name")

// Options tunes a Store. Zero values select defaults.
type Options struct {
	Codec    event.Codec
	Logger   logpkg.Logger
	Observer Observer
	Tracer   trace.Tracer

	// TailBlock bounds each blocking poll of a Tailer.
	TailBlock time.Duration
	// TailBackoff is the pause after a failed tail poll.
	TailBackoff time.Duration
	TailBatch   int
	ScanBatch   int
	DeleteBatch int
}

func (o Options) withDefaults() Options {
	if o.Codec == nil {
		o.Codec = event.JSONCodec{}
	}
	if o.Logger == nil {
		o.Logger = logpkg.NewLogger()
	}
	if o.Observer == nil {
		o.Observer = NoopObserver{}
	}
	if o.Tracer == nil {
		o.Tracer = otel.Tracer(tracerName)
	}
	if o.TailBlock <= 0 {
		o.TailBlock = time.Second
	}
	if o.TailBackoff <= 0 {
		o.TailBackoff = 500 * time.Millisecond
	}
	if o.TailBatch <= 0 {
		o.TailBatch = 128
	}
	if o.ScanBatch <= 0 {
		o.ScanBatch = 512
	}
	if o.DeleteBatch <= 0 {
		o.DeleteBatch = 256
	}
	return o
}

// Record pairs a decoded event with its entry id.
type Record struct {
	ID    id.ID
	Event event.Event
}

// TrimResult reports the outcome of an age trim. Known is false when the
// trim failed part way; Removed then counts only confirmed removals.
type TrimResult struct {
	Removed int64
	Known   bool
}

// Store is a set of named event streams over one backend. It is safe for
// concurrent use; Tailers are not.
type Store struct {
	backend logstore.Backend
	codec   event.Codec
	logger  logpkg.Logger
	obs     Observer
	tracer  trace.Tracer
	opts    Options
}

// New returns a Store over backend.
func New(backend logstore.Backend, opts Options) *Store {
	opts = opts.withDefaults()
	return &Store{
		backend: backend,
		codec:   opts.Codec,
		logger:  opts.Logger.With(logpkg.Component("stream")),
		obs:     opts.Observer,
		tracer:  opts.Tracer,
		opts:    opts,
	}
}

// Codec returns the codec used for payloads.
func (s *Store) Codec() event.Codec { return s.codec }

func (s *Store) startSpan(ctx context.Context, op, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "stream."+op, trace.WithAttributes(
		attribute.String("stream.name", name),
		attribute.String("stream.codec", s.codec.Name()),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// storeErr makes sure a backend failure matches logstore.ErrUnavailable.
func storeErr(op string, err error) error {
	if err == nil || errors.Is(err, logstore.ErrUnavailable) || errors.Is(err, logstore.ErrUnsupported) {
		return err
	}
	return logstore.Unavailable(op, err)
}

// Write encodes ev and appends it to the stream. maxLen > 0 trims the stream
// to approximately that many entries in the same write. Encoding failures are
// returned as *event.EncodingError; store failures match logstore.ErrUnavailable.
func (s *Store) Write(ctx context.Context, name string, ev event.Event, maxLen int64) (eid id.ID, err error) {
	ctx, span := s.startSpan(ctx, "write", name)
	defer func() { endSpan(span, err) }()

	if name == "" {
		return id.Zero, ErrEmptyName
	}
	start := time.Now()
	payload, err := s.codec.Encode(ev)
	if err != nil {
		s.logger.With(logpkg.Str("stream", name), logpkg.Err(err)).Warn("stream.encode_failed")
		return id.Zero, err
	}

	eid, err = s.backend.Append(ctx, name, map[string][]byte{DataField: payload}, maxLen)
	elapsed := time.Since(start)
	s.obs.ObserveWrite(name, len(payload), elapsed, err)
	if err != nil {
		s.logger.With(logpkg.Str("stream", name), logpkg.Err(err)).Error("stream.write_failed")
		return id.Zero, fmt.Errorf("stream: write %s: %w", name, storeErr("append", err))
	}
	span.SetAttributes(attribute.String("stream.id", eid.String()))
	s.logger.With(
		logpkg.Str("stream", name),
		logpkg.Str("id", eid.String()),
		logpkg.Int("bytes", len(payload)),
		logpkg.Int64("max_len", maxLen),
		logpkg.Dur("dur", elapsed),
	).Debug("stream.write")
	return eid, nil
}

// decode turns an entry into an event, logging and reporting failures.
func (s *Store) decode(name string, e logstore.Entry) (event.Event, bool) {
	data, ok := e.Field(DataField)
	var err error
	var ev event.Event
	if !ok {
		err = &event.DecodingError{Codec: s.codec.Name(), Err: errors.New("entry has no data field")}
	} else {
		ev, err = s.codec.Decode(data)
	}
	if err != nil {
		s.logger.With(
			logpkg.Str("stream", name),
			logpkg.Str("id", e.ID.String()),
			logpkg.Err(err),
		).Warn("stream.decode_skip")
		s.obs.ObserveDecodeSkip(name)
		return event.Event{}, false
	}
	return ev, true
}

// scan walks the stream oldest first in batches until fn returns false.
func (s *Store) scan(ctx context.Context, name string, min, max id.ID, fn func(logstore.Entry) bool) error {
	for {
		entries, err := s.backend.Range(ctx, name, min, max, s.opts.ScanBatch)
		if err != nil {
			return storeErr("range", err)
		}
		for _, e := range entries {
			if !fn(e) {
				return nil
			}
		}
		if len(entries) < s.opts.ScanBatch {
			return nil
		}
		last := entries[len(entries)-1].ID
		if last == max || last == id.Max {
			return nil
		}
		min = last.Next()
	}
}

// Records returns every decodable entry of the stream in id order. A stream
// that does not exist yields an empty slice.
func (s *Store) Records(ctx context.Context, name string) (recs []Record, err error) {
	ctx, span := s.startSpan(ctx, "records", name)
	defer func() { endSpan(span, err) }()

	recs = []Record{}
	err = s.scan(ctx, name, id.Zero, id.Max, func(e logstore.Entry) bool {
		if ev, ok := s.decode(name, e); ok {
			recs = append(recs, Record{ID: e.ID, Event: ev})
		}
		return true
	})
	if err != nil {
		s.logger.With(logpkg.Str("stream", name), logpkg.Err(err)).Error("stream.read_failed")
		return nil, fmt.Errorf("stream: read %s: %w", name, err)
	}
	return recs, nil
}

// ReadAll returns every decodable event of the stream. With ordered set the
// events are stably sorted by their timestamp field, provided every event has
// one and they are all numbers or all strings; otherwise id order is kept and
// a warning is logged.
func (s *Store) ReadAll(ctx context.Context, name string, ordered bool) ([]event.Event, error) {
	recs, err := s.Records(ctx, name)
	if err != nil {
		return nil, err
	}
	if ordered {
		if blocking := sortByTimestamp(recs); blocking > 0 {
			s.logger.With(
				logpkg.Str("stream", name),
				logpkg.Int("without_timestamp", blocking),
				logpkg.Int("total", len(recs)),
			).Warn("stream.order_skipped")
		}
	}
	events := make([]event.Event, len(recs))
	for i, r := range recs {
		events[i] = r.Event
	}
	return events, nil
}

// FilteredDelete removes every entry whose event has field equal to value.
// It is DeleteMatching with FieldEquals.
func (s *Store) FilteredDelete(ctx context.Context, name, field string, value event.Value) (int64, error) {
	return s.DeleteMatching(ctx, name, FieldEquals(field, value))
}

// DeleteMatching removes every decodable entry accepted by m and returns the
// number removed. Undecodable entries are skipped, never deleted.
func (s *Store) DeleteMatching(ctx context.Context, name string, m Matcher) (removed int64, err error) {
	ctx, span := s.startSpan(ctx, "delete_matching", name)
	defer func() { endSpan(span, err) }()

	pending := make([]id.ID, 0, s.opts.DeleteBatch)
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		n, err := s.backend.Delete(ctx, name, pending...)
		if err != nil {
			return storeErr("delete", err)
		}
		removed += n
		pending = pending[:0]
		return nil
	}

	var flushErr error
	err = s.scan(ctx, name, id.Zero, id.Max, func(e logstore.Entry) bool {
		ev, ok := s.decode(name, e)
		if !ok || !m.Match(Record{ID: e.ID, Event: ev}) {
			return true
		}
		pending = append(pending, e.ID)
		if len(pending) >= s.opts.DeleteBatch {
			flushErr = flush()
		}
		return flushErr == nil
	})
	if err == nil {
		err = flushErr
	}
	if err == nil {
		err = flush()
	}
	s.obs.ObserveDelete(name, removed)
	if err != nil {
		s.logger.With(logpkg.Str("stream", name), logpkg.Int64("removed", removed), logpkg.Err(err)).Error("stream.delete_failed")
		return removed, fmt.Errorf("stream: delete from %s: %w", name, err)
	}
	s.logger.With(logpkg.Str("stream", name), logpkg.Int64("removed", removed)).Debug("stream.delete")
	return removed, nil
}

// LatestMatching returns the newest event whose field equals value.
func (s *Store) LatestMatching(ctx context.Context, name, field string, value event.Value) (event.Event, bool, error) {
	rec, ok, err := s.LatestWhere(ctx, name, FieldEquals(field, value))
	return rec.Event, ok, err
}

// LatestWhere scans newest first and returns the first record accepted by m.
func (s *Store) LatestWhere(ctx context.Context, name string, m Matcher) (rec Record, found bool, err error) {
	ctx, span := s.startSpan(ctx, "latest", name)
	defer func() { endSpan(span, err) }()

	max := id.Max
	for {
		entries, err := s.backend.RevRange(ctx, name, max, id.Zero, s.opts.ScanBatch)
		if err != nil {
			err = storeErr("revrange", err)
			s.logger.With(logpkg.Str("stream", name), logpkg.Err(err)).Error("stream.latest_failed")
			return Record{}, false, fmt.Errorf("stream: latest in %s: %w", name, err)
		}
		for _, e := range entries {
			ev, ok := s.decode(name, e)
			if !ok {
				continue
			}
			r := Record{ID: e.ID, Event: ev}
			if m.Match(r) {
				return r, true, nil
			}
		}
		if len(entries) < s.opts.ScanBatch {
			return Record{}, false, nil
		}
		oldest := entries[len(entries)-1].ID
		if oldest.IsZero() {
			return Record{}, false, nil
		}
		max = oldest.Prev()
	}
}

// DeleteStream removes the whole stream and reports whether it existed.
// Store failures are logged and reported as false.
func (s *Store) DeleteStream(ctx context.Context, name string) bool {
	ctx, span := s.startSpan(ctx, "delete_stream", name)
	existed, err := s.backend.DeleteStream(ctx, name)
	endSpan(span, err)
	if err != nil {
		s.logger.With(logpkg.Str("stream", name), logpkg.Err(err)).Error("stream.drop_failed")
		return false
	}
	s.logger.With(logpkg.Str("stream", name), logpkg.Bool("existed", existed)).Info("stream.drop")
	return existed
}

// TrimOlderThan removes entries whose id time is before cutoff. Entries at
// or after cutoff are never removed.
func (s *Store) TrimOlderThan(ctx context.Context, name string, cutoff time.Time) TrimResult {
	ctx, span := s.startSpan(ctx, "trim", name)
	minID := id.FromTime(cutoff)
	span.SetAttributes(attribute.String("stream.min_id", minID.String()))

	n, err := s.backend.TrimMinID(ctx, name, minID)
	fallback := false
	if errors.Is(err, logstore.ErrUnsupported) {
		fallback = true
		n, err = s.trimByScan(ctx, name, minID)
	}
	endSpan(span, err)

	logger := s.logger.With(
		logpkg.Str("stream", name),
		logpkg.Str("min_id", minID.String()),
		logpkg.Int64("removed", n),
		logpkg.Bool("fallback", fallback),
	)
	if err != nil {
		logger.With(logpkg.Err(err)).Error("stream.trim_failed")
		return TrimResult{Removed: n}
	}
	s.obs.ObserveTrim(name, n, fallback)
	logger.Debug("stream.trim")
	return TrimResult{Removed: n, Known: true}
}

// trimByScan deletes ids below minID in batches for backends without a range trim.
func (s *Store) trimByScan(ctx context.Context, name string, minID id.ID) (int64, error) {
	if minID.IsZero() {
		return 0, nil
	}
	max := minID.Prev()
	min := id.Zero
	var removed int64
	for {
		entries, err := s.backend.Range(ctx, name, min, max, s.opts.DeleteBatch)
		if err != nil {
			return removed, storeErr("range", err)
		}
		if len(entries) == 0 {
			return removed, nil
		}
		ids := make([]id.ID, len(entries))
		for i, e := range entries {
			ids[i] = e.ID
		}
		n, err := s.backend.Delete(ctx, name, ids...)
		removed += n
		if err != nil {
			return removed, storeErr("delete", err)
		}
		last := ids[len(ids)-1]
		if len(entries) < s.opts.DeleteBatch || last == max {
			return removed, nil
		}
		min = last.Next()
	}
}

// Len returns the number of entries in the stream.
func (s *Store) Len(ctx context.Context, name string) (int64, error) {
	n, err := s.backend.Len(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("stream: len %s: %w", name, storeErr("len", err))
	}
	return n, nil
}

// Streams lists existing stream names.
func (s *Store) Streams(ctx context.Context) ([]string, error) {
	names, err := s.backend.Streams(ctx)
	if err != nil {
		return nil, fmt.Errorf("stream: list: %w", storeErr("streams", err))
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}
