package stream

import (
	"context"
	"iter"
	"time"

	"github.com/rzbill/tideline/pkg/id"
	logpkg "github.com/rzbill/tideline/pkg/log"
)

// Tailer follows one stream from a position. Each Tailer keeps its own
// cursor, so several consumers of a stream never affect each other. A Tailer
// is not safe for concurrent use.
type Tailer struct {
	s      *Store
	name   string
	cursor id.ID
	buf    []Record
}

// Tail returns a Tailer that replays the stream from its first entry and then
// follows new writes.
func (s *Store) Tail(name string) *Tailer { return s.TailFrom(name, id.Zero) }

// TailFrom returns a Tailer that yields entries with ids greater than after.
func (s *Store) TailFrom(name string, after id.ID) *Tailer {
	return &Tailer{s: s, name: name, cursor: after}
}

// Cursor returns the id of the last entry consumed from the backend.
func (t *Tailer) Cursor() id.ID { return t.cursor }

// Next returns the next decodable record, blocking until one is written.
// Store failures are logged and retried after a backoff; Next only returns
// an error when ctx is done, and that error is ctx.Err().
func (t *Tailer) Next(ctx context.Context) (Record, error) {
	s := t.s
	for {
		if len(t.buf) > 0 {
			r := t.buf[0]
			t.buf = t.buf[1:]
			return r, nil
		}
		if err := ctx.Err(); err != nil {
			return Record{}, err
		}

		entries, err := s.backend.ReadAfter(ctx, t.name, t.cursor, s.opts.TailBatch, s.opts.TailBlock)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Record{}, ctxErr
			}
			s.logger.With(
				logpkg.Str("stream", t.name),
				logpkg.Str("cursor", t.cursor.String()),
				logpkg.Dur("backoff", s.opts.TailBackoff),
				logpkg.Err(err),
			).Warn("stream.tail_backoff")
			s.obs.ObserveTailBackoff(t.name)
			if !sleepCtx(ctx, s.opts.TailBackoff) {
				return Record{}, ctx.Err()
			}
			continue
		}
		for _, e := range entries {
			t.cursor = e.ID
			if ev, ok := s.decode(t.name, e); ok {
				t.buf = append(t.buf, Record{ID: e.ID, Event: ev})
			}
		}
	}
}

// TailSeq ranges over the stream like Tail until ctx is done.
func (s *Store) TailSeq(ctx context.Context, name string) iter.Seq[Record] {
	return func(yield func(Record) bool) {
		t := s.Tail(name)
		for {
			r, err := t.Next(ctx)
			if err != nil || !yield(r) {
				return
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
