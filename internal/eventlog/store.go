package eventlog

import (
	"context"
	"errors"
	"sync"
	"time"

	pebblestore "github.com/rzbill/tideline/internal/storage/pebble"
	"github.com/rzbill/tideline/pkg/id"
	"github.com/rzbill/tideline/pkg/logstore"
)

// ErrClosed is returned by operations on a closed Store.
var ErrClosed = errors.New("eventlog: store closed")

// Options configures a Store.
type Options struct {
	Pebble   pebblestore.Options
	TrimHook TrimHook
}

// Store is a logstore.Backend over one Pebble database. It caches one Log per
// stream that has data or a blocked reader, so appenders and tailers of the
// same stream share a notifier. Reads of unknown streams leave no cache entry.
type Store struct {
	db    *pebblestore.DB
	owned bool
	hook  TrimHook
	// gen is shared by every Log so ids keep increasing when a dropped
	// stream is written again.
	gen   *id.Generator

	mu     sync.Mutex
	logs   map[string]*Log
	closed bool
}

var _ logstore.Backend = (*Store)(nil)

// Open opens the Pebble database described by opts and returns a Store that owns it.
func Open(opts Options) (*Store, error) {
	db, err := pebblestore.Open(opts.Pebble)
	if err != nil {
		return nil, err
	}
	s := NewStore(db, opts.TrimHook)
	s.owned = true
	return s, nil
}

// NewStore wraps an already opened database. Close does not close db.
func NewStore(db *pebblestore.DB, hook TrimHook) *Store {
	if hook == nil {
		hook = noopTrimHook{}
	}
	return &Store{db: db, hook: hook, gen: id.NewGenerator(), logs: make(map[string]*Log)}
}

// logFor returns the Log for stream. Logs of streams without data are cached
// only when create is set.
func (s *Store) logFor(stream string, create bool) (*Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logLocked(stream, create)
}

func (s *Store) logLocked(stream string, create bool) (*Log, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if l, ok := s.logs[stream]; ok {
		return l, nil
	}
	l, err := openLog(s.db, stream, s.hook, s.gen)
	if err != nil {
		return nil, err
	}
	if create || l.Exists() {
		s.logs[stream] = l
	}
	return l, nil
}

// acquire returns the cached Log for stream and pins it until release.
func (s *Store) acquire(stream string) (*Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.logLocked(stream, true)
	if err != nil {
		return nil, err
	}
	l.waiters++
	return l, nil
}

func (s *Store) release(stream string, l *Log) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.waiters--
	s.evictLocked(stream, l)
}

// evictLocked drops l from the cache once its stream has no data and no
// reader is blocked on it.
func (s *Store) evictLocked(stream string, l *Log) {
	if s.logs[stream] != l || l.waiters > 0 {
		return
	}
	if l.retire() {
		delete(s.logs, stream)
	}
}

func (s *Store) Append(ctx context.Context, stream string, fields map[string][]byte, maxLen int64) (id.ID, error) {
	for {
		l, err := s.logFor(stream, true)
		if err != nil {
			return id.Zero, logstore.Unavailable("pebble.append", err)
		}
		eid, err := l.Append(ctx, fields, maxLen)
		if errors.Is(err, errRetired) {
			continue
		}
		return eid, logstore.Unavailable("pebble.append", err)
	}
}

func (s *Store) Range(ctx context.Context, stream string, min, max id.ID, count int) ([]logstore.Entry, error) {
	return s.read(ctx, "pebble.range", stream, ReadOptions{Min: min, Max: max, Limit: count})
}

func (s *Store) RevRange(ctx context.Context, stream string, max, min id.ID, count int) ([]logstore.Entry, error) {
	return s.read(ctx, "pebble.revrange", stream, ReadOptions{Min: min, Max: max, Limit: count, Reverse: true})
}

func (s *Store) read(ctx context.Context, op, stream string, opts ReadOptions) ([]logstore.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l, err := s.logFor(stream, false)
	if err != nil {
		return nil, logstore.Unavailable(op, err)
	}
	entries, err := l.Read(opts)
	if err != nil {
		return nil, logstore.Unavailable(op, err)
	}
	return entries, nil
}

// ReadAfter returns entries newer than after, waiting up to block for an append
// when none are available yet.
func (s *Store) ReadAfter(ctx context.Context, stream string, after id.ID, count int, block time.Duration) ([]logstore.Entry, error) {
	if after == id.Max {
		return nil, nil
	}
	l, err := s.acquire(stream)
	if err != nil {
		return nil, logstore.Unavailable("pebble.readafter", err)
	}
	defer s.release(stream, l)
	// grab the signal before reading so an append between the read and the
	// wait still wakes us
	signal := l.appendSignal()
	opts := ReadOptions{Min: after.Next(), Max: id.Max, Limit: count}
	entries, err := l.Read(opts)
	if err != nil {
		return nil, logstore.Unavailable("pebble.readafter", err)
	}
	if len(entries) > 0 || block <= 0 {
		return entries, nil
	}
	if !l.waitOn(ctx, signal, block) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	entries, err = l.Read(opts)
	if err != nil {
		return nil, logstore.Unavailable("pebble.readafter", err)
	}
	return entries, nil
}

func (s *Store) Delete(ctx context.Context, stream string, ids ...id.ID) (int64, error) {
	l, err := s.logFor(stream, false)
	if err != nil {
		return 0, logstore.Unavailable("pebble.delete", err)
	}
	n, err := l.Delete(ctx, ids...)
	return n, logstore.Unavailable("pebble.delete", err)
}

func (s *Store) TrimMinID(ctx context.Context, stream string, min id.ID) (int64, error) {
	l, err := s.logFor(stream, false)
	if err != nil {
		return 0, logstore.Unavailable("pebble.trim", err)
	}
	n, err := l.TrimMinID(ctx, min)
	return n, logstore.Unavailable("pebble.trim", err)
}

func (s *Store) DeleteStream(ctx context.Context, stream string) (bool, error) {
	l, err := s.logFor(stream, false)
	if err != nil {
		return false, logstore.Unavailable("pebble.drop", err)
	}
	existed, err := l.Drop(ctx)
	if err != nil {
		return false, logstore.Unavailable("pebble.drop", err)
	}
	s.mu.Lock()
	s.evictLocked(stream, l)
	s.mu.Unlock()
	return existed, nil
}

func (s *Store) Len(ctx context.Context, stream string) (int64, error) {
	l, err := s.logFor(stream, false)
	if err != nil {
		return 0, logstore.Unavailable("pebble.len", err)
	}
	return l.Len(), nil
}

// Streams lists every stream that has metadata on disk.
func (s *Store) Streams(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, logstore.Unavailable("pebble.streams", ErrClosed)
	}
	iter, err := s.db.NewIter(pebblestore.PrefixBounds(metaPrefix))
	if err != nil {
		return nil, logstore.Unavailable("pebble.streams", err)
	}
	defer iter.Close()
	var names []string
	for ok := iter.First(); ok; ok = iter.Next() {
		names = append(names, streamFromMeta(iter.Key()))
	}
	if err := iter.Error(); err != nil {
		return nil, logstore.Unavailable("pebble.streams", err)
	}
	return names, nil
}

// Close releases the database when the Store owns it. Further calls fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.logs = nil
	if s.owned {
		return s.db.Close()
	}
	return nil
}
