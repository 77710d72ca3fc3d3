package eventlog

import (
	"context"
	"errors"
	"sync"

	pebblestore "github.com/rzbill/tideline/internal/storage/pebble"
	"github.com/rzbill/tideline/pkg/id"
)

// errRetired is returned by Append on a Log the Store has evicted.
var errRetired = errors.New("eventlog: log retired")

// Log provides append-only operations for a single stream.
type Log struct {
	db     *pebblestore.DB
	stream string
	hook   TrimHook
	gen    *id.Generator

	// waiters is guarded by the owning Store's mutex.
	waiters int

	mu       sync.Mutex
	last     id.ID
	count    int64
	exists   bool
	retired  bool
	notifyCh chan struct{}
}

// OpenLog initializes a Log and loads the last id and length from metadata (if any).
func OpenLog(db *pebblestore.DB, stream string, hook TrimHook) (*Log, error) {
	return openLog(db, stream, hook, id.NewGenerator())
}

func openLog(db *pebblestore.DB, stream string, hook TrimHook, gen *id.Generator) (*Log, error) {
	if err := validStream(stream); err != nil {
		return nil, err
	}
	if hook == nil {
		hook = noopTrimHook{}
	}
	l := &Log{db: db, stream: stream, hook: hook, gen: gen, notifyCh: make(chan struct{})}
	meta, err := db.Get(KeyMeta(stream))
	switch {
	case err == nil:
		if last, count, ok := decodeMeta(meta); ok {
			l.last, l.count, l.exists = last, count, true
			l.gen.Observe(last)
		}
	case errors.Is(err, pebblestore.ErrNotFound):
	default:
		return nil, err
	}
	return l, nil
}

// Append writes one entry and, when maxLen > 0, trims the oldest entries in
// the same batch. Returns the assigned id.
func (l *Log) Append(ctx context.Context, fields map[string][]byte, maxLen int64) (id.ID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.retired {
		return id.Zero, errRetired
	}

	b := l.db.NewBatch()
	defer b.Close()

	count := l.count + 1
	trim, err := l.planMaxLen(count, maxLen)
	if err != nil {
		return id.Zero, err
	}
	if trim.n > 0 {
		if err := b.DeleteRange(KeyEntry(l.stream, trim.first), keyAfter(l.stream, trim.last), nil); err != nil {
			return id.Zero, err
		}
		count -= trim.n
	}

	eid := l.gen.Next()
	if err := b.Set(KeyEntry(l.stream, eid), EncodeRecord(fields), nil); err != nil {
		return id.Zero, err
	}

	if err := b.Set(KeyMeta(l.stream), encodeMeta(eid, count), nil); err != nil {
		return id.Zero, err
	}
	if err := l.db.CommitBatch(ctx, b); err != nil {
		return id.Zero, err
	}

	l.last, l.count, l.exists = eid, count, true
	// notify waiters
	close(l.notifyCh)
	l.notifyCh = make(chan struct{})

	if trim.n > 0 {
		l.hook.OnTrim(l.stream, TrimMaxLen, trim.first, trim.last, trim.n)
	}
	return eid, nil
}

// Delete removes the given ids and returns how many were present.
func (l *Log) Delete(ctx context.Context, ids ...id.ID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.exists {
		return 0, nil
	}

	b := l.db.NewBatch()
	defer b.Close()

	seen := make(map[id.ID]struct{}, len(ids))
	var removed int64
	for _, eid := range ids {
		if _, dup := seen[eid]; dup {
			continue
		}
		seen[eid] = struct{}{}
		key := KeyEntry(l.stream, eid)
		if _, err := l.db.Get(key); err != nil {
			if errors.Is(err, pebblestore.ErrNotFound) {
				continue
			}
			return 0, err
		}
		if err := b.Delete(key, nil); err != nil {
			return 0, err
		}
		removed++
	}
	if removed == 0 {
		return 0, nil
	}

	count := l.count - removed
	if err := b.Set(KeyMeta(l.stream), encodeMeta(l.last, count), nil); err != nil {
		return 0, err
	}
	if err := l.db.CommitBatch(ctx, b); err != nil {
		return 0, err
	}
	l.count = count
	return removed, nil
}

// Drop deletes every entry and the metadata of the stream. It reports
// whether the stream existed. The id generator keeps its position so ids
// stay increasing if the stream is written again.
func (l *Log) Drop(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.exists {
		return false, nil
	}

	b := l.db.NewBatch()
	defer b.Close()

	bounds := pebblestore.PrefixBounds(KeyEntryPrefix(l.stream))
	if err := b.DeleteRange(bounds.LowerBound, bounds.UpperBound, nil); err != nil {
		return false, err
	}
	if err := b.Delete(KeyMeta(l.stream), nil); err != nil {
		return false, err
	}
	if err := l.db.CommitBatch(ctx, b); err != nil {
		return false, err
	}
	l.count, l.exists = 0, false
	return true, nil
}

// Len returns the number of live entries.
func (l *Log) Len() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Exists reports whether the stream has metadata on disk.
func (l *Log) Exists() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.exists
}

// retire marks an empty Log as no longer appendable. It reports false when
// the stream has data.
func (l *Log) retire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.exists {
		return false
	}
	l.retired = true
	return true
}
