package eventlog

import (
	"context"

	"github.com/cockroachdb/pebble"

	"github.com/rzbill/tideline/pkg/id"
)

// maxLenSlack is how far past maxLen a stream may grow before Append trims
// it back. Trimming in steps keeps most appends to a single key write.
func maxLenSlack(maxLen int64) int64 {
	return maxLen / 100
}

// idSpan is a contiguous run of entries: the first and last ids and how
// many entries lie between them inclusive.
type idSpan struct {
	first, last id.ID
	n           int64
}

// span walks entry keys in [min, max] without loading values, stopping
// after limit keys when limit > 0.
func (l *Log) span(min, max id.ID, limit int64) (idSpan, error) {
	var sp idSpan
	if max.Less(min) {
		return sp, nil
	}
	iter, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: KeyEntry(l.stream, min),
		UpperBound: keyAfter(l.stream, max),
	})
	if err != nil {
		return sp, err
	}
	defer iter.Close()
	for ok := iter.First(); ok && (limit <= 0 || sp.n < limit); ok = iter.Next() {
		eid := entryID(iter.Key())
		if sp.n == 0 {
			sp.first = eid
		}
		sp.last = eid
		sp.n++
	}
	return sp, iter.Error()
}

// planMaxLen returns the oldest entries to delete so that count drops back
// to maxLen, or an empty span when the stream is within its slack. Caller
// holds l.mu.
func (l *Log) planMaxLen(count, maxLen int64) (idSpan, error) {
	if maxLen <= 0 {
		return idSpan{}, nil
	}
	excess := count - maxLen
	if excess <= maxLenSlack(maxLen) {
		return idSpan{}, nil
	}
	// the entry being appended is newest and lives only in the batch, so the
	// oldest on-disk entries are exactly the ones to drop
	return l.span(id.Zero, id.Max, excess)
}

// TrimMinID removes every entry with id < minID using a single range delete.
// Returns the number of removed entries.
func (l *Log) TrimMinID(ctx context.Context, minID id.ID) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.exists || minID.IsZero() {
		return 0, nil
	}

	victims, err := l.span(id.Zero, minID.Prev(), 0)
	if err != nil {
		return 0, err
	}
	if victims.n == 0 {
		return 0, nil
	}

	b := l.db.NewBatch()
	defer b.Close()
	if err := b.DeleteRange(KeyEntry(l.stream, id.Zero), KeyEntry(l.stream, minID), nil); err != nil {
		return 0, err
	}
	count := l.count - victims.n
	if err := b.Set(KeyMeta(l.stream), encodeMeta(l.last, count), nil); err != nil {
		return 0, err
	}
	if err := l.db.CommitBatch(ctx, b); err != nil {
		return 0, err
	}
	l.count = count
	l.hook.OnTrim(l.stream, TrimMinID, victims.first, victims.last, victims.n)
	return victims.n, nil
}
