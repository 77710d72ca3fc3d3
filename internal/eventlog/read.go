package eventlog

import (
	"github.com/cockroachdb/pebble"

	"github.com/rzbill/tideline/pkg/id"
	"github.com/rzbill/tideline/pkg/logstore"
)

// ReadOptions bounds a scan. Min and Max are inclusive.
type ReadOptions struct {
	Min     id.ID
	Max     id.ID
	Limit   int
	Reverse bool
}

// Read returns up to Limit entries between Min and Max. Reverse scans
// descending. Records that fail their checksum are returned with nil Fields
// so callers can still address them by id.
func (l *Log) Read(opts ReadOptions) ([]logstore.Entry, error) {
	if opts.Max.Less(opts.Min) {
		return nil, nil
	}
	iter, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: KeyEntry(l.stream, opts.Min),
		UpperBound: keyAfter(l.stream, opts.Max),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	entries := make([]logstore.Entry, 0, max(1, min(opts.Limit, 1024)))
	step := iter.Next
	ok := iter.First()
	if opts.Reverse {
		step = iter.Prev
		ok = iter.Last()
	}
	for ; ok && (opts.Limit <= 0 || len(entries) < opts.Limit); ok = step() {
		fields, _ := DecodeRecord(iter.Value())
		entries = append(entries, logstore.Entry{ID: entryID(iter.Key()), Fields: fields})
	}
	return entries, iter.Error()
}
