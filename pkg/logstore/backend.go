package logstore

import (
	"context"
	"time"

	"github.com/rzbill/tideline/pkg/id"
)

// Entry is one stored log record.
type Entry struct {
	ID     id.ID
	Fields map[string][]byte
}

// Field returns the named field value and whether it was present.
func (e Entry) Field(name string) ([]byte, bool) {
	v, ok := e.Fields[name]
	return v, ok
}

// Backend is an append-only, id-ordered log keyed by stream name.
//
// Bounds passed to Range and RevRange are inclusive. A stream that was never
// written reads as empty, never as an error.
type Backend interface {
	// Append stores fields under a new id greater than every id already in
	// the stream. When maxLen > 0 the oldest entries are trimmed in the same
	// write so the stream length stays approximately at maxLen; at least
	// maxLen entries are always kept.
	Append(ctx context.Context, stream string, fields map[string][]byte, maxLen int64) (id.ID, error)

	// Range returns up to count entries with min <= id <= max, oldest first.
	// count <= 0 means no limit.
	Range(ctx context.Context, stream string, min, max id.ID, count int) ([]Entry, error)

	// RevRange returns up to count entries with min <= id <= max, newest first.
	RevRange(ctx context.Context, stream string, max, min id.ID, count int) ([]Entry, error)

	// ReadAfter returns up to count entries with id > after. When none are
	// available and block > 0 it waits up to block for new entries; an
	// expired wait returns an empty slice and a nil error.
	ReadAfter(ctx context.Context, stream string, after id.ID, count int, block time.Duration) ([]Entry, error)

	// Delete removes the given ids and reports how many existed.
	Delete(ctx context.Context, stream string, ids ...id.ID) (int64, error)

	// TrimMinID removes every entry with id < min and reports how many were
	// removed. Backends without a native range trim return ErrUnsupported.
	TrimMinID(ctx context.Context, stream string, min id.ID) (int64, error)

	// DeleteStream removes the stream and reports whether it existed.
	DeleteStream(ctx context.Context, stream string) (bool, error)

	// Len reports the number of entries in the stream.
	Len(ctx context.Context, stream string) (int64, error)

	// Streams lists the names of existing streams in lexical order.
	Streams(ctx context.Context) ([]string, error)

	Close() error
}
