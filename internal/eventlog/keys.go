package eventlog

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/rzbill/tideline/pkg/id"
)

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
// - m/{stream}
// - e/{len_be2}{stream}/{id16}

var (
	sep         = byte('/')
	metaPrefix  = []byte("m/")
	entryPrefix = []byte("e/")
)

// ErrStreamName is returned for names that cannot be encoded in a key.
var ErrStreamName = errors.New("eventlog: stream name too long")

func appendBE2(dst []byte, v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return append(dst, b[:]...)
}

func validStream(stream string) error {
	if len(stream) > math.MaxUint16 {
		return ErrStreamName
	}
	return nil
}

// KeyMeta builds the stream metadata key.
func KeyMeta(stream string) []byte {
	k := make([]byte, 0, len(metaPrefix)+len(stream))
	k = append(k, metaPrefix...)
	k = append(k, stream...)
	return k
}

// KeyEntryPrefix returns the prefix shared by every entry of stream.
func KeyEntryPrefix(stream string) []byte {
	k := make([]byte, 0, len(entryPrefix)+2+len(stream)+1+16)
	k = append(k, entryPrefix...)
	k = appendBE2(k, uint16(len(stream)))
	k = append(k, stream...)
	k = append(k, sep)
	return k
}

// KeyEntry builds the entry key; the raw big-endian id keeps entries in id order.
func KeyEntry(stream string, eid id.ID) []byte {
	k := KeyEntryPrefix(stream)
	return append(k, eid[:]...)
}

// keyAfter is the smallest key above the entry key of eid. Entry keys of one
// stream have a fixed length, so appending a zero byte is enough.
func keyAfter(stream string, eid id.ID) []byte {
	return append(KeyEntry(stream, eid), 0x00)
}

// entryID extracts the id from the tail of an entry key.
func entryID(key []byte) id.ID {
	var eid id.ID
	if len(key) >= 16 {
		copy(eid[:], key[len(key)-16:])
	}
	return eid
}

// streamFromMeta returns the stream name of a metadata key.
func streamFromMeta(key []byte) string {
	return string(key[len(metaPrefix):])
}

func encodeMeta(last id.ID, count int64) []byte {
	out := make([]byte, 24)
	copy(out[:16], last[:])
	binary.BigEndian.PutUint64(out[16:], uint64(count))
	return out
}

func decodeMeta(b []byte) (id.ID, int64, bool) {
	if len(b) < 24 {
		return id.Zero, 0, false
	}
	var last id.ID
	copy(last[:], b[:16])
	return last, int64(binary.BigEndian.Uint64(b[16:24])), true
}
