package id

import (
	"encoding/binary"
	"errors"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ID is a 128-bit, lexicographically sortable identifier encoded as 16 bytes
// big-endian: [8 bytes ms_timestamp][8 bytes sequence].
type ID [16]byte

// Zero is the smallest possible ID.
var Zero ID

// Max is the largest possible ID.
var Max = New(math.MaxUint64, math.MaxUint64)

var ErrInvalid = errors.New("id: invalid entry id")

// New builds an ID from its millisecond and sequence parts.
func New(ms, seq uint64) ID {
	var id ID
	binary.BigEndian.PutUint64(id[0:8], ms)
	binary.BigEndian.PutUint64(id[8:16], seq)
	return id
}

// FromTime returns the smallest ID that can be assigned at t.
func FromTime(t time.Time) ID {
	ms := t.UnixMilli()
	if ms < 0 {
		ms = 0
	}
	return New(uint64(ms), 0)
}

// FromBytes copies a 16-byte slice into an ID.
func FromBytes(b []byte) (ID, error) {
	if len(b) != 16 {
		return ID{}, ErrInvalid
	}
	var id ID
	copy(id[:], b)
	return id, nil
}

// Parse accepts "<ms>-<seq>" or a bare "<ms>" (sequence 0).
func Parse(s string) (ID, error) {
	msPart, seqPart, hasSeq := strings.Cut(s, "-")
	ms, err := strconv.ParseUint(msPart, 10, 64)
	if err != nil {
		return ID{}, ErrInvalid
	}
	var seq uint64
	if hasSeq {
		seq, err = strconv.ParseUint(seqPart, 10, 64)
		if err != nil {
			return ID{}, ErrInvalid
		}
	}
	return New(ms, seq), nil
}

// Ms returns the millisecond part.
func (i ID) Ms() uint64 { return binary.BigEndian.Uint64(i[0:8]) }

// Seq returns the sequence part.
func (i ID) Seq() uint64 { return binary.BigEndian.Uint64(i[8:16]) }

// Time returns the millisecond part as a wall-clock time.
func (i ID) Time() time.Time { return time.UnixMilli(int64(i.Ms())) }

// IsZero reports whether i is the zero ID.
func (i ID) IsZero() bool { return i == Zero }

// Bytes returns the raw 16-byte representation.
func (i ID) Bytes() []byte { b := make([]byte, 16); copy(b, i[:]); return b }

// String returns the "<ms>-<seq>" form.
func (i ID) String() string {
	return strconv.FormatUint(i.Ms(), 10) + "-" + strconv.FormatUint(i.Seq(), 10)
}

// Hex returns a hex string of the raw bytes.
func (i ID) Hex() string { return fmtHex(i[:]) }

// Compare returns -1, 0, 1 based on lexical comparison.
func (i ID) Compare(other ID) int {
	for idx := 0; idx < 16; idx++ {
		if i[idx] < other[idx] {
			return -1
		}
		if i[idx] > other[idx] {
			return 1
		}
	}
	return 0
}

// Less reports whether i sorts before other.
func (i ID) Less(other ID) bool { return i.Compare(other) < 0 }

// Next returns the smallest ID strictly greater than i. Max saturates.
func (i ID) Next() ID {
	ms, seq := i.Ms(), i.Seq()
	if seq == math.MaxUint64 {
		if ms == math.MaxUint64 {
			return i
		}
		return New(ms+1, 0)
	}
	return New(ms, seq+1)
}

// Prev returns the largest ID strictly smaller than i. Zero saturates.
func (i ID) Prev() ID {
	ms, seq := i.Ms(), i.Seq()
	if seq == 0 {
		if ms == 0 {
			return i
		}
		return New(ms-1, math.MaxUint64)
	}
	return New(ms, seq-1)
}

// Generator produces monotonically increasing IDs.
type Generator struct {
	mu       sync.Mutex
	lastMs   int64
	sequence uint64
	started  bool
}

// NewGenerator creates a new Generator.
func NewGenerator() *Generator { return &Generator{} }

// NowMs returns current time in milliseconds since Unix epoch.
var NowMs = func() int64 { return time.Now().UnixMilli() }

// Observe records last as already issued so that Next only returns larger IDs.
func (g *Generator) Observe(last ID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ms := int64(last.Ms())
	if !g.started || ms > g.lastMs || (ms == g.lastMs && last.Seq() > g.sequence) {
		g.lastMs = ms
		g.sequence = last.Seq()
		g.started = true
	}
}

// Next returns a new ID. If clock goes backwards, it uses lastMs and increments sequence.
// If sequence overflows within the same millisecond, it busy-waits for next ms.
func (g *Generator) Next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := NowMs()
	if ms < g.lastMs {
		ms = g.lastMs
	}

	if g.started && ms == g.lastMs {
		if g.sequence == math.MaxUint64 {
			// wait until next ms to avoid overflow
			for {
				ms = NowMs()
				if ms > g.lastMs {
					break
				}
				time.Sleep(time.Millisecond / 8)
			}
			g.sequence = 0
		} else {
			g.sequence++
		}
	} else {
		g.sequence = 0
	}

	g.lastMs = ms
	g.started = true
	return New(uint64(ms), g.sequence)
}

// fmtHex is a small, allocation-lean hex encoder for fixed-size IDs.
func fmtHex(b []byte) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexdigits[v>>4]
		out[i*2+1] = hexdigits[v&0x0f]
	}
	return string(out)
}
