package eventlog

import (
	"encoding/binary"
	"hash/crc32"
	"sort"
)

// Record encoding: uvarint count | {uvarint klen | key | uvarint vlen | value}* | crc32c(body)
// Fields are written in key order so equal maps encode identically.

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func EncodeRecord(fields map[string][]byte) []byte {
	keys := make([]string, 0, len(fields))
	size := 10 + 4
	for k, v := range fields {
		keys = append(keys, k)
		size += 20 + len(k) + len(v)
	}
	sort.Strings(keys)

	out := make([]byte, 0, size)
	out = binary.AppendUvarint(out, uint64(len(keys)))
	for _, k := range keys {
		v := fields[k]
		out = binary.AppendUvarint(out, uint64(len(k)))
		out = append(out, k...)
		out = binary.AppendUvarint(out, uint64(len(v)))
		out = append(out, v...)
	}

	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc32.Checksum(out, castagnoli))
	return append(out, crcb[:]...)
}

// DecodeRecord returns the fields of an encoded record. The bool is false when
// the record is truncated or fails its checksum.
func DecodeRecord(b []byte) (map[string][]byte, bool) {
	if len(b) < 1+4 {
		return nil, false
	}
	body := b[:len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	if crc32.Checksum(body, castagnoli) != expect {
		return nil, false
	}

	n, off := binary.Uvarint(body)
	if off <= 0 || n > uint64(len(body)) {
		return nil, false
	}
	fields := make(map[string][]byte, n)
	for i := uint64(0); i < n; i++ {
		k, next, ok := readChunk(body, off)
		if !ok {
			return nil, false
		}
		v, after, ok := readChunk(body, next)
		if !ok {
			return nil, false
		}
		fields[string(k)] = append([]byte(nil), v...)
		off = after
	}
	if off != len(body) {
		return nil, false
	}
	return fields, true
}

func readChunk(b []byte, off int) ([]byte, int, bool) {
	l, n := binary.Uvarint(b[off:])
	if n <= 0 {
		return nil, 0, false
	}
	start := off + n
	if l > uint64(len(b)-start) {
		return nil, 0, false
	}
	end := start + int(l)
	return b[start:end], end, true
}
