// Package id provides the 128-bit, lexicographically sortable identifier
// assigned to every stream entry.
//
// # Format
//
// The ID is 16 bytes big-endian: [8 bytes ms_timestamp][8 bytes sequence].
// Byte-wise comparison preserves chronological order, and IDs generated
// within the same millisecond remain strictly increasing by sequence. The
// textual form is "<ms>-<seq>", the same shape Redis uses for stream entry
// IDs, so IDs round-trip unchanged between the Pebble and Redis backends.
//
// # Monotonicity
//
// The Generator ensures per-stream monotonicity:
//   - If the system clock regresses, it pins to the last seen millisecond and
//     increments the sequence to avoid going backwards.
//   - If the sequence would overflow within a millisecond, it waits for the
//     next millisecond before emitting the next ID.
//   - Observe seeds the generator with an ID loaded from storage so a reopened
//     stream never reissues an older ID.
//
// # Time cutoffs
//
// FromTime builds the synthetic smallest ID for a wall-clock instant. Every
// entry written at or after that instant compares >= the cutoff, which is
// what age-based trims rely on.
//
// Usage
//
//	g := id.NewGenerator()
//	newID := g.Next()
//	s := newID.String()          // "1700000000000-0"
//	back, _ := id.Parse(s)
//	cutoff := id.FromTime(time.Now().Add(-time.Hour))
//	_ = back.Compare(cutoff)
package id
