// Package eventlog implements tideline's embedded append-only stream log on
// top of Pebble. Store satisfies logstore.Backend.
//
// # Overview
//
// Every stream is an independent ordered log. Keys are lexicographically
// ordered for efficient range scans:
//   - m/{stream}                          (stream metadata: lastID, count)
//   - e/{len_be2}{stream}/{id16}          (entries)
//
// The length prefix keeps one stream's entry range from overlapping another
// stream whose name shares a prefix.
//
// Records are stored as: count(uvarint) | {klen|key|vlen|value}* | crc32c.
//
// API surface
//
//	st, _ := eventlog.Open(eventlog.Options{Pebble: pebblestore.Options{DataDir: dir}})
//	defer st.Close()
//
//	// Append with approximate max-length trim in the same batch
//	eid, _ := st.Append(ctx, "prices", map[string][]byte{"data": b}, 1000)
//
//	// Inclusive range scans, forward and reverse
//	entries, _ := st.Range(ctx, "prices", id.Zero, id.Max, 100)
//	latest, _ := st.RevRange(ctx, "prices", id.Max, id.Zero, 1)
//
//	// Blocking read for tailers
//	more, _ := st.ReadAfter(ctx, "prices", eid, 128, time.Second)
//
//	// Age retention with a synthetic minimum id
//	n, _ := st.TrimMinID(ctx, "prices", id.FromTime(cutoff))
//
// # Trim observation
//
// A TrimHook is called with the removed id range whenever retention deletes
// entries, either through max-length trimming on append or TrimMinID.
package eventlog
