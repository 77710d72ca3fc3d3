// Package stream provides named, append-only event streams over a
// logstore.Backend.
//
// Each write stores one encoded event.Event in the entry field "data" and
// returns the id the backend assigned. Reads, deletes and lookups decode
// entries one at a time; an entry that fails to decode is logged, reported to
// the Observer and skipped so one bad record never hides the rest of a stream.
//
//	st := stream.New(backend, stream.Options{Logger: logger})
//	eid, err := st.Write(ctx, "prices", ev, 10_000)
//	events, err := st.ReadAll(ctx, "prices", true)
//
//	t := st.Tail("prices")
//	for {
//	    rec, err := t.Next(ctx) // returns only ctx.Err()
//	    ...
//	}
//
// Age retention uses the backend's range trim when it has one and falls back
// to scanning and deleting in batches when it reports logstore.ErrUnsupported.
package stream
