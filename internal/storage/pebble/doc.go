// Package pebblestore provides a thin wrapper around Pebble with fsync policy,
// batch commits and minimal metrics hooks. It is the
// storage engine under the embedded stream backend (internal/eventlog).
//
// Usage:
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: "./data",
//	    Fsync:   pebblestore.FsyncModeInterval,
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	// Atomic updates with batches
//	b := db.NewBatch()
//	_ = b.Set([]byte("k"), []byte("v"), nil)
//	_ = b.DeleteRange([]byte("a"), []byte("b"), nil)
//	_ = db.CommitBatch(context.Background(), b)
//	b.Close()
//
//	v, _ := db.Get([]byte("k"))
package pebblestore
