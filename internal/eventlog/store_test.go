package eventlog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	pebblestore "github.com/rzbill/tideline/internal/storage/pebble"
	"github.com/rzbill/tideline/pkg/id"
	"github.com/rzbill/tideline/pkg/logstore"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(Options{Pebble: pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever}})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestStoreReadAfterBlocksUntilAppend(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	first, err := st.Append(ctx, "ticks", payload("a"), 0)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	got := make(chan []logstore.Entry, 1)
	go func() {
		entries, err := st.ReadAfter(ctx, "ticks", first, 10, 2*time.Second)
		if err != nil {
			t.Errorf("read after: %v", err)
		}
		got <- entries
	}()

	time.Sleep(50 * time.Millisecond)
	second, err := st.Append(ctx, "ticks", payload("b"), 0)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	select {
	case entries := <-got:
		if len(entries) != 1 || entries[0].ID != second {
			t.Fatalf("unexpected entries: %v", entries)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("reader never woke")
	}
}

func TestStoreReadAfterTimeoutAndCancel(t *testing.T) {
	st := newTestStore(t)
	entries, err := st.ReadAfter(context.Background(), "idle", id.Zero, 10, 30*time.Millisecond)
	if err != nil || len(entries) != 0 {
		t.Fatalf("expected empty read on timeout: %v %v", entries, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := st.ReadAfter(ctx, "idle", id.Zero, 10, time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestStoreStreamsAndLen(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	for _, s := range []string{"b", "a", "a"} {
		if _, err := st.Append(ctx, s, payload("x"), 0); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	names, err := st.Streams(ctx)
	if err != nil {
		t.Fatalf("streams: %v", err)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("unexpected streams: %v", names)
	}
	if n, _ := st.Len(ctx, "a"); n != 2 {
		t.Fatalf("want len 2, got %d", n)
	}
	if n, _ := st.Len(ctx, "missing"); n != 0 {
		t.Fatalf("missing stream should have len 0")
	}

	existed, err := st.DeleteStream(ctx, "a")
	if err != nil || !existed {
		t.Fatalf("delete stream: %v %v", existed, err)
	}
	names, _ = st.Streams(ctx)
	if len(names) != 1 || names[0] != "b" {
		t.Fatalf("unexpected streams after drop: %v", names)
	}
}

func TestStoreClosedIsUnavailable(t *testing.T) {
	st := newTestStore(t)
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, err := st.Append(context.Background(), "x", payload("a"), 0)
	if !errors.Is(err, logstore.ErrUnavailable) || !errors.Is(err, ErrClosed) {
		t.Fatalf("want unavailable closed error, got %v", err)
	}
}

func cachedLogs(st *Store) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.logs)
}

func TestStoreReadsOfUnknownStreamsAreNotCached(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		name := fmt.Sprintf("ghost-%d", i)
		if n, err := st.Len(ctx, name); err != nil || n != 0 {
			t.Fatalf("len: %d %v", n, err)
		}
		if _, err := st.Range(ctx, name, id.Zero, id.Max, 10); err != nil {
			t.Fatalf("range: %v", err)
		}
		if _, err := st.RevRange(ctx, name, id.Max, id.Zero, 1); err != nil {
			t.Fatalf("revrange: %v", err)
		}
		if _, err := st.ReadAfter(ctx, name, id.Zero, 10, 0); err != nil {
			t.Fatalf("read after: %v", err)
		}
		if _, err := st.Delete(ctx, name, id.New(1, 0)); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := st.TrimMinID(ctx, name, id.Max); err != nil {
			t.Fatalf("trim: %v", err)
		}
		if existed, err := st.DeleteStream(ctx, name); err != nil || existed {
			t.Fatalf("drop: %v %v", existed, err)
		}
	}
	if n := cachedLogs(st); n != 0 {
		t.Fatalf("want empty cache, got %d logs", n)
	}
}

func TestStoreDropEvictsAndKeepsIDsIncreasing(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	first, err := st.Append(ctx, "ticks", payload("a"), 0)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if n := cachedLogs(st); n != 1 {
		t.Fatalf("want one cached log, got %d", n)
	}
	if existed, err := st.DeleteStream(ctx, "ticks"); err != nil || !existed {
		t.Fatalf("drop: %v %v", existed, err)
	}
	if n := cachedLogs(st); n != 0 {
		t.Fatalf("dropped stream still cached")
	}

	again, err := st.Append(ctx, "ticks", payload("b"), 0)
	if err != nil {
		t.Fatalf("append after drop: %v", err)
	}
	if !first.Less(again) {
		t.Fatalf("id regressed after drop: %s then %s", first, again)
	}
	if n, _ := st.Len(ctx, "ticks"); n != 1 {
		t.Fatalf("want len 1 after rewrite, got %d", n)
	}
}

func TestStoreBlockedReaderPinsUnknownStream(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	done := make(chan []logstore.Entry, 1)
	go func() {
		entries, _ := st.ReadAfter(ctx, "later", id.Zero, 10, 2*time.Second)
		done <- entries
	}()

	time.Sleep(50 * time.Millisecond)
	if n := cachedLogs(st); n != 1 {
		t.Fatalf("blocked reader should hold a cached log, got %d", n)
	}
	if _, err := st.Append(ctx, "later", payload("x"), 0); err != nil {
		t.Fatalf("append: %v", err)
	}
	select {
	case entries := <-done:
		if len(entries) != 1 {
			t.Fatalf("want one entry, got %d", len(entries))
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("reader never woke")
	}

	if _, err := st.ReadAfter(ctx, "idle", id.Zero, 10, 20*time.Millisecond); err != nil {
		t.Fatalf("read after: %v", err)
	}
	if n := cachedLogs(st); n != 1 {
		t.Fatalf("timed out reader left its log cached: %d logs", n)
	}
}
