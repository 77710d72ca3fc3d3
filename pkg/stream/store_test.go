package stream

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rzbill/tideline/internal/eventlog"
	pebblestore "github.com/rzbill/tideline/internal/storage/pebble"
	"github.com/rzbill/tideline/pkg/event"
	"github.com/rzbill/tideline/pkg/id"
	logpkg "github.com/rzbill/tideline/pkg/log"
	"github.com/rzbill/tideline/pkg/logstore"
)

var errReset = errors.New("connection reset by peer")

// faultyBackend wraps a real backend and injects failures.
type faultyBackend struct {
	logstore.Backend

	mu        sync.Mutex
	noTrim    bool
	broken    bool
	failReads int
}

func (f *faultyBackend) isBroken() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.broken
}

func (f *faultyBackend) Append(ctx context.Context, stream string, fields map[string][]byte, maxLen int64) (id.ID, error) {
	if f.isBroken() {
		return id.Zero, errReset
	}
	return f.Backend.Append(ctx, stream, fields, maxLen)
}

func (f *faultyBackend) Range(ctx context.Context, stream string, min, max id.ID, count int) ([]logstore.Entry, error) {
	if f.isBroken() {
		return nil, logstore.Unavailable("range", errReset)
	}
	return f.Backend.Range(ctx, stream, min, max, count)
}

func (f *faultyBackend) ReadAfter(ctx context.Context, stream string, after id.ID, count int, block time.Duration) ([]logstore.Entry, error) {
	f.mu.Lock()
	if f.failReads > 0 {
		f.failReads--
		f.mu.Unlock()
		return nil, logstore.Unavailable("readafter", errReset)
	}
	f.mu.Unlock()
	return f.Backend.ReadAfter(ctx, stream, after, count, block)
}

func (f *faultyBackend) TrimMinID(ctx context.Context, stream string, min id.ID) (int64, error) {
	f.mu.Lock()
	noTrim, broken := f.noTrim, f.broken
	f.mu.Unlock()
	if noTrim {
		return 0, logstore.ErrUnsupported
	}
	if broken {
		return 0, logstore.Unavailable("trim", errReset)
	}
	return f.Backend.TrimMinID(ctx, stream, min)
}

func (f *faultyBackend) DeleteStream(ctx context.Context, stream string) (bool, error) {
	if f.isBroken() {
		return false, logstore.Unavailable("drop", errReset)
	}
	return f.Backend.DeleteStream(ctx, stream)
}

type countingObserver struct {
	mu        sync.Mutex
	writes    int
	skips     int
	deleted   int64
	trimmed   int64
	fallbacks int
	backoffs  int
}

func (o *countingObserver) ObserveWrite(string, int, time.Duration, error) {
	o.mu.Lock()
	o.writes++
	o.mu.Unlock()
}

func (o *countingObserver) ObserveDecodeSkip(string) {
	o.mu.Lock()
	o.skips++
	o.mu.Unlock()
}

func (o *countingObserver) ObserveDelete(_ string, n int64) {
	o.mu.Lock()
	o.deleted += n
	o.mu.Unlock()
}

func (o *countingObserver) ObserveTrim(_ string, n int64, fallback bool) {
	o.mu.Lock()
	o.trimmed += n
	if fallback {
		o.fallbacks++
	}
	o.mu.Unlock()
}

func (o *countingObserver) ObserveTailBackoff(string) {
	o.mu.Lock()
	o.backoffs++
	o.mu.Unlock()
}

type fixture struct {
	store   *Store
	backend *faultyBackend
	obs     *countingObserver
}

func newFixture(t *testing.T, opts Options) fixture {
	t.Helper()
	base, err := eventlog.Open(eventlog.Options{Pebble: pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = base.Close() })

	fb := &faultyBackend{Backend: base}
	obs := &countingObserver{}
	opts.Logger = logpkg.Nop()
	opts.Observer = obs
	return fixture{store: New(fb, opts), backend: fb, obs: obs}
}

// fakeClock pins id generation to the returned millisecond pointer.
func fakeClock(t *testing.T, start int64) *int64 {
	t.Helper()
	now := start
	prev := id.NowMs
	id.NowMs = func() int64 { return now }
	t.Cleanup(func() { id.NowMs = prev })
	return &now
}

func tick(ts int64, symbol string, price float64) event.Event {
	return event.New(
		event.F("timestamp", event.Int(ts)),
		event.F("symbol", event.String(symbol)),
		event.F("price", event.Number(price)),
	)
}

func TestWriteThenReadAllInIDOrder(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	var ids []id.ID
	for i, p := range []float64{10, 11, 12} {
		eid, err := f.store.Write(ctx, "prices", tick(int64(100-i), "BTC", p), 0)
		require.NoError(t, err)
		ids = append(ids, eid)
	}
	require.True(t, ids[0].Less(ids[1]) && ids[1].Less(ids[2]))

	events, err := f.store.ReadAll(ctx, "prices", false)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, ev := range events {
		p, _ := ev.Get("price")
		n, _ := p.AsNumber()
		require.Equal(t, float64(10+i), n)
	}
	require.Equal(t, 3, f.obs.writes)
}

func TestReadAllMissingStreamIsEmpty(t *testing.T) {
	f := newFixture(t, Options{})
	events, err := f.store.ReadAll(context.Background(), "nope", true)
	require.NoError(t, err)
	require.NotNil(t, events)
	require.Empty(t, events)
}

func TestReadAllOrderedSortsByTimestamp(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	for _, ts := range []int64{3, 1, 2} {
		_, err := f.store.Write(ctx, "s", event.New(event.F("timestamp", event.Int(ts))), 0)
		require.NoError(t, err)
	}
	events, err := f.store.ReadAll(ctx, "s", true)
	require.NoError(t, err)
	var got []float64
	for _, ev := range events {
		ts, _ := ev.Timestamp()
		n, _ := ts.AsNumber()
		got = append(got, n)
	}
	require.Equal(t, []float64{1, 2, 3}, got)
}

func TestReadAllOrderedKeepsIDOrderWithoutTimestamps(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	_, err := f.store.Write(ctx, "s", event.New(event.F("timestamp", event.Int(5)), event.F("n", event.Int(0))), 0)
	require.NoError(t, err)
	_, err = f.store.Write(ctx, "s", event.New(event.F("n", event.Int(1))), 0)
	require.NoError(t, err)
	_, err = f.store.Write(ctx, "s", event.New(event.F("timestamp", event.Int(1)), event.F("n", event.Int(2))), 0)
	require.NoError(t, err)

	events, err := f.store.ReadAll(ctx, "s", true)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, ev := range events {
		v, _ := ev.Get("n")
		n, _ := v.AsNumber()
		require.Equal(t, float64(i), n)
	}
}

func TestUndecodableEntriesAreSkipped(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	_, err := f.store.Write(ctx, "s", tick(1, "BTC", 1), 0)
	require.NoError(t, err)
	_, err = f.backend.Append(ctx, "s", map[string][]byte{DataField: []byte("{oops")}, 0)
	require.NoError(t, err)
	_, err = f.backend.Append(ctx, "s", map[string][]byte{"other": []byte("x")}, 0)
	require.NoError(t, err)
	_, err = f.store.Write(ctx, "s", tick(2, "BTC", 2), 0)
	require.NoError(t, err)

	events, err := f.store.ReadAll(ctx, "s", false)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, 2, f.obs.skips)
}

func TestDeeplyNestedEntryIsSkipped(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	const depth = 1_000_000
	deep := `{"a":` + strings.Repeat("[", depth) + strings.Repeat("]", depth) + `}`
	_, err := f.backend.Append(ctx, "s", map[string][]byte{DataField: []byte(deep)}, 0)
	require.NoError(t, err)
	_, err = f.store.Write(ctx, "s", tick(1, "BTC", 1), 0)
	require.NoError(t, err)

	events, err := f.store.ReadAll(ctx, "s", false)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, 1, f.obs.skips)

	ev, ok, err := f.store.LatestMatching(ctx, "s", "symbol", event.String("BTC"))
	require.NoError(t, err)
	require.True(t, ok)
	sym, _ := ev.Get("symbol")
	require.Equal(t, event.String("BTC"), sym)
}

func TestWriteErrors(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.store.Write(ctx, "s", event.New(event.F("price", event.Number(math.NaN()))), 0)
	var ee *event.EncodingError
	require.ErrorAs(t, err, &ee)

	_, err = f.store.Write(ctx, "", tick(1, "BTC", 1), 0)
	require.ErrorIs(t, err, ErrEmptyName)

	f.backend.broken = true
	_, err = f.store.Write(ctx, "s", tick(1, "BTC", 1), 0)
	require.ErrorIs(t, err, logstore.ErrUnavailable)
	require.ErrorIs(t, err, errReset)
}

func TestWriteMaxLenBoundsStream(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		_, err := f.store.Write(ctx, "s", tick(int64(i), "BTC", float64(i)), 5)
		require.NoError(t, err)
	}
	n, err := f.store.Len(ctx, "s")
	require.NoError(t, err)
	require.Equal(t, int64(5), n)

	events, err := f.store.ReadAll(ctx, "s", false)
	require.NoError(t, err)
	first, _ := events[0].Get("price")
	p, _ := first.AsNumber()
	require.Equal(t, 15.0, p)
}

func TestFilteredDeleteRemovesOnlyMatches(t *testing.T) {
	f := newFixture(t, Options{ScanBatch: 2, DeleteBatch: 2})
	ctx := context.Background()
	for i, sym := range []string{"BTC", "ETH", "BTC", "BTC", "ETH"} {
		_, err := f.store.Write(ctx, "s", tick(int64(i), sym, 1), 0)
		require.NoError(t, err)
	}
	_, err := f.backend.Append(ctx, "s", map[string][]byte{DataField: []byte("not json")}, 0)
	require.NoError(t, err)

	removed, err := f.store.FilteredDelete(ctx, "s", "symbol", event.String("BTC"))
	require.NoError(t, err)
	require.Equal(t, int64(3), removed)

	n, err := f.store.Len(ctx, "s")
	require.NoError(t, err)
	require.Equal(t, int64(3), n, "undecodable entry must survive")

	removed, err = f.store.FilteredDelete(ctx, "s", "symbol", event.String("DOGE"))
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestFilteredDeleteComparesNumbersNumerically(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	_, err := f.store.Write(ctx, "s", tick(1, "BTC", 10), 0)
	require.NoError(t, err)
	removed, err := f.store.FilteredDelete(ctx, "s", "price", event.Int(10))
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)
}

func TestLatestMatching(t *testing.T) {
	f := newFixture(t, Options{ScanBatch: 2})
	ctx := context.Background()

	_, found, err := f.store.LatestMatching(ctx, "s", "symbol", event.String("BTC"))
	require.NoError(t, err)
	require.False(t, found)

	for i, sym := range []string{"BTC", "ETH", "BTC", "ETH", "ETH", "ETH"} {
		_, err := f.store.Write(ctx, "s", tick(int64(i), sym, float64(i)), 0)
		require.NoError(t, err)
	}
	ev, found, err := f.store.LatestMatching(ctx, "s", "symbol", event.String("BTC"))
	require.NoError(t, err)
	require.True(t, found)
	p, _ := ev.Get("price")
	n, _ := p.AsNumber()
	require.Equal(t, 2.0, n)

	_, found, err = f.store.LatestMatching(ctx, "s", "symbol", event.String("DOGE"))
	require.NoError(t, err)
	require.False(t, found)
}

func TestDeleteStream(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	_, err := f.store.Write(ctx, "s", tick(1, "BTC", 1), 0)
	require.NoError(t, err)

	require.True(t, f.store.DeleteStream(ctx, "s"))
	require.False(t, f.store.DeleteStream(ctx, "s"))

	events, err := f.store.ReadAll(ctx, "s", false)
	require.NoError(t, err)
	require.Empty(t, events)

	_, err = f.store.Write(ctx, "s", tick(1, "BTC", 1), 0)
	require.NoError(t, err)
	f.backend.broken = true
	require.False(t, f.store.DeleteStream(ctx, "s"), "transport errors report false")
}

func writeAt(t *testing.T, st *Store, now *int64, ms ...int64) {
	t.Helper()
	for _, m := range ms {
		*now = m
		_, err := st.Write(context.Background(), "s", tick(m, "BTC", 1), 0)
		require.NoError(t, err)
	}
}

func TestTrimOlderThanNativeRange(t *testing.T) {
	now := fakeClock(t, 1000)
	f := newFixture(t, Options{})
	writeAt(t, f.store, now, 1000, 2000, 3000)

	res := f.store.TrimOlderThan(context.Background(), "s", time.UnixMilli(2000))
	require.Equal(t, TrimResult{Removed: 1, Known: true}, res)

	events, err := f.store.ReadAll(context.Background(), "s", false)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Zero(t, f.obs.fallbacks)
}

func TestTrimOlderThanFallsBackToScan(t *testing.T) {
	now := fakeClock(t, 1000)
	f := newFixture(t, Options{DeleteBatch: 1})
	writeAt(t, f.store, now, 1000, 1500, 1999, 2000, 3000)
	f.backend.noTrim = true

	res := f.store.TrimOlderThan(context.Background(), "s", time.UnixMilli(2000))
	require.Equal(t, TrimResult{Removed: 3, Known: true}, res)
	require.Equal(t, 1, f.obs.fallbacks)

	n, err := f.store.Len(context.Background(), "s")
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}

func TestTrimOlderThanFailureIsUnknown(t *testing.T) {
	now := fakeClock(t, 1000)
	f := newFixture(t, Options{})
	writeAt(t, f.store, now, 1000)
	f.backend.broken = true

	res := f.store.TrimOlderThan(context.Background(), "s", time.UnixMilli(5000))
	require.False(t, res.Known)
}

func TestStreamsAndLen(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	names, err := f.store.Streams(ctx)
	require.NoError(t, err)
	require.Empty(t, names)

	for _, s := range []string{"b", "a"} {
		_, err := f.store.Write(ctx, s, tick(1, "BTC", 1), 0)
		require.NoError(t, err)
	}
	names, err = f.store.Streams(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, names)
}

func TestRecordsCarryIDs(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	eid, err := f.store.Write(ctx, "s", tick(1, "BTC", 1), 0)
	require.NoError(t, err)
	recs, err := f.store.Records(ctx, "s")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, eid, recs[0].ID)
}

func TestReadAllStoreFailure(t *testing.T) {
	f := newFixture(t, Options{})
	f.backend.broken = true
	_, err := f.store.ReadAll(context.Background(), "s", false)
	require.ErrorIs(t, err, logstore.ErrUnavailable)
}
