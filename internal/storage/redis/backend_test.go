package redisstore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/tideline/pkg/id"
	"github.com/rzbill/tideline/pkg/logstore"
)

// newTestBackend connects to TIDELINE_TEST_REDIS_ADDR or skips.
func newTestBackend(t *testing.T) (*Backend, string) {
	t.Helper()
	addr := os.Getenv("TIDELINE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TIDELINE_TEST_REDIS_ADDR not set")
	}
	b, err := Open(context.Background(), Options{Addr: addr})
	require.NoError(t, err)
	stream := "tideline-test-" + uuid.NewString()
	t.Cleanup(func() {
		_, _ = b.DeleteStream(context.Background(), stream)
		_ = b.Close()
	})
	return b, stream
}

func data(s string) map[string][]byte { return map[string][]byte{"data": []byte(s)} }

func TestAppendRangeAndDelete(t *testing.T) {
	b, stream := newTestBackend(t)
	ctx := context.Background()

	var ids []id.ID
	for _, s := range []string{"a", "b", "c"} {
		eid, err := b.Append(ctx, stream, data(s), 0)
		require.NoError(t, err)
		ids = append(ids, eid)
	}
	require.True(t, ids[0].Less(ids[1]))

	all, err := b.Range(ctx, stream, id.Zero, id.Max, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "b", string(all[1].Fields["data"]))

	rev, err := b.RevRange(ctx, stream, id.Max, id.Zero, 1)
	require.NoError(t, err)
	require.Equal(t, ids[2], rev[0].ID)

	n, err := b.Delete(ctx, stream, ids[0], id.New(1, 1))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	l, err := b.Len(ctx, stream)
	require.NoError(t, err)
	require.Equal(t, int64(2), l)
}

func TestTrimMinID(t *testing.T) {
	b, stream := newTestBackend(t)
	ctx := context.Background()
	var ids []id.ID
	for i := 0; i < 3; i++ {
		eid, err := b.Append(ctx, stream, data("x"), 0)
		require.NoError(t, err)
		ids = append(ids, eid)
	}
	n, err := b.TrimMinID(ctx, stream, ids[1])
	if errors.Is(err, logstore.ErrUnsupported) {
		t.Skip("server predates XTRIM MINID")
	}
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestReadAfterBlocks(t *testing.T) {
	b, stream := newTestBackend(t)
	ctx := context.Background()

	entries, err := b.ReadAfter(ctx, stream, id.Zero, 10, 50*time.Millisecond)
	require.NoError(t, err)
	require.Empty(t, entries)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_, _ = b.Append(context.Background(), stream, data("late"), 0)
	}()
	entries, err = b.ReadAfter(ctx, stream, id.Zero, 10, 2*time.Second)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "late", string(entries[0].Fields["data"]))
}

func TestDeleteStreamAndList(t *testing.T) {
	b, stream := newTestBackend(t)
	ctx := context.Background()
	_, err := b.Append(ctx, stream, data("x"), 0)
	require.NoError(t, err)

	names, err := b.Streams(ctx)
	require.NoError(t, err)
	require.Contains(t, names, stream)

	existed, err := b.DeleteStream(ctx, stream)
	require.NoError(t, err)
	require.True(t, existed)
	existed, err = b.DeleteStream(ctx, stream)
	require.NoError(t, err)
	require.False(t, existed)
}

func TestUnreachableServerIsUnavailable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	b := New(rdb)
	t.Cleanup(func() { _ = rdb.Close() })

	_, err := b.Append(context.Background(), "s", data("x"), 0)
	require.ErrorIs(t, err, logstore.ErrUnavailable)
	_, err = b.Len(context.Background(), "s")
	require.ErrorIs(t, err, logstore.ErrUnavailable)
}

// serverErr satisfies redis.Error like replies parsed by the client.
type serverErr string

func (e serverErr) Error() string { return string(e) }
func (serverErr) RedisError()     {}

func TestIsUnsupported(t *testing.T) {
	require.True(t, isUnsupported(serverErr("ERR syntax error")))
	require.True(t, isUnsupported(serverErr("ERR unknown command 'XTRIM'")))
	require.False(t, isUnsupported(serverErr("WRONGTYPE Operation against a key")))
	require.False(t, isUnsupported(errors.New("syntax error in network layer")))
}

func TestHelpers(t *testing.T) {
	require.Equal(t, "-", lower(id.Zero))
	require.Equal(t, "+", upper(id.Max))
	require.Equal(t, "5-1", lower(id.New(5, 1)))
	require.Equal(t, []string{"a", "b"}, dedupe([]string{"a", "a", "b", "b"}))

	f := toFields(map[string]any{"s": "x", "b": []byte("y"), "n": 3})
	require.Equal(t, "x", string(f["s"]))
	require.Equal(t, "y", string(f["b"]))
	require.Equal(t, "3", string(f["n"]))
}
