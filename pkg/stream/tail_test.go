package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTailReplaysThenFollows(t *testing.T) {
	f := newFixture(t, Options{TailBlock: 200 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, err := f.store.Write(ctx, "s", tick(1, "BTC", 1), 0)
	require.NoError(t, err)

	tl := f.store.Tail("s")
	rec, err := tl.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, first, rec.ID)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_, _ = f.store.Write(context.Background(), "s", tick(2, "BTC", 2), 0)
	}()
	rec, err = tl.Next(ctx)
	require.NoError(t, err)
	p, _ := rec.Event.Get("price")
	n, _ := p.AsNumber()
	require.Equal(t, 2.0, n)
	require.Equal(t, rec.ID, tl.Cursor())
}

func TestTailStopsOnlyOnContext(t *testing.T) {
	f := newFixture(t, Options{TailBlock: 20 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := f.store.Tail("empty").Next(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTailSurvivesTransientErrors(t *testing.T) {
	f := newFixture(t, Options{TailBlock: 50 * time.Millisecond, TailBackoff: 10 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := f.store.Write(ctx, "s", tick(1, "BTC", 1), 0)
	require.NoError(t, err)
	f.backend.failReads = 2

	rec, err := f.store.Tail("s").Next(ctx)
	require.NoError(t, err)
	require.False(t, rec.ID.IsZero())
	require.Equal(t, 2, f.obs.backoffs)
}

func TestTailersAreIndependent(t *testing.T) {
	f := newFixture(t, Options{TailBlock: 20 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := 0; i < 3; i++ {
		_, err := f.store.Write(ctx, "s", tick(int64(i), "BTC", float64(i)), 0)
		require.NoError(t, err)
	}

	a, b := f.store.Tail("s"), f.store.Tail("s")
	for i := 0; i < 3; i++ {
		_, err := a.Next(ctx)
		require.NoError(t, err)
	}
	rec, err := b.Next(ctx)
	require.NoError(t, err)
	p, _ := rec.Event.Get("price")
	n, _ := p.AsNumber()
	require.Equal(t, 0.0, n)
}

func TestTailSeq(t *testing.T) {
	f := newFixture(t, Options{TailBlock: 20 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := 0; i < 4; i++ {
		_, err := f.store.Write(ctx, "s", tick(int64(i), "BTC", float64(i)), 0)
		require.NoError(t, err)
	}

	var seen int
	for range f.store.TailSeq(ctx, "s") {
		seen++
		if seen == 4 {
			break
		}
	}
	require.Equal(t, 4, seen)
}
