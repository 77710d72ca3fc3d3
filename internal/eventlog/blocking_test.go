package eventlog

import (
	"context"
	"testing"
	"time"
)

func TestAppendSignalWakesWaiter(t *testing.T) {
	l := newTestLog(t)
	signal := l.appendSignal()

	done := make(chan bool, 1)
	go func() {
		done <- l.waitOn(context.Background(), signal, 500*time.Millisecond)
	}()

	time.Sleep(50 * time.Millisecond)
	if _, err := l.Append(context.Background(), payload("x"), 0); err != nil {
		t.Fatalf("append: %v", err)
	}

	select {
	case ok := <-done:
		if !ok {
			t.Fatalf("expected wake by append")
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for waiter to wake")
	}
}

func TestWaitOnTimeoutAndCancel(t *testing.T) {
	l := newTestLog(t)
	if l.waitOn(context.Background(), l.appendSignal(), 50*time.Millisecond) {
		t.Fatalf("expected timeout")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if l.waitOn(ctx, l.appendSignal(), 0) {
		t.Fatalf("expected cancelled wait to report false")
	}
}
