package eventlog

import (
	"context"
	"time"
)

// appendSignal returns the channel closed by the next Append.
func (l *Log) appendSignal() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.notifyCh
}

// waitOn reports whether ch closed before the timeout or ctx ended. A
// timeout <= 0 waits without a deadline.
func (l *Log) waitOn(ctx context.Context, ch <-chan struct{}, timeout time.Duration) bool {
	if timeout <= 0 {
		select {
		case <-ch:
			return true
		case <-ctx.Done():
			return false
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}
