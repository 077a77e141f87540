package infra

import (
	"time"
)

const (
	backoffBase = 1 * time.Second
	backoffCap  = 30 * time.Second
)

// Backoff returns the exponential delay before retry number `attempt`
// (zero-based): base * 2^attempt, capped. The cap is deliberately short;
// a feed that sits out a minute of ticks trades on a stale trend.
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		return backoffBase
	}
	if attempt > 20 {
		return backoffCap
	}

	delay := backoffBase * time.Duration(1<<attempt)
	if delay > backoffCap {
		return backoffCap
	}
	return delay
}

// Sleep waits for the given duration or until the context is cancelled,
// whichever comes first.
func Sleep(done <-chan struct{}, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-done:
		return false
	case <-timer.C:
		return true
	}
}
