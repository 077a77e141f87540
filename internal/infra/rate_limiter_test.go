package infra

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiter_BurstThenDeny(t *testing.T) {
	rl := NewRateLimiter(3, 0.001)

	for i := 0; i < 3; i++ {
		if !rl.TryAcquire() {
			t.Fatalf("acquire %d within burst must succeed", i)
		}
	}
	if rl.TryAcquire() {
		t.Error("acquire beyond burst must fail")
	}
}

func TestRateLimiter_Refill(t *testing.T) {
	rl := NewRateLimiter(1, 100)

	if !rl.TryAcquire() {
		t.Fatal("first acquire must succeed")
	}
	if rl.TryAcquire() {
		t.Fatal("bucket should be empty")
	}

	time.Sleep(50 * time.Millisecond)
	if !rl.TryAcquire() {
		t.Error("bucket should have refilled")
	}
}

func TestRateLimiter_WaitCancelled(t *testing.T) {
	rl := NewRateLimiter(1, 0.001)
	rl.TryAcquire()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx); err == nil {
		t.Error("Wait on an empty bucket must honor context cancellation")
	}
}

func TestRateLimiter_WaitSucceeds(t *testing.T) {
	rl := NewRateLimiter(1, 100)
	rl.TryAcquire()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := rl.Wait(ctx); err != nil {
		t.Errorf("Wait must succeed once the bucket refills: %v", err)
	}
}
