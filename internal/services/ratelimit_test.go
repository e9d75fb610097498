package services

import (
	"context"
	"testing"
	"time"
)

func newMemoryLimiter(limit int) *memoryRateLimiter {
	return &memoryRateLimiter{
		limit:   limit,
		window:  time.Hour,
		windows: map[string]*memoryWindow{},
	}
}

func TestMemoryRateLimiter_DeniesPastLimit(t *testing.T) {
	limiter := newMemoryLimiter(3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "user-a")
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("call %d within limit was denied", i+1)
		}
	}
	ok, err := limiter.Allow(ctx, "user-a")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if ok {
		t.Fatalf("call past limit was allowed")
	}
}

func TestMemoryRateLimiter_KeysAreIndependent(t *testing.T) {
	limiter := newMemoryLimiter(1)
	ctx := context.Background()

	if ok, _ := limiter.Allow(ctx, "user-a"); !ok {
		t.Fatalf("first call for user-a denied")
	}
	if ok, _ := limiter.Allow(ctx, "user-a"); ok {
		t.Fatalf("second call for user-a allowed")
	}
	if ok, _ := limiter.Allow(ctx, "user-b"); !ok {
		t.Fatalf("user-b throttled by user-a's window")
	}
}

func TestMemoryRateLimiter_StaleWindowResets(t *testing.T) {
	limiter := newMemoryLimiter(1)
	ctx := context.Background()

	if ok, _ := limiter.Allow(ctx, "user-a"); !ok {
		t.Fatalf("first call denied")
	}
	// Age the stored window so the next call lands in a fresh bucket.
	limiter.mu.Lock()
	limiter.windows["user-a"].bucket--
	limiter.mu.Unlock()

	if ok, _ := limiter.Allow(ctx, "user-a"); !ok {
		t.Fatalf("call in new window denied")
	}
}
