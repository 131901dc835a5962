package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiterDeniesPastLimit(t *testing.T) {
	limiter := NewMemoryLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "user@example.com")
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !ok {
			t.Fatalf("attempt %d denied, want allowed", i+1)
		}
	}
	ok, err := limiter.Allow(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if ok {
		t.Fatal("fourth attempt allowed, want denied")
	}
}

func TestMemoryLimiterKeysAreIndependent(t *testing.T) {
	limiter := NewMemoryLimiter(1, time.Minute)
	ctx := context.Background()

	if ok, _ := limiter.Allow(ctx, "a"); !ok {
		t.Fatal("first attempt for a denied")
	}
	if ok, _ := limiter.Allow(ctx, "a"); ok {
		t.Fatal("second attempt for a allowed")
	}
	if ok, _ := limiter.Allow(ctx, "b"); !ok {
		t.Fatal("first attempt for b denied")
	}
}

func TestMemoryLimiterReset(t *testing.T) {
	limiter := NewMemoryLimiter(1, time.Minute)
	ctx := context.Background()

	if ok, _ := limiter.Allow(ctx, "key"); !ok {
		t.Fatal("first attempt denied")
	}
	if ok, _ := limiter.Allow(ctx, "key"); ok {
		t.Fatal("second attempt allowed")
	}
	if err := limiter.Reset(ctx, "key"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if ok, _ := limiter.Allow(ctx, "key"); !ok {
		t.Fatal("attempt after reset denied")
	}
}

func TestMemoryLimiterWindowExpires(t *testing.T) {
	limiter := NewMemoryLimiter(1, 10*time.Millisecond)
	ctx := context.Background()

	if ok, _ := limiter.Allow(ctx, "key"); !ok {
		t.Fatal("first attempt denied")
	}
	if ok, _ := limiter.Allow(ctx, "key"); ok {
		t.Fatal("second attempt inside window allowed")
	}
	time.Sleep(20 * time.Millisecond)
	if ok, _ := limiter.Allow(ctx, "key"); !ok {
		t.Fatal("attempt after window denied")
	}
}
