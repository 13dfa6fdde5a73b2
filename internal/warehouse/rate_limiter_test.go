package warehouse

import (
	"context"
	"testing"
)

func TestRateLimiterUnlimited(t *testing.T) {
	limiter := NewRateLimiter(0)
	for i := 0; i < 100; i++ {
		if !limiter.Allow() {
			t.Fatalf("unlimited limiter rejected call %d", i)
		}
	}
}

func TestRateLimiterBurst(t *testing.T) {
	limiter := NewRateLimiter(2)
	if !limiter.Allow() || !limiter.Allow() {
		t.Fatal("expected a burst of two")
	}
	if limiter.Allow() {
		t.Fatal("expected the third immediate call to be rejected")
	}
}

func TestRateLimiterNilSafe(t *testing.T) {
	var limiter *RateLimiter
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("nil limiter wait: %v", err)
	}
	if !limiter.Allow() {
		t.Fatal("nil limiter should allow")
	}
}
