package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_UnconfiguredAPIIsUnlimited(t *testing.T) {
	l := New()

	for i := 0; i < 100; i++ {
		if !l.Allow(APIFinnhub) {
			t.Fatalf("Allow() = false on call %d, want unlimited", i)
		}
	}
	if err := l.Wait(context.Background(), APIFinnhub); err != nil {
		t.Errorf("Wait() returned unexpected error: %v", err)
	}
}

func TestLimiter_BurstThenDeny(t *testing.T) {
	l := New()
	l.Set(APIFinnhub, 0.001, 2)

	if !l.Allow(APIFinnhub) || !l.Allow(APIFinnhub) {
		t.Fatal("Allow() should permit the configured burst")
	}
	if l.Allow(APIFinnhub) {
		t.Error("Allow() = true after burst exhausted, want false")
	}
}

func TestLimiter_WaitRespectsContext(t *testing.T) {
	l := New()
	l.Set(APIFinnhub, 0.001, 1)
	_ = l.Allow(APIFinnhub)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx, APIFinnhub); err == nil {
		t.Error("Wait() expected error when the limiter cannot admit before the deadline")
	}
}

func TestLimiter_SetZeroRemovesLimit(t *testing.T) {
	l := New()
	l.Set(APIFinnhub, 0.001, 1)
	_ = l.Allow(APIFinnhub)

	l.Set(APIFinnhub, 0, 0)
	if !l.Allow(APIFinnhub) {
		t.Error("Allow() = false after removing the limit")
	}
}

func TestLimiter_NilIsUnlimited(t *testing.T) {
	var l *Limiter
	if !l.Allow(APIFinnhub) {
		t.Error("nil Limiter should allow")
	}
	if err := l.Wait(context.Background(), APIFinnhub); err != nil {
		t.Errorf("nil Limiter Wait() = %v", err)
	}
}
