package auth

import (
	"testing"
	"time"
)

func TestLimiterAppliesConfiguredBudget(t *testing.T) {
	p := &limiterPool{cfg: SecConfig{RPS: 1, Burst: 2}}

	if !p.Allow("k") || !p.Allow("k") {
		t.Fatalf("burst of 2 must admit two immediate requests")
	}
	if p.Allow("k") {
		t.Fatalf("third immediate request must be limited")
	}
	// separate keys get separate buckets
	if !p.Allow("other") {
		t.Fatalf("keys must not share a bucket")
	}
}

func TestLimiterDefaultsWhenUnset(t *testing.T) {
	p := &limiterPool{}
	for i := 0; i < defaultBurst; i++ {
		if !p.Allow("k") {
			t.Fatalf("default burst exhausted after %d requests", i)
		}
	}
	if p.Allow("k") {
		t.Fatalf("request beyond the default burst was admitted")
	}
}

func TestLimiterSweepsIdleBuckets(t *testing.T) {
	p := &limiterPool{idleTTL: 10 * time.Millisecond, sweepEvery: 5 * time.Millisecond}
	p.Allow("stale")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		p.mu.Lock()
		n := len(p.buckets)
		p.mu.Unlock()
		if n == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("idle bucket was never swept")
}
