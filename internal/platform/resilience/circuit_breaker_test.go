package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAfterThresholdAndProbesOnce(t *testing.T) {
	b := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		Cooldown:         10 * time.Second,
		HalfOpenProbes:   1,
	})

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if err := b.Allow(); err != nil {
			t.Fatalf("allow before threshold, attempt %d: %v", i, err)
		}
		b.RecordFailure()
	}

	if state := b.State(); state != CircuitStateOpen {
		t.Fatalf("expected open after 3 failures, got %s", state)
	}
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected fast failure while open, got %v", err)
	}

	now = now.Add(11 * time.Second)

	if err := b.Allow(); err != nil {
		t.Fatalf("expected half-open probe after cooldown: %v", err)
	}
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected second concurrent probe to be rejected, got %v", err)
	}
}

func TestCircuitBreaker_ProbeFailureReopens(t *testing.T) {
	b := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		Cooldown:         5 * time.Second,
		HalfOpenProbes:   1,
	})

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	b.RecordFailure()
	now = now.Add(6 * time.Second)

	if err := b.Allow(); err != nil {
		t.Fatalf("probe should pass: %v", err)
	}
	b.RecordFailure()

	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected reopened circuit, got %v", err)
	}

	// Cooldown restarted at the probe failure, not the original trip.
	now = now.Add(4 * time.Second)
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("cooldown should not have elapsed yet, got %v", err)
	}
}

func TestCircuitBreaker_ProbeSuccessCloses(t *testing.T) {
	b := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		Cooldown:         5 * time.Second,
		HalfOpenProbes:   1,
	})

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	b.RecordFailure()
	b.RecordFailure()
	now = now.Add(6 * time.Second)

	if err := b.Allow(); err != nil {
		t.Fatalf("probe should pass: %v", err)
	}
	b.RecordSuccess()

	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("expected closed after probe success, got %s", state)
	}
	if snap := b.Snapshot(); snap.ConsecutiveFailures != 0 {
		t.Fatalf("expected failure count reset, got %d", snap.ConsecutiveFailures)
	}
}

func TestCircuitBreaker_AbandonedProbeIsReleased(t *testing.T) {
	b := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		Cooldown:         time.Second,
		HalfOpenProbes:   1,
	})

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	b.RecordFailure()
	now = now.Add(2 * time.Second)

	// The caller claims the probe slot but gives up before making the call,
	// for example because pacing would exceed its deadline.
	if err := b.Allow(); err != nil {
		t.Fatalf("probe should pass after cooldown: %v", err)
	}
	b.ReleaseProbe()

	// The slot must be available again immediately, and keep being available
	// however many callers abandon it.
	for i := 0; i < 10; i++ {
		now = now.Add(time.Minute)
		if err := b.Allow(); err != nil {
			t.Fatalf("probe slot not re-admitted on attempt %d: %v", i, err)
		}
		b.ReleaseProbe()
	}

	if err := b.Allow(); err != nil {
		t.Fatalf("trial call rejected: %v", err)
	}
	b.RecordSuccess()
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("expected closed after probe success, got %s", state)
	}
}

func TestCircuitBreaker_ReleaseProbeIsNoopWhenClosed(t *testing.T) {
	b := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		Cooldown:         time.Second,
		HalfOpenProbes:   1,
	})

	b.ReleaseProbe()
	if err := b.Allow(); err != nil {
		t.Fatalf("closed breaker must allow: %v", err)
	}
}
