package resilience

import (
	"context"
	"testing"
	"time"
)

func TestBackoff_FloorDoublesAndCaps(t *testing.T) {
	t.Parallel()

	b := Backoff{Base: time.Second, Cap: 8 * time.Second}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 8 * time.Second},
		{30, 8 * time.Second},
	}
	for _, tc := range cases {
		if got := b.Floor(tc.attempt); got != tc.want {
			t.Fatalf("Floor(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestBackoff_DelayStaysWithinJitterBand(t *testing.T) {
	t.Parallel()

	b := Backoff{Base: 100 * time.Millisecond, Cap: time.Second, Jitter: 50 * time.Millisecond}

	for i := 0; i < 100; i++ {
		got := b.Delay(2)
		floor := b.Floor(2)
		if got < floor || got >= floor+b.Jitter {
			t.Fatalf("Delay(2) = %v outside [%v, %v)", got, floor, floor+b.Jitter)
		}
	}
}

func TestPacer_FailsFastWhenDeadlineTooTight(t *testing.T) {
	t.Parallel()

	p := NewPacer(time.Minute, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// First token is available immediately.
	if err := p.Wait(ctx); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	// Second token is a minute away, far beyond the deadline.
	if err := p.Wait(ctx); err != ErrPacedOut {
		t.Fatalf("expected ErrPacedOut, got %v", err)
	}
}
