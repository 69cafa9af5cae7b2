package resilience

import (
	"math/rand"
	"time"
)

// Backoff computes retry delays: base doubled per attempt, capped, with
// uniform jitter on top. Delay is a pure function of the attempt index except
// for the jitter term, which Floor excludes for deterministic callers.
type Backoff struct {
	Base   time.Duration
	Cap    time.Duration
	Jitter time.Duration
}

func DefaultBackoff() Backoff {
	return Backoff{
		Base:   500 * time.Millisecond,
		Cap:    8 * time.Second,
		Jitter: 250 * time.Millisecond,
	}
}

func NormalizeBackoff(b Backoff) Backoff {
	defaults := DefaultBackoff()
	if b.Base <= 0 {
		b.Base = defaults.Base
	}
	if b.Cap < b.Base {
		b.Cap = defaults.Cap
	}
	if b.Cap < b.Base {
		b.Cap = b.Base
	}
	if b.Jitter < 0 {
		b.Jitter = defaults.Jitter
	}
	return b
}

// Floor returns the deterministic part of the delay for the given attempt
// (zero-based): min(Base << attempt, Cap).
func (b Backoff) Floor(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := b.Base
	for i := 0; i < attempt; i++ {
		if delay >= b.Cap/2 {
			return b.Cap
		}
		delay *= 2
	}
	if delay > b.Cap {
		delay = b.Cap
	}
	return delay
}

// Delay returns Floor(attempt) plus a random jitter in [0, Jitter).
func (b Backoff) Delay(attempt int) time.Duration {
	delay := b.Floor(attempt)
	if b.Jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(b.Jitter)))
	}
	return delay
}

// Sleep waits for the attempt's delay or until ctx is done, whichever comes
// first. It reports whether the full delay elapsed.
func Sleep(done <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-done:
		return false
	case <-timer.C:
		return true
	}
}
