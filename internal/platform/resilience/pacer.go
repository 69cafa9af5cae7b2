package resilience

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// ErrPacedOut means the caller's deadline would expire before the pacer
// releases the next token, so the call was never issued.
var ErrPacedOut = errors.New("rate pacing would exceed caller deadline")

// Pacer spaces outbound calls to an upstream endpoint class using a token
// bucket. Waiting is cooperative: callers block until a token is available
// unless their deadline would be exceeded first.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer allows one call per minInterval with the given burst budget.
func NewPacer(minInterval time.Duration, burst int) *Pacer {
	if minInterval <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	if burst < 1 {
		burst = 1
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(minInterval), burst)}
}

// Wait blocks until a token is available. If ctx carries a deadline that
// would expire first, it returns ErrPacedOut without consuming a token;
// if ctx is already done, it returns the context error.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrPacedOut
	}
	return nil
}

// NextDelay reports how long a caller issued now would wait, without
// consuming a token.
func (p *Pacer) NextDelay(now time.Time) time.Duration {
	reservation := p.limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	reservation.CancelAt(now)
	return delay
}
