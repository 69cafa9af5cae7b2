package resilience

import (
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type CircuitState string

const (
	CircuitStateClosed   CircuitState = "closed"
	CircuitStateOpen     CircuitState = "open"
	CircuitStateHalfOpen CircuitState = "half_open"
)

// CircuitBreaker guards a single dependency endpoint. After the configured
// number of consecutive failures it opens and rejects calls for the cooldown
// window; the first call after the cooldown runs as a half-open probe.
// All transitions happen under one mutex so concurrent callers never observe
// a stale state.
type CircuitBreaker struct {
	mu sync.Mutex

	failureThreshold int
	cooldown         time.Duration
	probeBudget      int

	state               CircuitState
	consecutiveFailures int
	openedAt            time.Time
	probesInFlight      int
	probeSuccesses      int
	lastSuccessAt       time.Time
	now                 func() time.Time
}

// Snapshot is a read-only view of the breaker for status endpoints.
type Snapshot struct {
	State               CircuitState `json:"state"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	OpenedAt            time.Time    `json:"opened_at,omitzero"`
	LastSuccessAt       time.Time    `json:"last_success_at,omitzero"`
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	cfg = NormalizeCircuitBreakerConfig(cfg)

	return &CircuitBreaker{
		failureThreshold: cfg.FailureThreshold,
		cooldown:         cfg.Cooldown,
		probeBudget:      cfg.HalfOpenProbes,
		state:            CircuitStateClosed,
		now:              time.Now,
	}
}

func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if b.state == CircuitStateOpen {
		if now.Sub(b.openedAt) < b.cooldown {
			return ErrCircuitOpen
		}
		b.toHalfOpen()
	}

	if b.state == CircuitStateHalfOpen {
		if b.probesInFlight >= b.probeBudget {
			return ErrCircuitOpen
		}
		b.probesInFlight++
	}

	return nil
}

// ReleaseProbe hands back a half-open probe slot the caller claimed through
// Allow but never spent on a request, so a later cooldown can still admit a
// trial call.
func (b *CircuitBreaker) ReleaseProbe() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == CircuitStateHalfOpen && b.probesInFlight > 0 {
		b.probesInFlight--
	}
}

func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastSuccessAt = b.now()

	switch b.state {
	case CircuitStateClosed:
		b.consecutiveFailures = 0
	case CircuitStateHalfOpen:
		if b.probesInFlight > 0 {
			b.probesInFlight--
		}
		b.probeSuccesses++
		if b.probeSuccesses >= b.probeBudget && b.probesInFlight == 0 {
			b.toClosed()
		}
	}
}

func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitStateClosed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.failureThreshold {
			b.toOpen()
		}
	case CircuitStateHalfOpen:
		if b.probesInFlight > 0 {
			b.probesInFlight--
		}
		b.toOpen()
	case CircuitStateOpen:
		// A failure while open restarts the cooldown window.
		b.openedAt = b.now()
	}
}

func (b *CircuitBreaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == CircuitStateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		return CircuitStateHalfOpen
	}

	return b.state
}

func (b *CircuitBreaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.state
	if state == CircuitStateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		state = CircuitStateHalfOpen
	}

	return Snapshot{
		State:               state,
		ConsecutiveFailures: b.consecutiveFailures,
		OpenedAt:            b.openedAt,
		LastSuccessAt:       b.lastSuccessAt,
	}
}

func (b *CircuitBreaker) toClosed() {
	b.state = CircuitStateClosed
	b.consecutiveFailures = 0
	b.probesInFlight = 0
	b.probeSuccesses = 0
	b.openedAt = time.Time{}
}

func (b *CircuitBreaker) toOpen() {
	b.state = CircuitStateOpen
	b.openedAt = b.now()
	b.probesInFlight = 0
	b.probeSuccesses = 0
}

func (b *CircuitBreaker) toHalfOpen() {
	b.state = CircuitStateHalfOpen
	b.probesInFlight = 0
	b.probeSuccesses = 0
}
