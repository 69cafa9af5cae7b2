package usecase

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("resource not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrTimeout           = errors.New("upstream timed out")
	ErrRateLimited       = errors.New("request pacing exhausted")
	ErrCircuitOpen       = errors.New("circuit breaker open")
	ErrUpstreamRejected  = errors.New("upstream rejected request")
	ErrTransient         = errors.New("transient upstream failure")
	ErrDeliveryExhausted = errors.New("delivery attempts exhausted")
)
