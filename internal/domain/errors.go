package domain

import "errors"

var (
	// ErrUpstreamUnavailable is returned without invoking the provider when
	// the circuit breaker is open.
	ErrUpstreamUnavailable = errors.New("upstream provider unavailable")

	ErrPositionNotOpen = errors.New("position not open")
	ErrOrderRejected   = errors.New("order rejected")
)
