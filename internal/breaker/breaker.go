// Package breaker isolates the engine from upstream provider failure.
//
// One shared Breaker instance guards every provider call, from the polling
// scheduler and from the single-shot REST endpoints alike. State handling is
// delegated to sony/gobreaker: CLOSED trips to OPEN after a run of
// consecutive failures, OPEN rejects without invoking the operation until the
// timeout elapses, HALF_OPEN admits exactly one trial call.
package breaker

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/portpulse/portpulse/internal/domain"
	"github.com/portpulse/portpulse/internal/metrics"
)

// Breaker wraps a gobreaker instance with the provider failure policy.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// New creates a breaker that trips after threshold consecutive failures and
// stays open for timeout before allowing a single half-open trial.
func New(threshold uint32, timeout time.Duration) *Breaker {
	settings := gobreaker.Settings{
		Name:        "provider",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed",
				"component", name,
				"from", from.String(),
				"to", to.String(),
			)
			metrics.BreakerTransitionsTotal.WithLabelValues(to.String()).Inc()
			metrics.BreakerState.Set(stateToFloat(to))
		},
	}

	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// Execute runs op through the breaker. When the breaker is open (or the
// half-open trial slot is taken) it fails with domain.ErrUpstreamUnavailable
// without invoking op. Any error from op counts as a failure regardless of
// cause.
func (b *Breaker) Execute(op func() (any, error)) (any, error) {
	result, err := b.cb.Execute(op)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.BreakerRejectedTotal.Inc()
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	return result, err
}

// State returns the current breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Counts returns the current failure/success counters.
func (b *Breaker) Counts() gobreaker.Counts {
	return b.cb.Counts()
}

// Do runs a typed operation through the breaker.
func Do[T any](b *Breaker, op func() (T, error)) (T, error) {
	result, err := b.Execute(func() (any, error) { return op() })
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}
