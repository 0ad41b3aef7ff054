// Package metrics defines the prometheus collectors shared across the engine,
// the hub and the HTTP server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine metrics
var (
	// EventsEmittedTotal tracks emitted events by channel and event type.
	EventsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_events_emitted_total",
			Help: "Emitted change/summary events by channel and type",
		},
		[]string{"channel", "type"},
	)

	// PollDuration tracks provider snapshot fetch duration per channel.
	PollDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engine_poll_duration_seconds",
			Help:    "Provider snapshot fetch duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"channel"},
	)

	// PollFailuresTotal tracks provider fetch failures per channel.
	PollFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_poll_failures_total",
			Help: "Provider snapshot fetch failures by channel",
		},
		[]string{"channel"},
	)

	// UnchangedPollsTotal tracks polls short-circuited by the change detector.
	UnchangedPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_unchanged_polls_total",
			Help: "Polls whose snapshot hash matched the previous one",
		},
		[]string{"channel"},
	)

	// EventBufferSize tracks the number of events currently retained.
	EventBufferSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_event_buffer_size",
			Help: "Number of events currently retained for resume",
		},
	)

	// PnLDriftWarningsTotal counts P&L aggregate consistency violations.
	PnLDriftWarningsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_pnl_drift_warnings_total",
			Help: "P&L aggregate drift beyond tolerance (logged, never raised)",
		},
	)
)

// Circuit breaker metrics
var (
	// BreakerState tracks the breaker state (0=closed, 1=half-open, 2=open).
	BreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "breaker_state",
			Help: "Provider circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// BreakerTransitionsTotal tracks breaker state transitions.
	BreakerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breaker_transitions_total",
			Help: "Circuit breaker state transitions by new state",
		},
		[]string{"state"},
	)

	// BreakerRejectedTotal counts calls rejected while the breaker was open.
	BreakerRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "breaker_rejected_total",
			Help: "Provider calls rejected without invocation while open",
		},
	)
)

// Live connection metrics
var (
	// ConnectedClients tracks the number of live connections.
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "live_connected_clients",
			Help: "Number of live client connections",
		},
	)

	// MessagesSentTotal counts outbound messages written to clients.
	MessagesSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "live_messages_sent_total",
			Help: "Outbound messages written to clients",
		},
	)

	// SlowClientsEvictedTotal counts clients dropped for full send queues.
	SlowClientsEvictedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "live_slow_clients_evicted_total",
			Help: "Clients evicted because their send queue was full",
		},
	)

	// IdleDisconnectsTotal counts clients pruned for inactivity.
	IdleDisconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "live_idle_disconnects_total",
			Help: "Clients pruned after the inbound activity timeout",
		},
	)

	// ResumeRequestsTotal tracks resume outcomes ("ack" or "nack").
	ResumeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_resume_requests_total",
			Help: "Resume requests by outcome",
		},
		[]string{"outcome"},
	)

	// ProtocolErrorsTotal tracks typed protocol error replies by code.
	ProtocolErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_protocol_errors_total",
			Help: "Typed protocol error replies by code",
		},
		[]string{"code"},
	)

	// ConnectionsRejectedTotal tracks connections refused by the limiters.
	ConnectionsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_connections_rejected_total",
			Help: "Connections refused by the global or per-IP limiter",
		},
		[]string{"reason"},
	)
)
