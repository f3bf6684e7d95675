// Package metrics defines the Prometheus collectors exported by the study
// server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "studyctl"

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTPRequestsTotal counts API requests by route and status code.
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTPRequestDuration measures request latency by route.
	HTTPRequestDuration *prometheus.HistogramVec

	// ParticipantsRegistered counts registrations by assigned modality.
	ParticipantsRegistered *prometheus.CounterVec
	// PhaseTransitions counts accepted phase changes by target phase.
	PhaseTransitions *prometheus.CounterVec
	// SessionsCompleted counts sessions closed.
	SessionsCompleted prometheus.Counter
	// TimeUpdates counts session time pushes.
	TimeUpdates prometheus.Counter
	// EventsLogged counts telemetry events by log type and outcome.
	EventsLogged *prometheus.CounterVec

	// Exchanges counts conversational exchanges by outcome
	// (success, error, cost_limit).
	Exchanges *prometheus.CounterVec
	// ExchangeLatency measures assistant round-trip time.
	ExchangeLatency prometheus.Histogram
	// Tokens counts LLM tokens by direction and model.
	Tokens *prometheus.CounterVec
	// CostDollars accumulates exchange cost in USD.
	CostDollars prometheus.Counter
	// LLMRetries counts retried provider attempts by provider and reason.
	LLMRetries *prometheus.CounterVec
}

// New registers all collectors with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "API requests by route and status code.",
		}, []string{"route", "method", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "API request latency by route.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"route", "method"}),

		ParticipantsRegistered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "participants_registered_total",
			Help:      "Participants registered by assigned modality.",
		}, []string{"modality"}),
		PhaseTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_transitions_total",
			Help:      "Accepted phase changes by target phase.",
		}, []string{"phase"}),
		SessionsCompleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_completed_total",
			Help:      "Study sessions closed.",
		}),
		TimeUpdates: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_time_updates_total",
			Help:      "Session time sync pushes received.",
		}),
		EventsLogged: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_logged_total",
			Help:      "Session telemetry events by log type and outcome.",
		}, []string{"log_type", "status"}),

		Exchanges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "exchanges_total",
			Help:      "Conversational exchanges by outcome.",
		}, []string{"status"}),
		ExchangeLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "exchange_latency_seconds",
			Help:      "Assistant round-trip time.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		Tokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "tokens_total",
			Help:      "LLM tokens by direction and model.",
		}, []string{"direction", "model"}),
		CostDollars: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "cost_dollars_total",
			Help:      "Accumulated exchange cost in USD.",
		}),
		LLMRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "retries_total",
			Help:      "Retried LLM provider attempts by provider and reason.",
		}, []string{"provider", "reason"}),
	}
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(route, method, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route, method, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(route, method).Observe(seconds)
}

// Registered records a registration.
func (m *Metrics) Registered(modality string) {
	if m == nil {
		return
	}
	m.ParticipantsRegistered.WithLabelValues(modality).Inc()
}

// Transitioned records an accepted phase change.
func (m *Metrics) Transitioned(phase string) {
	if m == nil {
		return
	}
	m.PhaseTransitions.WithLabelValues(phase).Inc()
}

// Completed records a closed session.
func (m *Metrics) Completed() {
	if m == nil {
		return
	}
	m.SessionsCompleted.Inc()
}

// TimeUpdated records a time sync push.
func (m *Metrics) TimeUpdated() {
	if m == nil {
		return
	}
	m.TimeUpdates.Inc()
}

// EventLogged records a telemetry event; ok is false for rejected payloads.
func (m *Metrics) EventLogged(logType string, ok bool) {
	if m == nil {
		return
	}
	status := "accepted"
	if !ok {
		status = "rejected"
		// Unvalidated log types would let clients mint unbounded label values.
		logType = "invalid"
	}
	m.EventsLogged.WithLabelValues(logType, status).Inc()
}

// ExchangeFinished records an exchange outcome. Usage fields are only
// counted for successful exchanges.
func (m *Metrics) ExchangeFinished(status, model string, seconds float64, inputTokens, outputTokens int, cost float64) {
	if m == nil {
		return
	}
	m.Exchanges.WithLabelValues(status).Inc()
	if status != "success" {
		return
	}
	m.ExchangeLatency.Observe(seconds)
	m.Tokens.WithLabelValues("input", model).Add(float64(inputTokens))
	m.Tokens.WithLabelValues("output", model).Add(float64(outputTokens))
	m.CostDollars.Add(cost)
}

// LLMRetried records one retried provider attempt.
func (m *Metrics) LLMRetried(provider, reason string) {
	if m == nil {
		return
	}
	m.LLMRetries.WithLabelValues(provider, reason).Inc()
}
