package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("/api/profile", "GET", "200", 0.01)
		m.Registered("READING")
		m.Transitioned("INTERACTION")
		m.Completed()
		m.TimeUpdated()
		m.EventLogged("scroll", true)
		m.ExchangeFinished("success", "mock", 1, 10, 5, 0.01)
		m.LLMRetried("mock", "rate_limit")
	})
}

func TestLLMRetried(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.LLMRetried("anthropic", "rate_limit")
	m.LLMRetried("anthropic", "rate_limit")
	m.LLMRetried("openai", "unavailable")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LLMRetries.WithLabelValues("anthropic", "rate_limit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMRetries.WithLabelValues("openai", "unavailable")))
}

func TestExchangeFinished(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ExchangeFinished("success", "gpt-4o-mini", 1.5, 100, 40, 0.25)
	m.ExchangeFinished("cost_limit", "", 0, 0, 0, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Exchanges.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Exchanges.WithLabelValues("cost_limit")))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.Tokens.WithLabelValues("input", "gpt-4o-mini")))
	assert.Equal(t, 40.0, testutil.ToFloat64(m.Tokens.WithLabelValues("output", "gpt-4o-mini")))
	assert.InDelta(t, 0.25, testutil.ToFloat64(m.CostDollars), 1e-9)
}

func TestRejectedEventsShareOneLabel(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.EventLogged("Bad Type!", false)
	m.EventLogged("another bad", false)
	m.EventLogged("scroll", true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsLogged.WithLabelValues("invalid", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsLogged.WithLabelValues("scroll", "accepted")))
}

func TestRegistryCollectsAll(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Registered("CONVERSATIONAL")
	m.Transitioned("POST_ASSESSMENT")
	m.ObserveRequest("/api/sessions", "POST", "201", 0.02)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["studyctl_participants_registered_total"])
	assert.True(t, names["studyctl_phase_transitions_total"])
	assert.True(t, names["studyctl_http_requests_total"])
	assert.True(t, names["studyctl_http_request_duration_seconds"])
}
