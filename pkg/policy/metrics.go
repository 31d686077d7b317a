package policy

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quellhq/quell/pkg/domain"
)

// Event outcome labels recorded per processed failure event.
const (
	OutcomeSuppressed = "suppressed"
	OutcomeResolved   = "resolved"
	OutcomeEscalated  = "escalated"
	OutcomePassed     = "passed"
)

// Metrics holds all Prometheus metrics for failure resolution
type Metrics struct {
	eventsTotal     *prometheus.CounterVec
	directivesTotal *prometheus.CounterVec
	reloadsTotal    *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics instance on a private registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quell_events_total",
				Help: "Total number of failure events processed by severity and outcome",
			},
			[]string{"severity", "outcome"},
		),

		directivesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quell_directives_total",
				Help: "Total number of directives returned to the transaction",
			},
			[]string{"directive"},
		),

		reloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quell_policy_reloads_total",
				Help: "Total number of policy reload attempts by status",
			},
			[]string{"status"},
		),

		registry: registry,
	}

	registry.MustRegister(
		m.eventsTotal,
		m.directivesTotal,
		m.reloadsTotal,
	)

	return m
}

// RecordEvent records the outcome of one processed failure event
func (m *Metrics) RecordEvent(severity domain.Severity, outcome string) {
	m.eventsTotal.WithLabelValues(string(severity), outcome).Inc()
}

// RecordDirective records a directive returned to the transaction
func (m *Metrics) RecordDirective(directive domain.Directive) {
	m.directivesTotal.WithLabelValues(string(directive)).Inc()
}

// RecordReload records a policy reload attempt
func (m *Metrics) RecordReload(status string) {
	m.reloadsTotal.WithLabelValues(status).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
