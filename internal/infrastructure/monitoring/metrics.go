package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LLM-Dev-Ops/analytics-hub-sub005/internal/execution"
)

// Metrics holds all Prometheus metrics. Each Metrics instance carries its
// own registry so tests can construct them freely.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Execution-tracking metrics
	ContextRejections   *prometheus.CounterVec
	GraphsFinalized     *prometheus.CounterVec
	AgentSpansTotal     prometheus.Counter
	InvariantViolations *prometheus.CounterVec

	// Export metrics
	HierarchiesExported prometheus.Counter
	ExportFailures      prometheus.Counter
}

// NewMetrics creates a new metrics collector with a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hub_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hub_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		ContextRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hub_execution_context_rejections_total",
				Help: "Requests rejected for missing or invalid execution context",
			},
			[]string{"code"},
		),
		GraphsFinalized: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hub_execution_graphs_finalized_total",
				Help: "Execution graphs finalized, by repo span status",
			},
			[]string{"status"},
		),
		AgentSpansTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "hub_execution_agent_spans_total",
				Help: "Agent spans recorded across all finalized graphs",
			},
		),
		InvariantViolations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hub_execution_invariant_violations_total",
				Help: "Requests overridden because no agent spans were recorded",
			},
			[]string{"path"},
		),

		HierarchiesExported: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "hub_observatory_hierarchies_exported_total",
				Help: "Span hierarchies successfully shipped to the observatory",
			},
		),
		ExportFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "hub_observatory_export_failures_total",
				Help: "Span hierarchy export attempts that failed",
			},
		),
	}
}

// Handler returns the Prometheus exposition handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordContextRejection counts a 400-level context rejection.
func (m *Metrics) RecordContextRejection(code string) {
	m.ContextRejections.WithLabelValues(code).Inc()
}

// RecordGraphFinalized counts a finalized, valid graph and its agent spans.
func (m *Metrics) RecordGraphFinalized(agentSpans int, status execution.Status) {
	m.GraphsFinalized.WithLabelValues(string(status)).Inc()
	m.AgentSpansTotal.Add(float64(agentSpans))
}

// RecordInvariantViolation counts a forced-500 invariant violation.
func (m *Metrics) RecordInvariantViolation(path string) {
	m.InvariantViolations.WithLabelValues(path).Inc()
}

// RecordExport counts one export attempt.
func (m *Metrics) RecordExport(err error) {
	if err != nil {
		m.ExportFailures.Inc()
		return
	}
	m.HierarchiesExported.Inc()
}
