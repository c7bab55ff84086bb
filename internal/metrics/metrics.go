// Package metrics exposes Prometheus collectors for the tender engine.
//
// A nil *Metrics is valid and records nothing, so components can take one
// optionally.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gare"

// Metrics holds the collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	normalizations *prometheus.CounterVec
	sanitizeDrops  *prometheus.CounterVec
	mutations      *prometheus.CounterVec
	aiCalls        *prometheus.CounterVec
	aiFallbacks    *prometheus.CounterVec
	aiDuration     *prometheus.HistogramVec
	httpRequests   *prometheus.CounterVec
}

// New creates and registers all collectors, plus the Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		normalizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "normalizations_total",
			Help:      "State normalizations by origin of the candidate.",
		}, []string{"origin"}),
		sanitizeDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checklist_sanitize_drops_total",
			Help:      "Checklist rows discarded during sanitize, by reason.",
		}, []string{"reason"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checklist_mutations_total",
			Help:      "Checklist mutations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		aiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_calls_total",
			Help:      "Text generation calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		aiFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_fallbacks_total",
			Help:      "Operations served by the deterministic fallback path.",
		}, []string{"operation"}),
		aiDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_call_duration_seconds",
			Help:      "Text generation call latency.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"operation"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.normalizations,
		m.sanitizeDrops,
		m.mutations,
		m.aiCalls,
		m.aiFallbacks,
		m.aiDuration,
		m.httpRequests,
	)
	return m
}

// Registry exposes the underlying registry for tests and custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Normalized counts a state normalization.
func (m *Metrics) Normalized(origin string) {
	if m == nil {
		return
	}
	m.normalizations.WithLabelValues(origin).Inc()
}

// SanitizeDrop counts a discarded checklist row.
func (m *Metrics) SanitizeDrop(reason string) {
	if m == nil {
		return
	}
	m.sanitizeDrops.WithLabelValues(reason).Inc()
}

// Mutation counts a checklist mutation. A nil err is recorded as "ok".
func (m *Metrics) Mutation(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.mutations.WithLabelValues(operation, outcome).Inc()
}

// AICall records one generator call.
func (m *Metrics) AICall(operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.aiCalls.WithLabelValues(operation, outcome).Inc()
	m.aiDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// AIFallback counts an operation served without the generator.
func (m *Metrics) AIFallback(operation string) {
	if m == nil {
		return
	}
	m.aiFallbacks.WithLabelValues(operation).Inc()
}

// HTTPRequest counts a served request.
func (m *Metrics) HTTPRequest(route, code string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, code).Inc()
}
