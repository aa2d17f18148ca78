// pkg/observability/metrics.go
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "creditrisk"

// Metrics holds the serving collectors
type Metrics struct {
	registry *prometheus.Registry

	Requests          *prometheus.CounterVec
	Predictions       *prometheus.CounterVec
	RequestLatency    *prometheus.HistogramVec
	ModelLoadFailures prometheus.Counter
}

// NewMetrics registers the collectors on a fresh registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Rows scored, by predicted class.",
		}, []string{"class"}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		ModelLoadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_load_failures_total",
			Help:      "Failed attempts to load a model from the registry.",
		}),
	}

	m.registry.MustRegister(
		m.Requests,
		m.Predictions,
		m.RequestLatency,
		m.ModelLoadFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler returns the /metrics handler for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one finished request
func (m *Metrics) ObserveRequest(route, code string, elapsed time.Duration) {
	m.Requests.WithLabelValues(route, code).Inc()
	m.RequestLatency.WithLabelValues(route).Observe(elapsed.Seconds())
}
