package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics contains Prometheus metrics for the REST API surface.
type HTTPMetrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RateLimitedTotal prometheus.Counter

	registry *prometheus.Registry
}

// NewHTTPMetrics creates a new instance of HTTPMetrics registered with
// the given registry.
func NewHTTPMetrics(registry *prometheus.Registry) (*HTTPMetrics, error) {
	m := &HTTPMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register HTTP metrics: %w", err)
	}
	return m, nil
}

func (m *HTTPMetrics) initMetrics() {
	m.RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_http_requests_total",
			Help: "HTTP requests partitioned by method, route and status code.",
		},
		[]string{"method", "route", "status"},
	)
	m.RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arb_http_request_duration_seconds",
			Help:    "HTTP request latency partitioned by method and route",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route"},
	)
	m.RateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "arb_http_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		},
	)
}

// Describe implements the prometheus.Collector interface.
func (m *HTTPMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.RequestsTotal.Describe(ch)
	m.RequestDuration.Describe(ch)
	ch <- m.RateLimitedTotal.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *HTTPMetrics) Collect(ch chan<- prometheus.Metric) {
	m.RequestsTotal.Collect(ch)
	m.RequestDuration.Collect(ch)
	ch <- m.RateLimitedTotal
}
