// Package metrics provides custom Prometheus metrics for the research base.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// DatasetMetrics contains all Prometheus metrics related to dataset
// uploads, scoring and review.
type DatasetMetrics struct {
	UploadsTotal       *prometheus.CounterVec
	UploadBytesTotal   prometheus.Counter
	AIAnalysisTotal    *prometheus.CounterVec
	AIAnalysisDuration prometheus.Histogram
	ReviewsTotal       *prometheus.CounterVec
	VerificationsTotal prometheus.Counter
	PointsAwarded      *prometheus.CounterVec
	ChainRegistrations *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewDatasetMetrics creates a new instance of DatasetMetrics registered
// with the given registry.
func NewDatasetMetrics(registry *prometheus.Registry) (*DatasetMetrics, error) {
	m := &DatasetMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register dataset metrics: %w", err)
	}
	return m, nil
}

func (m *DatasetMetrics) initMetrics() {
	m.UploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_dataset_uploads_total",
			Help: "Total number of dataset uploads partitioned by research field.",
		},
		[]string{"research_field"},
	)
	m.UploadBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "arb_dataset_upload_bytes_total",
			Help: "Total bytes of dataset files accepted for upload.",
		},
	)
	m.AIAnalysisTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_ai_analysis_total",
			Help: "AI analysis calls partitioned by outcome (ok, fallback, error).",
		},
		[]string{"outcome"},
	)
	m.AIAnalysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "arb_ai_analysis_duration_seconds",
			Help:    "Time taken for an AI analysis call",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		},
	)
	m.ReviewsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_reviews_total",
			Help: "Submitted reviews partitioned by recommendation.",
		},
		[]string{"recommendation"},
	)
	m.VerificationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "arb_dataset_verifications_total",
			Help: "Datasets that crossed the verification threshold.",
		},
	)
	m.PointsAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_points_awarded_total",
			Help: "Points awarded partitioned by transaction type.",
		},
		[]string{"type"},
	)
	m.ChainRegistrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_chain_registrations_total",
			Help: "On-chain dataset registrations partitioned by outcome (ok, error).",
		},
		[]string{"outcome"},
	)
}

// Describe implements the prometheus.Collector interface.
func (m *DatasetMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.UploadsTotal.Describe(ch)
	ch <- m.UploadBytesTotal.Desc()
	m.AIAnalysisTotal.Describe(ch)
	ch <- m.AIAnalysisDuration.Desc()
	m.ReviewsTotal.Describe(ch)
	ch <- m.VerificationsTotal.Desc()
	m.PointsAwarded.Describe(ch)
	m.ChainRegistrations.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *DatasetMetrics) Collect(ch chan<- prometheus.Metric) {
	m.UploadsTotal.Collect(ch)
	ch <- m.UploadBytesTotal
	m.AIAnalysisTotal.Collect(ch)
	ch <- m.AIAnalysisDuration
	m.ReviewsTotal.Collect(ch)
	ch <- m.VerificationsTotal
	m.PointsAwarded.Collect(ch)
	m.ChainRegistrations.Collect(ch)
}
