package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "photomatch"

// Extraction Prometheus metrics.
var (
	ExtractionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_requests_total",
			Help:      "Total number of feature extraction requests",
		},
		[]string{"backend", "status"},
	)

	ExtractionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Feature extraction duration in seconds, including queueing",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"backend"},
	)

	ExtractionErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_errors_total",
			Help:      "Total feature extraction errors",
		},
		[]string{"backend", "error_type"},
	)

	ExtractionCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_cache_total",
			Help:      "Feature cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	ExtractionInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "extraction_inflight",
			Help:      "Extractions currently running",
		},
	)
)

var extractionMetricsRegistered bool

// RegisterExtractionMetrics registers extraction metrics. Must be called once from main.
func RegisterExtractionMetrics() {
	if extractionMetricsRegistered {
		return
	}
	prometheus.MustRegister(ExtractionRequestsTotal)
	prometheus.MustRegister(ExtractionDuration)
	prometheus.MustRegister(ExtractionErrorsTotal)
	prometheus.MustRegister(ExtractionCacheTotal)
	prometheus.MustRegister(ExtractionInflight)
	extractionMetricsRegistered = true
}
