package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ingestion and catalog Prometheus metrics.
var (
	IngestEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_entries_total",
			Help:      "Archive entries by outcome",
		},
		[]string{"outcome"}, // added, skipped, failed
	)

	IngestProductsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_products_total",
			Help:      "Products resolved during ingestion by action",
		},
		[]string{"action"}, // created, updated, reused
	)

	CatalogProducts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_products",
			Help:      "Number of products in the catalog",
		},
	)

	CatalogFileCleanupErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_file_cleanup_errors_total",
			Help:      "Image files that could not be removed after their rows were deleted",
		},
	)
)

var catalogMetricsRegistered bool

// RegisterCatalogMetrics registers ingestion and catalog metrics. Must be called once from main.
func RegisterCatalogMetrics() {
	if catalogMetricsRegistered {
		return
	}
	prometheus.MustRegister(IngestEntriesTotal)
	prometheus.MustRegister(IngestProductsTotal)
	prometheus.MustRegister(CatalogProducts)
	prometheus.MustRegister(CatalogFileCleanupErrorsTotal)
	catalogMetricsRegistered = true
}
