package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Scraper metrics
	ScraperRequestsTotal   *prometheus.CounterVec
	ScraperDurationSeconds *prometheus.HistogramVec

	// Sync pipeline metrics
	SyncRunsTotal        *prometheus.CounterVec
	SyncCoursesProcessed prometheus.Counter
	SyncCoursesChanged   prometheus.Counter
	SyncDurationSeconds  prometheus.Histogram

	// Embedding metrics
	EmbeddingRequestsTotal   *prometheus.CounterVec
	EmbeddingDurationSeconds prometheus.Histogram

	// Row store metrics
	StoreRequestsTotal *prometheus.CounterVec

	// Query API metrics
	QueryRequestsTotal   *prometheus.CounterVec
	QueryDurationSeconds *prometheus.HistogramVec

	// HTTP metrics
	HTTPErrorsTotal *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// Scraper metrics
		ScraperRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tis_scraper_requests_total",
				Help: "Total number of page fetches by campus and status",
			},
			[]string{"campus", "status"}, // status: success, error
		),

		ScraperDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tis_scraper_duration_seconds",
				Help:    "Page fetch duration in seconds by campus",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60}, // Matches 30s timeout + backoff
			},
			[]string{"campus"},
		),

		// Sync pipeline metrics
		SyncRunsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tis_sync_runs_total",
				Help: "Total number of sync runs by mode and status",
			},
			[]string{"mode", "status"}, // mode: online, offline, dry_run; status: ok, error
		),

		SyncCoursesProcessed: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "tis_sync_courses_processed_total",
				Help: "Total number of course records processed by sync runs",
			},
		),

		SyncCoursesChanged: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "tis_sync_courses_changed_total",
				Help: "Total number of course records written (created or updated)",
			},
		),

		SyncDurationSeconds: promauto.With(registry).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tis_sync_duration_seconds",
				Help:    "Total duration of a sync run",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
		),

		// Embedding metrics
		EmbeddingRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tis_embedding_requests_total",
				Help: "Total number of embedding requests by status",
			},
			[]string{"status"}, // status: success, error
		),

		EmbeddingDurationSeconds: promauto.With(registry).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tis_embedding_duration_seconds",
				Help:    "Embedding request duration in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		),

		// Row store metrics
		StoreRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tis_store_requests_total",
				Help: "Total number of row store requests by operation and status",
			},
			[]string{"operation", "status"}, // operation: find, get, upsert, match, log
		),

		// Query API metrics
		QueryRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tis_query_requests_total",
				Help: "Total number of query API requests by endpoint and status",
			},
			[]string{"endpoint", "status"}, // endpoint: similarity, embedding
		),

		QueryDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tis_query_duration_seconds",
				Help:    "Query API request duration in seconds by endpoint",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"endpoint"},
		),

		// HTTP metrics
		HTTPErrorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tis_http_errors_total",
				Help: "Total HTTP errors by type and module",
			},
			[]string{"error_type", "module"}, // error_type: validation, store, embedding, internal
		),
	}

	return m
}

// RecordScraperRequest records a page fetch with status
func (m *Metrics) RecordScraperRequest(campus, status string, duration float64) {
	m.ScraperRequestsTotal.WithLabelValues(campus, status).Inc()
	m.ScraperDurationSeconds.WithLabelValues(campus).Observe(duration)
}

// RecordSyncRun records the outcome of one sync run
func (m *Metrics) RecordSyncRun(mode, status string, processed, changed int, duration float64) {
	m.SyncRunsTotal.WithLabelValues(mode, status).Inc()
	m.SyncCoursesProcessed.Add(float64(processed))
	m.SyncCoursesChanged.Add(float64(changed))
	m.SyncDurationSeconds.Observe(duration)
}

// RecordEmbeddingRequest records an embedding request with status
func (m *Metrics) RecordEmbeddingRequest(status string, duration float64) {
	m.EmbeddingRequestsTotal.WithLabelValues(status).Inc()
	m.EmbeddingDurationSeconds.Observe(duration)
}

// RecordStoreRequest records a row store request
func (m *Metrics) RecordStoreRequest(operation, status string) {
	m.StoreRequestsTotal.WithLabelValues(operation, status).Inc()
}

// RecordQueryRequest records a query API request
func (m *Metrics) RecordQueryRequest(endpoint, status string, duration float64) {
	m.QueryRequestsTotal.WithLabelValues(endpoint, status).Inc()
	m.QueryDurationSeconds.WithLabelValues(endpoint).Observe(duration)
}

// RecordHTTPError records HTTP error metrics
func (m *Metrics) RecordHTTPError(errorType, module string) {
	m.HTTPErrorsTotal.WithLabelValues(errorType, module).Inc()
}
