package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Store metrics
	EntriesLoaded     *prometheus.CounterVec
	EntryLoadDuration *prometheus.HistogramVec
	FieldReads        *prometheus.CounterVec
	ViewErrors        *prometheus.CounterVec

	// Validation metrics
	ValidationFailures *prometheus.CounterVec

	// Generator metrics
	EntriesGenerated *prometheus.CounterVec

	// Storage metrics
	FilesFetched      *prometheus.CounterVec
	FetchDuration     *prometheus.HistogramVec
	FilesWritten      *prometheus.CounterVec
	FileWriteDuration *prometheus.HistogramVec
	FileSize          *prometheus.HistogramVec
	StorageErrors     *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		EntriesLoaded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ntuple_entries_loaded_total",
				Help: "Total number of entry loads",
			},
			[]string{"status"},
		),
		EntryLoadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ntuple_entry_load_duration_seconds",
				Help:    "Duration of entry loads",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"status"},
		),
		FieldReads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ntuple_field_reads_total",
				Help: "Total number of field reads through views",
			},
			[]string{"prefix"},
		),
		ViewErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ntuple_view_errors_total",
				Help: "Total number of failed view reads",
			},
			[]string{"kind"},
		),

		ValidationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ntuple_validation_failures_total",
				Help: "Total number of consistency check failures",
			},
			[]string{"check"},
		),

		EntriesGenerated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ntuple_entries_generated_total",
				Help: "Total number of synthetic entries generated",
			},
			[]string{"format"},
		),

		FilesFetched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "files_fetched_total",
				Help: "Total number of ntuple files fetched from storage",
			},
			[]string{"backend", "status"},
		),
		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "file_fetch_duration_seconds",
				Help:    "Duration of file downloads",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend"},
		),
		FilesWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "files_written_total",
				Help: "Total number of files written to storage",
			},
			[]string{"backend", "format", "status"},
		),
		FileWriteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "file_write_duration_seconds",
				Help:    "Duration of file write operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend", "format"},
		),
		FileSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "file_size_bytes",
				Help:    "Size of ntuple files read or written",
				Buckets: prometheus.ExponentialBuckets(1024*1024, 2, 10), // 1MB to 1GB
			},
			[]string{"format"},
		),
		StorageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storage_errors_total",
				Help: "Total number of storage errors",
			},
			[]string{"backend", "error_type"},
		),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of event browser requests",
			},
			[]string{"route", "code"},
		),
	}
}

// RecordEntryLoad counts an entry load and observes its duration.
func (m *Metrics) RecordEntryLoad(status string, duration time.Duration) {
	m.EntriesLoaded.WithLabelValues(status).Inc()
	m.EntryLoadDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordFieldRead counts a field read for a record prefix.
func (m *Metrics) RecordFieldRead(prefix string) {
	m.FieldReads.WithLabelValues(prefix).Inc()
}

// RecordViewError counts a failed view read.
func (m *Metrics) RecordViewError(kind string) {
	m.ViewErrors.WithLabelValues(kind).Inc()
}

// IncValidationFailures increments the consistency failure counter.
func (m *Metrics) IncValidationFailures(check string) {
	m.ValidationFailures.WithLabelValues(check).Inc()
}

// AddEntriesGenerated adds generated entries.
func (m *Metrics) AddEntriesGenerated(format string, n int) {
	m.EntriesGenerated.WithLabelValues(format).Add(float64(n))
}

// IncFilesFetched increments files fetched counter.
func (m *Metrics) IncFilesFetched(backend, status string) {
	m.FilesFetched.WithLabelValues(backend, status).Inc()
}

// ObserveFetchDuration observes download duration.
func (m *Metrics) ObserveFetchDuration(backend string, duration time.Duration) {
	m.FetchDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// IncFilesWritten increments files written counter.
func (m *Metrics) IncFilesWritten(backend, format, status string) {
	m.FilesWritten.WithLabelValues(backend, format, status).Inc()
}

// ObserveFileWriteDuration observes upload duration.
func (m *Metrics) ObserveFileWriteDuration(backend, format string, duration time.Duration) {
	m.FileWriteDuration.WithLabelValues(backend, format).Observe(duration.Seconds())
}

// ObserveFileSize observes file size.
func (m *Metrics) ObserveFileSize(format string, size int64) {
	m.FileSize.WithLabelValues(format).Observe(float64(size))
}

// IncStorageErrors increments storage errors counter.
func (m *Metrics) IncStorageErrors(backend string, operation string) {
	m.StorageErrors.WithLabelValues(backend, operation).Inc()
}

// IncHTTPRequests counts a served request.
func (m *Metrics) IncHTTPRequests(route string, code int) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
