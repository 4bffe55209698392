package observability

import (
	"testing"
	"time"

	"github.com/jittakal/ntuplestore/pkg/ntuple"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Ensure Metrics can be handed to a Store.
var _ ntuple.MetricsCollector = (*Metrics)(nil)

func counterValue(t *testing.T, c *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.WithLabelValues(labels...).Write(&m); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	if metrics == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestMetrics_StoreCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.RecordEntryLoad("success", 2*time.Millisecond)
	metrics.RecordEntryLoad("success", time.Millisecond)
	metrics.RecordEntryLoad("error", time.Millisecond)
	metrics.RecordFieldRead("rechit")
	metrics.RecordViewError("stale")

	if got := counterValue(t, metrics.EntriesLoaded, "success"); got != 2 {
		t.Errorf("entries loaded success = %v, want 2", got)
	}
	if got := counterValue(t, metrics.EntriesLoaded, "error"); got != 1 {
		t.Errorf("entries loaded error = %v, want 1", got)
	}
	if got := counterValue(t, metrics.FieldReads, "rechit"); got != 1 {
		t.Errorf("field reads = %v, want 1", got)
	}
	if got := counterValue(t, metrics.ViewErrors, "stale"); got != 1 {
		t.Errorf("view errors = %v, want 1", got)
	}
}

func TestMetrics_Storage(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.IncFilesFetched("s3", "success")
	metrics.ObserveFetchDuration("s3", time.Second)
	metrics.IncFilesWritten("gcs", "parquet", "success")
	metrics.ObserveFileWriteDuration("gcs", "parquet", 500*time.Millisecond)
	metrics.ObserveFileSize("parquet", 4<<20)
	metrics.IncStorageErrors("azure", "download")

	if got := counterValue(t, metrics.FilesWritten, "gcs", "parquet", "success"); got != 1 {
		t.Errorf("files written = %v, want 1", got)
	}
	if got := counterValue(t, metrics.StorageErrors, "azure", "download"); got != 1 {
		t.Errorf("storage errors = %v, want 1", got)
	}
}

func TestMetrics_AllOperations(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.RecordEntryLoad("success", time.Millisecond)
	metrics.RecordFieldRead("trackster")
	metrics.RecordViewError("missing_field")
	metrics.IncValidationFailures("sequence_length")
	metrics.AddEntriesGenerated("avro", 100)
	metrics.IncFilesFetched("file", "success")
	metrics.ObserveFetchDuration("file", time.Millisecond)
	metrics.IncFilesWritten("file", "avro", "success")
	metrics.ObserveFileWriteDuration("file", "avro", time.Millisecond)
	metrics.ObserveFileSize("avro", 1024)
	metrics.IncStorageErrors("file", "write")
	metrics.IncHTTPRequests("event", 200)

	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	want := map[string]bool{
		"ntuple_entries_loaded_total":        false,
		"ntuple_entry_load_duration_seconds": false,
		"ntuple_field_reads_total":           false,
		"ntuple_view_errors_total":           false,
		"ntuple_validation_failures_total":   false,
		"ntuple_entries_generated_total":     false,
		"files_fetched_total":                false,
		"file_fetch_duration_seconds":        false,
		"files_written_total":                false,
		"file_write_duration_seconds":        false,
		"file_size_bytes":                    false,
		"storage_errors_total":               false,
		"http_requests_total":                false,
	}
	for _, mf := range metricFamilies {
		want[mf.GetName()] = true
	}
	for name, found := range want {
		if !found {
			t.Errorf("metric %s not registered", name)
		}
	}
}

func TestMetrics_HTTPRequests(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	for i := 0; i < 10; i++ {
		metrics.IncHTTPRequests("lookup", 404)
	}

	if got := counterValue(t, metrics.HTTPRequests, "lookup", "404"); got != 10 {
		t.Errorf("http requests = %v, want 10", got)
	}
}
