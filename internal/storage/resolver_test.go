package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	interrors "github.com/jittakal/ntuplestore/internal/errors"
	"github.com/jittakal/ntuplestore/pkg/storage"
)

// stubFetcher serves objects from memory and fails the first failures calls.
type stubFetcher struct {
	objects  map[string]string
	failures int
	calls    int
	closed   bool
}

func (f *stubFetcher) Fetch(ctx context.Context, loc storage.Location, dst *os.File) (int64, error) {
	f.calls++
	if f.calls <= f.failures {
		return 0, errors.New("connection reset")
	}
	body, ok := f.objects[loc.Bucket+"/"+loc.Key]
	if !ok {
		return 0, errors.New("not found")
	}
	n, err := dst.WriteString(body)
	return int64(n), err
}

func (f *stubFetcher) Close() error {
	f.closed = true
	return nil
}

func TestResolver_LocalPath(t *testing.T) {
	r := NewResolver(t.TempDir(), 1, testLogger(), nil)

	for _, uri := range []string{"data/a.parquet", "file:///data/a.parquet"} {
		path, cleanup, err := r.Resolve(context.Background(), uri)
		if err != nil {
			t.Fatalf("Resolve(%q) failed: %v", uri, err)
		}
		if !strings.HasSuffix(path, "data/a.parquet") {
			t.Errorf("Resolve(%q) = %q", uri, path)
		}
		if err := cleanup(); err != nil {
			t.Errorf("cleanup() = %v", err)
		}
	}
}

func TestResolver_Download(t *testing.T) {
	cacheDir := filepath.Join(t.TempDir(), "cache")
	metrics := &mockMetricsCollector{}
	fetcher := &stubFetcher{objects: map[string]string{"hgcal/run1/ntuple.parquet": "PAR1data"}}

	r := NewResolver(cacheDir, 3, testLogger(), metrics)
	r.Register(storage.SchemeS3, fetcher)

	path, cleanup, err := r.Resolve(context.Background(), "s3://hgcal/run1/ntuple.parquet")
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if filepath.Dir(path) != cacheDir {
		t.Errorf("path %q not in cache dir %q", path, cacheDir)
	}
	if !strings.HasSuffix(path, "ntuple.parquet") {
		t.Errorf("path %q lost the object extension", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "PAR1data" {
		t.Fatalf("cached content = %q, %v", data, err)
	}
	if metrics.filesFetched != 1 || metrics.lastFetchStatus != "success" || len(metrics.fetchDurations) != 1 {
		t.Errorf("fetch metrics = %d %q %v", metrics.filesFetched, metrics.lastFetchStatus, metrics.fetchDurations)
	}

	if err := cleanup(); err != nil {
		t.Fatalf("cleanup() = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("cached file survived cleanup: %v", err)
	}

	if err := r.Close(); err != nil || !fetcher.closed {
		t.Errorf("Close() = %v, fetcher closed %v", err, fetcher.closed)
	}
}

func TestResolver_RetriesDownloads(t *testing.T) {
	fetcher := &stubFetcher{
		objects:  map[string]string{"b/k.avro": "Obj\x01"},
		failures: 2,
	}
	r := NewResolver(t.TempDir(), 3, testLogger(), nil)
	r.Register(storage.SchemeGCS, fetcher)

	path, cleanup, err := r.Resolve(context.Background(), "gs://b/k.avro")
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	defer cleanup()
	if fetcher.calls != 3 {
		t.Errorf("calls = %d, want 3", fetcher.calls)
	}
	if path == "" {
		t.Error("empty path")
	}
}

func TestResolver_Errors(t *testing.T) {
	cacheDir := t.TempDir()
	metrics := &mockMetricsCollector{}
	fetcher := &stubFetcher{objects: map[string]string{}}

	r := NewResolver(cacheDir, 2, testLogger(), metrics)
	r.Register(storage.SchemeS3, fetcher)

	_, _, err := r.Resolve(context.Background(), "s3://hgcal/missing.parquet")
	var storageErr *interrors.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("error = %v, want StorageError", err)
	}
	if storageErr.Operation != "download" || storageErr.Location != "s3://hgcal/missing.parquet" {
		t.Errorf("StorageError = %+v", storageErr)
	}
	if fetcher.calls != 2 {
		t.Errorf("calls = %d, want 2 attempts", fetcher.calls)
	}
	if metrics.storageErrors != 2 || metrics.lastErrorOperation != "download" {
		t.Errorf("storage errors = %d %q", metrics.storageErrors, metrics.lastErrorOperation)
	}
	if entries, _ := os.ReadDir(cacheDir); len(entries) != 0 {
		t.Errorf("failed download left %d files in cache", len(entries))
	}

	if _, _, err := r.Resolve(context.Background(), "wasbs://c/a.parquet"); !errors.Is(err, interrors.ErrUnsupportedScheme) {
		t.Errorf("unregistered scheme error = %v", err)
	}
	if _, _, err := r.Resolve(context.Background(), "ftp://h/a.parquet"); !errors.Is(err, interrors.ErrUnsupportedScheme) {
		t.Errorf("unknown scheme error = %v", err)
	}
}
