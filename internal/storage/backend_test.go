package storage

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/jittakal/ntuplestore/internal/config/dto"
	"github.com/jittakal/ntuplestore/internal/errors"
	"github.com/jittakal/ntuplestore/pkg/fieldstore"
	"github.com/jittakal/ntuplestore/pkg/storage"
)

func TestProtocol(t *testing.T) {
	tests := map[string]string{
		"s3":    storage.SchemeS3,
		"azure": storage.SchemeWASBS,
		"gcs":   storage.SchemeGCS,
		"file":  storage.SchemeFile,
		"":      storage.SchemeFile,
	}
	for backend, want := range tests {
		if got := Protocol(backend); got != want {
			t.Errorf("Protocol(%q) = %q, want %q", backend, got, want)
		}
	}
}

func TestNewOutput_File(t *testing.T) {
	base := t.TempDir()
	cfg := &dto.ApplicationConfig{
		Storage: dto.StorageConfig{
			Backend: "file",
			Format:  "avro",
			File:    dto.FileConfig{BasePath: base},
		},
		FileRotation: dto.FileRotationConfig{MaxEntriesPerFile: 2},
	}

	out, err := NewOutput(cfg, testLogger(), nil)
	if err != nil {
		t.Fatalf("NewOutput() error = %v", err)
	}
	defer out.Writer.Close()

	if out.Format != fieldstore.FormatAvro {
		t.Errorf("Format = %q, want avro", out.Format)
	}
	if got := out.Router.Route("ds", 5); got != "file://ds/run=5/" {
		t.Errorf("Route() = %q", got)
	}
	if !out.Policy.ShouldRotate(fieldstore.FileStats{EntryCount: 2}) {
		t.Error("policy did not rotate at 2 entries")
	}

	stats, err := out.Writer.Write(context.Background(), testLayout, testEntries(), out.Router.Route("ds", 5))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if stats.EntryCount != len(testEntries()) {
		t.Errorf("EntryCount = %d, want %d", stats.EntryCount, len(testEntries()))
	}
}

func TestNewOutput_UnsupportedBackend(t *testing.T) {
	cfg := &dto.ApplicationConfig{Storage: dto.StorageConfig{Backend: "ftp", Format: "parquet"}}
	if _, err := NewOutput(cfg, testLogger(), nil); err == nil {
		t.Fatal("NewOutput() with unknown backend succeeded")
	}
}

func TestNewFetcher_UnsupportedScheme(t *testing.T) {
	_, err := NewFetcher("ftp", dto.StorageConfig{}, testLogger())
	if !stderrors.Is(err, errors.ErrUnsupportedScheme) {
		t.Fatalf("NewFetcher() error = %v, want ErrUnsupportedScheme", err)
	}
}

func TestNewInputResolver_Local(t *testing.T) {
	cfg := &dto.ApplicationConfig{
		Input: dto.InputConfig{URI: "/data/run1.parquet", CacheDir: t.TempDir()},
	}
	r, err := NewInputResolver(cfg, testLogger(), nil)
	if err != nil {
		t.Fatalf("NewInputResolver() error = %v", err)
	}
	defer r.Close()

	path, cleanup, err := r.Resolve(context.Background(), cfg.Input.URI)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	defer cleanup()
	if path != "/data/run1.parquet" {
		t.Errorf("path = %q, want the local path unchanged", path)
	}
}

func TestNewInputResolver_BadURI(t *testing.T) {
	cfg := &dto.ApplicationConfig{Input: dto.InputConfig{URI: "ftp://host/x"}}
	if _, err := NewInputResolver(cfg, testLogger(), nil); err == nil {
		t.Fatal("NewInputResolver() with unsupported scheme succeeded")
	}
}
