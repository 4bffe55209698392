package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/jittakal/ntuplestore/internal/encoder"
	"github.com/jittakal/ntuplestore/internal/errors"
	"github.com/jittakal/ntuplestore/pkg/fieldstore"
	"github.com/jittakal/ntuplestore/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var (
	_ storage.Writer  = (*GCSWriter)(nil)
	_ storage.Fetcher = (*GCSFetcher)(nil)
)

// GCSConfig contains Google Cloud Storage configuration.
type GCSConfig struct {
	Bucket               string
	ProjectID            string
	CredentialsFile      string
	CredentialsJSON      string
	Endpoint             string
	UseDefaultCredential bool
}

// clientOptions selects the credential source: default credentials, an
// inline JSON key, then a key file.
func (c GCSConfig) clientOptions() []option.ClientOption {
	var opts []option.ClientOption
	if c.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.Endpoint))
	}
	switch {
	case c.UseDefaultCredential:
	case c.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(c.CredentialsJSON)))
	case c.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(c.CredentialsFile))
	}
	return opts
}

func contentType(format fieldstore.Format) string {
	if format == fieldstore.FormatAvro {
		return "application/avro"
	}
	return "application/octet-stream"
}

// GCSWriter implements storage.Writer for Google Cloud Storage.
type GCSWriter struct {
	client         *gcs.Client
	bucket         string
	format         fieldstore.Format
	encoderFactory *encoder.Factory
	logger         *slog.Logger
	metrics        MetricsCollector
	mu             sync.Mutex
	names          fileNamer
	closed         bool
}

// NewGCSWriter creates a new Google Cloud Storage writer.
func NewGCSWriter(
	cfg GCSConfig,
	format fieldstore.Format,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*GCSWriter, error) {
	client, err := gcs.NewClient(context.Background(), cfg.clientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	encoderFactory := encoder.NewFactory(format, compression)
	if _, err := encoderFactory.CreateEncoder(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	logger.Info("GCS writer created",
		"bucket", cfg.Bucket,
		"project_id", cfg.ProjectID,
		"format", format,
		"compression", compression,
	)

	return &GCSWriter{
		client:         client,
		bucket:         cfg.Bucket,
		format:         format,
		encoderFactory: encoderFactory,
		logger:         logger,
		metrics:        metrics,
	}, nil
}

// Write encodes entries and uploads the file below path.
func (w *GCSWriter) Write(
	ctx context.Context,
	layout fieldstore.Layout,
	entries []fieldstore.Entry,
	path string,
) (*fieldstore.FileStats, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("no entries to write")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, errors.ErrWriterClosed
	}

	startTime := time.Now()

	enc, err := w.encoderFactory.CreateEncoder()
	if err != nil {
		w.storageError("encoder_create")
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	objectPath := objectKey(path, storage.SchemeGCS, w.names.next(startTime, enc.FileExtension()))

	tempFile, stats, err := encodeTemp(enc, layout, entries, "gcs-upload")
	if err != nil {
		w.storageError("encode")
		return nil, fmt.Errorf("failed to encode entries: %w", err)
	}
	defer os.Remove(tempFile)

	file, err := os.Open(tempFile)
	if err != nil {
		w.storageError("file_open")
		return nil, fmt.Errorf("failed to open encoded file: %w", err)
	}
	defer file.Close()

	gcsWriter := w.client.Bucket(w.bucket).Object(objectPath).NewWriter(ctx)
	gcsWriter.ContentType = contentType(w.format)

	bytesWritten, err := io.Copy(gcsWriter, file)
	if err != nil {
		w.storageError("upload")
		gcsWriter.Close()
		return nil, &errors.StorageError{Operation: "upload", Location: "gs://" + w.bucket + "/" + objectPath, Err: err}
	}

	// The object is only committed once Close succeeds.
	if err := gcsWriter.Close(); err != nil {
		w.storageError("close")
		return nil, &errors.StorageError{Operation: "upload", Location: "gs://" + w.bucket + "/" + objectPath, Err: err}
	}

	duration := time.Since(startTime)

	w.logger.Info("uploaded ntuple to GCS",
		"bucket", w.bucket,
		"object", objectPath,
		"entry_count", stats.EntryCount,
		"file_size", stats.SizeBytes,
		"bytes_written", bytesWritten,
		"format", w.format,
		"total_duration_ms", duration.Milliseconds(),
	)

	if w.metrics != nil {
		w.metrics.IncFilesWritten("gcs", string(w.format), "success")
		w.metrics.ObserveFileSize(string(w.format), stats.SizeBytes)
		w.metrics.ObserveFileWriteDuration("gcs", string(w.format), duration)
	}

	return stats, nil
}

func (w *GCSWriter) storageError(operation string) {
	if w.metrics != nil {
		w.metrics.IncStorageErrors("gcs", operation)
		w.metrics.IncFilesWritten("gcs", string(w.format), "error")
	}
}

// Close closes the GCS writer.
func (w *GCSWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.logger.Info("closing GCS writer")
	if w.client != nil {
		return w.client.Close()
	}
	return nil
}

// GCSFetcher downloads ntuples from Google Cloud Storage.
type GCSFetcher struct {
	client *gcs.Client
	logger *slog.Logger
}

// NewGCSFetcher creates a new GCS fetcher.
func NewGCSFetcher(cfg GCSConfig, logger *slog.Logger) (*GCSFetcher, error) {
	client, err := gcs.NewClient(context.Background(), cfg.clientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	logger.Info("GCS fetcher created", "project_id", cfg.ProjectID)
	return &GCSFetcher{client: client, logger: logger}, nil
}

// Fetch streams the object at loc into dst.
func (f *GCSFetcher) Fetch(ctx context.Context, loc storage.Location, dst *os.File) (int64, error) {
	reader, err := f.client.Bucket(loc.Bucket).Object(loc.Key).NewReader(ctx)
	if err != nil {
		return 0, err
	}
	defer reader.Close()
	return io.Copy(dst, reader)
}

// Close closes the underlying client.
func (f *GCSFetcher) Close() error {
	return f.client.Close()
}
