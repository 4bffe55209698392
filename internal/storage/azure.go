package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/jittakal/ntuplestore/internal/encoder"
	"github.com/jittakal/ntuplestore/internal/errors"
	"github.com/jittakal/ntuplestore/pkg/fieldstore"
	"github.com/jittakal/ntuplestore/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var (
	_ storage.Writer  = (*AzureWriter)(nil)
	_ storage.Fetcher = (*AzureFetcher)(nil)
)

// AzureConfig contains Azure Blob Storage configuration.
type AzureConfig struct {
	AccountName   string
	AccountKey    string
	ContainerName string
	Endpoint      string
}

// ConnectionString builds the shared-key connection string for the account.
func (c AzureConfig) ConnectionString() string {
	if c.Endpoint != "" {
		return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;BlobEndpoint=%s",
			c.AccountName, c.AccountKey, c.Endpoint)
	}
	return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;EndpointSuffix=core.windows.net",
		c.AccountName, c.AccountKey)
}

// AzureWriter implements storage.Writer for Azure Blob Storage.
type AzureWriter struct {
	client         *azblob.Client
	containerName  string
	format         fieldstore.Format
	encoderFactory *encoder.Factory
	logger         *slog.Logger
	metrics        MetricsCollector
	mu             sync.Mutex
	names          fileNamer
	closed         bool
}

// NewAzureWriter creates a new Azure Blob storage writer.
func NewAzureWriter(
	cfg AzureConfig,
	format fieldstore.Format,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*AzureWriter, error) {
	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	encoderFactory := encoder.NewFactory(format, compression)
	if _, err := encoderFactory.CreateEncoder(); err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	logger.Info("Azure writer created",
		"container", cfg.ContainerName,
		"account", cfg.AccountName,
		"format", format,
		"compression", compression,
	)

	return &AzureWriter{
		client:         client,
		containerName:  cfg.ContainerName,
		format:         format,
		encoderFactory: encoderFactory,
		logger:         logger,
		metrics:        metrics,
	}, nil
}

// Write encodes entries and uploads the blob below path.
func (w *AzureWriter) Write(
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

	blobPath := objectKey(path, storage.SchemeWASBS, w.names.next(startTime, enc.FileExtension()))

	tempFile, stats, err := encodeTemp(enc, layout, entries, "azure-upload")
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

	if _, err := w.client.UploadFile(ctx, w.containerName, blobPath, file, nil); err != nil {
		w.storageError("upload")
		return nil, &errors.StorageError{
			Operation: "upload",
			Location:  fmt.Sprintf("wasbs://%s/%s", w.containerName, blobPath),
			Err:       err,
		}
	}

	duration := time.Since(startTime)

	w.logger.Info("uploaded ntuple to Azure Blob",
		"container", w.containerName,
		"blob", blobPath,
		"entry_count", stats.EntryCount,
		"file_size", stats.SizeBytes,
		"format", w.format,
		"total_duration_ms", duration.Milliseconds(),
	)

	if w.metrics != nil {
		w.metrics.IncFilesWritten("azure", string(w.format), "success")
		w.metrics.ObserveFileSize(string(w.format), stats.SizeBytes)
		w.metrics.ObserveFileWriteDuration("azure", string(w.format), duration)
	}

	return stats, nil
}

func (w *AzureWriter) storageError(operation string) {
	if w.metrics != nil {
		w.metrics.IncStorageErrors("azure", operation)
		w.metrics.IncFilesWritten("azure", string(w.format), "error")
	}
}

// Close closes the Azure writer.
func (w *AzureWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true
	w.logger.Info("Azure writer closed")
	return nil
}

// AzureFetcher downloads ntuple blobs. The container comes from the
// location bucket.
type AzureFetcher struct {
	client *azblob.Client
	logger *slog.Logger
}

// NewAzureFetcher creates a new Azure Blob fetcher.
func NewAzureFetcher(cfg AzureConfig, logger *slog.Logger) (*AzureFetcher, error) {
	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}
	logger.Info("Azure fetcher created", "account", cfg.AccountName)
	return &AzureFetcher{client: client, logger: logger}, nil
}

// Fetch downloads the blob at loc into dst.
func (f *AzureFetcher) Fetch(ctx context.Context, loc storage.Location, dst *os.File) (int64, error) {
	return f.client.DownloadFile(ctx, loc.Bucket, loc.Key, dst, nil)
}

// Close closes the Azure fetcher.
func (f *AzureFetcher) Close() error {
	return nil
}
