package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/jittakal/ntuplestore/internal/encoder"
	"github.com/jittakal/ntuplestore/internal/errors"
	"github.com/jittakal/ntuplestore/pkg/fieldstore"
	"github.com/jittakal/ntuplestore/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var (
	_ storage.Writer  = (*S3Writer)(nil)
	_ storage.Fetcher = (*S3Fetcher)(nil)
)

const (
	s3PartSize    = 10 * 1024 * 1024
	s3Concurrency = 5
)

// S3Config contains AWS S3 configuration.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	UsePathStyle bool
	SSEEnabled   bool
	SSEKMSKeyID  string
}

func newS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// S3Writer implements storage.Writer for AWS S3 storage.
// It provides multipart upload support and server-side encryption (SSE).
type S3Writer struct {
	uploader       *manager.Uploader
	bucket         string
	sseEnabled     bool
	sseKMSKeyID    string
	format         fieldstore.Format
	encoderFactory *encoder.Factory
	logger         *slog.Logger
	metrics        MetricsCollector
	mu             sync.Mutex
	names          fileNamer
	closed         bool
}

// NewS3Writer creates a new S3 storage writer.
func NewS3Writer(
	cfg S3Config,
	format fieldstore.Format,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*S3Writer, error) {
	s3Client, err := newS3Client(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	uploader := manager.NewUploader(s3Client, func(u *manager.Uploader) {
		u.PartSize = s3PartSize
		u.Concurrency = s3Concurrency
	})

	encoderFactory := encoder.NewFactory(format, compression)
	if _, err := encoderFactory.CreateEncoder(); err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	logger.Info("S3 writer created",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"format", format,
		"compression", compression,
		"sse_enabled", cfg.SSEEnabled,
	)

	return &S3Writer{
		uploader:       uploader,
		bucket:         cfg.Bucket,
		sseEnabled:     cfg.SSEEnabled,
		sseKMSKeyID:    cfg.SSEKMSKeyID,
		format:         format,
		encoderFactory: encoderFactory,
		logger:         logger,
		metrics:        metrics,
	}, nil
}

// Write encodes entries and uploads the file below path.
func (w *S3Writer) Write(
	ctx context.Context,
	layout fieldstore.Layout,
	entries []fieldstore.Entry,
	path string,
) (*fieldstore.FileStats, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, errors.ErrWriterClosed
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("no entries to write")
	}

	startTime := time.Now()

	fileEncoder, err := w.encoderFactory.CreateEncoder()
	if err != nil {
		w.storageError("encoder_create")
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	key := objectKey(path, storage.SchemeS3, w.names.next(startTime, fileEncoder.FileExtension()))

	tempFile, stats, err := encodeTemp(fileEncoder, layout, entries, "s3-upload")
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

	uploadInput := &s3.PutObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(key),
		Body:   file,
	}

	if w.sseEnabled {
		if w.sseKMSKeyID != "" {
			uploadInput.ServerSideEncryption = types.ServerSideEncryptionAwsKms
			uploadInput.SSEKMSKeyId = aws.String(w.sseKMSKeyID)
		} else {
			uploadInput.ServerSideEncryption = types.ServerSideEncryptionAes256
		}
	}

	result, err := w.uploader.Upload(ctx, uploadInput)
	if err != nil {
		w.storageError("upload")
		return nil, &errors.StorageError{
			Operation: "upload",
			Location:  fmt.Sprintf("s3://%s/%s", w.bucket, key),
			Err:       err,
		}
	}

	duration := time.Since(startTime)

	w.logger.Info("uploaded ntuple to S3",
		"bucket", w.bucket,
		"key", key,
		"entry_count", stats.EntryCount,
		"file_size", stats.SizeBytes,
		"format", w.format,
		"location", result.Location,
		"total_duration_ms", duration.Milliseconds(),
	)

	if w.metrics != nil {
		w.metrics.IncFilesWritten("s3", string(w.format), "success")
		w.metrics.ObserveFileSize(string(w.format), stats.SizeBytes)
		w.metrics.ObserveFileWriteDuration("s3", string(w.format), duration)
	}

	return stats, nil
}

func (w *S3Writer) storageError(operation string) {
	if w.metrics != nil {
		w.metrics.IncStorageErrors("s3", operation)
		w.metrics.IncFilesWritten("s3", string(w.format), "error")
	}
}

// Close closes the S3 writer.
func (w *S3Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true
	w.logger.Info("closing S3 writer")
	return nil
}

// S3Fetcher downloads ntuples from S3 with concurrent ranged GETs.
type S3Fetcher struct {
	downloader *manager.Downloader
	logger     *slog.Logger
}

// NewS3Fetcher creates a new S3 fetcher. Bucket in cfg is ignored; each
// location names its own bucket.
func NewS3Fetcher(cfg S3Config, logger *slog.Logger) (*S3Fetcher, error) {
	s3Client, err := newS3Client(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	downloader := manager.NewDownloader(s3Client, func(d *manager.Downloader) {
		d.PartSize = s3PartSize
		d.Concurrency = s3Concurrency
	})

	logger.Info("S3 fetcher created", "region", cfg.Region, "endpoint", cfg.Endpoint)

	return &S3Fetcher{downloader: downloader, logger: logger}, nil
}

// Fetch downloads the object at loc into dst.
func (f *S3Fetcher) Fetch(ctx context.Context, loc storage.Location, dst *os.File) (int64, error) {
	return f.downloader.Download(ctx, dst, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
}

// Close closes the S3 fetcher.
func (f *S3Fetcher) Close() error {
	return nil
}
