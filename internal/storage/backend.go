package storage

import (
	"fmt"
	"log/slog"

	"github.com/jittakal/ntuplestore/internal/config/dto"
	"github.com/jittakal/ntuplestore/internal/errors"
	"github.com/jittakal/ntuplestore/internal/encoder"
	"github.com/jittakal/ntuplestore/pkg/fieldstore"
	"github.com/jittakal/ntuplestore/pkg/storage"
)

// Output bundles what the generator needs to place files on a backend.
type Output struct {
	Writer storage.Writer
	Router storage.Router
	Policy storage.RotationPolicy
	Format fieldstore.Format
}

// NewOutput creates the writer, router and rotation policy for the
// configured storage backend.
func NewOutput(cfg *dto.ApplicationConfig, logger *slog.Logger, metrics MetricsCollector) (*Output, error) {
	format := fieldstore.Format(cfg.Storage.Format)
	compression := cfg.Storage.Compression
	if compression == "" {
		compression = encoder.DefaultCompression(format)
	}

	writer, err := newWriter(cfg.Storage, format, compression, logger, metrics)
	if err != nil {
		return nil, err
	}

	return &Output{
		Writer: writer,
		Router: NewRouter(Protocol(cfg.Storage.Backend), bucket(cfg.Storage), basePath(cfg.Storage)),
		Policy: NewPolicy(PolicyConfig{
			MaxFileSizeMB:     cfg.FileRotation.MaxFileSizeMB,
			MaxEntriesPerFile: cfg.FileRotation.MaxEntriesPerFile,
		}),
		Format: format,
	}, nil
}

func newWriter(
	cfg dto.StorageConfig,
	format fieldstore.Format,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (storage.Writer, error) {
	switch cfg.Backend {
	case "file":
		w, err := NewFileWriter(FileConfig{BasePath: cfg.File.BasePath}, format, compression, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create filesystem writer: %w", err)
		}
		return w, nil
	case "s3":
		w, err := NewS3Writer(s3Config(cfg), format, compression, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 writer: %w", err)
		}
		return w, nil
	case "azure":
		w, err := NewAzureWriter(azureConfig(cfg), format, compression, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Blob writer: %w", err)
		}
		return w, nil
	case "gcs":
		w, err := NewGCSWriter(gcsConfig(cfg), format, compression, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCS writer: %w", err)
		}
		return w, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s (supported: file, s3, azure, gcs)", cfg.Backend)
	}
}

// NewFetcher creates the fetcher for a remote location scheme using the
// client settings of the storage section.
func NewFetcher(scheme string, cfg dto.StorageConfig, logger *slog.Logger) (storage.Fetcher, error) {
	switch scheme {
	case storage.SchemeFile:
		return NewFileFetcher(), nil
	case storage.SchemeS3:
		return NewS3Fetcher(s3Config(cfg), logger)
	case storage.SchemeGCS:
		return NewGCSFetcher(gcsConfig(cfg), logger)
	case storage.SchemeWASBS, storage.SchemeAzure:
		return NewAzureFetcher(azureConfig(cfg), logger)
	default:
		return nil, fmt.Errorf("%w: %s", errors.ErrUnsupportedScheme, scheme)
	}
}

// NewInputResolver returns a resolver able to fetch uri. Only the fetcher
// for the scheme of uri is created, so unrelated cloud credentials are
// never required.
func NewInputResolver(cfg *dto.ApplicationConfig, logger *slog.Logger, metrics MetricsCollector) (*Resolver, error) {
	loc, err := storage.ParseLocation(cfg.Input.URI)
	if err != nil {
		return nil, err
	}

	resolver := NewResolver(cfg.Input.CacheDir, cfg.Input.FetchAttempts, logger, metrics)
	if loc.IsLocal() {
		return resolver, nil
	}

	fetcher, err := NewFetcher(loc.Scheme, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s fetcher: %w", loc.Scheme, err)
	}
	resolver.Register(loc.Scheme, fetcher)
	return resolver, nil
}

// Protocol maps a storage backend name to its URI scheme.
func Protocol(backend string) string {
	switch backend {
	case "s3":
		return storage.SchemeS3
	case "azure":
		return storage.SchemeWASBS
	case "gcs":
		return storage.SchemeGCS
	default:
		return storage.SchemeFile
	}
}

func bucket(cfg dto.StorageConfig) string {
	switch cfg.Backend {
	case "s3":
		return cfg.S3.Bucket
	case "azure":
		return cfg.Azure.Container
	case "gcs":
		return cfg.GCS.Bucket
	default:
		// File backend uses basePath only, no bucket
		return ""
	}
}

func basePath(cfg dto.StorageConfig) string {
	switch cfg.Backend {
	case "s3":
		return cfg.S3.BasePath
	case "azure":
		return cfg.Azure.BasePath
	case "gcs":
		return cfg.GCS.BasePath
	default:
		// The file writer joins its own base path.
		return ""
	}
}

func s3Config(cfg dto.StorageConfig) S3Config {
	return S3Config{
		Bucket:       cfg.S3.Bucket,
		Region:       cfg.S3.Region,
		Endpoint:     cfg.S3.Endpoint,
		UsePathStyle: cfg.S3.UsePathStyle,
		SSEEnabled:   cfg.S3.SSEEnabled,
		SSEKMSKeyID:  cfg.S3.SSEKMSKeyID,
	}
}

func azureConfig(cfg dto.StorageConfig) AzureConfig {
	return AzureConfig{
		AccountName:   cfg.Azure.AccountName,
		AccountKey:    cfg.Azure.AccountKey,
		ContainerName: cfg.Azure.Container,
		Endpoint:      cfg.Azure.Endpoint,
	}
}

func gcsConfig(cfg dto.StorageConfig) GCSConfig {
	return GCSConfig{
		Bucket:               cfg.GCS.Bucket,
		ProjectID:            cfg.GCS.ProjectID,
		CredentialsFile:      cfg.GCS.CredentialsFile,
		CredentialsJSON:      cfg.GCS.CredentialsJSON,
		Endpoint:             cfg.GCS.Endpoint,
		UseDefaultCredential: cfg.GCS.UseDefaultCredential,
	}
}
