package dto

import (
	"fmt"
	"time"
)

// ApplicationConfig is the root configuration structure
type ApplicationConfig struct {
	Application   ApplicationInfo     `mapstructure:"application"`
	Input         InputConfig         `mapstructure:"input"`
	Storage       StorageConfig       `mapstructure:"storage"`
	FileRotation  FileRotationConfig  `mapstructure:"file_rotation"`
	Generator     GeneratorConfig     `mapstructure:"generator"`
	Collections   []CollectionConfig  `mapstructure:"collections"`
	Dump          DumpConfig          `mapstructure:"dump"`
	Server        ServerConfig        `mapstructure:"server"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Shutdown      ShutdownConfig      `mapstructure:"shutdown"`
}

// ApplicationInfo contains application metadata
type ApplicationInfo struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// InputConfig locates the ntuple to read.
type InputConfig struct {
	URI           string `mapstructure:"uri"`
	Format        string `mapstructure:"format"`
	CacheDir      string `mapstructure:"cache_dir"`
	MaxEntryBytes int64  `mapstructure:"max_entry_bytes"`
	FetchAttempts int    `mapstructure:"fetch_attempts"`
}

// StorageConfig contains storage backend configuration. The backend and
// format select where generated ntuples go; the client sections are also
// used to fetch remote inputs.
type StorageConfig struct {
	Backend     string      `mapstructure:"backend"`
	Format      string      `mapstructure:"format"`
	Compression string      `mapstructure:"compression"`
	S3          S3Config    `mapstructure:"s3"`
	Azure       AzureConfig `mapstructure:"azure"`
	GCS         GCSConfig   `mapstructure:"gcs"`
	File        FileConfig  `mapstructure:"file"`
}

// S3Config contains AWS S3 configuration
type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	BasePath     string `mapstructure:"base_path"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	SSEEnabled   bool   `mapstructure:"sse_enabled"`
	SSEKMSKeyID  string `mapstructure:"sse_kms_key_id"`
}

// AzureConfig contains Azure Blob Storage configuration
type AzureConfig struct {
	AccountName string `mapstructure:"account_name"`
	AccountKey  string `mapstructure:"account_key"`
	Container   string `mapstructure:"container"`
	BasePath    string `mapstructure:"base_path"`
	Endpoint    string `mapstructure:"endpoint"`
}

// GCSConfig contains Google Cloud Storage configuration
type GCSConfig struct {
	Bucket               string `mapstructure:"bucket"`
	ProjectID            string `mapstructure:"project_id"`
	BasePath             string `mapstructure:"base_path"`
	Endpoint             string `mapstructure:"endpoint"`
	CredentialsFile      string `mapstructure:"credentials_file"`
	CredentialsJSON      string `mapstructure:"credentials_json"`
	UseDefaultCredential bool   `mapstructure:"use_default_credential"`
}

// FileConfig contains local filesystem configuration
type FileConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// FileRotationConfig splits generator output into several files.
type FileRotationConfig struct {
	MaxFileSizeMB     int64 `mapstructure:"max_file_size_mb"`
	MaxEntriesPerFile int   `mapstructure:"max_entries_per_file"`
}

// GeneratorConfig drives the synthetic ntuple generator.
type GeneratorConfig struct {
	Dataset       string `mapstructure:"dataset"`
	Seed          int64  `mapstructure:"seed"`
	Run           int64  `mapstructure:"run"`
	Events        int    `mapstructure:"events"`
	MaxRecHits    int    `mapstructure:"max_rechits"`
	MaxClusters   int    `mapstructure:"max_clusters"`
	MaxTracksters int    `mapstructure:"max_tracksters"`
	RawRecHits    bool   `mapstructure:"raw_rechits"`
}

// CollectionConfig declares one collection: a field prefix and the
// attribute whose length gives the collection size.
type CollectionConfig struct {
	Prefix string `mapstructure:"prefix"`
	Size   string `mapstructure:"size"`
}

// DumpConfig controls the dump tool output.
type DumpConfig struct {
	MaxEvents int  `mapstructure:"max_events"`
	Color     bool `mapstructure:"color"`
	Records   int  `mapstructure:"records"`
}

// ServerConfig contains HTTP API settings. The API listens on the health
// port.
type ServerConfig struct {
	ReadTimeoutSeconds  int `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int `mapstructure:"write_timeout_seconds"`
	MaxRecords          int `mapstructure:"max_records"`
}

// ReadTimeout returns the read timeout as a duration.
func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the write timeout as a duration.
func (c ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

// ObservabilityConfig contains observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	Output    string `mapstructure:"output"`
	AddSource bool   `mapstructure:"add_source"`
}

// MetricsConfig contains metrics settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// HealthConfig contains health check settings
type HealthConfig struct {
	Port          int    `mapstructure:"port"`
	LivenessPath  string `mapstructure:"liveness_path"`
	ReadinessPath string `mapstructure:"readiness_path"`
}

// ShutdownConfig contains shutdown settings
type ShutdownConfig struct {
	GracePeriodSeconds int `mapstructure:"grace_period_seconds"`
}

// GracePeriod returns the shutdown grace period as a duration.
func (c ShutdownConfig) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodSeconds) * time.Second
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.Application.Name == "" {
		return fmt.Errorf("application name is required")
	}
	for i, coll := range c.Collections {
		if err := coll.Validate(); err != nil {
			return fmt.Errorf("collections[%d]: %w", i, err)
		}
	}
	return nil
}

// Validate validates the input configuration.
func (c *InputConfig) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("input uri is required")
	}
	switch c.Format {
	case "", "parquet", "avro":
	default:
		return fmt.Errorf("unsupported input format: %s", c.Format)
	}
	if c.MaxEntryBytes < 0 {
		return fmt.Errorf("input max_entry_bytes must not be negative")
	}
	return nil
}

// Validate validates a collection declaration.
func (c *CollectionConfig) Validate() error {
	if c.Prefix == "" {
		return fmt.Errorf("collection prefix is required")
	}
	if c.Size == "" {
		return fmt.Errorf("collection %s: size attribute is required", c.Prefix)
	}
	return nil
}

// Validate validates generator settings.
func (c *GeneratorConfig) Validate() error {
	if c.Events <= 0 {
		return fmt.Errorf("generator events must be positive")
	}
	if c.MaxRecHits < 0 || c.MaxClusters < 0 || c.MaxTracksters < 0 {
		return fmt.Errorf("generator multiplicities must not be negative")
	}
	return nil
}

// Validate validates S3 configuration.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}
	if c.Region == "" {
		return fmt.Errorf("s3 region is required")
	}
	return nil
}

// Validate validates Azure configuration.
func (c *AzureConfig) Validate() error {
	if c.AccountName == "" {
		return fmt.Errorf("azure account name is required")
	}
	if c.Container == "" {
		return fmt.Errorf("azure container is required")
	}
	return nil
}

// Validate validates GCS configuration.
func (c *GCSConfig) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("gcs bucket is required")
	}
	return nil
}

// Validate validates file configuration.
func (c *FileConfig) Validate() error {
	if c.BasePath == "" {
		return fmt.Errorf("file base path is required")
	}
	return nil
}
