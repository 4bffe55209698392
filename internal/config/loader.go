package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jittakal/ntuplestore/internal/config/dto"
	"github.com/spf13/viper"
)

// Loader handles configuration loading and validation
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Load loads configuration from file and environment variables
func (l *Loader) Load(path string) (*dto.ApplicationConfig, error) {
	l.setDefaults()

	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Expand ${VAR} references in string values.
	for _, key := range l.v.AllKeys() {
		value := l.v.GetString(key)
		if strings.Contains(value, "${") {
			l.v.Set(key, os.ExpandEnv(value))
		}
	}

	var config dto.ApplicationConfig
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func (l *Loader) setDefaults() {
	l.v.SetDefault("application.name", "ntuplestore")
	l.v.SetDefault("application.version", "1.0.0")
	l.v.SetDefault("application.environment", "development")

	// Input defaults
	l.v.SetDefault("input.uri", "")
	l.v.SetDefault("input.format", "")
	l.v.SetDefault("input.cache_dir", "")
	l.v.SetDefault("input.max_entry_bytes", 0)
	l.v.SetDefault("input.fetch_attempts", 3)

	// Storage defaults
	l.v.SetDefault("storage.backend", "file")
	l.v.SetDefault("storage.format", "parquet")
	l.v.SetDefault("storage.compression", "")
	l.v.SetDefault("storage.file.base_path", "ntuples")
	l.v.SetDefault("storage.s3.use_path_style", false)
	l.v.SetDefault("storage.s3.sse_enabled", true)

	// File rotation defaults
	l.v.SetDefault("file_rotation.max_file_size_mb", 128)
	l.v.SetDefault("file_rotation.max_entries_per_file", 10000)

	// Generator defaults
	l.v.SetDefault("generator.dataset", "synthetic")
	l.v.SetDefault("generator.seed", 1)
	l.v.SetDefault("generator.run", 1)
	l.v.SetDefault("generator.events", 100)
	l.v.SetDefault("generator.max_rechits", 50)
	l.v.SetDefault("generator.max_clusters", 10)
	l.v.SetDefault("generator.max_tracksters", 4)
	l.v.SetDefault("generator.raw_rechits", false)

	l.v.SetDefault("collections", []map[string]any{
		{"prefix": "rechit", "size": "pt"},
		{"prefix": "layerCluster", "size": "pt"},
		{"prefix": "simcluster", "size": "pt"},
		{"prefix": "trackster", "size": "Id"},
	})

	// Dump defaults
	l.v.SetDefault("dump.max_events", 10)
	l.v.SetDefault("dump.color", true)
	l.v.SetDefault("dump.records", 0)

	// Server defaults
	l.v.SetDefault("server.read_timeout_seconds", 15)
	l.v.SetDefault("server.write_timeout_seconds", 30)
	l.v.SetDefault("server.max_records", 10000)

	// Observability defaults
	l.v.SetDefault("observability.logging.level", "info")
	l.v.SetDefault("observability.logging.format", "json")
	l.v.SetDefault("observability.logging.output", "stderr")
	l.v.SetDefault("observability.metrics.enabled", true)
	l.v.SetDefault("observability.metrics.port", 9090)
	l.v.SetDefault("observability.metrics.path", "/metrics")
	l.v.SetDefault("observability.health.port", 8080)
	l.v.SetDefault("observability.health.liveness_path", "/health/live")
	l.v.SetDefault("observability.health.readiness_path", "/health/ready")

	// Shutdown defaults
	l.v.SetDefault("shutdown.grace_period_seconds", 30)
}

// Validate validates the settings shared by every tool.
func (l *Loader) Validate(config *dto.ApplicationConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}

	switch config.Storage.Format {
	case "parquet", "avro":
	default:
		return fmt.Errorf("unsupported storage format: %s", config.Storage.Format)
	}

	switch config.Observability.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unsupported logging format: %s", config.Observability.Logging.Format)
	}

	if config.Observability.Metrics.Port < 1 || config.Observability.Metrics.Port > 65535 {
		return fmt.Errorf("invalid metrics port: %d", config.Observability.Metrics.Port)
	}
	if config.Observability.Health.Port < 1 || config.Observability.Health.Port > 65535 {
		return fmt.Errorf("invalid health port: %d", config.Observability.Health.Port)
	}
	if config.Observability.Metrics.Enabled && config.Observability.Metrics.Port == config.Observability.Health.Port {
		return fmt.Errorf("metrics and health ports must differ: %d", config.Observability.Metrics.Port)
	}

	return nil
}

// ValidateInput validates the settings needed to read an ntuple.
func (l *Loader) ValidateInput(config *dto.ApplicationConfig) error {
	return config.Input.Validate()
}

// ValidateOutput validates the settings needed to generate and store
// ntuples.
func (l *Loader) ValidateOutput(config *dto.ApplicationConfig) error {
	if err := config.Generator.Validate(); err != nil {
		return err
	}

	switch config.Storage.Backend {
	case "s3":
		return config.Storage.S3.Validate()
	case "azure":
		return config.Storage.Azure.Validate()
	case "gcs":
		return config.Storage.GCS.Validate()
	case "file":
		return config.Storage.File.Validate()
	default:
		return fmt.Errorf("unsupported storage backend: %s", config.Storage.Backend)
	}
}
