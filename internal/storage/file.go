// Package storage implements ntuple fetchers and writers for the local
// filesystem and cloud object stores.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jittakal/ntuplestore/internal/encoder"
	"github.com/jittakal/ntuplestore/internal/errors"
	pkgencoder "github.com/jittakal/ntuplestore/pkg/encoder"
	"github.com/jittakal/ntuplestore/pkg/fieldstore"
	"github.com/jittakal/ntuplestore/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var (
	_ storage.Writer  = (*FileWriter)(nil)
	_ storage.Fetcher = (*FileFetcher)(nil)
)

// MetricsCollector defines metrics operations for storage.
type MetricsCollector interface {
	IncFilesFetched(backend, status string)
	ObserveFetchDuration(backend string, duration time.Duration)
	IncFilesWritten(backend, format, status string)
	ObserveFileWriteDuration(backend, format string, duration time.Duration)
	ObserveFileSize(format string, size int64)
	IncStorageErrors(backend string, operation string)
}

// FileConfig contains local filesystem configuration.
type FileConfig struct {
	BasePath string
}

// FileWriter implements storage.Writer for local filesystem storage.
// Files are named ntuple_YYYYMMDD_HHMMSS_NNN.{ext} below the routed
// directory.
type FileWriter struct {
	basePath       string
	format         fieldstore.Format
	encoderFactory *encoder.Factory
	logger         *slog.Logger
	metrics        MetricsCollector
	mu             sync.Mutex
	names          fileNamer
	closed         bool
}

// NewFileWriter creates a new filesystem storage writer.
func NewFileWriter(
	config FileConfig,
	format fieldstore.Format,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*FileWriter, error) {
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	encoderFactory := encoder.NewFactory(format, compression)
	if _, err := encoderFactory.CreateEncoder(); err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	logger.Info("filesystem writer created",
		"base_path", config.BasePath,
		"format", format,
		"compression", compression,
	)

	return &FileWriter{
		basePath:       config.BasePath,
		format:         format,
		encoderFactory: encoderFactory,
		logger:         logger,
		metrics:        metrics,
	}, nil
}

// Write encodes entries into a new file below path.
func (w *FileWriter) Write(
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
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	startTime := time.Now()

	fileEncoder, err := w.encoderFactory.CreateEncoder()
	if err != nil {
		w.storageError("encoder_create")
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	cleanPath := strings.TrimPrefix(path, "file://")
	dir := filepath.Join(w.basePath, cleanPath)
	fullPath := filepath.Join(dir, w.names.next(startTime, fileEncoder.FileExtension()))

	if err := os.MkdirAll(dir, 0755); err != nil {
		w.storageError("mkdir")
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	stats, err := fileEncoder.Encode(fullPath, layout, entries)
	if err != nil {
		w.storageError("encode")
		return nil, fmt.Errorf("failed to encode entries: %w", err)
	}

	duration := time.Since(startTime)

	w.logger.Info("wrote ntuple file",
		"path", fullPath,
		"entry_count", stats.EntryCount,
		"file_size", stats.SizeBytes,
		"format", w.format,
		"total_duration_ms", duration.Milliseconds(),
	)

	if w.metrics != nil {
		w.metrics.IncFilesWritten("file", string(w.format), "success")
		w.metrics.ObserveFileSize(string(w.format), stats.SizeBytes)
		w.metrics.ObserveFileWriteDuration("file", string(w.format), duration)
	}

	return stats, nil
}

func (w *FileWriter) storageError(operation string) {
	if w.metrics != nil {
		w.metrics.IncStorageErrors("file", operation)
		w.metrics.IncFilesWritten("file", string(w.format), "error")
	}
}

// Close closes the writer.
func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true
	w.logger.Info("closing filesystem writer")
	return nil
}

// FileFetcher copies ntuples that already live on the local filesystem.
// The Resolver opens local locations in place; FileFetcher serves callers
// that always want a private copy.
type FileFetcher struct{}

// NewFileFetcher creates a filesystem fetcher.
func NewFileFetcher() *FileFetcher {
	return &FileFetcher{}
}

// Fetch copies the file at loc.Key into dst.
func (f *FileFetcher) Fetch(ctx context.Context, loc storage.Location, dst *os.File) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	src, err := os.Open(loc.Key)
	if err != nil {
		return 0, err
	}
	defer src.Close()
	return io.Copy(dst, src)
}

// Close is a no-op.
func (f *FileFetcher) Close() error {
	return nil
}

// fileNamer generates timestamped file names with a per-second sequence.
type fileNamer struct {
	sequence      int
	lastTimestamp string
}

func (n *fileNamer) next(now time.Time, ext string) string {
	timestamp := now.Format("20060102_150405")
	if timestamp == n.lastTimestamp {
		n.sequence++
	} else {
		n.sequence = 1
		n.lastTimestamp = timestamp
	}
	return fmt.Sprintf("ntuple_%s_%03d%s", timestamp, n.sequence, ext)
}

// objectKey joins the key part of a routed location with a file name.
func objectKey(path, scheme, filename string) string {
	key := path
	if strings.HasPrefix(path, scheme+"://") {
		if loc, err := storage.ParseLocation(path); err == nil {
			key = loc.Key
		}
	}
	key = strings.Trim(key, "/")
	if key == "" {
		return filename
	}
	return key + "/" + filename
}

// encodeTemp encodes entries into a temporary file for upload. The caller
// removes the returned path.
func encodeTemp(
	enc pkgencoder.Encoder,
	layout fieldstore.Layout,
	entries []fieldstore.Entry,
	prefix string,
) (string, *fieldstore.FileStats, error) {
	tmp, err := os.CreateTemp("", prefix+"-*"+enc.FileExtension())
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	stats, err := enc.Encode(tmpPath, layout, entries)
	if err != nil {
		os.Remove(tmpPath)
		return "", nil, err
	}
	return tmpPath, stats, nil
}
