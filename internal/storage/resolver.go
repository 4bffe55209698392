package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jittakal/ntuplestore/internal/errors"
	"github.com/jittakal/ntuplestore/pkg/storage"
)

const defaultFetchAttempts = 3

// Resolver turns ntuple URIs into local paths, downloading remote objects
// into a cache directory with the registered Fetcher for their scheme.
type Resolver struct {
	cacheDir string
	attempts int
	fetchers map[string]storage.Fetcher
	logger   *slog.Logger
	metrics  MetricsCollector
}

// NewResolver creates a resolver that downloads into cacheDir. An empty
// cacheDir uses the system temp directory.
func NewResolver(cacheDir string, attempts int, logger *slog.Logger, metrics MetricsCollector) *Resolver {
	if attempts <= 0 {
		attempts = defaultFetchAttempts
	}
	return &Resolver{
		cacheDir: cacheDir,
		attempts: attempts,
		fetchers: make(map[string]storage.Fetcher),
		logger:   logger,
		metrics:  metrics,
	}
}

// Register installs the fetcher used for scheme.
func (r *Resolver) Register(scheme string, f storage.Fetcher) {
	r.fetchers[scheme] = f
}

// Resolve returns a local path for uri and a cleanup function that removes
// any downloaded copy. Local paths are returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, uri string) (string, func() error, error) {
	loc, err := storage.ParseLocation(uri)
	if err != nil {
		return "", nil, err
	}
	if loc.IsLocal() {
		return loc.Key, func() error { return nil }, nil
	}

	fetcher, ok := r.fetchers[loc.Scheme]
	if !ok {
		return "", nil, fmt.Errorf("%w: no fetcher registered for %s", errors.ErrUnsupportedScheme, loc.Scheme)
	}

	if r.cacheDir != "" {
		if err := os.MkdirAll(r.cacheDir, 0755); err != nil {
			return "", nil, fmt.Errorf("failed to create cache dir: %w", err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		path, err := r.fetchOnce(ctx, fetcher, loc)
		if err == nil {
			return path, func() error { return os.Remove(path) }, nil
		}
		lastErr = err
		if !errors.IsRetryable(err) || ctx.Err() != nil {
			break
		}
		r.logger.Warn("ntuple download failed, retrying",
			"location", loc.String(),
			"attempt", attempt,
			"error", err,
		)
	}
	return "", nil, lastErr
}

func (r *Resolver) fetchOnce(ctx context.Context, fetcher storage.Fetcher, loc storage.Location) (string, error) {
	startTime := time.Now()

	// Keep the object's base name so format detection by extension works.
	dst, err := os.CreateTemp(r.cacheDir, "ntuple-*-"+loc.Base())
	if err != nil {
		return "", fmt.Errorf("failed to create cache file: %w", err)
	}

	n, err := fetcher.Fetch(ctx, loc, dst)
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dst.Name())
		if r.metrics != nil {
			r.metrics.IncFilesFetched(loc.Scheme, "error")
			r.metrics.IncStorageErrors(loc.Scheme, "download")
		}
		return "", &errors.StorageError{Operation: "download", Location: loc.String(), Err: err}
	}

	duration := time.Since(startTime)
	if r.metrics != nil {
		r.metrics.IncFilesFetched(loc.Scheme, "success")
		r.metrics.ObserveFetchDuration(loc.Scheme, duration)
	}
	r.logger.Info("downloaded ntuple",
		"location", loc.String(),
		"path", dst.Name(),
		"bytes", n,
		"duration_ms", duration.Milliseconds(),
	)
	return dst.Name(), nil
}

// Close closes all registered fetchers.
func (r *Resolver) Close() error {
	var firstErr error
	for scheme, f := range r.fetchers {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s fetcher: %w", scheme, err)
		}
	}
	return firstErr
}
