package storage

import (
	"fmt"
	"strings"

	"github.com/jittakal/ntuplestore/pkg/fieldstore"
	"github.com/jittakal/ntuplestore/pkg/storage"
)

// Ensure implementations satisfy interfaces.
var (
	_ storage.Router         = (*DefaultRouter)(nil)
	_ storage.RotationPolicy = (*CompositePolicy)(nil)
)

// DefaultRouter implements Hive-style partitioning of generated ntuples.
type DefaultRouter struct {
	protocol string
	bucket   string
	basePath string
}

// NewRouter creates a new storage router.
func NewRouter(protocol, bucket, basePath string) *DefaultRouter {
	return &DefaultRouter{
		protocol: protocol,
		bucket:   bucket,
		basePath: strings.Trim(basePath, "/"),
	}
}

// Route returns the directory for a dataset and run.
// Format: protocol://bucket/basePath/dataset/run=R/
// Empty segments are omitted; the file protocol has no bucket.
func (r *DefaultRouter) Route(dataset string, run int64) string {
	segments := make([]string, 0, 4)
	if r.protocol != storage.SchemeFile && r.bucket != "" {
		segments = append(segments, r.bucket)
	}
	for _, s := range []string{r.basePath, strings.Trim(dataset, "/")} {
		if s != "" {
			segments = append(segments, s)
		}
	}
	segments = append(segments, fmt.Sprintf("run=%d", run))

	return fmt.Sprintf("%s://%s/", r.protocol, strings.Join(segments, "/"))
}

// NewPolicy creates a new rotation policy (alias for NewCompositePolicy).
func NewPolicy(config PolicyConfig) *CompositePolicy {
	return NewCompositePolicy(config)
}

// PolicyConfig configures rotation behavior. Zero disables a limit.
type PolicyConfig struct {
	MaxFileSizeMB     int64
	MaxEntriesPerFile int
}

// CompositePolicy rotates when any configured limit is reached.
type CompositePolicy struct {
	maxSizeBytes int64
	maxEntries   int
}

// NewCompositePolicy creates a new composite rotation policy.
func NewCompositePolicy(config PolicyConfig) *CompositePolicy {
	return &CompositePolicy{
		maxSizeBytes: config.MaxFileSizeMB * 1024 * 1024,
		maxEntries:   config.MaxEntriesPerFile,
	}
}

// ShouldRotate returns true if any rotation condition is met.
func (p *CompositePolicy) ShouldRotate(stats fieldstore.FileStats) bool {
	if p.maxSizeBytes > 0 && stats.SizeBytes >= p.maxSizeBytes {
		return true
	}
	if p.maxEntries > 0 && stats.EntryCount >= p.maxEntries {
		return true
	}
	return false
}
