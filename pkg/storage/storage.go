// Package storage defines interfaces for moving ntuple files between local
// disk and object storage.
//
// Fetchers download an ntuple to a local file so it can be opened by the
// columnar decoders. Writers encode generated entries and place the result
// on the filesystem, S3, Google Cloud Storage or Azure Blob Storage.
package storage

import (
	"context"
	"os"

	"github.com/jittakal/ntuplestore/pkg/fieldstore"
)

// Writer writes ntuple entries to storage.
type Writer interface {
	// Write encodes entries with the given layout and stores the file under
	// path, which is a directory location as returned by a Router.
	Write(ctx context.Context, layout fieldstore.Layout, entries []fieldstore.Entry, path string) (*fieldstore.FileStats, error)

	// Close closes the writer and releases resources.
	Close() error
}

// Fetcher downloads a stored ntuple into a local file.
type Fetcher interface {
	// Fetch copies the object at loc into dst and returns the bytes written.
	Fetch(ctx context.Context, loc Location, dst *os.File) (int64, error)

	// Close closes the fetcher and releases resources.
	Close() error
}

// Router determines output locations for generated ntuples.
type Router interface {
	// Route returns the directory location for a dataset and run number.
	Route(dataset string, run int64) string
}

// RotationPolicy determines when a batch of generated entries is flushed
// into its own file.
type RotationPolicy interface {
	// ShouldRotate returns true if the pending batch should be written.
	ShouldRotate(stats fieldstore.FileStats) bool
}
