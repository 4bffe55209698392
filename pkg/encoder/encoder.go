// Package encoder defines interfaces for encoding ntuple entries to various file formats.
package encoder

import "github.com/jittakal/ntuplestore/pkg/fieldstore"

// Encoder encodes ntuple entries to a specific file format.
type Encoder interface {
	// Encode writes entries with the given column layout to a file and
	// returns file statistics.
	Encode(filePath string, layout fieldstore.Layout, entries []fieldstore.Entry) (*fieldstore.FileStats, error)

	// Format returns the file format this encoder produces.
	Format() fieldstore.Format

	// FileExtension returns the file extension (e.g., ".parquet", ".avro").
	FileExtension() string
}
