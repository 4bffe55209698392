// Package encoder implements encoder factory for creating file format encoders.
package encoder

import (
	"fmt"

	"github.com/jittakal/ntuplestore/internal/errors"
	"github.com/jittakal/ntuplestore/pkg/encoder"
	"github.com/jittakal/ntuplestore/pkg/fieldstore"
)

// Factory creates encoders based on format and configuration.
type Factory struct {
	format      fieldstore.Format
	compression string
}

// NewFactory creates a new encoder factory.
func NewFactory(format fieldstore.Format, compression string) *Factory {
	return &Factory{
		format:      format,
		compression: compression,
	}
}

// CreateEncoder creates an encoder based on the configured format.
func (f *Factory) CreateEncoder() (encoder.Encoder, error) {
	switch f.format {
	case fieldstore.FormatParquet:
		return NewParquetEncoder(f.compression), nil
	case fieldstore.FormatAvro:
		return NewAvroEncoder(f.compression), nil
	default:
		return nil, fmt.Errorf("%w: %s", errors.ErrUnsupportedFormat, f.format)
	}
}

// SupportedFormats returns a list of supported file formats.
func SupportedFormats() []fieldstore.Format {
	return []fieldstore.Format{
		fieldstore.FormatParquet,
		fieldstore.FormatAvro,
	}
}

// SupportedCompressions returns supported compression codecs for a given format.
func SupportedCompressions(format fieldstore.Format) []string {
	switch format {
	case fieldstore.FormatParquet:
		return []string{"uncompressed", "snappy", "gzip", "lz4", "zstd"}
	case fieldstore.FormatAvro:
		return []string{"uncompressed", "gzip"}
	default:
		return []string{}
	}
}

// DefaultCompression returns the default compression for a format.
func DefaultCompression(format fieldstore.Format) string {
	switch format {
	case fieldstore.FormatParquet:
		return "snappy"
	case fieldstore.FormatAvro:
		return "gzip"
	default:
		return "uncompressed"
	}
}
