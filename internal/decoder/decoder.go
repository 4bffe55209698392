// Package decoder implements FieldStore backends for on-disk ntuple formats.
package decoder

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/jittakal/ntuplestore/internal/errors"
	"github.com/jittakal/ntuplestore/pkg/fieldstore"
)

var (
	parquetMagic = []byte("PAR1")
	avroMagic    = []byte("Obj\x01")
	gzipMagic    = []byte{0x1f, 0x8b}
)

// Option configures a backend.
type Option func(*options)

type options struct {
	maxEntryBytes int64
}

// WithMaxEntryBytes limits the decoded size of a single entry. Zero means
// no limit.
func WithMaxEntryBytes(n int64) Option {
	return func(o *options) {
		o.maxEntryBytes = n
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Open opens path with the backend for format. An empty format is detected
// with DetectFormat.
func Open(path string, format fieldstore.Format, opts ...Option) (fieldstore.FieldStore, error) {
	if format == "" {
		detected, err := DetectFormat(path)
		if err != nil {
			return nil, err
		}
		format = detected
	}

	switch format {
	case fieldstore.FormatParquet:
		return OpenParquet(path, opts...)
	case fieldstore.FormatAvro:
		return OpenAvro(path, opts...)
	default:
		return nil, fmt.Errorf("%w: %s", errors.ErrUnsupportedFormat, format)
	}
}

// DetectFormat determines the format of path from its extension, falling
// back to the leading magic bytes. Gzip content is assumed to be Avro.
func DetectFormat(path string) (fieldstore.Format, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".parquet"):
		return fieldstore.FormatParquet, nil
	case strings.HasSuffix(lower, ".avro"), strings.HasSuffix(lower, ".avro.gz"):
		return fieldstore.FormatAvro, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	head, err := bufio.NewReader(f).Peek(4)
	if err != nil && len(head) < 2 {
		return "", fmt.Errorf("%w: %s is too short", errors.ErrUnsupportedFormat, path)
	}

	switch {
	case bytes.HasPrefix(head, parquetMagic):
		return fieldstore.FormatParquet, nil
	case bytes.HasPrefix(head, avroMagic), bytes.HasPrefix(head, gzipMagic):
		return fieldstore.FormatAvro, nil
	}
	return "", fmt.Errorf("%w: unrecognized content in %s", errors.ErrUnsupportedFormat, path)
}
