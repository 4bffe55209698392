// Package encoder implements file format encoders.
package encoder

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jittakal/ntuplestore/pkg/encoder"
	"github.com/jittakal/ntuplestore/pkg/fieldstore"
	"github.com/linkedin/goavro/v2"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*AvroEncoder)(nil)

// AvroEncoder implements encoder.Encoder for Apache Avro binary format.
// It supports optional gzip compression of the whole Object Container File.
// Sequence fields are written as arrays.
type AvroEncoder struct {
	compression string
}

// NewAvroEncoder creates a new Avro encoder with specified compression.
func NewAvroEncoder(compression string) *AvroEncoder {
	return &AvroEncoder{
		compression: compression,
	}
}

var avroTypes = map[fieldstore.Kind]string{
	fieldstore.KindInt32:   "int",
	fieldstore.KindInt64:   "long",
	fieldstore.KindFloat32: "float",
	fieldstore.KindFloat64: "double",
	fieldstore.KindBool:    "boolean",
	fieldstore.KindString:  "string",
}

// avroSchema returns the Avro record schema for layout.
func avroSchema(layout fieldstore.Layout) (string, error) {
	fields := make([]map[string]any, len(layout))
	for i, spec := range layout {
		var typ any = avroTypes[spec.Kind]
		if spec.Sequence {
			typ = map[string]any{"type": "array", "items": typ}
		}
		fields[i] = map[string]any{"name": spec.Name, "type": typ}
	}

	schema, err := json.Marshal(map[string]any{
		"type":      "record",
		"name":      "Entry",
		"namespace": "ntuple",
		"fields":    fields,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal avro schema: %w", err)
	}
	return string(schema), nil
}

func (e *AvroEncoder) newCodec(layout fieldstore.Layout) (*goavro.Codec, error) {
	schema, err := avroSchema(layout)
	if err != nil {
		return nil, err
	}
	codec, err := goavro.NewCodec(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to create avro codec: %w", err)
	}
	return codec, nil
}

func (e *AvroEncoder) gzipped() bool {
	return e.compression == "gzip" || e.compression == "GZIP"
}

// Encode writes entries to an Avro file.
func (e *AvroEncoder) Encode(filePath string, layout fieldstore.Layout, entries []fieldstore.Entry) (*fieldstore.FileStats, error) {
	if err := checkInput(layout, entries); err != nil {
		return nil, err
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := e.write(file, layout, entries); err != nil {
		return nil, err
	}

	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return &fieldstore.FileStats{
		EntryCount: len(entries),
		SizeBytes:  fileInfo.Size(),
		WrittenAt:  time.Now(),
	}, nil
}

// EncodeToBytes encodes entries to bytes (useful for testing).
func (e *AvroEncoder) EncodeToBytes(layout fieldstore.Layout, entries []fieldstore.Entry) ([]byte, error) {
	if err := checkInput(layout, entries); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := e.write(&buf, layout, entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *AvroEncoder) write(w io.Writer, layout fieldstore.Layout, entries []fieldstore.Entry) error {
	codec, err := e.newCodec(layout)
	if err != nil {
		return err
	}

	var gzipWriter *gzip.Writer
	if e.gzipped() {
		gzipWriter = gzip.NewWriter(w)
		w = gzipWriter
	}

	// Create OCF writer (Object Container File)
	ocfWriter, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:     w,
		Codec: codec,
	})
	if err != nil {
		return fmt.Errorf("failed to create OCF writer: %w", err)
	}

	for i, entry := range entries {
		avroMap, err := e.convertToAvroMap(layout, entry)
		if err != nil {
			return fmt.Errorf("failed to convert entry %d: %w", i, err)
		}

		if err := ocfWriter.Append([]any{avroMap}); err != nil {
			return fmt.Errorf("failed to write entry %d: %w", i, err)
		}
	}

	if gzipWriter != nil {
		if err := gzipWriter.Close(); err != nil {
			return fmt.Errorf("failed to close gzip writer: %w", err)
		}
	}
	return nil
}

// convertToAvroMap converts an entry to its Avro map representation.
func (e *AvroEncoder) convertToAvroMap(layout fieldstore.Layout, entry fieldstore.Entry) (map[string]any, error) {
	avroMap := make(map[string]any, len(layout))
	for _, spec := range layout {
		raw, ok := entry[spec.Name]
		if !ok {
			return nil, fmt.Errorf("missing field %s", spec.Name)
		}
		v, err := convertField(spec, raw)
		if err != nil {
			return nil, err
		}
		avroMap[spec.Name] = v
	}
	return avroMap, nil
}

// Format returns the file format.
func (e *AvroEncoder) Format() fieldstore.Format {
	return fieldstore.FormatAvro
}

// FileExtension returns the file extension.
func (e *AvroEncoder) FileExtension() string {
	if e.gzipped() {
		return ".avro.gz"
	}
	return ".avro"
}
