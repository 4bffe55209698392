// Package encoder implements file format encoders.
package encoder

import (
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/jittakal/ntuplestore/pkg/encoder"
	"github.com/jittakal/ntuplestore/pkg/fieldstore"
	"github.com/parquet-go/parquet-go"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*ParquetEncoder)(nil)

// ParquetEncoder implements encoder.Encoder for Apache Parquet columnar format.
// Each layout field becomes a top-level column; sequence fields are repeated
// leaves. Supports multiple compression codecs: SNAPPY (default), GZIP, LZ4, ZSTD.
type ParquetEncoder struct {
	compressionName string
}

// NewParquetEncoder creates a new Parquet encoder with specified compression.
func NewParquetEncoder(compression string) *ParquetEncoder {
	return &ParquetEncoder{
		compressionName: compression,
	}
}

// compressionCodec converts string compression name to parquet WriterOption.
func compressionCodec(compression string) parquet.WriterOption {
	switch compression {
	case "snappy", "SNAPPY":
		return parquet.Compression(&parquet.Snappy)
	case "gzip", "GZIP":
		return parquet.Compression(&parquet.Gzip)
	case "lz4", "LZ4":
		return parquet.Compression(&parquet.Lz4Raw)
	case "zstd", "ZSTD":
		return parquet.Compression(&parquet.Zstd)
	case "uncompressed", "UNCOMPRESSED", "none", "NONE":
		return parquet.Compression(&parquet.Uncompressed)
	default:
		return parquet.Compression(&parquet.Snappy) // Default to Snappy
	}
}

var parquetGoTypes = map[fieldstore.Kind]reflect.Type{
	fieldstore.KindInt32:   reflect.TypeFor[int32](),
	fieldstore.KindInt64:   reflect.TypeFor[int64](),
	fieldstore.KindFloat32: reflect.TypeFor[float32](),
	fieldstore.KindFloat64: reflect.TypeFor[float64](),
	fieldstore.KindBool:    reflect.TypeFor[bool](),
	fieldstore.KindString:  reflect.TypeFor[string](),
}

// rowType builds the Go struct type parquet-go derives the schema from.
func rowType(layout fieldstore.Layout) reflect.Type {
	fields := make([]reflect.StructField, len(layout))
	for i, spec := range layout {
		typ := parquetGoTypes[spec.Kind]
		if spec.Sequence {
			typ = reflect.SliceOf(typ)
		}
		fields[i] = reflect.StructField{
			Name: fmt.Sprintf("F%d", i),
			Type: typ,
			Tag:  reflect.StructTag(fmt.Sprintf(`parquet:"%s"`, spec.Name)),
		}
	}
	return reflect.StructOf(fields)
}

// Encode writes entries to a Parquet file.
func (e *ParquetEncoder) Encode(filePath string, layout fieldstore.Layout, entries []fieldstore.Entry) (*fieldstore.FileStats, error) {
	if err := checkInput(layout, entries); err != nil {
		return nil, err
	}

	typ := rowType(layout)
	rows := make([]any, len(entries))
	for i, entry := range entries {
		row, err := e.convertToRow(typ, layout, entry)
		if err != nil {
			return nil, fmt.Errorf("failed to convert entry %d: %w", i, err)
		}
		rows[i] = row
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	schema := parquet.SchemaOf(reflect.New(typ).Interface())
	writer := parquet.NewWriter(
		file,
		schema,
		compressionCodec(e.compressionName),
		parquet.CreatedBy("ntuplestore", "1.0", "0"),
	)

	for i, row := range rows {
		if err := writer.Write(row); err != nil {
			writer.Close()
			file.Close()
			return nil, fmt.Errorf("failed to write entry %d: %w", i, err)
		}
	}

	if err := writer.Close(); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to close writer: %w", err)
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

// convertToRow fills a struct of the generated row type from entry.
func (e *ParquetEncoder) convertToRow(typ reflect.Type, layout fieldstore.Layout, entry fieldstore.Entry) (any, error) {
	row := reflect.New(typ).Elem()
	for i, spec := range layout {
		raw, ok := entry[spec.Name]
		if !ok {
			return nil, fmt.Errorf("missing field %s", spec.Name)
		}
		v, err := convertField(spec, raw)
		if err != nil {
			return nil, err
		}

		dst := row.Field(i)
		if !spec.Sequence {
			dst.Set(reflect.ValueOf(v))
			continue
		}
		elems := v.([]any)
		seq := reflect.MakeSlice(dst.Type(), len(elems), len(elems))
		for j, elem := range elems {
			seq.Index(j).Set(reflect.ValueOf(elem))
		}
		dst.Set(seq)
	}
	return row.Interface(), nil
}

// Format returns the file format.
func (e *ParquetEncoder) Format() fieldstore.Format {
	return fieldstore.FormatParquet
}

// FileExtension returns the file extension.
func (e *ParquetEncoder) FileExtension() string {
	return ".parquet"
}
