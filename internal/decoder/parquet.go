package decoder

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/jittakal/ntuplestore/internal/buffer"
	"github.com/jittakal/ntuplestore/pkg/fieldstore"
	"github.com/parquet-go/parquet-go"
)

// Ensure implementation satisfies interface at compile time.
var _ fieldstore.FieldStore = (*ParquetStore)(nil)

type parquetColumn struct {
	name     string
	kind     parquet.Kind
	repeated bool
	// minimum definition level of a present list element
	elemDef int
	maxDef  int
}

// ParquetStore reads an ntuple from an Apache Parquet file one row at a time.
//
// Leaf column paths are joined with "_" to form field names; the list and
// element levels of LIST-annotated columns are dropped. Repeated leaves are
// sequences.
type ParquetStore struct {
	file    *os.File
	reader  *parquet.Reader
	columns []parquetColumn
	byName  map[string]int
	fields  []string
	entries int
	next    int
	rows    []parquet.Row
	buf     *buffer.EntryBuffer
}

// OpenParquet opens the Parquet file at path.
func OpenParquet(path string, opts ...Option) (*ParquetStore, error) {
	o := buildOptions(opts)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to read parquet footer: %w", err)
	}

	reader := parquet.NewReader(pf)
	columns, err := parquetColumns(reader.Schema())
	if err != nil {
		reader.Close()
		file.Close()
		return nil, err
	}

	s := &ParquetStore{
		file:    file,
		reader:  reader,
		columns: columns,
		byName:  make(map[string]int, len(columns)),
		fields:  make([]string, len(columns)),
		entries: int(reader.NumRows()),
		rows:    make([]parquet.Row, 1),
		buf:     buffer.New(len(columns), o.maxEntryBytes),
	}
	for i, c := range columns {
		s.byName[c.name] = i
		s.fields[i] = c.name
	}
	return s, nil
}

func parquetColumns(schema *parquet.Schema) ([]parquetColumn, error) {
	paths := schema.Columns()
	columns := make([]parquetColumn, len(paths))
	seen := make(map[string]bool, len(paths))

	for _, path := range paths {
		leaf, ok := schema.Lookup(path...)
		if !ok {
			return nil, fmt.Errorf("column %s not found in schema", strings.Join(path, "."))
		}
		name := fieldNameFromPath(path)
		if seen[name] {
			return nil, fmt.Errorf("columns map to duplicate field name %q", name)
		}
		seen[name] = true

		elemDef := leaf.MaxDefinitionLevel
		if leaf.Node.Optional() {
			elemDef--
		}
		columns[leaf.ColumnIndex] = parquetColumn{
			name:     name,
			kind:     leaf.Node.Type().Kind(),
			repeated: leaf.MaxRepetitionLevel > 0,
			elemDef:  elemDef,
			maxDef:   leaf.MaxDefinitionLevel,
		}
	}
	return columns, nil
}

// fieldNameFromPath maps a leaf column path to a flat field name.
func fieldNameFromPath(path []string) string {
	parts := slices.DeleteFunc(slices.Clone(path), func(p string) bool {
		return p == "list" || p == "element"
	})
	return strings.Join(parts, "_")
}

// EntryCount returns the number of rows.
func (s *ParquetStore) EntryCount() int {
	return s.entries
}

// Fields returns field names in column order.
func (s *ParquetStore) Fields() []string {
	return slices.Clone(s.fields)
}

// LoadEntry decodes row index into the entry buffer.
func (s *ParquetStore) LoadEntry(index int) error {
	if index < 0 || index >= s.entries {
		s.buf.Invalidate()
		return fmt.Errorf("row %d out of range [0, %d)", index, s.entries)
	}

	if index != s.next {
		if err := s.reader.SeekToRow(int64(index)); err != nil {
			s.fail()
			return fmt.Errorf("failed to seek to row %d: %w", index, err)
		}
	}

	s.rows[0] = s.rows[0][:0]
	n, err := s.reader.ReadRows(s.rows)
	if n == 0 {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		s.fail()
		return fmt.Errorf("failed to read row %d: %w", index, err)
	}
	s.next = index + 1

	if err := s.decodeRow(index, s.rows[0]); err != nil {
		s.fail()
		return err
	}
	return nil
}

func (s *ParquetStore) fail() {
	s.buf.Invalidate()
	// Force a seek on the next load.
	s.next = -1
}

func (s *ParquetStore) decodeRow(index int, row parquet.Row) error {
	scalars := make([]any, len(s.columns))
	seqs := make([][]any, len(s.columns))

	for _, v := range row {
		c := v.Column()
		if c < 0 || c >= len(s.columns) {
			continue
		}
		col := s.columns[c]
		if !col.repeated {
			if !v.IsNull() {
				scalars[c] = decodeParquetValue(col.kind, v)
			}
			continue
		}
		if seqs[c] == nil {
			seqs[c] = []any{}
		}
		switch {
		case v.DefinitionLevel() == col.maxDef:
			seqs[c] = append(seqs[c], decodeParquetValue(col.kind, v))
		case v.DefinitionLevel() >= col.elemDef:
			seqs[c] = append(seqs[c], nil)
		}
		// Lower definition levels mark an empty or null list.
	}

	s.buf.Begin(index)
	for i, col := range s.columns {
		var value fieldstore.Value
		if col.repeated {
			value = fieldstore.Sequence(seqs[i])
		} else {
			value = fieldstore.Scalar(scalars[i])
		}
		if err := s.buf.Set(col.name, value); err != nil {
			return err
		}
	}
	return nil
}

func decodeParquetValue(kind parquet.Kind, v parquet.Value) any {
	switch kind {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return v.Int32()
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return v.Float()
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return fmt.Sprint(v)
	}
}

// ReadField returns the named field of the current row.
func (s *ParquetStore) ReadField(name string) (fieldstore.Value, error) {
	if _, ok := s.byName[name]; !ok {
		return fieldstore.Value{}, fmt.Errorf("%w: %s", fieldstore.ErrNoSuchField, name)
	}
	v, ok := s.buf.Get(name)
	if !ok {
		return fieldstore.Value{}, fmt.Errorf("field %s: no entry loaded", name)
	}
	return v, nil
}

// Close releases the reader and the file.
func (s *ParquetStore) Close() error {
	s.buf.Invalidate()
	if err := s.reader.Close(); err != nil {
		s.file.Close()
		return fmt.Errorf("failed to close parquet reader: %w", err)
	}
	return s.file.Close()
}
