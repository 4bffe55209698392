package decoder

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/jittakal/ntuplestore/internal/buffer"
	"github.com/jittakal/ntuplestore/pkg/fieldstore"
	"github.com/linkedin/goavro/v2"
)

// Ensure implementation satisfies interface at compile time.
var _ fieldstore.FieldStore = (*AvroStore)(nil)

// AvroStore reads an ntuple from an Avro Object Container File, optionally
// gzip compressed as a whole.
//
// Records are decoded sequentially. Loading an earlier entry reopens the
// file and skips forward. Nested record fields are flattened with "_",
// nullable unions are unwrapped and arrays are sequences.
type AvroStore struct {
	path    string
	file    *os.File
	gz      *gzip.Reader
	ocf     *goavro.OCFReader
	leaves  []avroLeaf
	byName  map[string]int
	fields  []string
	entries int
	next    int
	buf     *buffer.EntryBuffer
}

type avroLeaf struct {
	name     string
	get      func(datum any) any
	sequence bool
}

// OpenAvro opens the Avro file at path and counts its records.
func OpenAvro(path string, opts ...Option) (*AvroStore, error) {
	o := buildOptions(opts)

	s := &AvroStore{path: path}
	if err := s.reopen(); err != nil {
		return nil, err
	}

	leaves, err := avroSchemaLeaves(s.ocf.Codec().Schema())
	if err != nil {
		s.closeHandles()
		return nil, err
	}
	s.leaves = leaves
	s.byName = make(map[string]int, len(leaves))
	s.fields = make([]string, len(leaves))
	for i, l := range leaves {
		s.byName[l.name] = i
		s.fields[i] = l.name
	}
	s.buf = buffer.New(len(leaves), o.maxEntryBytes)

	for s.ocf.Scan() {
		if _, err := s.ocf.Read(); err != nil {
			s.closeHandles()
			return nil, fmt.Errorf("failed to count records: %w", err)
		}
		s.entries++
	}
	if err := s.ocf.Err(); err != nil {
		s.closeHandles()
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	s.next = s.entries
	return s, nil
}

// reopen positions a fresh OCF reader before the first record.
func (s *AvroStore) reopen() error {
	s.closeHandles()

	file, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}

	br := bufio.NewReader(file)
	var r io.Reader = br
	var gz *gzip.Reader
	if head, _ := br.Peek(2); bytes.Equal(head, gzipMagic) {
		gz, err = gzip.NewReader(br)
		if err != nil {
			file.Close()
			return fmt.Errorf("failed to create gzip reader: %w", err)
		}
		r = gz
	}

	ocf, err := goavro.NewOCFReader(r)
	if err != nil {
		if gz != nil {
			gz.Close()
		}
		file.Close()
		return fmt.Errorf("failed to create OCF reader: %w", err)
	}

	s.file, s.gz, s.ocf = file, gz, ocf
	s.next = 0
	return nil
}

func (s *AvroStore) closeHandles() error {
	var err error
	if s.gz != nil {
		err = s.gz.Close()
		s.gz = nil
	}
	if s.file != nil {
		if cerr := s.file.Close(); err == nil {
			err = cerr
		}
		s.file = nil
	}
	s.ocf = nil
	return err
}

// EntryCount returns the number of records.
func (s *AvroStore) EntryCount() int {
	return s.entries
}

// Fields returns the flattened field names in schema order.
func (s *AvroStore) Fields() []string {
	return slices.Clone(s.fields)
}

// LoadEntry decodes record index into the entry buffer.
func (s *AvroStore) LoadEntry(index int) error {
	if index < 0 || index >= s.entries {
		s.buf.Invalidate()
		return fmt.Errorf("record %d out of range [0, %d)", index, s.entries)
	}

	if index < s.next || s.ocf == nil {
		if err := s.reopen(); err != nil {
			s.buf.Invalidate()
			return err
		}
	}

	for {
		datum, err := s.readNext()
		if err != nil {
			s.buf.Invalidate()
			s.ocf = nil
			return fmt.Errorf("failed to read record %d: %w", index, err)
		}
		if s.next-1 < index {
			continue
		}
		return s.decodeRecord(index, datum)
	}
}

func (s *AvroStore) readNext() (any, error) {
	if !s.ocf.Scan() {
		if err := s.ocf.Err(); err != nil {
			return nil, err
		}
		return nil, io.ErrUnexpectedEOF
	}
	datum, err := s.ocf.Read()
	if err != nil {
		return nil, err
	}
	s.next++
	return datum, nil
}

func (s *AvroStore) decodeRecord(index int, datum any) error {
	s.buf.Begin(index)
	for _, leaf := range s.leaves {
		if err := s.buf.Set(leaf.name, avroValue(leaf.get(datum), leaf.sequence)); err != nil {
			s.buf.Invalidate()
			return err
		}
	}
	return nil
}

func avroValue(v any, sequence bool) fieldstore.Value {
	v = unwrapUnion(v)
	items, ok := v.([]any)
	if !ok {
		if sequence && v == nil {
			return fieldstore.Sequence(nil)
		}
		return fieldstore.Scalar(v)
	}
	seq := make([]any, len(items))
	for i, item := range items {
		seq[i] = unwrapUnion(item)
	}
	return fieldstore.Sequence(seq)
}

// ReadField returns the named field of the current record.
func (s *AvroStore) ReadField(name string) (fieldstore.Value, error) {
	if _, ok := s.byName[name]; !ok {
		return fieldstore.Value{}, fmt.Errorf("%w: %s", fieldstore.ErrNoSuchField, name)
	}
	v, ok := s.buf.Get(name)
	if !ok {
		return fieldstore.Value{}, fmt.Errorf("field %s: no entry loaded", name)
	}
	return v, nil
}

// Close releases the file.
func (s *AvroStore) Close() error {
	s.buf.Invalidate()
	if err := s.closeHandles(); err != nil {
		return fmt.Errorf("failed to close avro file: %w", err)
	}
	return nil
}

var avroPrimitives = map[string]bool{
	"null": true, "boolean": true, "int": true, "long": true,
	"float": true, "double": true, "bytes": true, "string": true,
	"array": true,
}

// unwrapUnion returns the branch value of a goavro union datum.
func unwrapUnion(v any) any {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return v
	}
	for k, x := range m {
		if avroPrimitives[k] {
			return x
		}
	}
	return v
}

type avroField struct {
	Name string `json:"name"`
	Type any    `json:"type"`
}

// avroSchemaLeaves flattens a record schema into named leaf accessors.
func avroSchemaLeaves(schema string) ([]avroLeaf, error) {
	var root map[string]any
	if err := json.Unmarshal([]byte(schema), &root); err != nil {
		return nil, fmt.Errorf("failed to parse avro schema: %w", err)
	}
	if root["type"] != "record" {
		return nil, fmt.Errorf("avro schema must be a record, got %v", root["type"])
	}

	top := func(datum any) any { return datum }
	leaves, err := recordLeaves("", root, top)
	if err != nil {
		return nil, err
	}
	if len(leaves) == 0 {
		return nil, fmt.Errorf("avro schema has no fields")
	}
	return leaves, nil
}

func recordLeaves(prefix string, record map[string]any, get func(any) any) ([]avroLeaf, error) {
	raw, err := json.Marshal(record["fields"])
	if err != nil {
		return nil, fmt.Errorf("avro record %q: %w", record["name"], err)
	}
	var fields []avroField
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("avro record %q has malformed fields: %w", record["name"], err)
	}

	var leaves []avroLeaf
	for i, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("avro record %q: field %d has no name", record["name"], i)
		}
		name := f.Name
		if prefix != "" {
			name = prefix + "_" + f.Name
		}
		fieldName := f.Name
		getField := func(datum any) any {
			m, _ := get(datum).(map[string]any)
			return m[fieldName]
		}
		fieldLeaves, err := typeLeaves(name, f.Type, getField)
		if err != nil {
			return nil, err
		}
		leaves = append(leaves, fieldLeaves...)
	}
	return leaves, nil
}

func typeLeaves(name string, t any, get func(any) any) ([]avroLeaf, error) {
	switch typ := t.(type) {
	case map[string]any:
		switch typ["type"] {
		case "record":
			return recordLeaves(name, typ, get)
		case "array":
			return []avroLeaf{{name: name, get: get, sequence: true}}, nil
		}
	case []any:
		var branches []any
		for _, b := range typ {
			if b != "null" {
				branches = append(branches, b)
			}
		}
		if len(branches) == 1 {
			if m, ok := branches[0].(map[string]any); ok && m["type"] == "record" {
				unwrap := func(datum any) any {
					u, _ := get(datum).(map[string]any)
					for _, v := range u {
						return v
					}
					return nil
				}
				return recordLeaves(name, m, unwrap)
			}
			if m, ok := branches[0].(map[string]any); ok && m["type"] == "array" {
				return []avroLeaf{{name: name, get: get, sequence: true}}, nil
			}
		}
	}
	return []avroLeaf{{name: name, get: get}}, nil
}
