package decoder

import (
	"fmt"
	"slices"
	"sort"

	"github.com/jittakal/ntuplestore/internal/buffer"
	"github.com/jittakal/ntuplestore/pkg/fieldstore"
)

// Ensure implementation satisfies interface at compile time.
var _ fieldstore.FieldStore = (*MemoryStore)(nil)

// MemoryStore serves entries held in memory. Slices become sequences.
// A field absent from one entry reads as missing at that entry.
type MemoryStore struct {
	entries  []fieldstore.Entry
	fields   []string
	known    map[string]bool
	failures map[int]error
	closed   bool
	buf      *buffer.EntryBuffer
}

// NewMemoryStore creates a store over entries. Field names are the sorted
// union of the entry keys.
func NewMemoryStore(entries []fieldstore.Entry, opts ...Option) *MemoryStore {
	o := buildOptions(opts)

	known := make(map[string]bool)
	for _, e := range entries {
		for name := range e {
			known[name] = true
		}
	}
	fields := make([]string, 0, len(known))
	for name := range known {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	return &MemoryStore{
		entries:  entries,
		fields:   fields,
		known:    known,
		failures: make(map[int]error),
		buf:      buffer.New(len(fields), o.maxEntryBytes),
	}
}

// FailEntry makes every load of entry index fail with err.
func (s *MemoryStore) FailEntry(index int, err error) {
	s.failures[index] = err
}

// EntryCount returns the number of entries.
func (s *MemoryStore) EntryCount() int {
	return len(s.entries)
}

// Fields returns the sorted field names.
func (s *MemoryStore) Fields() []string {
	return slices.Clone(s.fields)
}

// LoadEntry copies entry index into the entry buffer.
func (s *MemoryStore) LoadEntry(index int) error {
	if s.closed {
		return fmt.Errorf("memory store is closed")
	}
	if index < 0 || index >= len(s.entries) {
		s.buf.Invalidate()
		return fmt.Errorf("entry %d out of range [0, %d)", index, len(s.entries))
	}
	if err := s.failures[index]; err != nil {
		s.buf.Invalidate()
		return err
	}

	s.buf.Begin(index)
	for name, v := range s.entries[index] {
		if err := s.buf.Set(name, fieldstore.ValueOf(v)); err != nil {
			s.buf.Invalidate()
			return err
		}
	}
	return nil
}

// ReadField returns the named field of the current entry.
func (s *MemoryStore) ReadField(name string) (fieldstore.Value, error) {
	if !s.known[name] {
		return fieldstore.Value{}, fmt.Errorf("%w: %s", fieldstore.ErrNoSuchField, name)
	}
	if s.buf.Entry() == buffer.NoEntry {
		return fieldstore.Value{}, fmt.Errorf("field %s: no entry loaded", name)
	}
	v, ok := s.buf.Get(name)
	if !ok {
		return fieldstore.Value{}, fmt.Errorf("%w: %s at entry %d", fieldstore.ErrNoSuchField, name, s.buf.Entry())
	}
	return v, nil
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.closed = true
	s.buf.Invalidate()
	return nil
}
