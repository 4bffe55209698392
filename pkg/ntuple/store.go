package ntuple

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/jittakal/ntuplestore/internal/decoder"
	"github.com/jittakal/ntuplestore/pkg/fieldstore"
)

// NoIndex is the entry and record index meaning "absent".
const NoIndex = -1

// Store owns a FieldStore and hands out views bound to its current entry.
//
// Only one entry is resident at a time. Loading an entry makes every view
// obtained for another entry stale. A Store is not safe for concurrent use.
type Store struct {
	fs      fieldstore.FieldStore
	path    string
	entries int
	current int
	closed  bool
	logger  *slog.Logger
	metrics MetricsCollector
}

// Open opens the columnar file at path. The format is detected from the
// file name and content unless WithFormat is given.
func Open(path string, opts ...Option) (*Store, error) {
	o := buildOptions(opts)

	fs, err := decoder.Open(path, o.format, decoder.WithMaxEntryBytes(o.maxEntryBytes))
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}

	s := newStore(fs, o)
	s.path = path
	s.logger = s.logger.With("path", path)
	s.logger.Info("ntuple store opened",
		"entries", s.entries,
		"fields", len(fs.Fields()))
	return s, nil
}

// New wraps an already open FieldStore. The Store takes ownership of fs.
func New(fs fieldstore.FieldStore, opts ...Option) *Store {
	return newStore(fs, buildOptions(opts))
}

func newStore(fs fieldstore.FieldStore, o options) *Store {
	return &Store{
		fs:      fs,
		entries: fs.EntryCount(),
		current: NoIndex,
		logger:  o.logger,
		metrics: o.metrics,
	}
}

// Path returns the path the store was opened from, if any.
func (s *Store) Path() string {
	return s.path
}

// EntryCount returns the number of entries, fixed at open.
func (s *Store) EntryCount() int {
	return s.entries
}

// HasField reports whether the store has a field with the given name.
func (s *Store) HasField(name string) bool {
	for _, f := range s.fs.Fields() {
		if f == name {
			return true
		}
	}
	return false
}

// Fields returns all field names in storage order.
func (s *Store) Fields() []string {
	return s.fs.Fields()
}

// HasRawRecHits reports whether the ntuple carries uncalibrated rechits.
func (s *Store) HasRawRecHits() bool {
	return s.HasField("rechit_raw_pt")
}

// CurrentEntry returns the index of the resident entry, or NoIndex.
func (s *Store) CurrentEntry() int {
	return s.current
}

// LoadEntry materializes entry i and returns the event bound to it.
// Views bound to any other entry become stale.
func (s *Store) LoadEntry(i int) (Event, error) {
	if s.closed {
		return Event{}, ErrClosed
	}
	if i < 0 || i >= s.entries {
		err := &IndexOutOfRangeError{What: "entry", Index: i, Len: s.entries}
		s.metrics.RecordViewError(viewErrorKind(err))
		return Event{}, err
	}

	start := time.Now()
	if err := s.fs.LoadEntry(i); err != nil {
		s.current = NoIndex
		s.metrics.RecordEntryLoad("error", time.Since(start))
		s.logger.Debug("entry load failed", "entry", i, "error", err)
		return Event{}, &ReadError{Entry: i, Err: err}
	}
	s.current = i
	s.metrics.RecordEntryLoad("success", time.Since(start))

	return Event{store: s, entry: i}, nil
}

// RandomEntry loads entry i out of order. It behaves exactly like LoadEntry.
func (s *Store) RandomEntry(i int) (Event, error) {
	return s.LoadEntry(i)
}

// Sample loads a uniformly chosen entry.
func (s *Store) Sample(r *rand.Rand) (Event, error) {
	if s.entries == 0 {
		return Event{}, &IndexOutOfRangeError{What: "entry", Index: 0, Len: 0}
	}
	return s.LoadEntry(r.IntN(s.entries))
}

// Events iterates entries 0..EntryCount()-1 in order. Every range starts
// again at entry 0. Iteration ends early, without an error, at the first
// entry that cannot be read.
func (s *Store) Events() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for i := 0; i < s.entries; i++ {
			ev, err := s.LoadEntry(i)
			if err != nil {
				s.logger.Warn("event iteration stopped", "entry", i, "error", err)
				return
			}
			if !yield(ev) {
				return
			}
		}
	}
}

// Close releases the backing store. Every outstanding view becomes stale.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.current = NoIndex
	if err := s.fs.Close(); err != nil {
		return fmt.Errorf("failed to close field store: %w", err)
	}
	return nil
}

// Closed reports whether Close has been called.
func (s *Store) Closed() bool {
	return s.closed
}

// checkBound returns a StaleViewError unless entry is the current entry.
func (s *Store) checkBound(entry int) error {
	if s.closed || entry != s.current {
		return &StaleViewError{Bound: entry, Current: s.current}
	}
	return nil
}

// readField reads name on behalf of a view bound to entry.
func (s *Store) readField(entry int, prefix, name string) (fieldstore.Value, error) {
	if err := s.checkBound(entry); err != nil {
		s.metrics.RecordViewError(viewErrorKind(err))
		return fieldstore.Value{}, err
	}

	v, err := s.fs.ReadField(name)
	if err != nil {
		if errors.Is(err, fieldstore.ErrNoSuchField) {
			err = &MissingFieldError{Field: name}
		} else {
			err = &ReadError{Entry: entry, Err: err}
		}
		s.metrics.RecordViewError(viewErrorKind(err))
		return fieldstore.Value{}, err
	}
	s.metrics.RecordFieldRead(prefix)
	return v, nil
}
