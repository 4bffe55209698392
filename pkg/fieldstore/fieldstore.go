// Package fieldstore defines the columnar backend contract consumed by the
// ntuple views.
//
// A FieldStore holds one row ("entry") per event. Each named field is either
// a per-entry scalar or a per-entry variable-length sequence of scalars.
// Exactly one entry is current at a time; loading another entry overwrites
// the current buffer in place.
package fieldstore

import (
	"errors"
	"time"
)

// ErrNoSuchField is returned by ReadField when the store has no field with
// the requested name.
var ErrNoSuchField = errors.New("no such field")

// FieldStore is a columnar per-entry record store.
type FieldStore interface {
	// EntryCount returns the number of entries (rows) in the store.
	EntryCount() int

	// Fields returns the names of all fields, in storage order.
	Fields() []string

	// LoadEntry materializes entry index into the current buffer.
	// On failure the previous buffer contents must not be relied upon.
	LoadEntry(index int) error

	// ReadField returns the value of the named field for the current entry.
	// The returned Value aliases the current buffer and is only meaningful
	// until the next LoadEntry.
	ReadField(name string) (Value, error)

	// Close releases the underlying handle.
	Close() error
}

// Format represents an on-disk columnar format.
type Format string

const (
	FormatParquet Format = "parquet"
	FormatAvro    Format = "avro"
	FormatMemory  Format = "memory"
)

// FileStats describes an encoded ntuple file.
type FileStats struct {
	EntryCount int
	SizeBytes  int64
	WrittenAt  time.Time
}
