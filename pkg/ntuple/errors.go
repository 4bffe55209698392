package ntuple

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by the typed errors below through errors.Is.
var (
	ErrOpen            = errors.New("ntuple: cannot open store")
	ErrIndexOutOfRange = errors.New("ntuple: index out of range")
	ErrMissingField    = errors.New("ntuple: missing field")
	ErrInvalidRecord   = errors.New("ntuple: invalid record")
	ErrStaleView       = errors.New("ntuple: stale view")
	ErrRead            = errors.New("ntuple: read failed")
	ErrClosed          = errors.New("ntuple: store is closed")
)

// OpenError is returned when the backing store cannot be opened.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

func (e *OpenError) Is(target error) bool { return target == ErrOpen }

// IndexOutOfRangeError reports an entry or element index outside [0, Len).
type IndexOutOfRangeError struct {
	What  string
	Index int
	Len   int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("%s index %d out of range [0, %d)", e.What, e.Index, e.Len)
}

func (e *IndexOutOfRangeError) Is(target error) bool { return target == ErrIndexOutOfRange }

// MissingFieldError reports a field absent from the store.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("field %q not found", e.Field)
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrMissingField }

// InvalidRecordError reports attribute access on a record with index NoIndex.
type InvalidRecordError struct {
	Prefix string
}

func (e *InvalidRecordError) Error() string {
	return fmt.Sprintf("%s record is invalid (index %d)", e.Prefix, NoIndex)
}

func (e *InvalidRecordError) Is(target error) bool { return target == ErrInvalidRecord }

// StaleViewError reports a read through a view whose entry is no longer the
// store's current entry.
type StaleViewError struct {
	Bound   int
	Current int
}

func (e *StaleViewError) Error() string {
	return fmt.Sprintf("view bound to entry %d but current entry is %d", e.Bound, e.Current)
}

func (e *StaleViewError) Is(target error) bool { return target == ErrStaleView }

// ReadError reports a backend failure while materializing an entry.
type ReadError struct {
	Entry int
	Err   error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read entry %d: %v", e.Entry, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

func (e *ReadError) Is(target error) bool { return target == ErrRead }

// viewErrorKind names an error for metrics labels.
func viewErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrStaleView):
		return "stale"
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	case errors.Is(err, ErrInvalidRecord):
		return "invalid_record"
	case errors.Is(err, ErrIndexOutOfRange):
		return "out_of_range"
	case errors.Is(err, ErrRead):
		return "read"
	default:
		return "other"
	}
}
