// Package buffer implements the single current-entry buffer shared by the
// field store backends.
package buffer

import (
	"fmt"
	"time"

	"github.com/jittakal/ntuplestore/internal/errors"
	"github.com/jittakal/ntuplestore/pkg/fieldstore"
)

// NoEntry marks a buffer that holds no materialized entry.
const NoEntry = -1

// Stats describes the entry currently held by an EntryBuffer.
type Stats struct {
	Entry      int
	FieldCount int
	SizeBytes  int64
	LoadedAt   time.Time
}

// EntryBuffer holds the decoded fields of exactly one entry. Begin reuses
// the underlying map, so values handed out for a previous entry must not be
// read after the next Begin.
//
// An EntryBuffer is owned by one backend and is not safe for concurrent use.
type EntryBuffer struct {
	entry        int
	values       map[string]fieldstore.Value
	maxSizeBytes int64
	currentSize  int64
	loadedAt     time.Time
}

// New creates an empty buffer. maxSizeBytes <= 0 disables the size limit.
func New(fieldHint int, maxSizeBytes int64) *EntryBuffer {
	return &EntryBuffer{
		entry:        NoEntry,
		values:       make(map[string]fieldstore.Value, fieldHint),
		maxSizeBytes: maxSizeBytes,
	}
}

// Begin invalidates the current contents in place and starts entry.
func (b *EntryBuffer) Begin(entry int) {
	clear(b.values)
	b.currentSize = 0
	b.entry = entry
	b.loadedAt = time.Now()
}

// Set stores the value of one field for the entry being loaded.
func (b *EntryBuffer) Set(name string, v fieldstore.Value) error {
	size := int64(estimateSize(v))
	if b.maxSizeBytes > 0 && b.currentSize+size > b.maxSizeBytes {
		return fmt.Errorf("%w: entry %d field %s exceeds %d bytes", errors.ErrBufferFull, b.entry, name, b.maxSizeBytes)
	}
	b.values[name] = v
	b.currentSize += size
	return nil
}

// Get returns the value of a field of the current entry.
func (b *EntryBuffer) Get(name string) (fieldstore.Value, bool) {
	if b.entry == NoEntry {
		return fieldstore.Value{}, false
	}
	v, ok := b.values[name]
	return v, ok
}

// Entry returns the index of the materialized entry, or NoEntry.
func (b *EntryBuffer) Entry() int {
	return b.entry
}

// Invalidate drops the current entry, e.g. after a failed load.
func (b *EntryBuffer) Invalidate() {
	b.Begin(NoEntry)
	b.loadedAt = time.Time{}
}

// Stats returns current buffer statistics.
func (b *EntryBuffer) Stats() Stats {
	return Stats{
		Entry:      b.entry,
		FieldCount: len(b.values),
		SizeBytes:  b.currentSize,
		LoadedAt:   b.loadedAt,
	}
}

// EstimateEntrySize estimates the in-memory size of an entry that has not
// been encoded yet, counting values the same way Set does.
func EstimateEntrySize(e fieldstore.Entry) int64 {
	var size int64
	for _, v := range e {
		size += int64(estimateSize(fieldstore.ValueOf(v)))
	}
	return size
}

// estimateSize estimates the in-memory size of a value in bytes.
func estimateSize(v fieldstore.Value) int {
	if !v.IsSequence() {
		return scalarSize(v.Scalar())
	}
	size := 0
	for _, e := range v.Elements() {
		size += scalarSize(e)
	}
	return size
}

func scalarSize(v any) int {
	switch x := v.(type) {
	case nil:
		return 0
	case bool, int8, uint8:
		return 1
	case int16, uint16:
		return 2
	case int32, uint32, float32:
		return 4
	case string:
		return len(x)
	case []byte:
		return len(x)
	default:
		return 8
	}
}
