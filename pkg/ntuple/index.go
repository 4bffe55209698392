package ntuple

import (
	"fmt"
	"iter"

	"github.com/google/btree"
)

type indexedEvent struct {
	id    EventID
	entry int
}

func lessEvent(a, b indexedEvent) bool {
	if a.id.Run != b.id.Run {
		return a.id.Run < b.id.Run
	}
	if a.id.Lumi != b.id.Lumi {
		return a.id.Lumi < b.id.Lumi
	}
	return a.id.Event < b.id.Event
}

// EventIndex maps run:lumi:event identifiers to entry indices.
type EventIndex struct {
	tree       *btree.BTreeG[indexedEvent]
	duplicates []Duplicate
}

// Duplicate records an identifier seen at more than one entry. The index
// keeps the first entry.
type Duplicate struct {
	ID    EventID
	First int
	Entry int
}

// BuildIndex scans every entry of s. It leaves the last scanned entry
// current. Any read error aborts the build.
func BuildIndex(s *Store) (*EventIndex, error) {
	idx := &EventIndex{tree: btree.NewG(32, lessEvent)}

	for i := 0; i < s.EntryCount(); i++ {
		ev, err := s.LoadEntry(i)
		if err != nil {
			return nil, err
		}
		id, err := ev.ID()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		item := indexedEvent{id: id, entry: i}
		if prev, ok := idx.tree.Get(item); ok {
			idx.duplicates = append(idx.duplicates, Duplicate{ID: id, First: prev.entry, Entry: i})
			continue
		}
		idx.tree.ReplaceOrInsert(item)
	}
	return idx, nil
}

// Lookup returns the entry holding id.
func (x *EventIndex) Lookup(id EventID) (int, bool) {
	item, ok := x.tree.Get(indexedEvent{id: id})
	if !ok {
		return NoIndex, false
	}
	return item.entry, true
}

// Len returns the number of distinct identifiers.
func (x *EventIndex) Len() int {
	return x.tree.Len()
}

// Duplicates returns identifiers that appeared more than once.
func (x *EventIndex) Duplicates() []Duplicate {
	return x.duplicates
}

// Ascend yields identifiers in (run, lumi, event) order with their entry.
func (x *EventIndex) Ascend() iter.Seq2[EventID, int] {
	return func(yield func(EventID, int) bool) {
		x.tree.Ascend(func(item indexedEvent) bool {
			return yield(item.id, item.entry)
		})
	}
}

// Run yields the entries of one run in lumi and event order.
func (x *EventIndex) Run(run int64) iter.Seq2[EventID, int] {
	return func(yield func(EventID, int) bool) {
		from := indexedEvent{id: EventID{Run: run, Lumi: minInt64, Event: minInt64}}
		x.tree.AscendGreaterOrEqual(from, func(item indexedEvent) bool {
			if item.id.Run != run {
				return false
			}
			return yield(item.id, item.entry)
		})
	}
}

const minInt64 = -1 << 63
