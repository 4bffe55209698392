package ntuple

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jittakal/ntuplestore/pkg/fieldstore"
)

// Identifier fields read by Event.
const (
	RunField   = "run"
	LumiField  = "lumi"
	EventField = "event"
)

// EventID identifies an event by run, luminosity block and event number.
type EventID struct {
	Run   int64
	Lumi  int64
	Event int64
}

// String formats the id as run:lumi:event.
func (id EventID) String() string {
	return fmt.Sprintf("%d:%d:%d", id.Run, id.Lumi, id.Event)
}

// ParseEventID parses a run:lumi:event key.
func ParseEventID(key string) (EventID, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 3 {
		return EventID{}, fmt.Errorf("event key %q: want run:lumi:event", key)
	}
	var nums [3]int64
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return EventID{}, fmt.Errorf("event key %q: %w", key, err)
		}
		nums[i] = n
	}
	return EventID{Run: nums[0], Lumi: nums[1], Event: nums[2]}, nil
}

// Event is a view of one loaded entry. It is valid only while its entry is
// the store's current entry.
type Event struct {
	store *Store
	entry int
}

// EntryIndex returns the entry the event is bound to.
func (e Event) EntryIndex() int {
	return e.entry
}

// Run returns the run number.
func (e Event) Run() (int64, error) {
	return e.readID(RunField)
}

// Lumi returns the luminosity block.
func (e Event) Lumi() (int64, error) {
	return e.readID(LumiField)
}

// Event returns the event number.
func (e Event) Event() (int64, error) {
	return e.readID(EventField)
}

// ID returns the (run, lumi, event) tuple.
func (e Event) ID() (EventID, error) {
	var id EventID
	var err error
	if id.Run, err = e.Run(); err != nil {
		return EventID{}, err
	}
	if id.Lumi, err = e.Lumi(); err != nil {
		return EventID{}, err
	}
	if id.Event, err = e.Event(); err != nil {
		return EventID{}, err
	}
	return id, nil
}

// EventKey returns the id formatted as run:lumi:event.
func (e Event) EventKey() (string, error) {
	id, err := e.ID()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (e Event) readID(name string) (int64, error) {
	if e.store == nil {
		return 0, &StaleViewError{Bound: e.entry, Current: NoIndex}
	}
	v, err := e.store.readField(e.entry, name, name)
	if err != nil {
		return 0, err
	}
	if v.IsSequence() {
		return 0, fmt.Errorf("field %q is a sequence, want scalar", name)
	}
	n, ok := fieldstore.AsInt64(v.Scalar())
	if !ok {
		return 0, fmt.Errorf("field %q holds %T, want integer", name, v.Scalar())
	}
	return n, nil
}

// Collection returns the group of records named prefix whose length is read
// from the field prefix_sizeAttr. Nothing is read until the collection is
// used.
func (e Event) Collection(prefix, sizeAttr string) Collection {
	return Collection{store: e.store, entry: e.entry, prefix: prefix, sizeAttr: sizeAttr}
}

// Record returns record index of the prefix group without consulting any
// size field. index may be NoIndex.
func (e Event) Record(prefix string, index int) Record {
	return Record{store: e.store, entry: e.entry, prefix: prefix, index: index}
}

// Of returns the collection described by kind.
func (e Event) Of(kind Kind) Collection {
	return e.Collection(kind.Prefix, kind.SizeAttr)
}

// RecHits returns the reconstructed hits. An optional prefix overrides the
// default "rechit".
func (e Event) RecHits(prefix ...string) Collection {
	return e.Of(RecHitKind.withPrefix(prefix))
}

// LayerClusters returns the 2D layer clusters.
func (e Event) LayerClusters(prefix ...string) Collection {
	return e.Of(LayerClusterKind.withPrefix(prefix))
}

// SimClusters returns the simulated clusters.
func (e Event) SimClusters(prefix ...string) Collection {
	return e.Of(SimClusterKind.withPrefix(prefix))
}

// Tracksters returns the tracksters.
func (e Event) Tracksters(prefix ...string) Collection {
	return e.Of(TracksterKind.withPrefix(prefix))
}

// Table returns every attribute of the prefix group at the current entry,
// keyed by attribute name without the prefix.
func (e Event) Table(prefix string) (map[string]fieldstore.Value, error) {
	if e.store == nil {
		return nil, &StaleViewError{Bound: e.entry, Current: NoIndex}
	}
	if err := e.store.checkBound(e.entry); err != nil {
		return nil, err
	}

	head := prefix + "_"
	table := make(map[string]fieldstore.Value)
	for _, name := range e.store.Fields() {
		attr, ok := strings.CutPrefix(name, head)
		if !ok || attr == "" {
			continue
		}
		v, err := e.store.readField(e.entry, prefix, name)
		if err != nil {
			return nil, err
		}
		table[attr] = v
	}
	if len(table) == 0 {
		return nil, &MissingFieldError{Field: head + "*"}
	}
	return table, nil
}
