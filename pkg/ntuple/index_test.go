package ntuple

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jittakal/ntuplestore/internal/decoder"
	"github.com/jittakal/ntuplestore/pkg/fieldstore"
)

func indexStore() *decoder.MemoryStore {
	ids := []EventID{
		{2, 1, 5},
		{1, 2, 1},
		{1, 1, 9},
		{2, 1, 5},
		{1, 1, 3},
	}
	entries := make([]fieldstore.Entry, len(ids))
	for i, id := range ids {
		entries[i] = fieldstore.Entry{"run": id.Run, "lumi": id.Lumi, "event": id.Event}
	}
	return decoder.NewMemoryStore(entries)
}

func TestBuildIndex(t *testing.T) {
	idx, err := BuildIndex(New(indexStore()))
	if err != nil {
		t.Fatalf("BuildIndex() error = %v", err)
	}

	if idx.Len() != 4 {
		t.Errorf("Len() = %d, want 4", idx.Len())
	}

	wantDup := []Duplicate{{ID: EventID{2, 1, 5}, First: 0, Entry: 3}}
	if diff := cmp.Diff(wantDup, idx.Duplicates()); diff != "" {
		t.Errorf("Duplicates() mismatch (-want +got):\n%s", diff)
	}

	if entry, ok := idx.Lookup(EventID{1, 1, 9}); !ok || entry != 2 {
		t.Errorf("Lookup(1:1:9) = %d, %v; want 2", entry, ok)
	}
	if entry, ok := idx.Lookup(EventID{9, 9, 9}); ok || entry != NoIndex {
		t.Errorf("Lookup(9:9:9) = %d, %v; want NoIndex", entry, ok)
	}

	var order []int
	for _, entry := range idx.Ascend() {
		order = append(order, entry)
	}
	if diff := cmp.Diff([]int{4, 2, 1, 0}, order); diff != "" {
		t.Errorf("Ascend() mismatch (-want +got):\n%s", diff)
	}

	var run1 []string
	for id := range idx.Run(1) {
		run1 = append(run1, id.String())
	}
	if diff := cmp.Diff([]string{"1:1:3", "1:1:9", "1:2:1"}, run1); diff != "" {
		t.Errorf("Run(1) mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildIndex_ReadError(t *testing.T) {
	fs := indexStore()
	fs.FailEntry(2, errors.New("bad basket"))

	if _, err := BuildIndex(New(fs)); !errors.Is(err, ErrRead) {
		t.Errorf("BuildIndex() error = %v, want ErrRead", err)
	}
}

func TestBuildIndex_MissingIdentifiers(t *testing.T) {
	fs := decoder.NewMemoryStore([]fieldstore.Entry{{"run": int64(1)}})

	if _, err := BuildIndex(New(fs)); !errors.Is(err, ErrMissingField) {
		t.Errorf("BuildIndex() error = %v, want ErrMissingField", err)
	}
}
