package ntuple

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jittakal/ntuplestore/internal/decoder"
	"github.com/jittakal/ntuplestore/pkg/fieldstore"
)

func hgcalStore() *Store {
	return New(decoder.NewMemoryStore([]fieldstore.Entry{
		{
			"run": int64(1), "lumi": int64(3), "event": int64(7),
			"rechit_pt":         []float32{0.5, 0.7, 0.1},
			"rechit_energy":     []float32{1, 2, 3},
			"rechit_raw_pt":     []float32{0.6, 0.8, 0.2},
			"layerCluster_pt":   []float32{1.2},
			"simcluster_pt":     []float32{5, 6},
			"simcluster_energy": []float32{10, 12},
			"trackster_Id":      []int32{0, 1, 2, 3},
			"trackster_simIdx":  []int32{1, -1, 0, -1},
			"pfcand_pt":         []float32{9},
		},
	}))
}

func TestEvent_Identifiers(t *testing.T) {
	s := hgcalStore()
	ev, _ := s.LoadEntry(0)

	id, err := ev.ID()
	if err != nil {
		t.Fatalf("ID() error = %v", err)
	}
	if diff := cmp.Diff(EventID{Run: 1, Lumi: 3, Event: 7}, id); diff != "" {
		t.Errorf("ID() mismatch (-want +got):\n%s", diff)
	}
	key, _ := ev.EventKey()
	if key != "1:3:7" {
		t.Errorf("EventKey() = %q, want 1:3:7", key)
	}
}

func TestEvent_IdentifierErrors(t *testing.T) {
	s := New(decoder.NewMemoryStore([]fieldstore.Entry{
		{"run": []int64{1}, "lumi": "one"},
	}))
	ev, _ := s.LoadEntry(0)

	if _, err := ev.Run(); err == nil {
		t.Error("Run() should fail for a sequence field")
	}
	if _, err := ev.Lumi(); err == nil {
		t.Error("Lumi() should fail for a string field")
	}
	if _, err := ev.Event(); !errors.Is(err, ErrMissingField) {
		t.Errorf("Event() error = %v, want ErrMissingField", err)
	}
	if _, err := ev.ID(); err == nil {
		t.Error("ID() should fail")
	}
}

func TestEvent_KindCollections(t *testing.T) {
	s := hgcalStore()
	ev, _ := s.LoadEntry(0)

	tests := []struct {
		name     string
		coll     Collection
		wantSize string
		wantLen  int
	}{
		{"rechits", ev.RecHits(), "rechit_pt", 3},
		{"layer clusters", ev.LayerClusters(), "layerCluster_pt", 1},
		{"sim clusters", ev.SimClusters(), "simcluster_pt", 2},
		{"tracksters", ev.Tracksters(), "trackster_Id", 4},
		{"prefix override", ev.RecHits("pfcand"), "pfcand_pt", 1},
		{"declared kind", ev.Of(Kind{Prefix: "simcluster", SizeAttr: "energy"}), "simcluster_energy", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.coll.SizeField() != tt.wantSize {
				t.Errorf("SizeField() = %q, want %q", tt.coll.SizeField(), tt.wantSize)
			}
			n, err := tt.coll.Len()
			if err != nil || n != tt.wantLen {
				t.Errorf("Len() = %d, %v; want %d", n, err, tt.wantLen)
			}
		})
	}

	if !s.HasRawRecHits() {
		t.Error("HasRawRecHits() = false")
	}
}

func TestEvent_SentinelLinks(t *testing.T) {
	s := hgcalStore()
	ev, _ := s.LoadEntry(0)
	simIdx := Attr[int32]{Name: "simIdx"}

	var matched []float32
	for ts, err := range ev.Tracksters().All() {
		if err != nil {
			t.Fatal(err)
		}
		idx, err := simIdx.Get(ts)
		if err != nil {
			t.Fatal(err)
		}
		sc := ev.Record("simcluster", int(idx))
		if !sc.IsValid() {
			continue
		}
		e, err := Attr[float32]{Name: "energy"}.Get(sc)
		if err != nil {
			t.Fatal(err)
		}
		matched = append(matched, e)
	}
	if diff := cmp.Diff([]float32{12, 10}, matched); diff != "" {
		t.Errorf("matched energies mismatch (-want +got):\n%s", diff)
	}
}

func TestEvent_Table(t *testing.T) {
	s := hgcalStore()
	ev, _ := s.LoadEntry(0)

	table, err := ev.Table("simcluster")
	if err != nil {
		t.Fatalf("Table() error = %v", err)
	}
	got := make(map[string]any, len(table))
	for k, v := range table {
		got[k] = v.Interface()
	}
	want := map[string]any{
		"pt":     []any{float32(5), float32(6)},
		"energy": []any{float32(10), float32(12)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Table() mismatch (-want +got):\n%s", diff)
	}

	// Prefixes may themselves contain underscores.
	table, _ = ev.Table("rechit_raw")
	if len(table) != 1 {
		t.Errorf("Table(rechit_raw) has %d attributes, want 1", len(table))
	}

	if _, err := ev.Table("electron"); !errors.Is(err, ErrMissingField) {
		t.Errorf("Table(electron) error = %v, want ErrMissingField", err)
	}
}

func TestParseEventID(t *testing.T) {
	tests := []struct {
		key     string
		want    EventID
		wantErr bool
	}{
		{"1:2:3", EventID{1, 2, 3}, false},
		{"370293:12:-5", EventID{370293, 12, -5}, false},
		{"1:2", EventID{}, true},
		{"1:x:3", EventID{}, true},
		{"", EventID{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := ParseEventID(tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseEventID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseEventID() = %v, want %v", got, tt.want)
			}
			if !tt.wantErr && got.String() != tt.key {
				t.Errorf("String() = %q, want %q", got.String(), tt.key)
			}
		})
	}
}

func TestZeroEvent(t *testing.T) {
	var ev Event
	if _, err := ev.Run(); !errors.Is(err, ErrStaleView) {
		t.Errorf("Run() error = %v, want ErrStaleView", err)
	}
	if _, err := ev.Collection("hit", "n").Len(); !errors.Is(err, ErrStaleView) {
		t.Errorf("Len() error = %v, want ErrStaleView", err)
	}
	if _, err := ev.Table("hit"); !errors.Is(err, ErrStaleView) {
		t.Errorf("Table() error = %v, want ErrStaleView", err)
	}
}
