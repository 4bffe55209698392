package decoder

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/linkedin/goavro/v2"
)

// nestedSchema has a nested record and nullable fields, which the layout
// encoder never produces.
const nestedSchema = `{
	"type": "record",
	"name": "Event",
	"fields": [
		{"name": "run", "type": "long"},
		{"name": "weight", "type": ["null", "double"], "default": null},
		{"name": "hit", "type": {
			"type": "record",
			"name": "Hits",
			"fields": [
				{"name": "energy", "type": {"type": "array", "items": "float"}},
				{"name": "time", "type": ["null", {"type": "array", "items": "float"}], "default": null}
			]
		}}
	]
}`

func writeNestedAvro(t *testing.T) string {
	t.Helper()

	codec, err := goavro.NewCodec(nestedSchema)
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	path := filepath.Join(t.TempDir(), "nested.avro")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w, err := goavro.NewOCFWriter(goavro.OCFConfig{W: f, Codec: codec})
	if err != nil {
		t.Fatalf("NewOCFWriter() error = %v", err)
	}
	records := []any{
		map[string]any{
			"run":    int64(5),
			"weight": goavro.Union("double", 0.25),
			"hit": map[string]any{
				"energy": []any{float32(1), float32(2)},
				"time":   goavro.Union("array", []any{float32(0.1)}),
			},
		},
		map[string]any{
			"run":    int64(6),
			"weight": nil,
			"hit": map[string]any{
				"energy": []any{},
				"time":   nil,
			},
		},
	}
	if err := w.Append(records); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	return path
}

func TestAvroStore_NestedSchema(t *testing.T) {
	s, err := OpenAvro(writeNestedAvro(t))
	if err != nil {
		t.Fatalf("OpenAvro() error = %v", err)
	}
	defer s.Close()

	wantFields := []string{"run", "weight", "hit_energy", "hit_time"}
	if diff := cmp.Diff(wantFields, s.Fields()); diff != "" {
		t.Errorf("Fields() mismatch (-want +got):\n%s", diff)
	}

	got := readAll(t, s, []int{1, 0})
	want := map[int]map[string]any{
		0: {"run": int64(5), "weight": 0.25, "hit_energy": []any{float32(1), float32(2)}, "hit_time": []any{float32(0.1)}},
		1: {"run": int64(6), "weight": nil, "hit_energy": []any{}, "hit_time": []any{}},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestUnwrapUnion(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"plain", int64(3), int64(3)},
		{"nil", nil, nil},
		{"float branch", map[string]any{"float": float32(1)}, float32(1)},
		{"record value", map[string]any{"energy": 1.0}, map[string]any{"energy": 1.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, unwrapUnion(tt.in)); diff != "" {
				t.Errorf("unwrapUnion() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAvroSchemaLeaves_Errors(t *testing.T) {
	tests := []struct {
		name    string
		schema  string
		wantErr string
	}{
		{
			name:    "fields is not an array",
			schema:  `{"type": "record", "name": "Event", "fields": "run"}`,
			wantErr: "malformed fields",
		},
		{
			name:    "field entry is not an object",
			schema:  `{"type": "record", "name": "Event", "fields": [42]}`,
			wantErr: "malformed fields",
		},
		{
			name:    "field without name",
			schema:  `{"type": "record", "name": "Event", "fields": [{"type": "long"}]}`,
			wantErr: "field 0 has no name",
		},
		{
			name: "malformed nested record",
			schema: `{"type": "record", "name": "Event", "fields": [
				{"name": "hit", "type": {"type": "record", "name": "Hit", "fields": {"energy": "float"}}}
			]}`,
			wantErr: `avro record "Hit" has malformed fields`,
		},
		{
			name:    "empty record",
			schema:  `{"type": "record", "name": "Event", "fields": []}`,
			wantErr: "avro schema has no fields",
		},
		{
			name:    "not a record",
			schema:  `{"type": "array", "items": "long"}`,
			wantErr: "must be a record",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := avroSchemaLeaves(tt.schema)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("avroSchemaLeaves() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestAvroSchemaLeaves(t *testing.T) {
	leaves, err := avroSchemaLeaves(nestedSchema)
	if err != nil {
		t.Fatalf("avroSchemaLeaves() error = %v", err)
	}
	if len(leaves) == 0 {
		t.Fatal("no leaves for nested schema")
	}
}
