package buffer

import (
	"errors"
	"testing"

	apperrors "github.com/jittakal/ntuplestore/internal/errors"
	"github.com/jittakal/ntuplestore/pkg/fieldstore"
)

func TestNew(t *testing.T) {
	buf := New(8, 1024)

	if buf == nil {
		t.Fatal("expected non-nil buffer")
	}
	if buf.Entry() != NoEntry {
		t.Errorf("Entry() = %d, want %d", buf.Entry(), NoEntry)
	}
	if buf.maxSizeBytes != 1024 {
		t.Errorf("maxSizeBytes = %d, want 1024", buf.maxSizeBytes)
	}
}

func TestEntryBuffer_SetGet(t *testing.T) {
	buf := New(4, 0)
	buf.Begin(3)

	if err := buf.Set("run", fieldstore.Scalar(int64(1))); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := buf.Set("hit_energy", fieldstore.Sequence([]any{float32(1.5), float32(2.5)})); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	v, ok := buf.Get("hit_energy")
	if !ok {
		t.Fatal("expected hit_energy to be present")
	}
	if v.Len() != 2 {
		t.Errorf("Len() = %d, want 2", v.Len())
	}

	stats := buf.Stats()
	if stats.Entry != 3 {
		t.Errorf("Entry = %d, want 3", stats.Entry)
	}
	if stats.FieldCount != 2 {
		t.Errorf("FieldCount = %d, want 2", stats.FieldCount)
	}
	if stats.SizeBytes != 16 {
		t.Errorf("SizeBytes = %d, want 16", stats.SizeBytes)
	}
	if stats.LoadedAt.IsZero() {
		t.Error("LoadedAt should be set")
	}
}

func TestEntryBuffer_BeginInvalidatesInPlace(t *testing.T) {
	buf := New(4, 0)
	buf.Begin(0)
	_ = buf.Set("hit_n", fieldstore.Scalar(int32(2)))

	buf.Begin(1)

	if _, ok := buf.Get("hit_n"); ok {
		t.Error("field from previous entry should be gone")
	}
	if buf.Stats().SizeBytes != 0 {
		t.Errorf("SizeBytes = %d, want 0", buf.Stats().SizeBytes)
	}
}

func TestEntryBuffer_Invalidate(t *testing.T) {
	buf := New(4, 0)
	buf.Begin(2)
	_ = buf.Set("run", fieldstore.Scalar(int64(1)))

	buf.Invalidate()

	if buf.Entry() != NoEntry {
		t.Errorf("Entry() = %d, want %d", buf.Entry(), NoEntry)
	}
	if _, ok := buf.Get("run"); ok {
		t.Error("Get() after Invalidate should miss")
	}
	if !buf.Stats().LoadedAt.IsZero() {
		t.Error("LoadedAt should be reset")
	}
}

func TestEntryBuffer_SizeLimit(t *testing.T) {
	buf := New(4, 10)
	buf.Begin(0)

	if err := buf.Set("a", fieldstore.Scalar(int64(1))); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	err := buf.Set("b", fieldstore.Scalar(int64(2)))
	if !errors.Is(err, apperrors.ErrBufferFull) {
		t.Errorf("Set() error = %v, want ErrBufferFull", err)
	}
}

func TestEstimateSize(t *testing.T) {
	tests := []struct {
		name string
		v    fieldstore.Value
		want int
	}{
		{"nil scalar", fieldstore.Scalar(nil), 0},
		{"bool", fieldstore.Scalar(true), 1},
		{"int32", fieldstore.Scalar(int32(1)), 4},
		{"int64", fieldstore.Scalar(int64(1)), 8},
		{"string", fieldstore.Scalar("abc"), 3},
		{"float sequence", fieldstore.Sequence([]any{float32(1), float32(2), float32(3)}), 12},
		{"empty sequence", fieldstore.Sequence(nil), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := estimateSize(tt.v); got != tt.want {
				t.Errorf("estimateSize() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEstimateEntrySize(t *testing.T) {
	e := fieldstore.Entry{
		"run":       int32(1),
		"event":     int64(7),
		"rechit_pt": []float32{1, 2, 3},
		"tag":       "abc",
	}
	if got := EstimateEntrySize(e); got != 4+8+12+3 {
		t.Errorf("EstimateEntrySize() = %d, want 27", got)
	}
	if got := EstimateEntrySize(nil); got != 0 {
		t.Errorf("EstimateEntrySize(nil) = %d", got)
	}
}
