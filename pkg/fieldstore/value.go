package fieldstore

import (
	"fmt"
	"math"
	"reflect"
)

// Value is the content of one field at the current entry: either a scalar
// or an ordered sequence of scalars.
type Value struct {
	scalar   any
	seq      []any
	sequence bool
}

// Scalar wraps a single per-entry value.
func Scalar(v any) Value {
	return Value{scalar: v}
}

// Sequence wraps a per-entry variable-length array. The slice is not copied.
func Sequence(vs []any) Value {
	if vs == nil {
		vs = []any{}
	}
	return Value{seq: vs, sequence: true}
}

// ValueOf converts a Go value into a Value. Slices and arrays (other than
// []byte) become sequences; everything else is a scalar.
func ValueOf(v any) Value {
	switch x := v.(type) {
	case Value:
		return x
	case []any:
		return Sequence(x)
	case []byte, string, nil:
		return Scalar(x)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return Scalar(v)
	}
	seq := make([]any, rv.Len())
	for i := range seq {
		seq[i] = rv.Index(i).Interface()
	}
	return Sequence(seq)
}

// IsSequence reports whether the value is a per-entry array.
func (v Value) IsSequence() bool {
	return v.sequence
}

// Len returns the sequence length, or 1 for a scalar.
func (v Value) Len() int {
	if v.sequence {
		return len(v.seq)
	}
	return 1
}

// At returns element i of a sequence. For a scalar only index 0 is valid.
func (v Value) At(i int) (any, bool) {
	if !v.sequence {
		return v.scalar, i == 0
	}
	if i < 0 || i >= len(v.seq) {
		return nil, false
	}
	return v.seq[i], true
}

// Scalar returns the scalar content; it is nil for sequences.
func (v Value) Scalar() any {
	return v.scalar
}

// Elements returns the sequence content without copying.
func (v Value) Elements() []any {
	return v.seq
}

// Count interprets the value as a collection size: a scalar integer is the
// element count, a sequence contributes its length.
func (v Value) Count() (int, error) {
	if v.sequence {
		return len(v.seq), nil
	}
	n, ok := AsInt64(v.scalar)
	if !ok {
		return 0, fmt.Errorf("size value %v (%T) is not an integer", v.scalar, v.scalar)
	}
	if n < 0 {
		return 0, fmt.Errorf("size value %d is negative", n)
	}
	return int(n), nil
}

// Interface returns the plain Go form: the scalar, or a copy of the elements.
func (v Value) Interface() any {
	if v.sequence {
		out := make([]any, len(v.seq))
		copy(out, v.seq)
		return out
	}
	return v.scalar
}

// AsInt64 converts integer-kinded scalars to int64. Unsigned values above
// math.MaxInt64 do not fit and report false.
func AsInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	}
	return 0, false
}

// AsFloat64 converts numeric scalars to float64.
func AsFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case uint64:
		return float64(x), true
	case uint:
		return float64(x), true
	}
	if n, ok := AsInt64(v); ok {
		return float64(n), true
	}
	return 0, false
}
