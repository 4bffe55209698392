package fieldstore

import (
	"errors"
	"fmt"
	"math"
)

// Kind is the scalar type of a field.
type Kind string

const (
	KindInt32   Kind = "int32"
	KindInt64   Kind = "int64"
	KindFloat32 Kind = "float"
	KindFloat64 Kind = "double"
	KindBool    Kind = "bool"
	KindString  Kind = "string"
)

// FieldSpec declares one column of an ntuple.
type FieldSpec struct {
	Name     string
	Kind     Kind
	Sequence bool
}

// Layout is the ordered column declaration used when writing ntuples.
type Layout []FieldSpec

// Entry is one row to be written: field name to scalar or slice.
type Entry map[string]any

// Validate checks field names are unique and kinds are known.
func (l Layout) Validate() error {
	if len(l) == 0 {
		return errors.New("layout has no fields")
	}
	seen := make(map[string]bool, len(l))
	for _, f := range l {
		if f.Name == "" {
			return errors.New("layout field with empty name")
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[f.Name] = true
		switch f.Kind {
		case KindInt32, KindInt64, KindFloat32, KindFloat64, KindBool, KindString:
		default:
			return fmt.Errorf("field %q has unsupported kind %q", f.Name, f.Kind)
		}
	}
	return nil
}

// Names returns the field names in declaration order.
func (l Layout) Names() []string {
	names := make([]string, len(l))
	for i, f := range l {
		names[i] = f.Name
	}
	return names
}

// Convert coerces v to the Go type backing kind k.
func (k Kind) Convert(v any) (any, error) {
	switch k {
	case KindInt32:
		n, ok := AsInt64(v)
		if !ok {
			return nil, fmt.Errorf("cannot use %T as %s", v, k)
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, fmt.Errorf("%d overflows %s", n, k)
		}
		return int32(n), nil
	case KindInt64:
		n, ok := AsInt64(v)
		if !ok {
			return nil, fmt.Errorf("cannot use %T as %s", v, k)
		}
		return n, nil
	case KindFloat32:
		f, ok := AsFloat64(v)
		if !ok {
			return nil, fmt.Errorf("cannot use %T as %s", v, k)
		}
		return float32(f), nil
	case KindFloat64:
		f, ok := AsFloat64(v)
		if !ok {
			return nil, fmt.Errorf("cannot use %T as %s", v, k)
		}
		return f, nil
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("cannot use %T as %s", v, k)
		}
		return b, nil
	case KindString:
		switch s := v.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		}
		return nil, fmt.Errorf("cannot use %T as %s", v, k)
	}
	return nil, fmt.Errorf("unsupported kind %q", k)
}
