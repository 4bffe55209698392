package encoder

import (
	"fmt"
	"reflect"

	"github.com/jittakal/ntuplestore/internal/errors"
	"github.com/jittakal/ntuplestore/pkg/fieldstore"
)

func checkInput(layout fieldstore.Layout, entries []fieldstore.Entry) error {
	if len(layout) == 0 {
		return errors.ErrEmptyLayout
	}
	if err := layout.Validate(); err != nil {
		return fmt.Errorf("invalid layout: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("no entries to encode")
	}
	return nil
}

// convertField coerces the value of one field to the layout kind. Sequence
// fields must be slices or arrays; nil is an empty sequence.
func convertField(spec fieldstore.FieldSpec, v any) (any, error) {
	if !spec.Sequence {
		out, err := spec.Kind.Convert(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", spec.Name, err)
		}
		return out, nil
	}

	if v == nil {
		return []any{}, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("field %s: sequence field holds %T", spec.Name, v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		elem, err := spec.Kind.Convert(rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("field %s[%d]: %w", spec.Name, i, err)
		}
		out[i] = elem
	}
	return out, nil
}
