package ntuple

import (
	"fmt"
	"iter"
)

// Collection is an indexable view over one prefix group of an event.
// Its length is read from the size field on every call.
type Collection struct {
	store    *Store
	entry    int
	prefix   string
	sizeAttr string
}

// Prefix returns the field name prefix of the group.
func (c Collection) Prefix() string {
	return c.prefix
}

// SizeField returns the name of the field the length is read from.
func (c Collection) SizeField() string {
	return fieldName(c.prefix, c.sizeAttr)
}

// Len returns the number of records at the bound entry. A scalar integer
// size field is the count itself, a sequence size field counts by length.
func (c Collection) Len() (int, error) {
	if c.store == nil {
		return 0, &StaleViewError{Bound: c.entry, Current: NoIndex}
	}
	v, err := c.store.readField(c.entry, c.prefix, c.SizeField())
	if err != nil {
		return 0, err
	}
	n, err := v.Count()
	if err != nil {
		return 0, fmt.Errorf("size field %s: %w", c.SizeField(), err)
	}
	return n, nil
}

// Count is an alias of Len.
func (c Collection) Count() (int, error) {
	return c.Len()
}

// At returns record k.
func (c Collection) At(k int) (Record, error) {
	n, err := c.Len()
	if err != nil {
		return c.invalid(), err
	}
	if k < 0 || k >= n {
		return c.invalid(), &IndexOutOfRangeError{What: c.prefix, Index: k, Len: n}
	}
	return Record{store: c.store, entry: c.entry, prefix: c.prefix, index: k}, nil
}

// All yields records 0..Len()-1. The length is read once per range. If it
// cannot be read, a single invalid record is yielded with the error.
func (c Collection) All() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		n, err := c.Len()
		if err != nil {
			yield(c.invalid(), err)
			return
		}
		for k := 0; k < n; k++ {
			r := Record{store: c.store, entry: c.entry, prefix: c.prefix, index: k}
			if !yield(r, nil) {
				return
			}
		}
	}
}

// invalid returns the NoIndex record of the collection, handed out with
// errors so it can never pass for element 0.
func (c Collection) invalid() Record {
	return Record{store: c.store, entry: c.entry, prefix: c.prefix, index: NoIndex}
}

func fieldName(prefix, attr string) string {
	return prefix + "_" + attr
}
