package ntuple

// Record is one element of a prefix group. Attribute values are read from
// the store on every Get.
type Record struct {
	store  *Store
	entry  int
	prefix string
	index  int
}

// Prefix returns the field name prefix of the record's group.
func (r Record) Prefix() string {
	return r.prefix
}

// Index returns the position within the group, or NoIndex.
func (r Record) Index() int {
	return r.index
}

// IsValid reports whether the record refers to an element.
func (r Record) IsValid() bool {
	return r.store != nil && r.index != NoIndex
}

// Get returns element Index() of field prefix_attr at the bound entry.
func (r Record) Get(attr string) (any, error) {
	if !r.IsValid() {
		return nil, &InvalidRecordError{Prefix: r.prefix}
	}

	name := fieldName(r.prefix, attr)
	v, err := r.store.readField(r.entry, r.prefix, name)
	if err != nil {
		return nil, err
	}
	elem, ok := v.At(r.index)
	if !ok {
		err := &IndexOutOfRangeError{What: name, Index: r.index, Len: v.Len()}
		r.store.metrics.RecordViewError(viewErrorKind(err))
		return nil, err
	}
	return elem, nil
}
