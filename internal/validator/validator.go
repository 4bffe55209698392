// Package validator checks ntuple files for internal consistency.
package validator

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jittakal/ntuplestore/internal/errors"
	"github.com/jittakal/ntuplestore/pkg/ntuple"
)

// Check names used for failure metrics.
const (
	CheckIdentifier = "identifier"
	CheckSizeField  = "size_field"
	CheckLength     = "length"
	CheckRead       = "read"
)

// MetricsCollector defines metrics operations for the validator.
type MetricsCollector interface {
	IncValidationFailures(check string)
}

// Report summarizes a consistency check.
type Report struct {
	Entries  int
	Failures []*errors.ValidationError
}

// OK reports whether the check found no failures.
func (r *Report) OK() bool {
	return len(r.Failures) == 0
}

// NtupleValidator verifies that an ntuple carries event identifiers, that
// every declared collection has its size field, and that every sequence
// attribute of a collection is at least as long as the collection.
type NtupleValidator struct {
	collections []ntuple.Kind
	maxFailures int
	metrics     MetricsCollector
}

// NewNtupleValidator creates a validator for the declared collections.
// maxFailures stops the scan early; zero means no limit.
func NewNtupleValidator(collections []ntuple.Kind, maxFailures int, metrics MetricsCollector) *NtupleValidator {
	return &NtupleValidator{
		collections: collections,
		maxFailures: maxFailures,
		metrics:     metrics,
	}
}

// Validate checks the field layout and then every entry of s. Entry is
// ntuple.NoIndex for layout failures. Loading entries moves the store's
// current entry.
func (v *NtupleValidator) Validate(s *ntuple.Store) (*Report, error) {
	report := &Report{Entries: s.EntryCount()}

	for _, f := range v.ValidateLayout(s) {
		if v.add(report, f, CheckFailure(f)) {
			return report, nil
		}
	}

	for i := range s.EntryCount() {
		ev, err := s.LoadEntry(i)
		if err != nil {
			if errorsIsClosed(err) {
				return report, err
			}
			f := &errors.ValidationError{Entry: i, Reason: fmt.Sprintf("read failed: %v", err)}
			if v.add(report, f, CheckRead) {
				return report, nil
			}
			continue
		}
		for _, f := range v.ValidateEvent(ev) {
			if v.add(report, f, CheckFailure(f)) {
				return report, nil
			}
		}
	}
	return report, nil
}

// ValidateLayout checks that the identifier fields and the declared size
// fields exist.
func (v *NtupleValidator) ValidateLayout(s *ntuple.Store) []*errors.ValidationError {
	var failures []*errors.ValidationError
	for _, name := range []string{ntuple.RunField, ntuple.LumiField, ntuple.EventField} {
		if !s.HasField(name) {
			failures = append(failures, &errors.ValidationError{
				Entry:  ntuple.NoIndex,
				Field:  name,
				Reason: "identifier field is missing",
			})
		}
	}
	for _, kind := range v.collections {
		if !s.HasField(kind.SizeField()) {
			failures = append(failures, &errors.ValidationError{
				Entry:  ntuple.NoIndex,
				Field:  kind.SizeField(),
				Reason: "size field of declared collection is missing",
			})
		}
	}
	return failures
}

// ValidateEvent checks identifier values and collection lengths of one
// loaded event.
func (v *NtupleValidator) ValidateEvent(ev ntuple.Event) []*errors.ValidationError {
	entry := ev.EntryIndex()
	var failures []*errors.ValidationError

	if _, err := ev.ID(); err != nil && !isMissing(err) {
		failures = append(failures, &errors.ValidationError{
			Entry:  entry,
			Field:  "run:lumi:event",
			Reason: err.Error(),
		})
	}

	for _, kind := range v.collections {
		n, err := ev.Of(kind).Len()
		if err != nil {
			// Missing size fields are layout failures.
			if !isMissing(err) {
				failures = append(failures, &errors.ValidationError{Entry: entry, Field: kind.SizeField(), Reason: err.Error()})
			}
			continue
		}

		table, err := ev.Table(kind.Prefix)
		if err != nil {
			failures = append(failures, &errors.ValidationError{Entry: entry, Field: kind.Prefix + "_*", Reason: err.Error()})
			continue
		}

		attrs := make([]string, 0, len(table))
		for attr := range table {
			attrs = append(attrs, attr)
		}
		sort.Strings(attrs)

		for _, attr := range attrs {
			value := table[attr]
			if !value.IsSequence() || v.ownedByOther(kind.Prefix, attr) {
				continue
			}
			if value.Len() < n {
				failures = append(failures, &errors.ValidationError{
					Entry:  entry,
					Field:  kind.Prefix + "_" + attr,
					Reason: fmt.Sprintf("sequence has %d elements, collection %s has %d", value.Len(), kind.Prefix, n),
				})
			}
		}
	}
	return failures
}

// ownedByOther reports whether prefix_attr belongs to a longer declared
// prefix, such as rechit_raw_pt when both rechit and rechit_raw are declared.
func (v *NtupleValidator) ownedByOther(prefix, attr string) bool {
	name := prefix + "_" + attr
	for _, other := range v.collections {
		if len(other.Prefix) > len(prefix) && strings.HasPrefix(name, other.Prefix+"_") {
			return true
		}
	}
	return false
}

// add records f and reports whether the failure limit was reached.
func (v *NtupleValidator) add(report *Report, f *errors.ValidationError, check string) bool {
	report.Failures = append(report.Failures, f)
	if v.metrics != nil {
		v.metrics.IncValidationFailures(check)
	}
	return v.maxFailures > 0 && len(report.Failures) >= v.maxFailures
}

// CheckFailure classifies a failure into one of the check names.
func CheckFailure(f *errors.ValidationError) string {
	switch {
	case f.Entry == ntuple.NoIndex && (f.Field == ntuple.RunField || f.Field == ntuple.LumiField || f.Field == ntuple.EventField):
		return CheckIdentifier
	case f.Entry == ntuple.NoIndex:
		return CheckSizeField
	case f.Field == "run:lumi:event":
		return CheckIdentifier
	case strings.HasPrefix(f.Reason, "read failed"):
		return CheckRead
	default:
		return CheckLength
	}
}

func isMissing(err error) bool {
	return stderrors.Is(err, ntuple.ErrMissingField)
}

func errorsIsClosed(err error) bool {
	return stderrors.Is(err, ntuple.ErrClosed)
}
