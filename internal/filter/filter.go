// Package filter describes caller queries against the feature index and the
// per-entry predicates they compile to.
package filter

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrInvalidFilter is returned for malformed pagination, ranges or grouping.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrUnknownField is returned when a filter names a field that was never
	// observed in the targeted files.
	ErrUnknownField = errors.New("unknown field")
)

// UnknownFieldError reports the offending field name.
type UnknownFieldError struct {
	Field string
	Kind  string // "categorical", "numeric", "info", "sort" or "group"
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown %s field %q", e.Kind, e.Field)
}

func (e *UnknownFieldError) Unwrap() error { return ErrUnknownField }

// Range is a 1-based inclusive genomic interval.
type Range struct {
	Start int64
	End   int64
}

// NumRange bounds a numeric field. A nil bound is open.
type NumRange struct {
	Min *float64
	Max *float64
}

// AtLeast returns a range with only a lower bound.
func AtLeast(v float64) NumRange { return NumRange{Min: &v} }

// AtMost returns a range with only an upper bound.
func AtMost(v float64) NumRange { return NumRange{Max: &v} }

// Between returns a closed range.
func Between(lo, hi float64) NumRange { return NumRange{Min: &lo, Max: &hi} }

// Contains reports whether v lies within the range.
func (r NumRange) Contains(v float64) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// Built-in sort and group field names. Anything else is looked up among the
// categorical, numeric and info fields of the entries.
const (
	FieldChromosome = "chromosome"
	FieldStart      = "start"
	FieldEnd        = "end"
	FieldPosition   = "position"
	FieldType       = "type"
	FieldIdentifier = "identifier"
	FieldFileID     = "file_id"
)

// SortKey selects the result order. The zero value is the default
// (chromosome, start) ascending order.
type SortKey struct {
	Field string
	Desc  bool
}

// IsDefault reports whether the key is the default ascending order.
func (k SortKey) IsDefault() bool {
	return !k.Desc && (k.Field == "" || k.Field == FieldChromosome)
}

// Filter is a caller query. Every supplied constraint must hold; an
// unset constraint always holds.
type Filter struct {
	// Chrom restricts to one chromosome (any spelling, normalized on match).
	Chrom string
	// Range restricts to entries overlapping the interval.
	Range *Range
	// Identifiers match if any entry identifier matches any of them,
	// case-insensitively: exact when Strict, substring otherwise.
	Identifiers []string
	Strict      bool
	// Categorical maps a field to its allow-set. An empty set is ignored.
	Categorical map[string][]string
	// Numeric maps a field to an inclusive range.
	Numeric map[string]NumRange
	// Info maps an info key to a required value.
	Info map[string]string

	Offset   int
	PageSize int
	Sort     SortKey
}

// Validate checks pagination and range sanity. Field names are checked
// against a catalog by the caller.
func (f *Filter) Validate() error {
	if f.Offset < 0 {
		return fmt.Errorf("%w: negative page offset %d", ErrInvalidFilter, f.Offset)
	}
	if f.PageSize < 0 {
		return fmt.Errorf("%w: negative page size %d", ErrInvalidFilter, f.PageSize)
	}
	if f.Range != nil && f.Range.Start > f.Range.End {
		return fmt.Errorf("%w: range start %d after end %d", ErrInvalidFilter, f.Range.Start, f.Range.End)
	}
	for name, r := range f.Numeric {
		if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
			return fmt.Errorf("%w: %s min %g above max %g", ErrInvalidFilter, name, *r.Min, *r.Max)
		}
	}
	return nil
}

// CategoricalFields returns the constrained categorical field names, sorted.
func (f *Filter) CategoricalFields() []string {
	var names []string
	for name, values := range f.Categorical {
		if len(values) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// NumericFields returns the constrained numeric field names, sorted.
func (f *Filter) NumericFields() []string {
	names := make([]string, 0, len(f.Numeric))
	for name := range f.Numeric {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InfoFields returns the constrained info keys, sorted.
func (f *Filter) InfoFields() []string {
	names := make([]string, 0, len(f.Info))
	for name := range f.Info {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
