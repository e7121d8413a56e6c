// Package query evaluates filters against record stores, orders and pages the
// results, and folds them into groups.
package query

import (
	"cmp"
	"slices"
	"strings"

	"github.com/inodb/featureindex/internal/feature"
	"github.com/inodb/featureindex/internal/filter"
	"github.com/inodb/featureindex/internal/store"
)

// Evaluate returns every entry of s matching f, ordered by f.Sort with the
// tie-break applied. Pagination is left to Paginate.
func Evaluate(s *store.Store, f *filter.Filter) []*feature.Entry {
	entries := slices.Collect(s.Query(f))
	var key filter.SortKey
	if f != nil {
		key = f.Sort
	}
	// Stores yield in default order already.
	if !key.IsDefault() {
		slices.SortStableFunc(entries, Comparator(key))
	}
	return entries
}

// Paginate returns the [offset, offset+size) window of entries. A window past
// the end is empty; size <= 0 returns everything from offset.
func Paginate(entries []*feature.Entry, offset, size int) []*feature.Entry {
	if offset >= len(entries) {
		return nil
	}
	end := len(entries)
	if size > 0 && size < end-offset {
		end = offset + size
	}
	return entries[offset:end]
}

// Comparator returns the total order for key: the key in its direction, then
// the ascending tie-break.
func Comparator(key filter.SortKey) func(a, b *feature.Entry) int {
	if key.IsDefault() {
		return feature.CompareDefault
	}
	primary := primaryComparator(key.Field)
	custom := !IsBuiltinField(key.Field)
	return func(a, b *feature.Entry) int {
		if custom {
			// Entries lacking the field go last in either direction.
			pa, pb := hasField(a, key.Field), hasField(b, key.Field)
			if pa != pb {
				if pa {
					return -1
				}
				return 1
			}
		}
		c := primary(a, b)
		if key.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
		return feature.CompareTieBreak(a, b)
	}
}

// IsBuiltinField reports whether field is one of the entry attributes every
// store can sort and group by, as opposed to a catalog field.
func IsBuiltinField(field string) bool {
	switch field {
	case "", filter.FieldChromosome, filter.FieldStart, filter.FieldPosition,
		filter.FieldEnd, filter.FieldType, filter.FieldFileID, filter.FieldIdentifier:
		return true
	}
	return false
}

func hasField(e *feature.Entry, field string) bool {
	return fieldValue(e, field).present
}

func primaryComparator(field string) func(a, b *feature.Entry) int {
	switch field {
	case "", filter.FieldChromosome:
		return func(a, b *feature.Entry) int {
			if c := feature.CompareChrom(a.Chrom, b.Chrom); c != 0 {
				return c
			}
			return cmp.Compare(a.Start, b.Start)
		}
	case filter.FieldStart, filter.FieldPosition:
		return func(a, b *feature.Entry) int { return cmp.Compare(a.Start, b.Start) }
	case filter.FieldEnd:
		return func(a, b *feature.Entry) int { return cmp.Compare(a.End, b.End) }
	case filter.FieldType:
		return func(a, b *feature.Entry) int { return cmp.Compare(a.Type, b.Type) }
	case filter.FieldFileID:
		return func(a, b *feature.Entry) int { return cmp.Compare(a.FileID, b.FileID) }
	case filter.FieldIdentifier:
		return func(a, b *feature.Entry) int {
			return strings.Compare(strings.ToLower(a.FirstIdentifier()), strings.ToLower(b.FirstIdentifier()))
		}
	}
	return func(a, b *feature.Entry) int {
		return compareField(fieldValue(a, field), fieldValue(b, field))
	}
}

// value is an entry's value for a non built-in field.
type value struct {
	present bool
	numeric bool
	num     float64
	str     string
}

func fieldValue(e *feature.Entry, field string) value {
	if v, ok := e.Numeric[field]; ok {
		return value{present: true, numeric: true, num: v}
	}
	if v, ok := e.Categorical[field]; ok {
		return value{present: true, str: v}
	}
	if v, ok := e.Info[field]; ok {
		return value{present: true, str: v}
	}
	return value{}
}

// compareField orders two present-or-absent values, numbers before strings.
func compareField(a, b value) int {
	switch {
	case !a.present || !b.present:
		return 0
	case a.numeric != b.numeric:
		if a.numeric {
			return -1
		}
		return 1
	case a.numeric:
		return cmp.Compare(a.num, b.num)
	}
	return strings.Compare(a.str, b.str)
}
