package query

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/inodb/featureindex/internal/feature"
	"github.com/inodb/featureindex/internal/filter"
)

// Unspecified labels entries with no value for the grouping field.
const Unspecified = "unspecified"

// GroupBy selects the grouping field. BucketWidth is required for the
// position field and for numeric fields.
type GroupBy struct {
	Field       string
	BucketWidth float64
}

// Group is one facet row.
type Group struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// GroupEntries counts entries per value of by.Field in a single pass. Rows are
// ordered by descending count, ties by ascending value. The counts always sum
// to the number of entries.
func GroupEntries(entries []*feature.Entry, by GroupBy) ([]Group, error) {
	label, err := labeler(by)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, e := range entries {
		v, err := label(e)
		if err != nil {
			return nil, err
		}
		counts[v]++
	}

	groups := make([]Group, 0, len(counts))
	for v, n := range counts {
		groups = append(groups, Group{Value: v, Count: n})
	}
	slices.SortFunc(groups, func(a, b Group) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Value, b.Value)
	})
	return groups, nil
}

func labeler(by GroupBy) (func(*feature.Entry) (string, error), error) {
	switch by.Field {
	case "":
		return nil, fmt.Errorf("%w: empty group field", filter.ErrInvalidFilter)
	case filter.FieldChromosome:
		return func(e *feature.Entry) (string, error) { return orUnspecified(e.Chrom), nil }, nil
	case filter.FieldType:
		return func(e *feature.Entry) (string, error) { return orUnspecified(string(e.Type)), nil }, nil
	case filter.FieldIdentifier:
		return func(e *feature.Entry) (string, error) { return orUnspecified(e.FirstIdentifier()), nil }, nil
	case filter.FieldPosition, filter.FieldStart:
		width := int64(by.BucketWidth)
		if width < 1 {
			return nil, fmt.Errorf("%w: grouping by %s needs a bucket width >= 1", filter.ErrInvalidFilter, by.Field)
		}
		return func(e *feature.Entry) (string, error) {
			bin := (e.Start - 1) / width
			return fmt.Sprintf("%s:%d-%d", e.Chrom, bin*width+1, (bin+1)*width), nil
		}, nil
	}

	return func(e *feature.Entry) (string, error) {
		if v, ok := e.Numeric[by.Field]; ok {
			if by.BucketWidth <= 0 {
				return "", fmt.Errorf("%w: numeric field %s needs a bucket width", filter.ErrInvalidFilter, by.Field)
			}
			return numericBucket(v, by.BucketWidth), nil
		}
		if v, ok := e.Categorical[by.Field]; ok {
			return orUnspecified(v), nil
		}
		if v, ok := e.Info[by.Field]; ok {
			return orUnspecified(v), nil
		}
		return Unspecified, nil
	}, nil
}

func numericBucket(v, width float64) string {
	lo := math.Floor(v/width) * width
	return "[" + strconv.FormatFloat(lo, 'g', -1, 64) + ", " + strconv.FormatFloat(lo+width, 'g', -1, 64) + ")"
}

func orUnspecified(v string) string {
	if v == "" {
		return Unspecified
	}
	return v
}
