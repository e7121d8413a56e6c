// Package store provides the immutable per-file record store.
package store

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/inodb/featureindex/internal/feature"
	"github.com/inodb/featureindex/internal/filter"
)

// ErrMalformedEntry is returned by Build when an entry violates
// 1 <= start <= end.
var ErrMalformedEntry = errors.New("malformed entry")

// MalformedEntryError identifies the offending entry.
type MalformedEntryError struct {
	FileID feature.FileID
	Index  int // position in the input sequence
	Start  int64
	End    int64
}

func (e *MalformedEntryError) Error() string {
	if e.Start < 1 {
		return fmt.Sprintf("file %d entry %d: start %d is not a 1-based position", e.FileID, e.Index, e.Start)
	}
	return fmt.Sprintf("file %d entry %d: start %d after end %d", e.FileID, e.Index, e.Start, e.End)
}

func (e *MalformedEntryError) Unwrap() error { return ErrMalformedEntry }

// Store holds the entries of one file, grouped by chromosome and sorted by
// start. It is never modified after Build and may be read concurrently.
type Store struct {
	fileID feature.FileID

	// rows are in default order; row IDs for the bitmaps are indices here.
	rows   []*feature.Entry
	chroms []chromSpan
	byName map[string]int // chromosome -> index into chroms

	// categorical maps field -> value -> rows carrying that value.
	categorical map[string]map[string]*roaring.Bitmap
}

// Build validates and indexes entries for fileID. Each entry is copied with
// its FileID set and chromosome normalized; the maps it references are shared
// and must not be modified afterwards. On error no store is returned.
func Build(fileID feature.FileID, entries []*feature.Entry) (*Store, error) {
	if len(entries) > math.MaxUint32 {
		return nil, fmt.Errorf("file %d: %d entries exceeds store capacity", fileID, len(entries))
	}

	rows := make([]*feature.Entry, len(entries))
	for i, e := range entries {
		if e.Start < 1 || e.Start > e.End {
			return nil, &MalformedEntryError{FileID: fileID, Index: i, Start: e.Start, End: e.End}
		}
		c := *e
		c.FileID = fileID
		c.Chrom = feature.NormalizeChrom(e.Chrom)
		rows[i] = &c
	}
	slices.SortStableFunc(rows, feature.CompareDefault)

	s := &Store{
		fileID:      fileID,
		rows:        rows,
		byName:      make(map[string]int),
		categorical: make(map[string]map[string]*roaring.Bitmap),
	}
	s.chroms = buildChromSpans(rows)
	for i, span := range s.chroms {
		s.byName[span.name] = i
	}

	for i, e := range rows {
		for name, v := range e.Categorical {
			values, ok := s.categorical[name]
			if !ok {
				values = make(map[string]*roaring.Bitmap)
				s.categorical[name] = values
			}
			bm, ok := values[v]
			if !ok {
				bm = roaring.New()
				values[v] = bm
			}
			bm.Add(uint32(i))
		}
	}
	for _, values := range s.categorical {
		for _, bm := range values {
			bm.RunOptimize()
		}
	}

	return s, nil
}

// FileID returns the owning file.
func (s *Store) FileID() feature.FileID { return s.fileID }

// Size returns the number of entries.
func (s *Store) Size() int { return len(s.rows) }

// Chromosomes returns the chromosomes present, in karyotypic order.
func (s *Store) Chromosomes() []string {
	names := make([]string, len(s.chroms))
	for i, c := range s.chroms {
		names[i] = c.name
	}
	return names
}

// All yields every entry in default order.
func (s *Store) All() iter.Seq[*feature.Entry] {
	return slices.Values(s.rows)
}

// Query yields the entries matching f. Chromosome and range constraints are
// resolved by binary search; the remaining predicates are checked on the
// surviving candidates only. Entries are yielded in default order.
func (s *Store) Query(f *filter.Filter) iter.Seq[*feature.Entry] {
	m := filter.NewMatcher(f)
	var rng *filter.Range
	if f != nil {
		rng = f.Range
	}
	allowed := s.allowed(f)

	return func(yield func(*feature.Entry) bool) {
		for _, span := range s.spans(m.Chrom()) {
			lo, hi := span.lo, span.hi
			if rng != nil {
				lo, hi = span.window(rng.Start, rng.End)
			}
			for i := lo; i < hi; i++ {
				e := s.rows[i]
				if rng != nil && e.End < rng.Start {
					continue
				}
				if allowed != nil && !allowed.Contains(uint32(i)) {
					continue
				}
				if !m.MatchNumeric(e) || !m.MatchInfo(e) || !m.MatchIdentifiers(e) {
					continue
				}
				if !yield(e) {
					return
				}
			}
		}
	}
}

// Count returns the number of entries matching f.
func (s *Store) Count(f *filter.Filter) int {
	n := 0
	for range s.Query(f) {
		n++
	}
	return n
}

func (s *Store) spans(chrom string) []chromSpan {
	if chrom == "" {
		return s.chroms
	}
	i, ok := s.byName[chrom]
	if !ok {
		return nil
	}
	return s.chroms[i : i+1]
}

// allowed intersects, across constrained fields, the union of the bitmaps of
// each field's allowed values. Nil means no categorical constraint.
func (s *Store) allowed(f *filter.Filter) *roaring.Bitmap {
	if f == nil {
		return nil
	}
	var result *roaring.Bitmap
	for _, name := range f.CategoricalFields() {
		values := s.categorical[name]
		var parts []*roaring.Bitmap
		for _, v := range f.Categorical[name] {
			if bm, ok := values[v]; ok {
				parts = append(parts, bm)
			}
		}
		union := roaring.FastOr(parts...)
		if result == nil {
			result = union
		} else {
			result.And(union)
		}
		if result.IsEmpty() {
			return result
		}
	}
	return result
}
