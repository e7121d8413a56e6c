package store

import (
	"fmt"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/featureindex/internal/feature"
	"github.com/inodb/featureindex/internal/filter"
)

func entry(chrom string, start, end int64, filterStatus string, ids ...string) *feature.Entry {
	return &feature.Entry{
		Chrom:       chrom,
		Start:       start,
		End:         end,
		Type:        feature.TypeVariation,
		Identifiers: ids,
		Categorical: map[string]string{"FILTER": filterStatus},
		Numeric:     map[string]float64{"QUAL": float64(start % 100)},
	}
}

func collect(s *Store, f *filter.Filter) []*feature.Entry {
	return slices.Collect(s.Query(f))
}

func locations(entries []*feature.Entry) []string {
	locs := make([]string, len(entries))
	for i, e := range entries {
		locs[i] = e.Location()
	}
	return locs
}

func TestBuild_Empty(t *testing.T) {
	s, err := Build(1, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Size())
	assert.Empty(t, collect(s, nil))
	assert.Empty(t, collect(s, &filter.Filter{Chrom: "1", Range: &filter.Range{Start: 1, End: 10}}))
}

func TestBuild_Malformed(t *testing.T) {
	entries := []*feature.Entry{
		entry("1", 100, 200, "PASS"),
		entry("1", 300, 250, "PASS"),
	}
	s, err := Build(7, entries)
	require.Error(t, err)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrMalformedEntry)

	var me *MalformedEntryError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, feature.FileID(7), me.FileID)
	assert.Equal(t, 1, me.Index)
}

func TestBuild_RejectsStartBeforeOne(t *testing.T) {
	_, err := Build(4, []*feature.Entry{entry("1", 0, 10, "PASS")})
	require.ErrorIs(t, err, ErrMalformedEntry)
	assert.Contains(t, err.Error(), "start 0 is not a 1-based position")

	s, err := Build(4, []*feature.Entry{entry("1", 1, 1, "PASS")})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Size())
}

func TestBuild_UnconstrainedReturnsInput(t *testing.T) {
	entries := []*feature.Entry{
		entry("chr2", 50, 60, "PASS", "b"),
		entry("chr1", 300, 400, "LowQual", "a"),
		entry("chrX", 5, 5, "PASS"),
		entry("chr1", 100, 200, "PASS", "c"),
	}
	s, err := Build(3, entries)
	require.NoError(t, err)
	assert.Equal(t, len(entries), s.Size())

	got := collect(s, &filter.Filter{})
	assert.ElementsMatch(t,
		[]string{"2:50-60", "1:300-400", "X:5-5", "1:100-200"},
		locations(got))
	for _, e := range got {
		assert.Equal(t, feature.FileID(3), e.FileID)
	}
	assert.Equal(t, []string{"1", "2", "X"}, s.Chromosomes())
}

func TestBuild_DoesNotMutateInput(t *testing.T) {
	in := entry("chr1", 1, 2, "PASS")
	_, err := Build(9, []*feature.Entry{in})
	require.NoError(t, err)
	assert.Equal(t, "chr1", in.Chrom)
	assert.Equal(t, feature.FileID(0), in.FileID)
}

func TestQuery_DefaultOrder(t *testing.T) {
	entries := []*feature.Entry{
		entry("X", 10, 10, "PASS"),
		entry("10", 5, 5, "PASS"),
		entry("2", 30, 30, "PASS", "b"),
		entry("2", 30, 30, "PASS", "a"),
		entry("2", 1, 1, "PASS"),
	}
	s, err := Build(1, entries)
	require.NoError(t, err)

	got := collect(s, nil)
	assert.Equal(t, []string{"2:1-1", "2:30-30", "2:30-30", "10:5-5", "X:10-10"}, locations(got))
	assert.Equal(t, "a", got[1].FirstIdentifier())
	assert.Equal(t, "b", got[2].FirstIdentifier())
}

func TestQuery_RangeBoundaries(t *testing.T) {
	s, err := Build(1, []*feature.Entry{entry("1", 100, 200, "PASS")})
	require.NoError(t, err)

	tests := []struct {
		qs, qe int64
		want   int
	}{
		{200, 300, 1}, // start == qe
		{50, 100, 1},  // end == qs
		{201, 300, 0},
		{1, 99, 0},
		{150, 150, 1},
	}
	for _, tt := range tests {
		f := &filter.Filter{Chrom: "chr1", Range: &filter.Range{Start: tt.qs, End: tt.qe}}
		assert.Equal(t, tt.want, s.Count(f), "range [%d,%d]", tt.qs, tt.qe)
	}
}

func TestQuery_LongEntryBeforeShortOnes(t *testing.T) {
	// A long entry early in the chromosome must be found past many short ones.
	entries := []*feature.Entry{
		entry("1", 100, 10000, "PASS", "long"),
		entry("1", 200, 210, "PASS"),
		entry("1", 300, 310, "PASS"),
		entry("1", 400, 410, "PASS"),
	}
	s, err := Build(1, entries)
	require.NoError(t, err)

	got := collect(s, &filter.Filter{Range: &filter.Range{Start: 5000, End: 6000}})
	require.Len(t, got, 1)
	assert.Equal(t, "long", got[0].FirstIdentifier())
}

func TestQuery_Scenario(t *testing.T) {
	entries := []*feature.Entry{
		entry("chr1", 100, 200, "PASS"),
		entry("chr1", 300, 400, "LowQual"),
		entry("chr2", 50, 60, "PASS"),
	}
	s, err := Build(1, entries)
	require.NoError(t, err)

	got := collect(s, &filter.Filter{
		Chrom:       "chr1",
		Categorical: map[string][]string{"FILTER": {"PASS"}},
	})
	assert.Equal(t, []string{"1:100-200"}, locations(got))
}

func TestQuery_Categorical(t *testing.T) {
	entries := []*feature.Entry{
		entry("1", 1, 1, "PASS"),
		entry("1", 2, 2, "LowQual"),
		entry("1", 3, 3, "q10"),
		{Chrom: "1", Start: 4, End: 4},
	}
	s, err := Build(1, entries)
	require.NoError(t, err)

	assert.Equal(t, 2, s.Count(&filter.Filter{Categorical: map[string][]string{"FILTER": {"PASS", "q10"}}}))
	assert.Equal(t, 0, s.Count(&filter.Filter{Categorical: map[string][]string{"FILTER": {"nope"}}}))
	assert.Equal(t, 0, s.Count(&filter.Filter{Categorical: map[string][]string{"CLASS": {"SNV"}}}))
	assert.Equal(t, 4, s.Count(&filter.Filter{Categorical: map[string][]string{"FILTER": {}}}))

	// Bitmaps in the store must not be altered by intersections.
	assert.Equal(t, 1, s.Count(&filter.Filter{Categorical: map[string][]string{"FILTER": {"PASS"}}}))
}

func TestQuery_NumericAndIdentifiers(t *testing.T) {
	entries := []*feature.Entry{
		entry("1", 10, 10, "PASS", "rs1", "KRAS"),
		entry("1", 20, 20, "PASS", "rs2", "BRAF"),
		entry("1", 90, 90, "PASS", "rs3", "KRASP1"),
	}
	s, err := Build(1, entries)
	require.NoError(t, err)

	assert.Equal(t, 2, s.Count(&filter.Filter{Numeric: map[string]filter.NumRange{"QUAL": filter.AtMost(50)}}))
	assert.Equal(t, 2, s.Count(&filter.Filter{Identifiers: []string{"kras"}}))
	assert.Equal(t, 1, s.Count(&filter.Filter{Identifiers: []string{"kras"}, Strict: true}))
	assert.Equal(t, 1, s.Count(&filter.Filter{
		Identifiers: []string{"kras"},
		Numeric:     map[string]filter.NumRange{"QUAL": filter.AtLeast(50)},
	}))
}

func TestQuery_EarlyStop(t *testing.T) {
	var entries []*feature.Entry
	for i := range 10 {
		entries = append(entries, entry("1", int64(i+1), int64(i+1), "PASS"))
	}
	s, err := Build(1, entries)
	require.NoError(t, err)

	n := 0
	for range s.Query(nil) {
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)
}

func TestQuery_MatchesLinearScan(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	chroms := []string{"1", "2", "X"}
	statuses := []string{"PASS", "LowQual", "q10"}

	var entries []*feature.Entry
	for i := range 500 {
		start := int64(rng.Intn(10000) + 1)
		end := start + int64(rng.Intn(500))
		entries = append(entries, entry(
			chroms[rng.Intn(len(chroms))], start, end,
			statuses[rng.Intn(len(statuses))],
			fmt.Sprintf("id%d", i)))
	}
	s, err := Build(1, entries)
	require.NoError(t, err)

	for q := range 50 {
		qs := int64(rng.Intn(10000) + 1)
		f := &filter.Filter{
			Chrom:       chroms[q%len(chroms)],
			Range:       &filter.Range{Start: qs, End: qs + int64(rng.Intn(2000))},
			Categorical: map[string][]string{"FILTER": {statuses[q%len(statuses)]}},
		}
		if q%2 == 0 {
			f.Identifiers = []string{"1"}
		}

		m := filter.NewMatcher(f)
		var linear []string
		for _, e := range collect(s, nil) {
			if m.Match(e) {
				linear = append(linear, e.Location()+"/"+e.FirstIdentifier())
			}
		}
		var indexed []string
		for _, e := range collect(s, f) {
			indexed = append(indexed, e.Location()+"/"+e.FirstIdentifier())
		}
		assert.Equal(t, linear, indexed, "query %d", q)
	}
}
