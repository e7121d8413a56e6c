package query

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/featureindex/internal/feature"
	"github.com/inodb/featureindex/internal/filter"
	"github.com/inodb/featureindex/internal/store"
)

func variant(chrom string, start int64, filterStatus string, qual float64, ids ...string) *feature.Entry {
	e := &feature.Entry{
		Chrom:       chrom,
		Start:       start,
		End:         start,
		Type:        feature.TypeVariation,
		Identifiers: ids,
		Categorical: map[string]string{},
		Numeric:     map[string]float64{"QUAL": qual},
	}
	if filterStatus != "" {
		e.Categorical["FILTER"] = filterStatus
	}
	return e
}

func buildStore(t *testing.T, id feature.FileID, entries ...*feature.Entry) *store.Store {
	t.Helper()
	s, err := store.Build(id, entries)
	require.NoError(t, err)
	return s
}

func randomStore(t *testing.T, id feature.FileID, n int, seed int64) *store.Store {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	chroms := []string{"1", "2", "10", "X"}
	statuses := []string{"PASS", "LowQual", ""}
	entries := make([]*feature.Entry, n)
	for i := range entries {
		entries[i] = variant(
			chroms[rng.Intn(len(chroms))],
			int64(rng.Intn(1000)+1),
			statuses[rng.Intn(len(statuses))],
			float64(rng.Intn(60)),
			fmt.Sprintf("v%d_%d", id, i))
	}
	return buildStore(t, id, entries...)
}

func locs(entries []*feature.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = fmt.Sprintf("%d/%s/%s", e.FileID, e.Location(), e.FirstIdentifier())
	}
	return out
}

func TestEvaluate_DefaultOrder(t *testing.T) {
	s := buildStore(t, 1,
		variant("2", 5, "PASS", 1),
		variant("1", 50, "PASS", 1),
		variant("1", 10, "PASS", 1))

	got := Evaluate(s, &filter.Filter{})
	assert.Equal(t, []string{"1:10-10", "1:50-50", "2:5-5"},
		[]string{got[0].Location(), got[1].Location(), got[2].Location()})
}

func TestEvaluate_SortByNumericField(t *testing.T) {
	s := buildStore(t, 1,
		variant("1", 10, "PASS", 30, "a"),
		variant("1", 20, "PASS", 10, "b"),
		&feature.Entry{Chrom: "1", Start: 5, End: 5, Identifiers: []string{"none"}},
		variant("1", 30, "PASS", 20, "c"))

	asc := Evaluate(s, &filter.Filter{Sort: filter.SortKey{Field: "QUAL"}})
	assert.Equal(t, []string{"b", "c", "a", "none"}, ids(asc), "missing values last")

	desc := Evaluate(s, &filter.Filter{Sort: filter.SortKey{Field: "QUAL", Desc: true}})
	assert.Equal(t, []string{"a", "c", "b", "none"}, ids(desc), "missing values last when descending")
}

func TestEvaluate_SortByCategoricalTieBreak(t *testing.T) {
	s := buildStore(t, 1,
		variant("2", 10, "PASS", 0, "z"),
		variant("1", 20, "PASS", 0, "y"),
		variant("1", 20, "LowQual", 0, "x"),
		variant("1", 5, "PASS", 0, "w"))

	got := Evaluate(s, &filter.Filter{Sort: filter.SortKey{Field: "FILTER"}})
	// LowQual first; PASS ties broken by (file, start, first identifier).
	assert.Equal(t, []string{"x", "w", "z", "y"}, ids(got))
}

func TestPaginate(t *testing.T) {
	s := randomStore(t, 1, 37, 1)
	all := Evaluate(s, &filter.Filter{})

	assert.Len(t, Paginate(all, 0, 10), 10)
	assert.Len(t, Paginate(all, 30, 10), 7)
	assert.Empty(t, Paginate(all, 37, 10))
	assert.Empty(t, Paginate(all, 100, 10))
	assert.Len(t, Paginate(all, 5, 0), 32)
	assert.Len(t, Paginate(all, 1, math.MaxInt), 36)
}

func TestPaginate_ConcatenationMatchesFullResult(t *testing.T) {
	s := randomStore(t, 1, 101, 7)
	f := &filter.Filter{Sort: filter.SortKey{Field: "QUAL", Desc: true}}
	all := Evaluate(s, f)

	for _, k := range []int{1, 3, 10, 100, 200} {
		var pages []*feature.Entry
		for offset := 0; offset < len(all); offset += k {
			pages = append(pages, Paginate(Evaluate(s, f), offset, k)...)
		}
		assert.Equal(t, locs(all), locs(pages), "page size %d", k)
	}
}

func TestMergeSorted_MatchesSortAll(t *testing.T) {
	lists := [][]*feature.Entry{
		Evaluate(randomStore(t, 3, 40, 3), nil),
		Evaluate(randomStore(t, 1, 55, 1), nil),
		nil,
		Evaluate(randomStore(t, 2, 23, 2), nil),
	}
	merged := MergeSorted(lists, feature.CompareDefault)
	sorted := SortAll(lists, feature.CompareDefault)
	assert.Len(t, merged, 118)
	assert.Equal(t, locs(sorted), locs(merged))
}

func TestMergeSorted_Empty(t *testing.T) {
	assert.Empty(t, MergeSorted(nil, feature.CompareDefault))
	assert.Empty(t, MergeSorted([][]*feature.Entry{nil, {}}, feature.CompareDefault))
}

func TestComparator_CrossFileTieBreak(t *testing.T) {
	a := variant("1", 100, "PASS", 0, "a")
	a.FileID = 2
	b := variant("1", 100, "PASS", 0, "b")
	b.FileID = 1

	cmpDefault := Comparator(filter.SortKey{})
	assert.Positive(t, cmpDefault(a, b), "lower file id first")

	cmpType := Comparator(filter.SortKey{Field: filter.FieldType})
	assert.Positive(t, cmpType(a, b))
}

func TestGroupEntries_Categorical(t *testing.T) {
	entries := []*feature.Entry{
		variant("1", 1, "PASS", 0),
		variant("1", 2, "LowQual", 0),
		variant("1", 3, "PASS", 0),
		variant("1", 4, "", 0),
		variant("1", 5, "q10", 0),
	}
	groups, err := GroupEntries(entries, GroupBy{Field: "FILTER"})
	require.NoError(t, err)
	assert.Equal(t, []Group{
		{Value: "PASS", Count: 2},
		{Value: "LowQual", Count: 1},
		{Value: "q10", Count: 1},
		{Value: Unspecified, Count: 1},
	}, groups)
}

func TestGroupEntries_SumMatchesInput(t *testing.T) {
	entries := Evaluate(randomStore(t, 1, 250, 11), nil)
	for _, by := range []GroupBy{
		{Field: "FILTER"},
		{Field: filter.FieldChromosome},
		{Field: filter.FieldType},
		{Field: filter.FieldIdentifier},
		{Field: filter.FieldPosition, BucketWidth: 100},
		{Field: "QUAL", BucketWidth: 10},
		{Field: "NOT_THERE"},
	} {
		groups, err := GroupEntries(entries, by)
		require.NoError(t, err, by.Field)
		total := 0
		for _, g := range groups {
			total += g.Count
		}
		assert.Equal(t, len(entries), total, by.Field)
	}
}

func TestGroupEntries_Buckets(t *testing.T) {
	entries := []*feature.Entry{
		variant("1", 1, "PASS", 9.5),
		variant("1", 1000, "PASS", 10),
		variant("1", 1001, "PASS", 25),
		variant("2", 1, "PASS", 0),
	}

	groups, err := GroupEntries(entries, GroupBy{Field: filter.FieldPosition, BucketWidth: 1000})
	require.NoError(t, err)
	assert.Equal(t, []Group{
		{Value: "1:1-1000", Count: 2},
		{Value: "1:1001-2000", Count: 1},
		{Value: "2:1-1000", Count: 1},
	}, groups)

	groups, err = GroupEntries(entries, GroupBy{Field: "QUAL", BucketWidth: 10})
	require.NoError(t, err)
	assert.Equal(t, []Group{
		{Value: "[0, 10)", Count: 2},
		{Value: "[10, 20)", Count: 1},
		{Value: "[20, 30)", Count: 1},
	}, groups)
}

func TestGroupEntries_BucketWidthRequired(t *testing.T) {
	entries := []*feature.Entry{variant("1", 1, "PASS", 5)}

	_, err := GroupEntries(entries, GroupBy{Field: filter.FieldPosition})
	assert.ErrorIs(t, err, filter.ErrInvalidFilter)

	_, err = GroupEntries(entries, GroupBy{Field: "QUAL"})
	assert.ErrorIs(t, err, filter.ErrInvalidFilter)

	_, err = GroupEntries(entries, GroupBy{})
	assert.ErrorIs(t, err, filter.ErrInvalidFilter)
}

func ids(entries []*feature.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.FirstIdentifier()
	}
	return out
}
