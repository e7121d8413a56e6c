package filter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/featureindex/internal/feature"
)

func variant(chrom string, start, end int64, filterStatus string, qual float64, ids ...string) *feature.Entry {
	return &feature.Entry{
		FileID:      1,
		Chrom:       chrom,
		Start:       start,
		End:         end,
		Type:        feature.TypeVariation,
		Identifiers: ids,
		Categorical: map[string]string{"FILTER": filterStatus},
		Numeric:     map[string]float64{"QUAL": qual},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		f    Filter
		ok   bool
	}{
		{"zero value", Filter{}, true},
		{"negative offset", Filter{Offset: -1}, false},
		{"negative page size", Filter{PageSize: -5}, false},
		{"inverted range", Filter{Range: &Range{Start: 10, End: 5}}, false},
		{"point range", Filter{Range: &Range{Start: 10, End: 10}}, true},
		{"inverted numeric", Filter{Numeric: map[string]NumRange{"QUAL": Between(50, 10)}}, false},
		{"open numeric", Filter{Numeric: map[string]NumRange{"QUAL": AtLeast(10)}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.f.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidFilter)
			}
		})
	}
}

func TestUnknownFieldError(t *testing.T) {
	var err error = &UnknownFieldError{Field: "DP", Kind: "numeric"}
	assert.True(t, errors.Is(err, ErrUnknownField))
	assert.Contains(t, err.Error(), `"DP"`)

	var ufe *UnknownFieldError
	require.True(t, errors.As(err, &ufe))
	assert.Equal(t, "numeric", ufe.Kind)
}

func TestFieldLists(t *testing.T) {
	f := &Filter{
		Categorical: map[string][]string{"FILTER": {"PASS"}, "CLASS": {}, "AA": {"x"}},
		Numeric:     map[string]NumRange{"QUAL": AtLeast(1), "DP": AtMost(3)},
		Info:        map[string]string{"SOMATIC": "true"},
	}
	assert.Equal(t, []string{"AA", "FILTER"}, f.CategoricalFields(), "empty allow-set is not a constraint")
	assert.Equal(t, []string{"DP", "QUAL"}, f.NumericFields())
	assert.Equal(t, []string{"SOMATIC"}, f.InfoFields())
}

func TestSortKeyIsDefault(t *testing.T) {
	assert.True(t, SortKey{}.IsDefault())
	assert.True(t, SortKey{Field: FieldChromosome}.IsDefault())
	assert.False(t, SortKey{Desc: true}.IsDefault())
	assert.False(t, SortKey{Field: "QUAL"}.IsDefault())
}

func TestMatcher_Range(t *testing.T) {
	e := variant("1", 100, 200, "PASS", 30)

	tests := []struct {
		qs, qe int64
		want   bool
	}{
		{200, 300, true}, // start == qe
		{50, 100, true},  // end == qs
		{150, 160, true},
		{50, 250, true},
		{201, 300, false},
		{10, 99, false},
	}
	for _, tt := range tests {
		m := NewMatcher(&Filter{Range: &Range{Start: tt.qs, End: tt.qe}})
		assert.Equal(t, tt.want, m.Match(e), "range [%d,%d]", tt.qs, tt.qe)
	}
}

func TestMatcher_Chrom(t *testing.T) {
	e := variant("1", 100, 200, "PASS", 30)
	assert.True(t, NewMatcher(&Filter{Chrom: "chr1"}).Match(e))
	assert.True(t, NewMatcher(&Filter{Chrom: "1"}).Match(e))
	assert.False(t, NewMatcher(&Filter{Chrom: "chr2"}).Match(e))
	assert.Equal(t, "1", NewMatcher(&Filter{Chrom: "CHR1"}).Chrom())
}

func TestMatcher_Categorical(t *testing.T) {
	pass := variant("1", 1, 1, "PASS", 30)
	low := variant("1", 2, 2, "LowQual", 30)
	bare := &feature.Entry{Chrom: "1", Start: 3, End: 3}

	m := NewMatcher(&Filter{Categorical: map[string][]string{"FILTER": {"PASS"}}})
	assert.True(t, m.Match(pass))
	assert.False(t, m.Match(low))
	assert.False(t, m.Match(bare), "absent field fails a constrained allow-set")

	m = NewMatcher(&Filter{Categorical: map[string][]string{"FILTER": {"PASS", "LowQual"}}})
	assert.True(t, m.Match(low))

	m = NewMatcher(&Filter{Categorical: map[string][]string{"FILTER": {}}})
	assert.True(t, m.Match(bare), "empty allow-set is unconstrained")
}

func TestMatcher_Numeric(t *testing.T) {
	e := variant("1", 1, 1, "PASS", 30)
	assert.True(t, NewMatcher(&Filter{Numeric: map[string]NumRange{"QUAL": AtLeast(30)}}).Match(e))
	assert.True(t, NewMatcher(&Filter{Numeric: map[string]NumRange{"QUAL": AtMost(30)}}).Match(e))
	assert.True(t, NewMatcher(&Filter{Numeric: map[string]NumRange{"QUAL": {}}}).Match(e))
	assert.False(t, NewMatcher(&Filter{Numeric: map[string]NumRange{"QUAL": Between(31, 40)}}).Match(e))
	assert.False(t, NewMatcher(&Filter{Numeric: map[string]NumRange{"DP": AtLeast(0)}}).Match(e))
}

func TestMatcher_Info(t *testing.T) {
	e := variant("1", 1, 1, "PASS", 30)
	e.Info = map[string]string{"SOMATIC": "true"}
	assert.True(t, NewMatcher(&Filter{Info: map[string]string{"SOMATIC": "true"}}).Match(e))
	assert.False(t, NewMatcher(&Filter{Info: map[string]string{"SOMATIC": "false"}}).Match(e))
	assert.False(t, NewMatcher(&Filter{Info: map[string]string{"DB": "true"}}).Match(e))
}

func TestMatcher_Identifiers(t *testing.T) {
	e := variant("12", 25245350, 25245350, "PASS", 30, "rs121913529", "KRAS")

	assert.True(t, NewMatcher(&Filter{Identifiers: []string{"kras"}, Strict: true}).Match(e))
	assert.False(t, NewMatcher(&Filter{Identifiers: []string{"kra"}, Strict: true}).Match(e))
	assert.True(t, NewMatcher(&Filter{Identifiers: []string{"kra"}}).Match(e))
	assert.True(t, NewMatcher(&Filter{Identifiers: []string{"BRAF", "RS1219"}}).Match(e), "any-of")
	assert.False(t, NewMatcher(&Filter{Identifiers: []string{"BRAF"}}).Match(e))

	m := NewMatcher(&Filter{Identifiers: []string{"kr"}})
	assert.True(t, m.MatchIdentifier("KRAS"))
	assert.False(t, m.MatchIdentifier("rs121913529"))
}

func TestMatcher_NilFilter(t *testing.T) {
	assert.True(t, NewMatcher(nil).Match(&feature.Entry{Chrom: "X", Start: 5, End: 5}))
}
