package vcf

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/featureindex/internal/feature"
)

func TestReadFile_Entries(t *testing.T) {
	entries, err := ReadFile(filepath.Join("testdata", "sample.vcf"), Options{})
	require.NoError(t, err)
	require.Len(t, entries, 5)

	kras := entries[0]
	assert.Equal(t, "chr12", kras.Chrom)
	assert.Equal(t, int64(25245351), kras.Start)
	assert.Equal(t, int64(25245351), kras.End)
	assert.Equal(t, feature.TypeVariation, kras.Type)
	assert.Equal(t, []string{"rs121913529", "KRAS"}, kras.Identifiers)
	assert.Equal(t, map[string]string{
		FieldVariantClass: "SNV",
		FieldFilter:       "PASS",
		"DB":              "true",
	}, kras.Categorical)
	assert.Equal(t, map[string]float64{FieldQual: 99.5, "DP": 40, "AF": 0.45}, kras.Numeric)
	assert.Equal(t, map[string]string{"GENE": "KRAS"}, kras.Info)

	tp53 := entries[1]
	assert.Equal(t, []string{"TP53"}, tp53.Identifiers)
	assert.Equal(t, "LowQual", tp53.Categorical[FieldFilter])
	assert.Equal(t, map[string]float64{"DP": 12}, tp53.Numeric)
	// Number=A with two alleles is not single-valued.
	assert.Equal(t, "0.1,0.05", tp53.Info["AF"])

	braf := entries[2]
	assert.Equal(t, []string{"rs113488022", "COSM476"}, braf.Identifiers)
	assert.Equal(t, "INS", braf.Categorical[FieldVariantClass])
	assert.Equal(t, "missense|BRAF", braf.Info["CSQ"])

	sv := entries[3]
	assert.Equal(t, int64(1000), sv.Start)
	assert.Equal(t, int64(5000), sv.End)
	assert.Equal(t, "SV", sv.Categorical[FieldVariantClass])
	assert.Equal(t, "DEL", sv.Categorical["SVTYPE"])

	del := entries[4]
	assert.Equal(t, int64(503), del.End)
	assert.Empty(t, del.Identifiers)
	assert.Nil(t, del.Numeric)
	assert.NotContains(t, del.Categorical, FieldFilter)
}

func TestReadFile_SplitAlleles(t *testing.T) {
	entries, err := ReadFile(filepath.Join("testdata", "sample.vcf"), Options{SplitAlleles: true})
	require.NoError(t, err)
	require.Len(t, entries, 6)
	assert.Equal(t, entries[1].Start, entries[2].Start)
	assert.Equal(t, "SNV", entries[2].Categorical[FieldVariantClass])
}

func TestConverter_GeneKeys(t *testing.T) {
	const vcf = "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n" +
		"1\t100\trs1\tA\tC\t.\t.\tGENEINFO=BRCA1:672|NBR2:10230;ANN=C|missense_variant|MODERATE|BRCA1|ENSG1,C|intron|MODIFIER|RND2|ENSG2\n"

	entries, err := Read(strings.NewReader(vcf), Options{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"rs1", "BRCA1", "RND2", "NBR2"}, entries[0].Identifiers)

	entries, err = Read(strings.NewReader(vcf), Options{GeneKeys: []string{}})
	require.NoError(t, err)
	assert.Equal(t, []string{"rs1"}, entries[0].Identifiers)
}

func TestConverter_UndeclaredInfo(t *testing.T) {
	c := NewConverter(nil, Options{})
	e := c.Entry(&Record{
		Chrom: "1", Pos: 10, Ref: "A", Alt: "G",
		Info: map[string]string{"SOMATIC": "", "TAG": "x", "END": "bad"},
	})
	assert.Equal(t, "true", e.Categorical["SOMATIC"])
	assert.Equal(t, "x", e.Info["TAG"])
	assert.Equal(t, "bad", e.Info["END"])
	assert.Equal(t, int64(10), e.End)
}
