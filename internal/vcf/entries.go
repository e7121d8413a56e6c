package vcf

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/inodb/featureindex/internal/feature"
)

// Field names given to record columns.
const (
	FieldFilter       = "FILTER"
	FieldQual         = "QUAL"
	FieldVariantClass = "VARIANT_CLASS"
)

// DefaultGeneKeys are the INFO keys whose values name genes.
var DefaultGeneKeys = []string{"GENE", "GENEINFO", "SYMBOL", "ANN"}

// Options control record conversion.
type Options struct {
	// SplitAlleles emits one entry per alternate allele.
	SplitAlleles bool
	// GeneKeys lists INFO keys read as gene identifiers. nil means
	// DefaultGeneKeys.
	GeneKeys []string
}

// Converter turns records into entries using the header's INFO types.
type Converter struct {
	defs     map[string]InfoDef
	geneKeys map[string]bool
}

// NewConverter creates a converter for a file with the given INFO
// declarations.
func NewConverter(defs map[string]InfoDef, opts Options) *Converter {
	keys := opts.GeneKeys
	if keys == nil {
		keys = DefaultGeneKeys
	}
	c := &Converter{defs: defs, geneKeys: make(map[string]bool, len(keys))}
	for _, k := range keys {
		c.geneKeys[k] = true
	}
	return c
}

// Entry converts one record. INFO values are promoted by their declared
// type: single-valued String and Flag keys become categorical fields,
// single-valued Integer and Float keys numeric fields, everything else stays
// in Info. An END key sets the end position.
func (c *Converter) Entry(r *Record) *feature.Entry {
	e := &feature.Entry{
		Chrom:       r.Chrom,
		Start:       r.Pos,
		End:         r.Pos + max(int64(len(r.Ref)), 1) - 1,
		Type:        feature.TypeVariation,
		Categorical: map[string]string{FieldVariantClass: r.Class()},
	}
	if r.Filter != "" && r.Filter != "." {
		e.Categorical[FieldFilter] = r.Filter
	}
	if r.Qual != nil {
		e.Numeric = map[string]float64{FieldQual: *r.Qual}
	}
	if r.ID != "" && r.ID != "." {
		e.Identifiers = strings.Split(r.ID, ";")
	}

	nalts := len(r.Alts())
	for _, key := range sortedKeys(r.Info) {
		val := r.Info[key]
		if key == "END" {
			if end, err := strconv.ParseInt(val, 10, 64); err == nil {
				e.End = end
				continue
			}
		}
		if c.geneKeys[key] {
			for _, g := range geneNames(key, val) {
				if !slices.Contains(e.Identifiers, g) {
					e.Identifiers = append(e.Identifiers, g)
				}
			}
		}
		c.promote(e, key, val, nalts)
	}
	return e
}

func (c *Converter) promote(e *feature.Entry, key, val string, nalts int) {
	def, declared := c.defs[key]
	single := def.Number == "1" || (def.Number == "A" && nalts == 1)

	switch {
	case def.Type == "Flag" || (!declared && val == ""):
		e.Categorical[key] = "true"
		return
	case single && (def.Type == "String" || def.Type == "Character"):
		e.Categorical[key] = val
		return
	case single && (def.Type == "Integer" || def.Type == "Float"):
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			if e.Numeric == nil {
				e.Numeric = make(map[string]float64)
			}
			e.Numeric[key] = v
			return
		}
	}
	if e.Info == nil {
		e.Info = make(map[string]string)
	}
	e.Info[key] = val
}

// geneNames extracts gene symbols. GENEINFO holds SYMBOL:ID pairs joined by
// "|"; ANN holds SnpEff annotations whose fourth field is the gene name.
func geneNames(key, val string) []string {
	var names []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s != "" && s != "." && !slices.Contains(names, s) {
			names = append(names, s)
		}
	}
	switch key {
	case "ANN":
		for _, ann := range strings.Split(val, ",") {
			parts := strings.Split(ann, "|")
			if len(parts) > 3 {
				add(parts[3])
			}
		}
	case "GENEINFO":
		for _, pair := range strings.Split(val, "|") {
			sym, _, _ := strings.Cut(pair, ":")
			add(sym)
		}
	default:
		for _, g := range strings.Split(val, ",") {
			add(g)
		}
	}
	return names
}

// ReadEntries parses every record of p into entries.
func ReadEntries(p *Parser, opts Options) ([]*feature.Entry, error) {
	c := NewConverter(p.InfoDefs(), opts)
	var entries []*feature.Entry
	for {
		r, err := p.Next()
		if err != nil {
			return nil, err
		}
		if r == nil {
			return entries, nil
		}
		records := []*Record{r}
		if opts.SplitAlleles {
			records = SplitMultiAllelic(r)
		}
		for _, rec := range records {
			entries = append(entries, c.Entry(rec))
		}
	}
}

// ReadFile parses a VCF file (plain or gzipped) into entries.
func ReadFile(path string, opts Options) ([]*feature.Entry, error) {
	p, err := NewParser(path)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	entries, err := ReadEntries(p, opts)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return entries, nil
}

// Read parses VCF text from r into entries.
func Read(r io.Reader, opts Options) ([]*feature.Entry, error) {
	p, err := NewParserFromReader(r)
	if err != nil {
		return nil, err
	}
	return ReadEntries(p, opts)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
