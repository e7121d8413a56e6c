package vcf

import "strings"

// Record is one VCF data line.
type Record struct {
	Chrom  string
	Pos    int64 // 1-based
	ID     string
	Ref    string
	Alt    string   // comma-separated when multi-allelic
	Qual   *float64 // nil for "."
	Filter string
	Info   map[string]string
	Line   int
}

// Alts returns the alternate alleles, without the "." placeholder.
func (r *Record) Alts() []string {
	if r.Alt == "" || r.Alt == "." {
		return nil
	}
	return strings.Split(r.Alt, ",")
}

// Class classifies the first alternate allele: SNV, MNV, INS, DEL, SV
// (symbolic or breakend alleles) or REF when there is none.
func (r *Record) Class() string {
	alts := r.Alts()
	if len(alts) == 0 {
		return "REF"
	}
	return alleleClass(r.Ref, alts[0])
}

func alleleClass(ref, alt string) string {
	switch {
	case strings.ContainsAny(alt, "<>[]") || alt == "*":
		return "SV"
	case len(ref) == len(alt) && len(ref) == 1:
		return "SNV"
	case len(ref) == len(alt):
		return "MNV"
	case len(alt) > len(ref):
		return "INS"
	default:
		return "DEL"
	}
}

// SplitMultiAllelic splits a multi-allelic record into one record per
// alternate allele. INFO is shared between the copies.
func SplitMultiAllelic(r *Record) []*Record {
	alts := r.Alts()
	if len(alts) <= 1 {
		return []*Record{r}
	}

	out := make([]*Record, len(alts))
	for i, alt := range alts {
		c := *r
		c.Alt = alt
		out[i] = &c
	}
	return out
}
