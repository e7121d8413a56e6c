package feature

import (
	"cmp"
	"strings"
)

// CompareTieBreak orders entries by (FileID, Start, first identifier). It is
// applied after any sort key so paging over an unchanged index is stable.
func CompareTieBreak(a, b *Entry) int {
	if c := cmp.Compare(a.FileID, b.FileID); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Start, b.Start); c != 0 {
		return c
	}
	return strings.Compare(a.FirstIdentifier(), b.FirstIdentifier())
}

// CompareDefault is the default result order: chromosome, start, then the
// tie-break.
func CompareDefault(a, b *Entry) int {
	if c := CompareChrom(a.Chrom, b.Chrom); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Start, b.Start); c != 0 {
		return c
	}
	return CompareTieBreak(a, b)
}
