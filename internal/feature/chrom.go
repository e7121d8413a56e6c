package feature

import (
	"strconv"
	"strings"
)

// NormalizeChrom returns the canonical chromosome name: a case-insensitive
// "chr" prefix is stripped and the remainder upper-cased, so "chr1", "Chr1"
// and "1" compare equal. "M" is folded into "MT".
func NormalizeChrom(chrom string) string {
	c := strings.TrimSpace(chrom)
	if len(c) > 3 && strings.EqualFold(c[:3], "chr") {
		c = c[3:]
	}
	c = strings.ToUpper(c)
	if c == "M" {
		return "MT"
	}
	return c
}

// CompareChrom orders canonical chromosome names karyotypically: numbered
// chromosomes numerically, then X, Y, MT, then anything else lexically.
func CompareChrom(a, b string) int {
	if a == b {
		return 0
	}
	ra, na := chromRank(a)
	rb, nb := chromRank(b)
	if ra != rb {
		return ra - rb
	}
	if ra == 0 && na != nb {
		if na < nb {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func chromRank(c string) (rank, num int) {
	if n, err := strconv.Atoi(c); err == nil {
		return 0, n
	}
	switch c {
	case "X":
		return 1, 0
	case "Y":
		return 2, 0
	case "MT":
		return 3, 0
	}
	return 4, 0
}
