package store

import (
	"sort"

	"github.com/inodb/featureindex/internal/feature"
)

// chromSpan indexes the rows [lo, hi) of one chromosome for O(log n + k)
// overlap queries.
type chromSpan struct {
	name   string
	lo, hi int
	starts []int64 // starts[i] = rows[lo+i].Start, ascending
	maxEnd []int64 // maxEnd[i] = max(End) over rows[lo : lo+i+1]
}

// buildChromSpans splits rows (already in default order) by chromosome.
func buildChromSpans(rows []*feature.Entry) []chromSpan {
	var spans []chromSpan
	for lo := 0; lo < len(rows); {
		hi := lo
		for hi < len(rows) && rows[hi].Chrom == rows[lo].Chrom {
			hi++
		}

		span := chromSpan{
			name:   rows[lo].Chrom,
			lo:     lo,
			hi:     hi,
			starts: make([]int64, hi-lo),
			maxEnd: make([]int64, hi-lo),
		}
		for i, e := range rows[lo:hi] {
			span.starts[i] = e.Start
			span.maxEnd[i] = e.End
			if i > 0 && span.maxEnd[i-1] > e.End {
				span.maxEnd[i] = span.maxEnd[i-1]
			}
		}
		spans = append(spans, span)
		lo = hi
	}
	return spans
}

// window returns the row range that can overlap [start, end]. Rows before lo
// all end before start; rows from hi on all begin after end. Rows inside the
// window may still end before start and must be checked individually.
func (c chromSpan) window(start, end int64) (lo, hi int) {
	n := len(c.starts)
	h := sort.Search(n, func(i int) bool { return c.starts[i] > end })
	l := sort.Search(n, func(i int) bool { return c.maxEnd[i] >= start })
	if l > h {
		l = h
	}
	return c.lo + l, c.lo + h
}
