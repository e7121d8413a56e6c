package query

import (
	"container/heap"
	"slices"

	"github.com/inodb/featureindex/internal/feature"
)

// MergeSorted k-way merges lists that are each already ordered by compare.
// Only the list heads are held in the heap, so the union is never re-sorted.
func MergeSorted(lists [][]*feature.Entry, compare func(a, b *feature.Entry) int) []*feature.Entry {
	total := 0
	h := &cursorHeap{compare: compare}
	for _, l := range lists {
		total += len(l)
		if len(l) > 0 {
			h.cursors = append(h.cursors, cursor{list: l})
		}
	}
	heap.Init(h)

	out := make([]*feature.Entry, 0, total)
	for h.Len() > 0 {
		c := &h.cursors[0]
		out = append(out, c.list[c.pos])
		c.pos++
		if c.pos == len(c.list) {
			heap.Pop(h)
		} else {
			heap.Fix(h, 0)
		}
	}
	return out
}

// SortAll concatenates lists and sorts the union. Used when the requested
// order is not the one stores are kept in.
func SortAll(lists [][]*feature.Entry, compare func(a, b *feature.Entry) int) []*feature.Entry {
	out := slices.Concat(lists...)
	slices.SortStableFunc(out, compare)
	return out
}

type cursor struct {
	list []*feature.Entry
	pos  int
}

type cursorHeap struct {
	cursors []cursor
	compare func(a, b *feature.Entry) int
}

func (h *cursorHeap) Len() int { return len(h.cursors) }

func (h *cursorHeap) Less(i, j int) bool {
	a, b := h.cursors[i], h.cursors[j]
	return h.compare(a.list[a.pos], b.list[b.pos]) < 0
}

func (h *cursorHeap) Swap(i, j int) { h.cursors[i], h.cursors[j] = h.cursors[j], h.cursors[i] }

func (h *cursorHeap) Push(x any) { h.cursors = append(h.cursors, x.(cursor)) }

func (h *cursorHeap) Pop() any {
	n := len(h.cursors) - 1
	c := h.cursors[n]
	h.cursors = h.cursors[:n]
	return c
}
