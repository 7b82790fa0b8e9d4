package view

import (
	"cmp"
	"container/heap"
	"slices"

	"github.com/roach88/multiview/internal/ir"
)

// Less reports whether a must leave the view before b.
type Less func(a, b ir.Entry) bool

// PriorityOrder puts higher severity first. Equal severities leave in
// arrival order (lower seq first).
func PriorityOrder(a, b ir.Entry) bool {
	if a.Severity != b.Severity {
		return a.Severity > b.Severity
	}
	return a.Seq < b.Seq
}

// ExpiryOrder puts the earliest expiry first. Expiry strings are YYYY-MM-DD
// and compare lexicographically. Ties break by key, then seq, so the order
// is total and deterministic.
func ExpiryOrder(a, b ir.Entry) bool {
	if c := cmp.Compare(a.Expiry, b.Expiry); c != 0 {
		return c < 0
	}
	if c := cmp.Compare(a.Key, b.Key); c != 0 {
		return c < 0
	}
	return a.Seq < b.Seq
}

// NewHeap creates an empty view ordered by less.
func NewHeap(less Less) *Ordered {
	return &Ordered{b: &entryHeap{less: less}}
}

// entryHeap is a binary heap. entries() returns the heap array, which is a
// valid push order for rebuilding the same array.
type entryHeap struct {
	items []ir.Entry
	less  Less
}

// Len returns the number of entries in the heap
func (h *entryHeap) Len() int { return len(h.items) }

// Less determines the order between two entries
func (h *entryHeap) Less(i, j int) bool { return h.less(h.items[i], h.items[j]) }

// Swap changes the position of two entries in the heap
func (h *entryHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

// Push adds an entry into the heap
func (h *entryHeap) Push(x any) {
	h.items = append(h.items, x.(ir.Entry))
}

// Pop removes and returns the last entry of the heap array
func (h *entryHeap) Pop() any {
	n := len(h.items)
	e := h.items[n-1]
	h.items[n-1] = ir.Entry{}
	h.items = h.items[:n-1]
	return e
}

func (h *entryHeap) push(e ir.Entry) {
	heap.Push(h, e)
}

func (h *entryHeap) head() (ir.Entry, bool) {
	if len(h.items) == 0 {
		return ir.Entry{}, false
	}
	return h.items[0], true
}

func (h *entryHeap) drop() {
	if len(h.items) == 0 {
		return
	}
	heap.Pop(h)
}

func (h *entryHeap) clone() backing {
	return &entryHeap{items: slices.Clone(h.items), less: h.less}
}

func (h *entryHeap) entries() []ir.Entry {
	return slices.Clone(h.items)
}

func (h *entryHeap) len() int {
	return len(h.items)
}
