package view

import (
	"slices"

	"github.com/roach88/multiview/internal/ir"
)

// NewQueue creates an empty FIFO view.
func NewQueue() *Ordered {
	return &Ordered{b: &queue{items: make([]ir.Entry, 0, 64)}}
}

// queue is a slice-backed FIFO. The front is items[0].
type queue struct {
	items []ir.Entry
}

func (q *queue) push(e ir.Entry) {
	q.items = append(q.items, e)
}

func (q *queue) head() (ir.Entry, bool) {
	if len(q.items) == 0 {
		return ir.Entry{}, false
	}
	return q.items[0], true
}

func (q *queue) drop() {
	if len(q.items) == 0 {
		return
	}
	// Clear the slot so the backing array does not pin dropped strings.
	q.items[0] = ir.Entry{}
	if len(q.items) == 1 {
		q.items = q.items[:0]
		return
	}
	q.items = q.items[1:]
}

func (q *queue) clone() backing {
	return &queue{items: slices.Clone(q.items)}
}

func (q *queue) entries() []ir.Entry {
	return slices.Clone(q.items)
}

func (q *queue) len() int {
	return len(q.items)
}
