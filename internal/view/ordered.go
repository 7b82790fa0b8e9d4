package view

import (
	"iter"

	"github.com/roach88/multiview/internal/ir"
)

// backing is a concrete structure with a single head position.
type backing interface {
	push(e ir.Entry)
	head() (ir.Entry, bool)
	drop()
	clone() backing
	entries() []ir.Entry
	len() int
}

// Ordered is a View over any backing structure. All lazy-deletion logic
// lives here; backings only know how to expose and drop their head.
type Ordered struct {
	b backing
}

// Push adds a copy of e.
func (o *Ordered) Push(e ir.Entry) {
	o.b.push(e)
}

// Peek discards stale heads and returns the first live entry.
func (o *Ordered) Peek(live Liveness) (ir.Entry, bool) {
	for {
		e, ok := o.b.head()
		if !ok {
			return ir.Entry{}, false
		}
		if live(e) {
			return e, true
		}
		o.b.drop()
	}
}

// Pop discards stale heads, then removes and returns the first live entry.
func (o *Ordered) Pop(live Liveness) (ir.Entry, bool) {
	e, ok := o.Peek(live)
	if ok {
		o.b.drop()
	}
	return e, ok
}

// Snapshot drains a clone of the backing, yielding live entries.
func (o *Ordered) Snapshot(live Liveness) iter.Seq[ir.Entry] {
	return func(yield func(ir.Entry) bool) {
		dup := o.b.clone()
		for {
			e, ok := dup.head()
			if !ok {
				return
			}
			dup.drop()
			if live(e) && !yield(e) {
				return
			}
		}
	}
}

// Entries returns the raw backing in structural order.
func (o *Ordered) Entries() []ir.Entry {
	return o.b.entries()
}

// Len returns the raw entry count.
func (o *Ordered) Len() int {
	return o.b.len()
}
