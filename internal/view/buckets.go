package view

import (
	"slices"

	"github.com/roach88/multiview/internal/ir"
)

// Buckets keeps an independent LIFO stack per bucket id (one per rack).
// Stacks are created on first push and never removed; an emptied stack
// stays addressable.
type Buckets struct {
	stacks map[string]*Ordered
}

// NewBuckets creates an empty bucketed view.
func NewBuckets() *Buckets {
	return &Buckets{stacks: make(map[string]*Ordered)}
}

// Kind returns KindBucketLIFO.
func (b *Buckets) Kind() Kind { return KindBucketLIFO }

// Push adds e to the stack for e.Bucket.
func (b *Buckets) Push(e ir.Entry) {
	s, ok := b.stacks[e.Bucket]
	if !ok {
		s = NewStack()
		b.stacks[e.Bucket] = s
	}
	s.Push(e)
}

// Ensure makes bucket addressable without pushing into it. Restoring an
// emptied bucket uses this so it keeps appearing in IDs.
func (b *Buckets) Ensure(bucket string) {
	if _, ok := b.stacks[bucket]; !ok {
		b.stacks[bucket] = NewStack()
	}
}

// Resolve returns the stack for bucket. An unknown bucket resolves to a
// detached empty stack so that reads report "empty" rather than failing.
func (b *Buckets) Resolve(bucket string) (View, error) {
	if bucket == "" {
		return nil, ErrBucketRequired
	}
	if s, ok := b.stacks[bucket]; ok {
		return s, nil
	}
	return NewStack(), nil
}

// Has reports whether anything was ever pushed into bucket.
func (b *Buckets) Has(bucket string) bool {
	_, ok := b.stacks[bucket]
	return ok
}

// IDs returns known bucket ids in sorted order.
func (b *Buckets) IDs() []string {
	ids := make([]string, 0, len(b.stacks))
	for id := range b.stacks {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// States returns one ViewState per bucket, sorted by bucket id.
func (b *Buckets) States() []ir.ViewState {
	ids := b.IDs()
	states := make([]ir.ViewState, 0, len(ids))
	for _, id := range ids {
		states = append(states, ir.ViewState{Bucket: id, Entries: b.stacks[id].Entries()})
	}
	return states
}
