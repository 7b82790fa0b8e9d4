package view

import (
	"errors"
	"fmt"
	"iter"

	"github.com/roach88/multiview/internal/ir"
)

// Liveness reports whether an entry still refers to a live record.
type Liveness func(ir.Entry) bool

// Kind names an ordering discipline.
type Kind string

const (
	// KindFIFO orders by arrival: first pushed, first out.
	KindFIFO Kind = "fifo"
	// KindPriority orders by severity descending, then seq ascending.
	KindPriority Kind = "priority"
	// KindLIFO is a single stack: last pushed, first out.
	KindLIFO Kind = "lifo"
	// KindBucketLIFO keeps an independent stack per bucket.
	KindBucketLIFO Kind = "bucket_lifo"
	// KindMinExpiry orders by expiry ascending, then key, then seq.
	KindMinExpiry Kind = "min_expiry"
)

// Kinds lists every supported kind in declaration order.
var Kinds = []Kind{KindFIFO, KindPriority, KindLIFO, KindBucketLIFO, KindMinExpiry}

var (
	// ErrUnknownKind is returned by New for an unsupported kind.
	ErrUnknownKind = errors.New("unknown view kind")

	// ErrBucketRequired is returned when a bucketed view is addressed
	// without a bucket id.
	ErrBucketRequired = errors.New("bucket required")
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Bucketed reports whether the kind needs a bucket id on every access.
func (k Kind) Bucketed() bool {
	return k == KindBucketLIFO
}

// View is one ordering over entries.
type View interface {
	// Push adds a copy of an entry. Never fails.
	Push(e ir.Entry)

	// Peek discards stale entries from the head and returns the first live
	// entry without removing it. Returns false when no live entry remains.
	Peek(live Liveness) (ir.Entry, bool)

	// Pop is Peek followed by removal of the returned entry.
	Pop(live Liveness) (ir.Entry, bool)

	// Snapshot yields live entries in view order by draining a duplicate of
	// the backing structure. The view itself is not modified.
	Snapshot(live Liveness) iter.Seq[ir.Entry]

	// Entries returns the raw backing entries in structural order,
	// including stale ones. Pushing them in this order into an empty view
	// of the same kind rebuilds an identical structure.
	Entries() []ir.Entry

	// Len returns the raw number of entries, stale included.
	Len() int
}

// Set is what a profile attaches under one view name: a single View, or a
// family of views selected by bucket.
type Set interface {
	// Kind returns the ordering discipline.
	Kind() Kind

	// Push routes an entry to the right view.
	Push(e ir.Entry)

	// Resolve returns the view for a bucket. Unbucketed sets ignore the
	// bucket. Bucketed sets fail with ErrBucketRequired on an empty bucket.
	Resolve(bucket string) (View, error)

	// States returns the raw backing of every member view.
	States() []ir.ViewState
}

// New creates an empty set of the given kind.
func New(kind Kind) (Set, error) {
	switch kind {
	case KindFIFO:
		return &single{kind: kind, View: NewQueue()}, nil
	case KindPriority:
		return &single{kind: kind, View: NewHeap(PriorityOrder)}, nil
	case KindLIFO:
		return &single{kind: kind, View: NewStack()}, nil
	case KindMinExpiry:
		return &single{kind: kind, View: NewHeap(ExpiryOrder)}, nil
	case KindBucketLIFO:
		return NewBuckets(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// single adapts one View to the Set interface.
type single struct {
	View
	kind Kind
}

func (s *single) Kind() Kind { return s.kind }

func (s *single) Resolve(string) (View, error) { return s.View, nil }

func (s *single) States() []ir.ViewState {
	return []ir.ViewState{{Entries: s.Entries()}}
}
