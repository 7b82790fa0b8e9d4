package view

import (
	"slices"

	"github.com/roach88/multiview/internal/ir"
)

// NewStack creates an empty LIFO view.
func NewStack() *Ordered {
	return &Ordered{b: &stack{}}
}

// stack is a slice-backed LIFO. The top is the last element; Entries
// therefore lists bottom to top.
type stack struct {
	items []ir.Entry
}

func (s *stack) push(e ir.Entry) {
	s.items = append(s.items, e)
}

func (s *stack) head() (ir.Entry, bool) {
	if len(s.items) == 0 {
		return ir.Entry{}, false
	}
	return s.items[len(s.items)-1], true
}

func (s *stack) drop() {
	if len(s.items) == 0 {
		return
	}
	s.items[len(s.items)-1] = ir.Entry{}
	s.items = s.items[:len(s.items)-1]
}

func (s *stack) clone() backing {
	return &stack{items: slices.Clone(s.items)}
}

func (s *stack) entries() []ir.Entry {
	return slices.Clone(s.items)
}

func (s *stack) len() int {
	return len(s.items)
}
