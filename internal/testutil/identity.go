package testutil

import (
	"fmt"
	"sync"
)

// SequentialIdentities generates predictable record identities:
// "<prefix>-0001", "<prefix>-0002", ...
//
// Production engines use UUIDv7 identities, which differ on every run. Tests
// and golden traces need identities that are stable across runs while still
// unique per record, so a reused key gets a distinguishable identity.
//
// Implements engine.IdentityGenerator.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialIdentities struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIdentities creates a generator. An empty prefix defaults to "id".
func NewSequentialIdentities(prefix string) *SequentialIdentities {
	if prefix == "" {
		prefix = "id"
	}
	return &SequentialIdentities{prefix: prefix}
}

// Generate returns the next identity.
func (g *SequentialIdentities) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
