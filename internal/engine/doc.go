// Package engine implements the view coordinator: the only component that
// moves a record from live to removed.
//
// ARCHITECTURE:
//
// One authoritative record store plus several views that hold disposable
// copies of record keys. Views never talk to each other and never hold
// back-pointers. When a record leaves the store through one view, every
// other copy of it becomes stale and is discarded the next time that view
// reaches it. Reconciliation is always view to store, never store to view.
//
// Single Lock Domain:
// Each operation (Add, TakeNext, SweepExpired, reads) runs under one mutex
// that covers the record store, every view, the stats accumulator and the
// clock. A view's lazy-skip loop reads the store repeatedly and must see a
// consistent liveness snapshot, otherwise a key could be reinserted between
// the skip check and the removal.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Records are stamped with Seq = clock.Next() on add. TakeNext advances the
// clock again and records latency = now - Seq. NEVER use wall-clock
// timestamps for ordering or latency.
//
// Identity:
// Every record gets a fresh identity (UUIDv7) on add. An entry is live only
// while the store holds its key with the same identity, so re-adding a
// removed key never revives the old copies.
//
// The core never prints. Logging goes to the injected slog.Logger, which
// discards by default.
package engine
