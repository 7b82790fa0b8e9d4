// Package view implements the ordered views of the multiview store.
//
// A view is an ordering discipline over copies of record keys: FIFO arrival
// order, priority order, LIFO stack order (per bucket or single), or
// minimum-expiry order. Views tolerate stale copies. Every read first
// discards stale entries from the head of the backing structure (lazy
// deletion), consulting a Liveness function that the caller derives from the
// record store. A discarded entry is never re-pushed, so the cost of skipping
// is paid once per entry over the life of the view.
//
// Views never know about each other and never know about the record store.
// Reconciliation always runs view -> store.
package view
