// Package store provides SQLite-backed persistence for multiview.
//
// The store holds two things:
//   - Snapshot: the engine state between CLI invocations (profile, clock,
//     live records, raw view backings, stats totals). Save replaces it
//     wholesale in one transaction.
//   - Removals: an append-only audit log of every record that left the
//     store, keyed by content-addressed removal ID.
//
// # Critical Patterns
//
// Logical Time Only
//   - All ordering uses seq INTEGER from the engine clock, NEVER timestamps
//
// Deterministic Query Results
//   - Removal queries include: ORDER BY seq ASC, id ASC COLLATE BINARY
//   - View entries are read back ORDER BY position, which rebuilds each
//     backing structure exactly
//
// Idempotent Audit Writes
//   - removals.id is the primary key; INSERT ... ON CONFLICT(id) DO NOTHING
//
// Integrity
//   - Save stores ir.SnapshotDigest alongside the snapshot; Load recomputes
//     it and refuses a snapshot whose digest does not match
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
