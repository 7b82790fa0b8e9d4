// Package records provides the authoritative record store: the single source
// of truth for which keys are live.
//
// Views hold disposable copies of keys and reconcile against this store; they
// never hold pointers into it. A key present here is live. A view entry is
// live only if the key is present and the stored record carries the same
// identity, so a key that is removed and later re-added never revives old
// copies.
//
// Store is not safe for concurrent use. The engine owns the lock domain.
package records
