// Package harness runs multiview scenarios as executable contract tests.
//
// A scenario picks a profile, performs a flow of engine operations and
// checks each outcome plus assertions over the resulting trace, the final
// state and the removal audit log.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	profile: triage            # built-in name, or a .cue path relative to the file
//	setup:
//	  - op: add
//	    key: a
//	    severity: 3
//	flow:
//	  - op: take
//	    view: priority
//	    expect:
//	      outcome: ok
//	      key: a
//	assertions:
//	  - type: trace_order
//	    keys: [a]
//
// # Operations
//
//   - add: key, name, severity, expiry, bucket
//   - take: view, bucket
//   - find: key
//   - snapshot: view, bucket
//   - sweep: threshold
//   - stats: channel
//
// Every step has an outcome: "ok" or the lower-cased engine error code
// ("empty", "not_found", "duplicate_key", ...).
//
// # Assertion Types
//
//   - trace_order: keys returned by op (default take) appear in this order
//   - trace_count: op (and optionally key) succeeded exactly count times
//   - final_state: live keys ordered by seq, or a view's snapshot
//   - removals: the audit log as "cause:key" entries, in order
//   - no_resurrection: once key is removed, no event yields it again until
//     it is re-added
//
// # Deterministic Testing
//
// The harness uses:
//   - Deterministic logical clock (testutil.DeterministicClock)
//   - Sequential identities (testutil.SequentialIdentities, "id-0001", ...)
//   - In-memory SQLite database as the audit sink (isolated per run)
//
// This ensures identical traces across runs for golden file comparison.
package harness
