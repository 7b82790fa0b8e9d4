// Package ir provides the foundational types shared by every multiview
// package: records, the entry copies views hold, removal audit events and
// persisted snapshots, plus canonical JSON and content hashing.
//
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types in IR values - averages leave the core as float64 only
//     through engine.Stats, never through traces or hashes
//   - All JSON tags use snake_case
//   - Logical clocks (seq) only, never wall-clock timestamps
package ir
