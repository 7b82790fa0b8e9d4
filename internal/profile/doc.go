// Package profile compiles CUE profile definitions.
//
// A profile is the thin configuration that turns the generic store into a
// concrete system: which views to attach, what the payload fields mean, and
// which view (if any) supports expiry sweeps. The triage and inventory
// systems are the two built-in profiles, embedded from profiles.cue.
//
// Profiles are parsed with the CUE Go API, not the cue CLI:
//
//	profile: triage: {
//		purpose: "..."
//		payload: "severity"          // severity | expiry | none
//		severity: {min: 1, max: 5}   // optional, severity payload only
//		views: [{name: "normal", kind: "fifo"}, ...]
//		sweep: {view: "expiry", report_stale: false} // optional
//	}
package profile
