// Package snapshot turns the tracer's mutable state into immutable profile
// snapshots and hands them to consumers.
//
// Build deep-copies the process tree, the aggregated syscall statistics and
// the per-process metadata, then computes subtree rollups bottom-up. The
// caller must hold the session lock while Build runs; nothing returned by
// Build aliases tracer state.
//
// Publisher stores the newest snapshot behind an atomic pointer. Publishing
// never blocks: a consumer that falls behind only ever sees the latest
// snapshot, and older ones are dropped.
package snapshot
