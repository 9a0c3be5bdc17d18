// Package procmeta manages the metadata captured for each traced process.
//
// ProcessMetadata holds the environment, command-line arguments and exec
// history of one process, used to evaluate custom attributes and to show
// what a process ran.
//
// Manager provides command-query separation:
//
// Queries (read-only):
//   - Get(key) - Retrieve metadata
//   - GetIssues(key) - Retrieve capture warnings
//
// Commands (mutations):
//   - Set(key, metadata) - Store metadata
//   - AddIssue(key, issue) - Add capture warning
//   - RecordExec(key, exec, env) - Replace args/env after a successful exec
//   - SetAttributes(key, attrs) - Store evaluated custom attributes
//   - Inherit(child, parent) - Copy a parent's metadata into a new child
//
// Entries are keyed by proctree.Key and never deleted, so metadata of exited
// processes stays available for the final profile.
//
// Thread-safe with RWMutex for concurrent access.
package procmeta
