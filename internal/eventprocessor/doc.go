// Package eventprocessor turns ptrace stops into changes to the process tree,
// the syscall aggregator and the per-process metadata.
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│      wait4(-1, __WALL) stops            │
//	└─────────────────┬───────────────────────┘
//	                  │
//	                  ▼
//	┌─────────────────────────────────────────┐
//	│   eventprocessor                        │  ← Stop routing
//	│   - Routes by stop kind                 │
//	│   - Returns which tracees to resume     │
//	└─────────┬───────────────────────────────┘
//	          │
//	          ├──→ syscall stop ───→ proctree (InSyscall/Idle)
//	          │                      profile.Aggregator (on exit)
//	          │
//	          ├──→ fork/vfork/clone → proctree.Create
//	          │                      - Releases parked child stops
//	          │
//	          ├──→ exec event ─────→ procmeta.Manager
//	          │                      - Commits argv/env read at entry
//	          │                      - Falls back to /proc if that failed
//	          │                      - Evaluates custom attributes
//	          │
//	          ├──→ exit event ─────→ proctree.MarkExited
//	          │                      - Unterminated syscall accounting
//	          │
//	          └──→ reaped ─────────→ proctree.MarkReaped
//	                                 - Frees the pid for reuse
//
// The Processor never issues resume requests itself; Handle returns them so
// the tracer thread can apply them after releasing the session lock. Memory
// and register reads go through the Inspector interface.
package eventprocessor
