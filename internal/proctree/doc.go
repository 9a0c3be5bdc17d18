// Package proctree tracks the forest of traced processes and threads.
//
// Every process observed during a session gets one Process record keyed by
// (pid, epoch). The epoch disambiguates pid reuse: once a pid has been reaped,
// the next process created with that pid gets the next epoch. Records are
// never deleted, exited processes keep their data for the final profile.
//
// The tree is append-only and orphan-free: Create refuses a parent that is
// not already present, so every non-root record's parent existed when the
// child was created.
//
// Tree is not safe for concurrent use. It is owned by the tracer goroutine;
// readers outside it must hold the session lock (see package snapshot).
package proctree
