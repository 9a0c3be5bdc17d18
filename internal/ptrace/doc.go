// Package ptrace is the thin layer between the tracer and the kernel's
// ptrace interface.
//
// Every function that issues a ptrace request must run on the OS thread that
// launched the tracee; callers lock their goroutine with
// runtime.LockOSThread before calling Launch and keep it locked for the
// whole session.
//
// Classify and the syscall-info decoder are pure and carry no thread
// requirement.
package ptrace
