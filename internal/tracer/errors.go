package tracer

import (
	"fmt"

	"github.com/KarelPeeters/wtf/internal/eventprocessor"
)

// LaunchError means the target could not be started. No process was created.
type LaunchError struct {
	Command string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launching %s: %v", e.Command, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// AttachError means the target started but could not be put under trace,
// usually because ptrace is restricted on this host.
type AttachError struct {
	Command string
	// Scope is the Yama ptrace_scope value, or -1 when Yama is absent.
	Scope int
	Err   error
}

func (e *AttachError) Error() string {
	if e.Scope >= 0 {
		return fmt.Sprintf("tracing %s: %v (kernel.yama.ptrace_scope = %d)", e.Command, e.Err, e.Scope)
	}
	return fmt.Sprintf("tracing %s: %v", e.Command, e.Err)
}

func (e *AttachError) Unwrap() error {
	return e.Err
}

// TraceProtocolError is a stop that could not be interpreted. It is logged
// and recorded on the affected process; tracing carries on.
type TraceProtocolError = eventprocessor.TraceProtocolError

// ErrProcessVanished is recorded when a tracee disappears between its stop
// and the resume request.
var ErrProcessVanished = eventprocessor.ErrProcessVanished
