package ptrace

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// StopKind is what a wait status reports about a tracee.
type StopKind uint8

const (
	StopUnknown StopKind = iota
	// StopSyscall is a syscall-entry or syscall-exit stop (SIGTRAP|0x80).
	StopSyscall
	StopFork
	StopVfork
	StopClone
	StopExec
	// StopExitEvent is PTRACE_EVENT_EXIT: the tracee is about to die but can
	// still be inspected.
	StopExitEvent
	// StopSignal is a signal-delivery stop.
	StopSignal
	// StopExited means the tracee exited and has been reaped.
	StopExited
	// StopKilled means the tracee was killed by a signal and has been reaped.
	StopKilled
)

var stopKindNames = [...]string{
	StopUnknown:   "unknown",
	StopSyscall:   "syscall",
	StopFork:      "fork",
	StopVfork:     "vfork",
	StopClone:     "clone",
	StopExec:      "exec",
	StopExitEvent: "exit-event",
	StopSignal:    "signal",
	StopExited:    "exited",
	StopKilled:    "killed",
}

func (k StopKind) String() string {
	if int(k) < len(stopKindNames) {
		return stopKindNames[k]
	}
	return fmt.Sprintf("StopKind(%d)", uint8(k))
}

// Terminal reports whether the tracee is gone after this stop.
func (k StopKind) Terminal() bool {
	return k == StopExited || k == StopKilled
}

// Spawns reports whether the stop announces a new child.
func (k StopKind) Spawns() bool {
	return k == StopFork || k == StopVfork || k == StopClone
}

// Stop is one decoded wait4 result.
type Stop struct {
	PID  int
	Kind StopKind

	// Signal is the stop signal for StopSignal, the fatal signal for
	// StopKilled and SIGTRAP for event stops.
	Signal unix.Signal
	// ExitCode is set for StopExited.
	ExitCode   int
	CoreDumped bool

	// Raw is the undecoded status, kept for diagnostics.
	Raw unix.WaitStatus
}

func (s Stop) String() string {
	switch s.Kind {
	case StopExited:
		return fmt.Sprintf("%d %s(%d)", s.PID, s.Kind, s.ExitCode)
	case StopKilled, StopSignal:
		return fmt.Sprintf("%d %s(%s)", s.PID, s.Kind, unix.SignalName(s.Signal))
	case StopUnknown:
		return fmt.Sprintf("%d %s(%#x)", s.PID, s.Kind, uint32(s.Raw))
	default:
		return fmt.Sprintf("%d %s", s.PID, s.Kind)
	}
}
