package ptrace

import "golang.org/x/sys/unix"

// syscallTrap is the stop signal of syscall stops under PTRACE_O_TRACESYSGOOD.
const syscallTrap = unix.SIGTRAP | 0x80

// Classify decodes the wait status of pid.
func Classify(pid int, ws unix.WaitStatus) Stop {
	s := Stop{PID: pid, Raw: ws}

	switch {
	case ws.Exited():
		s.Kind = StopExited
		s.ExitCode = ws.ExitStatus()
	case ws.Signaled():
		s.Kind = StopKilled
		s.Signal = ws.Signal()
		s.CoreDumped = ws.CoreDump()
	case ws.Stopped():
		sig := ws.StopSignal()
		s.Signal = sig
		switch {
		case sig == syscallTrap:
			s.Kind = StopSyscall
			s.Signal = unix.SIGTRAP
		case sig == unix.SIGTRAP:
			s.Kind = classifyTrap(ws.TrapCause())
		default:
			s.Kind = StopSignal
		}
	default:
		s.Kind = StopUnknown
	}
	return s
}

func classifyTrap(cause int) StopKind {
	switch cause {
	case unix.PTRACE_EVENT_FORK:
		return StopFork
	case unix.PTRACE_EVENT_VFORK:
		return StopVfork
	case unix.PTRACE_EVENT_CLONE:
		return StopClone
	case unix.PTRACE_EVENT_EXEC:
		return StopExec
	case unix.PTRACE_EVENT_EXIT:
		return StopExitEvent
	case 0:
		// A plain SIGTRAP sent to the tracee.
		return StopSignal
	default:
		return StopUnknown
	}
}
