package proctree

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Key identifies one process across pid reuse.
type Key struct {
	PID   int    `json:"pid"`
	Epoch uint32 `json:"epoch"`
}

func (k Key) String() string {
	return fmt.Sprintf("%d#%d", k.PID, k.Epoch)
}

// Kind distinguishes full processes from threads created with CLONE_THREAD.
type Kind uint8

const (
	KindProcess Kind = iota
	KindThread
)

func (k Kind) String() string {
	switch k {
	case KindProcess:
		return "process"
	case KindThread:
		return "thread"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// SyscallState is the in-flight syscall of a process. The zero value is Idle.
type SyscallState struct {
	Active bool
	// Arch is the AUDIT_ARCH of the call's ABI; zero means native.
	Arch   uint32
	Nr     uint64
	Args   [6]uint64
	Entry  time.Time
}

// ExitStatus is how a process terminated.
type ExitStatus struct {
	Code       int         `json:"code"`
	Signal     unix.Signal `json:"signal,omitempty"`
	CoreDumped bool        `json:"core_dumped,omitempty"`
}

// Signaled reports whether the process was killed by a signal.
func (s ExitStatus) Signaled() bool {
	return s.Signal != 0
}

func (s ExitStatus) String() string {
	if s.Signaled() {
		name := unix.SignalName(s.Signal)
		if name == "" {
			name = fmt.Sprintf("signal %d", int(s.Signal))
		}
		if s.CoreDumped {
			return name + " (core dumped)"
		}
		return name
	}
	return fmt.Sprintf("exit %d", s.Code)
}

// Process is one traced process or thread.
type Process struct {
	Key    Key
	Parent *Key
	Kind   Kind

	// Name is the base name of Path, or the launch command before any exec.
	Name string
	Path string

	Spawned time.Time
	Exited  time.Time // zero while alive
	Status  *ExitStatus

	Alive  bool
	Reaped bool

	Syscall SyscallState

	// Degraded is set when a stop for this process could not be interpreted.
	Degraded bool
	Issues   []string
}

// InSyscall reports whether the process is between a syscall entry and exit.
func (p *Process) InSyscall() bool {
	return p.Syscall.Active
}

// WallTime returns how long the process has existed as of now.
func (p *Process) WallTime(now time.Time) time.Duration {
	end := now
	if !p.Exited.IsZero() {
		end = p.Exited
	}
	if end.Before(p.Spawned) {
		return 0
	}
	return end.Sub(p.Spawned)
}
