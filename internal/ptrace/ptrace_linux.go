package ptrace

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"unsafe"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// ptraceGetSyscallInfo is PTRACE_GET_SYSCALL_INFO (linux 5.3+).
const ptraceGetSyscallInfo = 0x420e

// Options are the trace options set on the launched target. Children inherit
// them through the fork/vfork/clone events.
const Options = unix.PTRACE_O_TRACESYSGOOD |
	unix.PTRACE_O_EXITKILL |
	unix.PTRACE_O_TRACEFORK |
	unix.PTRACE_O_TRACEVFORK |
	unix.PTRACE_O_TRACECLONE |
	unix.PTRACE_O_TRACEEXEC |
	unix.PTRACE_O_TRACEEXIT

// Stdio are the files the target inherits as fds 0, 1 and 2.
type Stdio struct {
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
}

// Launch starts path under trace and returns its pid once it is stopped
// right after execve with Options set. The tracee is left stopped; resume it
// with Resume.
//
// Launch must be called on a locked OS thread, and every later ptrace call
// for this tracee and its descendants must come from that same thread.
func Launch(path string, argv, env []string, stdio Stdio) (int, error) {
	cmd := &exec.Cmd{
		Path: path,
		Args: argv,
		Env:  env,
		// PTRACE_TRACEME runs in the child before execve, so no instruction
		// of the target runs untraced.
		SysProcAttr: &syscall.SysProcAttr{Ptrace: true},
	}
	// A nil *os.File stored in an io.Reader is not a nil interface.
	if stdio.Stdin != nil {
		cmd.Stdin = stdio.Stdin
	}
	if stdio.Stdout != nil {
		cmd.Stdout = stdio.Stdout
	}
	if stdio.Stderr != nil {
		cmd.Stderr = stdio.Stderr
	}
	if err := cmd.Start(); err != nil {
		if errors.Is(err, unix.EPERM) {
			return 0, fmt.Errorf("%w: %w", ErrAttach, err)
		}
		return 0, fmt.Errorf("%w: %w", ErrStart, err)
	}
	pid := cmd.Process.Pid
	// The tracee is reaped with wait4 from here on, never through cmd.
	_ = cmd.Process.Release()

	var ws unix.WaitStatus
	if _, err := wait4(pid, &ws); err != nil {
		return 0, fmt.Errorf("%w: waiting for %d: %w", ErrStart, pid, err)
	}
	if !ws.Stopped() || ws.StopSignal() != unix.SIGTRAP {
		stop := Classify(pid, ws)
		if !stop.Kind.Terminal() {
			_ = KillAndReap(pid)
		}
		return 0, fmt.Errorf("%w: unexpected initial stop %s", ErrAttach, stop)
	}

	if err := unix.PtraceSetOptions(pid, Options); err != nil {
		_ = KillAndReap(pid)
		return 0, fmt.Errorf("%w: setting options on %d: %w", ErrAttach, pid, err)
	}
	log.Debugf("Launched %s as pid %d", path, pid)
	return pid, nil
}

// KillAndReap SIGKILLs pid and waits for it, so a tracee abandoned before
// the wait loop owns it does not linger as a zombie.
func KillAndReap(pid int) error {
	if err := unix.Kill(pid, unix.SIGKILL); err != nil {
		return fmt.Errorf("killing %d: %w", pid, err)
	}
	var ws unix.WaitStatus
	if _, err := wait4(pid, &ws); err != nil {
		return fmt.Errorf("reaping %d: %w", pid, err)
	}
	return nil
}

func wait4(pid int, ws *unix.WaitStatus) (int, error) {
	for {
		wpid, err := unix.Wait4(pid, ws, unix.WALL, nil)
		if err == unix.EINTR {
			continue
		}
		return wpid, err
	}
}

// Wait blocks until any tracee changes state. It returns unix.ECHILD once
// no tracees are left.
func Wait() (Stop, error) {
	var ws unix.WaitStatus
	pid, err := wait4(-1, &ws)
	if err != nil {
		return Stop{}, err
	}
	return Classify(pid, ws), nil
}

// Kernel issues ptrace requests for one tracer thread.
type Kernel struct{}

// Resume restarts a stopped tracee until its next syscall stop, delivering
// sig unless it is zero.
func (Kernel) Resume(pid int, sig unix.Signal) error {
	return unix.PtraceSyscall(pid, int(sig))
}

// Kill sends SIGKILL to pid.
func (Kernel) Kill(pid int) error {
	return unix.Kill(pid, unix.SIGKILL)
}

// EventMsg returns PTRACE_GETEVENTMSG: the new child for fork events and the
// former thread id for exec events.
func (Kernel) EventMsg(pid int) (uint, error) {
	return unix.PtraceGetEventMsg(pid)
}

// SyscallInfo describes the syscall stop pid is in. Kernels without
// PTRACE_GET_SYSCALL_INFO fall back to reading registers where supported,
// reported as OpNone.
func (Kernel) SyscallInfo(pid int) (SyscallInfo, error) {
	var buf [syscallInfoSize]byte
	n, _, errno := unix.Syscall6(unix.SYS_PTRACE, ptraceGetSyscallInfo,
		uintptr(pid), uintptr(len(buf)), uintptr(unsafe.Pointer(&buf[0])), 0, 0)
	switch errno {
	case 0:
		return decodeSyscallInfo(buf[:], min(int(n), len(buf)))
	case unix.EIO, unix.EINVAL:
		return regsSyscallInfo(pid)
	default:
		return SyscallInfo{}, errno
	}
}

func (Kernel) peek(pid int) peekFunc {
	return func(addr uintptr, buf []byte) (int, error) {
		return unix.PtracePeekData(pid, addr, buf)
	}
}

// ReadWord reads one 64-bit word of tracee memory.
func (k Kernel) ReadWord(pid int, addr uintptr) (uint64, error) {
	return readWord(k.peek(pid), addr)
}

// ReadString reads a NUL-terminated string of at most maxLen bytes.
func (k Kernel) ReadString(pid int, addr uintptr, maxLen int) (string, bool, error) {
	return readString(k.peek(pid), addr, maxLen)
}

// ReadStringList reads a NULL-terminated array of strings such as argv.
func (k Kernel) ReadStringList(pid int, addr uintptr, maxItems, maxLen int) ([]string, bool, error) {
	return readStringList(k.peek(pid), addr, maxItems, maxLen)
}

// GroupStop reports whether pid is in a group-stop rather than a
// signal-delivery stop. PTRACE_GETSIGINFO fails with EINVAL only for
// group-stops.
func (Kernel) GroupStop(pid int) bool {
	var siginfo [128]byte
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, unix.PTRACE_GETSIGINFO,
		uintptr(pid), 0, uintptr(unsafe.Pointer(&siginfo[0])), 0, 0)
	return errno == unix.EINVAL
}

// PtraceScope returns the Yama ptrace_scope setting, or -1 and an error if
// Yama is not available.
func PtraceScope() (int, error) {
	data, err := os.ReadFile("/proc/sys/kernel/yama/ptrace_scope")
	if err != nil {
		return -1, err
	}
	scope, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return -1, fmt.Errorf("parsing ptrace_scope: %w", err)
	}
	return scope, nil
}
