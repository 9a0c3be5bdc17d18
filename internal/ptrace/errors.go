package ptrace

import "errors"

var (
	// ErrUnsupported is returned on platforms without ptrace support.
	ErrUnsupported = errors.New("ptrace tracing is only supported on linux")
	// ErrStart wraps failures to start the target executable.
	ErrStart = errors.New("cannot start target")
	// ErrAttach wraps failures to put the started target under trace.
	ErrAttach = errors.New("cannot trace target")
	// ErrNoSyscallInfo is returned when the kernel cannot describe the
	// current syscall stop.
	ErrNoSyscallInfo = errors.New("syscall information unavailable")
)
