//go:build !linux

package ptrace

import (
	"os"

	"golang.org/x/sys/unix"
)

// Options is unused outside linux.
const Options = 0

// Stdio are the files the target inherits as fds 0, 1 and 2.
type Stdio struct {
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
}

func Launch(string, []string, []string, Stdio) (int, error) {
	return 0, ErrUnsupported
}

func Wait() (Stop, error) {
	return Stop{}, ErrUnsupported
}

func Classify(pid int, ws unix.WaitStatus) Stop {
	return Stop{PID: pid, Raw: ws}
}

type Kernel struct{}

func (Kernel) Resume(int, unix.Signal) error {
	return ErrUnsupported
}

func (Kernel) Kill(int) error {
	return ErrUnsupported
}

func (Kernel) GroupStop(int) bool {
	return false
}

func (Kernel) EventMsg(int) (uint, error) {
	return 0, ErrUnsupported
}

func (Kernel) SyscallInfo(int) (SyscallInfo, error) {
	return SyscallInfo{}, ErrUnsupported
}

func (Kernel) ReadWord(int, uintptr) (uint64, error) {
	return 0, ErrUnsupported
}

func (Kernel) ReadString(int, uintptr, int) (string, bool, error) {
	return "", false, ErrUnsupported
}

func (Kernel) ReadStringList(int, uintptr, int, int) ([]string, bool, error) {
	return nil, false, ErrUnsupported
}

func KillAndReap(int) error {
	return ErrUnsupported
}

func PtraceScope() (int, error) {
	return -1, ErrUnsupported
}
