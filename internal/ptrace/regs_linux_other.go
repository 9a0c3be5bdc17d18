//go:build linux && !amd64

package ptrace

func regsSyscallInfo(int) (SyscallInfo, error) {
	return SyscallInfo{}, ErrNoSyscallInfo
}
