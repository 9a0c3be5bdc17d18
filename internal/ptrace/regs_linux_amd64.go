package ptrace

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// auditArchX86_64 is AUDIT_ARCH_X86_64.
const auditArchX86_64 = 0xc000003e

func regsSyscallInfo(pid int) (SyscallInfo, error) {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &regs); err != nil {
		return SyscallInfo{}, fmt.Errorf("%w: %w", ErrNoSyscallInfo, err)
	}
	ret := int64(regs.Rax)
	return SyscallInfo{
		Op:      OpNone,
		Arch:    auditArchX86_64,
		Nr:      regs.Orig_rax,
		Args:    [6]uint64{regs.Rdi, regs.Rsi, regs.Rdx, regs.R10, regs.R8, regs.R9},
		Ret:     ret,
		IsError: ret < 0 && ret > -4096,
	}, nil
}
