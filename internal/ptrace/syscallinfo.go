package ptrace

import (
	"encoding/binary"
	"fmt"
)

// SyscallOp says which side of a syscall a stop is on.
type SyscallOp uint8

// Values of ptrace_syscall_info.op.
const (
	OpNone SyscallOp = iota
	OpEntry
	OpExit
	OpSeccomp
)

func (o SyscallOp) String() string {
	switch o {
	case OpNone:
		return "none"
	case OpEntry:
		return "entry"
	case OpExit:
		return "exit"
	case OpSeccomp:
		return "seccomp"
	default:
		return fmt.Sprintf("SyscallOp(%d)", uint8(o))
	}
}

// SyscallInfo describes a syscall stop. For OpEntry and OpSeccomp Nr and Args
// are set; for OpExit Ret and IsError are. OpNone means the kernel did not
// say which side the stop is on; whatever registers could be read are filled
// in and the caller decides.
type SyscallInfo struct {
	Op      SyscallOp
	Arch    uint32
	Nr      uint64
	Args    [6]uint64
	Ret     int64
	IsError bool
}

// syscallInfoSize is sizeof(struct ptrace_syscall_info): a 24 byte header
// followed by the largest union member (seccomp, 60 bytes padded to 64).
const syscallInfoSize = 88

const (
	offOp   = 0
	offArch = 4
	offData = 24
)

// decodeSyscallInfo parses the first n bytes the kernel wrote into buf.
func decodeSyscallInfo(buf []byte, n int) (SyscallInfo, error) {
	if n < offData || n > len(buf) {
		return SyscallInfo{}, fmt.Errorf("short ptrace_syscall_info: %d bytes", n)
	}
	order := binary.NativeEndian
	info := SyscallInfo{
		Op:   SyscallOp(buf[offOp]),
		Arch: order.Uint32(buf[offArch:]),
	}

	data := buf[offData:n]
	switch info.Op {
	case OpEntry, OpSeccomp:
		if len(data) < 56 {
			return info, fmt.Errorf("short syscall entry info: %d bytes", n)
		}
		info.Nr = order.Uint64(data)
		for i := range info.Args {
			info.Args[i] = order.Uint64(data[8+8*i:])
		}
	case OpExit:
		if len(data) < 9 {
			return info, fmt.Errorf("short syscall exit info: %d bytes", n)
		}
		info.Ret = int64(order.Uint64(data))
		info.IsError = data[8] != 0
	case OpNone:
	default:
		return info, fmt.Errorf("unknown syscall info op %d", uint8(info.Op))
	}
	return info, nil
}
