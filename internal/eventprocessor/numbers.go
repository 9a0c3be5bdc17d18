package eventprocessor

import "github.com/KarelPeeters/wtf/internal/syscalls"

// Syscalls the processor looks into, by native number. A name missing from
// this architecture maps to an impossible number.
var (
	nrClone     = mustNumber("clone")
	nrClone3    = mustNumber("clone3")
	nrExecve    = mustNumber("execve")
	nrExecveat  = mustNumber("execveat")
	nrExit      = mustNumber("exit")
	nrExitGroup = mustNumber("exit_group")
)

const noSyscall = ^uint64(0)

func mustNumber(name string) uint64 {
	nr, ok := syscalls.Number(name)
	if !ok {
		return noSyscall
	}
	return nr
}

// native translates a call of ABI arch to the native number of the same
// call. Calls of other ABIs are matched by name.
func native(arch uint32, nr uint64) uint64 {
	if syscalls.IsNative(arch) {
		return nr
	}
	if !syscalls.KnownByArch(arch, nr) {
		return noSyscall
	}
	return mustNumber(syscalls.NameByArch(arch, nr))
}

func isExec(arch uint32, nr uint64) bool {
	nr = native(arch, nr)
	return nr != noSyscall && (nr == nrExecve || nr == nrExecveat)
}

func isExit(arch uint32, nr uint64) bool {
	nr = native(arch, nr)
	return nr != noSyscall && (nr == nrExit || nr == nrExitGroup)
}

// cloneCall returns nrClone or nrClone3 for a clone call of ABI arch, and
// noSyscall for anything else.
func cloneCall(arch uint32, nr uint64) uint64 {
	nr = native(arch, nr)
	if nr == noSyscall || (nr != nrClone && nr != nrClone3) {
		return noSyscall
	}
	return nr
}
