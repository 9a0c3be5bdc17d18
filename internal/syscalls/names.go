package syscalls

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	lru "github.com/elastic/go-freelru"
	seccomp "github.com/seccomp/libseccomp-golang"
	"golang.org/x/sys/unix"
)

const (
	unknownPrefix = "syscall_"
	cacheSize     = 2048
)

// auditArchs maps the AUDIT_ARCH values the kernel reports to libseccomp's
// architecture tokens.
var auditArchs = map[uint32]seccomp.ScmpArch{
	unix.AUDIT_ARCH_X86_64:  seccomp.ArchAMD64,
	unix.AUDIT_ARCH_I386:    seccomp.ArchX86,
	unix.AUDIT_ARCH_AARCH64: seccomp.ArchARM64,
	unix.AUDIT_ARCH_ARM:     seccomp.ArchARM,
	unix.AUDIT_ARCH_PPC64LE: seccomp.ArchPPC64LE,
	unix.AUDIT_ARCH_S390X:   seccomp.ArchS390X,
	unix.AUDIT_ARCH_RISCV64: seccomp.ArchRISCV64,
}

// Native is the AUDIT_ARCH of the syscall ABI this binary was built for.
var Native = map[string]uint32{
	"amd64":   unix.AUDIT_ARCH_X86_64,
	"386":     unix.AUDIT_ARCH_I386,
	"arm64":   unix.AUDIT_ARCH_AARCH64,
	"arm":     unix.AUDIT_ARCH_ARM,
	"ppc64le": unix.AUDIT_ARCH_PPC64LE,
	"s390x":   unix.AUDIT_ARCH_S390X,
	"riscv64": unix.AUDIT_ARCH_RISCV64,
}[runtime.GOARCH]

type cacheKey struct {
	arch uint32
	nr   uint64
}

func (k cacheKey) hash32() uint32 {
	return k.arch ^ uint32(k.nr) ^ uint32(k.nr>>32)*0x9e3779b9
}

type entry struct {
	name  string
	known bool
}

var names = func() *lru.SyncedLRU[cacheKey, entry] {
	c, err := lru.NewSynced[cacheKey, entry](cacheSize, cacheKey.hash32)
	if err != nil {
		panic(fmt.Sprintf("syscall name cache: %v", err))
	}
	return c
}()

// IsNative reports whether arch is the ABI of this binary. Zero stands for
// "not reported" and counts as native.
func IsNative(arch uint32) bool {
	return arch == 0 || arch == Native
}

// ArchName returns a short name for an AUDIT_ARCH value, such as "x86".
func ArchName(arch uint32) string {
	if arch == 0 {
		arch = Native
	}
	if sa, ok := auditArchs[arch]; ok {
		return sa.String()
	}
	return fmt.Sprintf("arch_%#x", arch)
}

// Name returns the name of native syscall nr, or "syscall_<nr>".
func Name(nr uint64) string {
	return NameByArch(0, nr)
}

// NameByArch returns the name of syscall nr in the ABI arch, or
// "syscall_<nr>" if that ABI has no such call or is not supported.
func NameByArch(arch uint32, nr uint64) string {
	return resolve(arch, nr).name
}

// Known reports whether native syscall nr has a name.
func Known(nr uint64) bool {
	return KnownByArch(0, nr)
}

// KnownByArch reports whether nr has a name in the ABI arch.
func KnownByArch(arch uint32, nr uint64) bool {
	return resolve(arch, nr).known
}

// Number returns the native syscall number for name. Numeric fallback
// labels produced by Name are accepted as well.
func Number(name string) (uint64, bool) {
	if rest, ok := strings.CutPrefix(name, unknownPrefix); ok {
		nr, err := strconv.ParseUint(rest, 10, 64)
		return nr, err == nil
	}
	sa, ok := auditArchs[Native]
	if !ok {
		return 0, false
	}
	sc, err := seccomp.GetSyscallFromNameByArch(name, sa)
	// Calls missing from this ABI resolve to negative pseudo numbers.
	if err != nil || sc < 0 {
		return 0, false
	}
	return uint64(sc), true
}

func resolve(arch uint32, nr uint64) entry {
	if arch == 0 {
		arch = Native
	}
	k := cacheKey{arch: arch, nr: nr}
	if e, ok := names.Get(k); ok {
		return e
	}
	e := entry{name: unknownPrefix + strconv.FormatUint(nr, 10)}
	if sa, ok := auditArchs[arch]; ok && nr <= 1<<31-1 {
		if name, err := seccomp.ScmpSyscall(int32(nr)).GetNameByArch(sa); err == nil {
			e = entry{name: name, known: true}
		}
	}
	names.Add(k, e)
	return e
}
