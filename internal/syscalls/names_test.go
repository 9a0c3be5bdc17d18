package syscalls

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestName_UnknownFallsBackToNumber(t *testing.T) {
	assert.Equal(t, "syscall_99999", Name(99999))
	assert.False(t, Known(99999))

	// Cached lookups answer the same.
	assert.Equal(t, "syscall_99999", Name(99999))
	assert.Equal(t, "syscall_18446744073709551615", Name(^uint64(0)))
}

func TestName_SharedRange(t *testing.T) {
	// 435 is clone3 on every architecture with unified numbering.
	assert.Equal(t, "clone3", Name(435))
	assert.True(t, Known(435))
}

func TestNumber_RoundTripsFallbackLabel(t *testing.T) {
	nr, ok := Number("syscall_1234")
	require.True(t, ok)
	assert.Equal(t, uint64(1234), nr)

	_, ok = Number("syscall_abc")
	assert.False(t, ok)

	_, ok = Number("definitely_not_a_syscall")
	assert.False(t, ok)
}

func TestNameByArch(t *testing.T) {
	tests := []struct {
		name string
		arch uint32
		nr   uint64
		want string
	}{
		{"x86_64 read", unix.AUDIT_ARCH_X86_64, 0, "read"},
		{"x86_64 stat", unix.AUDIT_ARCH_X86_64, 4, "stat"},
		{"x86_64 execve", unix.AUDIT_ARCH_X86_64, 59, "execve"},
		{"x86_64 exit_group", unix.AUDIT_ARCH_X86_64, 231, "exit_group"},
		{"i386 write", unix.AUDIT_ARCH_I386, 4, "write"},
		{"i386 execve", unix.AUDIT_ARCH_I386, 11, "execve"},
		{"i386 clone", unix.AUDIT_ARCH_I386, 120, "clone"},
		{"aarch64 read", unix.AUDIT_ARCH_AARCH64, 63, "read"},
		{"aarch64 execve", unix.AUDIT_ARCH_AARCH64, 221, "execve"},
		{"aarch64 wait4", unix.AUDIT_ARCH_AARCH64, 260, "wait4"},
		{"unsupported abi", 0x1234, 4, "syscall_4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NameByArch(tt.arch, tt.nr))
			assert.Equal(t, tt.want != "syscall_4", KnownByArch(tt.arch, tt.nr))
		})
	}
}

func TestNative(t *testing.T) {
	tests := []struct {
		goarch string
		nr     uint64
		name   string
	}{
		{"amd64", 35, "nanosleep"},
		{"amd64", 230, "clock_nanosleep"},
		{"arm64", 101, "nanosleep"},
		{"arm64", 115, "clock_nanosleep"},
	}
	for _, tt := range tests {
		if tt.goarch != runtime.GOARCH {
			continue
		}
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, Name(tt.nr))
			assert.Equal(t, Name(tt.nr), NameByArch(Native, tt.nr))

			nr, ok := Number(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.nr, nr)
		})
	}
}

func TestIsNative(t *testing.T) {
	assert.True(t, IsNative(0))
	assert.True(t, IsNative(Native))
	if runtime.GOARCH == "amd64" {
		assert.False(t, IsNative(unix.AUDIT_ARCH_I386))
		assert.Equal(t, "x86", ArchName(unix.AUDIT_ARCH_I386))
		assert.Equal(t, "amd64", ArchName(0))
	}
	assert.Equal(t, "arch_0x1234", ArchName(0x1234))
}
