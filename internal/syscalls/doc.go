// Package syscalls resolves syscall numbers to names.
//
// Numbers are interpreted in the ABI the kernel reports for the call (the
// AUDIT_ARCH value of PTRACE_GET_SYSCALL_INFO), so a 32-bit tracee on a
// 64-bit kernel gets its own names. Resolution is done by libseccomp and
// memoized. Numbers without a name keep a numeric label such as
// "syscall_999" so profile totals stay complete.
package syscalls
