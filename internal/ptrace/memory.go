package ptrace

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// peekFunc reads tracee memory at addr into buf and returns how many bytes
// were read.
type peekFunc func(addr uintptr, buf []byte) (int, error)

const peekChunk = 256

// readString reads a NUL-terminated string of at most maxLen bytes. The
// second result reports whether the string was cut at maxLen.
func readString(peek peekFunc, addr uintptr, maxLen int) (string, bool, error) {
	if addr == 0 {
		return "", false, nil
	}
	var out []byte
	buf := make([]byte, peekChunk)
	for len(out) < maxLen {
		want := min(peekChunk, maxLen-len(out))
		n, err := peek(addr+uintptr(len(out)), buf[:want])
		if n > 0 {
			if i := bytes.IndexByte(buf[:n], 0); i >= 0 {
				return string(append(out, buf[:i]...)), false, nil
			}
			out = append(out, buf[:n]...)
		}
		if err != nil {
			if len(out) > 0 {
				return string(out), true, fmt.Errorf("reading string at %#x: %w", addr, err)
			}
			return "", false, fmt.Errorf("reading string at %#x: %w", addr, err)
		}
		if n == 0 {
			return string(out), true, fmt.Errorf("reading string at %#x: short read", addr)
		}
	}
	return string(out), true, nil
}

// readWord reads one native-endian 64-bit word.
func readWord(peek peekFunc, addr uintptr) (uint64, error) {
	var buf [8]byte
	n, err := peek(addr, buf[:])
	if err != nil {
		return 0, fmt.Errorf("reading word at %#x: %w", addr, err)
	}
	if n != len(buf) {
		return 0, fmt.Errorf("reading word at %#x: short read (%d bytes)", addr, n)
	}
	return binary.NativeEndian.Uint64(buf[:]), nil
}

// readStringList reads a NULL-terminated array of string pointers such as
// argv or envp. At most maxItems entries of at most maxLen bytes each are
// returned; truncated reports whether anything was cut.
func readStringList(peek peekFunc, addr uintptr, maxItems, maxLen int) (list []string, truncated bool, err error) {
	if addr == 0 {
		return nil, false, nil
	}
	for i := 0; ; i++ {
		ptr, err := readWord(peek, addr+uintptr(8*i))
		if err != nil {
			return list, true, err
		}
		if ptr == 0 {
			return list, truncated, nil
		}
		if i >= maxItems {
			return list, true, nil
		}
		s, cut, err := readString(peek, uintptr(ptr), maxLen)
		if err != nil {
			return list, true, err
		}
		truncated = truncated || cut
		list = append(list, s)
	}
}
