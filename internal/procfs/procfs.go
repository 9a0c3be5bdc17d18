// Package procfs reads process details from /proc.
//
// The tracer normally copies argv and envp out of tracee memory at execve
// entry. When that fails (unmapped pointers, a vanished thread, an exec the
// entry stop was never seen for), the same information is still available
// from /proc once the exec event has stopped the new program.
package procfs

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Reader reads /proc/<pid> entries under Root.
type Reader struct {
	// Root defaults to /proc.
	Root string
	// MaxItems and MaxLen bound what Cmdline and Environ return; zero means
	// unlimited.
	MaxItems int
	MaxLen   int
}

func (r Reader) path(pid int, name string) string {
	root := r.Root
	if root == "" {
		root = "/proc"
	}
	return filepath.Join(root, strconv.Itoa(pid), name)
}

func (r Reader) readList(pid int, name string) ([]string, bool, error) {
	p := r.path(pid, name)
	//nolint:gosec // Reading from /proc is the point.
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", p, err)
	}
	list, truncated := SplitNUL(data, r.MaxItems, r.MaxLen)
	return list, truncated, nil
}

// Cmdline returns the argument vector of pid and whether it was truncated.
func (r Reader) Cmdline(pid int) ([]string, bool, error) {
	return r.readList(pid, "cmdline")
}

// Environ returns the KEY=VALUE environment of pid and whether it was truncated.
func (r Reader) Environ(pid int) ([]string, bool, error) {
	return r.readList(pid, "environ")
}

// Exe returns the path of the executable pid is running.
func (r Reader) Exe(pid int) (string, error) {
	p := r.path(pid, "exe")
	target, err := os.Readlink(p)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", p, err)
	}
	return target, nil
}

// SplitNUL splits NUL-terminated strings. A missing final terminator is
// tolerated. Empty strings between terminators are kept, a trailing empty
// one is not. maxItems and maxLen cut the result when positive.
func SplitNUL(data []byte, maxItems, maxLen int) ([]string, bool) {
	data = bytes.TrimSuffix(data, []byte{0})
	if len(data) == 0 {
		return []string{}, false
	}

	parts := bytes.Split(data, []byte{0})
	truncated := false
	if maxItems > 0 && len(parts) > maxItems {
		parts = parts[:maxItems]
		truncated = true
	}
	out := make([]string, len(parts))
	for i, part := range parts {
		if maxLen > 0 && len(part) > maxLen {
			part = part[:maxLen]
			truncated = true
		}
		out[i] = string(part)
	}
	return out, truncated
}
