package procfs

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitNUL(t *testing.T) {
	tests := []struct {
		name          string
		data          []byte
		maxItems      int
		maxLen        int
		want          []string
		wantTruncated bool
	}{
		{
			name: "empty data",
			data: []byte{},
			want: []string{},
		},
		{
			name: "only args",
			data: []byte("ls\x00-la\x00/tmp\x00"),
			want: []string{"ls", "-la", "/tmp"},
		},
		{
			name: "no final terminator",
			data: []byte("PATH=/usr/bin\x00HOME=/home/user"),
			want: []string{"PATH=/usr/bin", "HOME=/home/user"},
		},
		{
			name: "empty argument kept",
			data: []byte("printf\x00\x00x\x00"),
			want: []string{"printf", "", "x"},
		},
		{
			name:          "too many items",
			data:          []byte("a\x00b\x00c\x00"),
			maxItems:      2,
			want:          []string{"a", "b"},
			wantTruncated: true,
		},
		{
			name:          "too long",
			data:          []byte("abcdef\x00gh\x00"),
			maxLen:        3,
			want:          []string{"abc", "gh"},
			wantTruncated: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, truncated := SplitNUL(tt.data, tt.maxItems, tt.maxLen)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantTruncated, truncated)
		})
	}
}

func fakeProc(t *testing.T, pid int, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, strconv.Itoa(pid))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return root
}

func TestReader_FakeRoot(t *testing.T) {
	root := fakeProc(t, 42, map[string]string{
		"cmdline": "curl\x00-s\x00http://example.com\x00",
		"environ": "HOME=/root\x00LANG=C\x00",
	})
	require.NoError(t, os.Symlink("/usr/bin/curl", filepath.Join(root, "42", "exe")))

	r := Reader{Root: root}
	args, truncated, err := r.Cmdline(42)
	require.NoError(t, err)
	assert.False(t, truncated)
	assert.Equal(t, []string{"curl", "-s", "http://example.com"}, args)

	env, _, err := r.Environ(42)
	require.NoError(t, err)
	assert.Equal(t, []string{"HOME=/root", "LANG=C"}, env)

	exe, err := r.Exe(42)
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/curl", exe)

	_, _, err = r.Cmdline(43)
	assert.Error(t, err)
}

func TestReader_Limits(t *testing.T) {
	root := fakeProc(t, 7, map[string]string{"cmdline": "a\x00b\x00c\x00"})
	args, truncated, err := Reader{Root: root, MaxItems: 2}.Cmdline(7)
	require.NoError(t, err)
	assert.True(t, truncated)
	assert.Equal(t, []string{"a", "b"}, args)
}

func TestReader_Self(t *testing.T) {
	if _, err := os.Stat("/proc/self"); err != nil {
		t.Skip("no /proc")
	}
	r := Reader{}
	args, _, err := r.Cmdline(os.Getpid())
	require.NoError(t, err)
	assert.NotEmpty(t, args, "expected at least the program name in cmdline")

	env, _, err := r.Environ(os.Getpid())
	require.NoError(t, err)
	if len(os.Environ()) > 0 {
		assert.NotEmpty(t, env)
	}
}
