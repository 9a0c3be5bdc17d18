package tracer

import (
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"

	"github.com/KarelPeeters/wtf/internal/ptrace"
)

func TestAttachError(t *testing.T) {
	err := &AttachError{Command: "ls", Scope: 3, Err: ptrace.ErrAttach}
	assert.Contains(t, err.Error(), "ptrace_scope = 3")
	assert.ErrorIs(t, err, ptrace.ErrAttach)

	noYama := &AttachError{Command: "ls", Scope: -1, Err: unix.EPERM}
	assert.NotContains(t, noYama.Error(), "ptrace_scope")
	assert.ErrorIs(t, noYama, unix.EPERM)
}

func TestLaunchError(t *testing.T) {
	err := error(&LaunchError{Command: "nope", Err: exec.ErrNotFound})
	assert.ErrorIs(t, err, exec.ErrNotFound)
	assert.Contains(t, err.Error(), "nope")

	var lerr *LaunchError
	assert.True(t, errors.As(err, &lerr))
}

func TestResultCode(t *testing.T) {
	assert.Equal(t, 0, Result{}.Code())
	assert.Equal(t, 7, Result{ExitCode: 7}.Code())
	assert.Equal(t, 137, Result{Signal: unix.SIGKILL, Cancelled: true}.Code())
}
