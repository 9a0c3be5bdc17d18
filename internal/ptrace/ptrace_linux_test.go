package ptrace

import (
	"os"
	"os/exec"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestKillAndReap(t *testing.T) {
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("no sleep binary")
	}
	cmd := exec.Command(sleep, "30")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid
	require.NoError(t, cmd.Process.Release())

	require.NoError(t, KillAndReap(pid))

	// Reaped, not a zombie: the pid is gone from /proc and no longer our child.
	_, err = os.Stat("/proc/" + strconv.Itoa(pid))
	assert.True(t, os.IsNotExist(err), "pid %d still present: %v", pid, err)
	var ws unix.WaitStatus
	_, err = unix.Wait4(pid, &ws, unix.WNOHANG, nil)
	assert.ErrorIs(t, err, unix.ECHILD)
}

func TestKillAndReap_Gone(t *testing.T) {
	err := KillAndReap(1 << 22)
	assert.ErrorIs(t, err, unix.ESRCH)
}
