//go:build !windows

package process

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitUntil(timeout, step time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(step)
	}
	return cond()
}

func TestSpawn_TracksExit(t *testing.T) {
	h, err := Spawn("/bin/sh", "-c", "sleep 0.2")
	require.NoError(t, err)
	assert.Greater(t, h.PID(), 0)
	assert.False(t, h.Exited())
	assert.True(t, SystemProber{}.Alive(h.PID()))

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("child not reaped")
	}
	assert.True(t, h.Exited())
	assert.NoError(t, h.ExitErr())
	assert.False(t, SystemProber{}.Alive(h.PID()))
}

func TestSpawn_MissingBinary(t *testing.T) {
	_, err := Spawn("/definitely/not/here")
	assert.Error(t, err)
	_, err = Spawn("")
	assert.Error(t, err)
}

func TestHandleKill(t *testing.T) {
	h, err := Spawn("/bin/sh", "-c", "sleep 30")
	require.NoError(t, err)
	require.NoError(t, h.Kill())
	assert.True(t, waitUntil(5*time.Second, 20*time.Millisecond, h.Exited))
	assert.Error(t, h.ExitErr())
	assert.NoError(t, h.Kill(), "killing an exited handle is a no-op")
}

func TestSystemProber_InvalidPIDs(t *testing.T) {
	p := SystemProber{}
	assert.False(t, p.Alive(0))
	assert.False(t, p.Alive(-1))
	assert.True(t, p.Alive(os.Getpid()))
}

func TestSystemProber_ZombieIsNotAlive(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "exit 0")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid
	t.Cleanup(func() { _ = cmd.Wait() })
	// Not reaped yet: the entry lingers as a zombie.
	assert.True(t, waitUntil(3*time.Second, 20*time.Millisecond, func() bool {
		return !SystemProber{}.Alive(pid)
	}))
}

func TestTerminate_Graceful(t *testing.T) {
	h, err := Spawn("/bin/sh", "-c", "sleep 30")
	require.NoError(t, err)
	forced, err := Terminate(h.PID(), 2*time.Second, 20*time.Millisecond, SystemProber{})
	require.NoError(t, err)
	assert.False(t, forced)
	assert.True(t, waitUntil(2*time.Second, 20*time.Millisecond, h.Exited))
}

func TestTerminate_EscalatesWhenTermIgnored(t *testing.T) {
	h, err := Spawn("/bin/sh", "-c", `trap "" TERM; while true; do sleep 0.05; done`)
	require.NoError(t, err)
	// let the shell install its trap
	time.Sleep(150 * time.Millisecond)
	forced, err := Terminate(h.PID(), 300*time.Millisecond, 20*time.Millisecond, SystemProber{})
	require.NoError(t, err)
	assert.True(t, forced)
	assert.True(t, waitUntil(2*time.Second, 20*time.Millisecond, h.Exited))
}

func TestTerminate_InvalidPID(t *testing.T) {
	_, err := Terminate(0, time.Second, time.Millisecond, SystemProber{})
	assert.ErrorIs(t, err, ErrInvalidPID)
}

func TestSystemFinder_MatchesOwnChild(t *testing.T) {
	marker := "/tmp/librebrowser-finder-" + strconv.Itoa(os.Getpid())
	h, err := Spawn("/bin/sh", "-c", "sleep 5; true # "+marker+" Chromium")
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Kill() })

	var pid int
	ok := waitUntil(3*time.Second, 50*time.Millisecond, func() bool {
		pid, err = SystemFinder{}.FindByCmdline(context.Background(), marker, []string{"Chromium"})
		return err == nil && pid > 0
	})
	require.True(t, ok)
	assert.Equal(t, h.PID(), pid)

	pid, err = SystemFinder{}.FindByCmdline(context.Background(), marker, []string{"Google Chrome for Testing"})
	require.NoError(t, err)
	assert.Zero(t, pid)
}
