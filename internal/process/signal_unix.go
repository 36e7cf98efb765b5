//go:build !windows

package process

import (
	"errors"
	"syscall"
)

// signalTerm asks pid to exit.
func signalTerm(pid int) error { return syscall.Kill(pid, syscall.SIGTERM) }

// signalKill forcefully stops pid.
func signalKill(pid int) error { return syscall.Kill(pid, syscall.SIGKILL) }

// killGroup sends SIGKILL to the process group led by pid.
func killGroup(pid int) error { return syscall.Kill(-pid, syscall.SIGKILL) }

// signalExists is the kill(pid, 0) probe; EPERM still means the pid exists.
func signalExists(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
