//go:build !windows

package main

import (
	"os/exec"
	"syscall"
)

// configureDaemonAttrs starts the daemon in its own session so it outlives
// the launching terminal.
func configureDaemonAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
