package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// daemonArgs drops the flags that only the launching parent understands.
func daemonArgs(args []string) []string {
	out := make([]string, 0, len(args))
	skipNext := false
	for _, arg := range args {
		if skipNext {
			skipNext = false
			continue
		}
		switch arg {
		case "--daemonize", "--daemonize=true":
			continue
		case "--pidfile", "--logfile":
			skipNext = true
			continue
		}
		if strings.HasPrefix(arg, "--pidfile=") || strings.HasPrefix(arg, "--logfile=") {
			continue
		}
		out = append(out, arg)
	}
	return out
}

// daemonize re-executes the current binary detached from the terminal and
// returns the child's pid.
func daemonize(args []string, logFile string) (int, error) {
	executable, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("failed to get executable path: %w", err)
	}

	// #nosec G204
	cmd := exec.Command(executable, daemonArgs(args)...)
	configureDaemonAttrs(cmd)
	cmd.Stdin = nil
	if logFile != "" {
		logF, err := os.OpenFile(filepath.Clean(logFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return 0, fmt.Errorf("failed to open log file: %w", err)
		}
		defer func() { _ = logF.Close() }()
		cmd.Stdout = logF
		cmd.Stderr = logF
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start daemon process: %w", err)
	}
	pid := cmd.Process.Pid
	_ = cmd.Process.Release()
	return pid, nil
}
