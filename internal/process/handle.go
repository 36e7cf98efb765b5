package process

import (
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"
)

// Handle is an owned child process. A background waiter reaps the child as
// soon as it exits, so Exited never observes a zombie.
type Handle struct {
	cmd       *exec.Cmd
	startedAt time.Time
	done      chan struct{}

	mu      sync.Mutex
	exitErr error
}

// Spawn starts binary with args in its own process group, with all standard
// streams attached to the null device. The child is not bound to any
// context: it outlives the request that created it.
func Spawn(binary string, args ...string) (*Handle, error) {
	if binary == "" {
		return nil, errors.New("empty binary path")
	}
	// #nosec G204 -- binary is resolved from the engine store, not user input
	cmd := exec.Command(binary, args...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	configureSysProcAttr(cmd)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", binary, err)
	}
	h := &Handle{cmd: cmd, startedAt: time.Now(), done: make(chan struct{})}
	go h.wait()
	return h, nil
}

func (h *Handle) wait() {
	err := h.cmd.Wait()
	h.mu.Lock()
	h.exitErr = err
	h.mu.Unlock()
	close(h.done)
}

func (h *Handle) PID() int             { return h.cmd.Process.Pid }
func (h *Handle) StartedAt() time.Time { return h.startedAt }

// Done is closed once the child has exited and been reaped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Exited reports whether the child has exited, without blocking.
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// ExitErr is the error the reaper got from exec.Cmd.Wait; nil while running or on clean exit.
func (h *Handle) ExitErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitErr
}

// Kill forcefully stops the child and its process group.
func (h *Handle) Kill() error {
	if h.Exited() {
		return nil
	}
	if err := killGroup(h.PID()); err == nil {
		return nil
	}
	if err := h.cmd.Process.Kill(); err != nil && !h.Exited() {
		return err
	}
	return nil
}
