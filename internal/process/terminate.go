package process

import (
	"fmt"
	"time"
)

// Default bounds for Terminate.
const (
	DefaultTerminateGrace = 2 * time.Second
	DefaultTerminatePoll  = 100 * time.Millisecond
)

// Terminate sends a graceful stop request to pid, polls prober until the
// process is gone or grace elapses, then escalates to a forceful kill.
// forced reports whether the escalation was needed.
func Terminate(pid int, grace, poll time.Duration, prober Prober) (forced bool, err error) {
	if pid <= 0 {
		return false, fmt.Errorf("%w: %d", ErrInvalidPID, pid)
	}
	if grace <= 0 {
		grace = DefaultTerminateGrace
	}
	if poll <= 0 {
		poll = DefaultTerminatePoll
	}
	_ = signalTerm(pid)
	deadline := time.Now().Add(grace)
	for prober.Alive(pid) && time.Now().Before(deadline) {
		time.Sleep(poll)
	}
	if !prober.Alive(pid) {
		return false, nil
	}
	if err := signalKill(pid); err != nil {
		return true, fmt.Errorf("kill %d: %w", pid, err)
	}
	return true, nil
}
