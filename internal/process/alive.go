package process

import (
	"slices"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// Prober answers whether a pid refers to a live process.
// Implementations must be safe for concurrent use.
type Prober interface {
	Alive(pid int) bool
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(pid int) bool

func (f ProberFunc) Alive(pid int) bool { return f(pid) }

// SystemProber probes the OS process table. Anything it cannot confirm is
// reported as not alive, so a stale record never blocks a relaunch.
type SystemProber struct{}

func (SystemProber) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	if !signalExists(pid) {
		return false
	}
	p, err := gopsproc.NewProcess(int32(pid)) // #nosec G115 -- pids fit in int32
	if err != nil {
		return false
	}
	// An exited child that nobody reaped yet still has a table entry.
	if st, err := p.Status(); err == nil && slices.Contains(st, gopsproc.Zombie) {
		return false
	}
	return true
}
