package process

import (
	"context"
	"strings"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// Finder locates a process by the contents of its command line.
type Finder interface {
	// FindByCmdline returns the pid of a process whose command line contains
	// required and at least one of anyOf, or 0 when none matches.
	FindByCmdline(ctx context.Context, required string, anyOf []string) (int, error)
}

// SystemFinder scans the OS process table.
type SystemFinder struct{}

// FindByCmdline returns the lowest matching pid, which is normally the
// browser process rather than one of its helpers. Matching is substring
// based and can select an unrelated process whose command line happens to
// mention the same path.
func (SystemFinder) FindByCmdline(ctx context.Context, required string, anyOf []string) (int, error) {
	procs, err := gopsproc.ProcessesWithContext(ctx)
	if err != nil {
		return 0, err
	}
	best := 0
	for _, p := range procs {
		cl, err := p.CmdlineWithContext(ctx)
		if err != nil {
			continue
		}
		pid := int(p.Pid)
		if MatchCmdline(cl, required, anyOf) && (best == 0 || pid < best) {
			best = pid
		}
	}
	return best, nil
}

// MatchCmdline reports whether cmdline mentions required and one of anyOf.
func MatchCmdline(cmdline, required string, anyOf []string) bool {
	if required == "" || !strings.Contains(cmdline, required) {
		return false
	}
	for _, s := range anyOf {
		if s != "" && strings.Contains(cmdline, s) {
			return true
		}
	}
	return false
}
