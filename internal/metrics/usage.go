package metrics

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// Usage is a point-in-time resource sample of one engine process.
type Usage struct {
	PID        int32     `json:"pid"`
	CPUPercent float64   `json:"cpu_percent"`
	MemoryRSS  uint64    `json:"memory_rss"`
	NumThreads int32     `json:"num_threads"`
	Timestamp  time.Time `json:"timestamp"`
}

// Sample reads CPU and memory for pid. CPU is averaged over the process
// lifetime; a failed thread count is reported as zero.
func Sample(ctx context.Context, pid int) (Usage, error) {
	p, err := process.NewProcessWithContext(ctx, int32(pid)) // #nosec G115 -- pids fit in int32
	if err != nil {
		return Usage{}, err
	}
	mem, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return Usage{}, err
	}
	cpu, err := p.CPUPercentWithContext(ctx)
	if err != nil {
		cpu = 0
	}
	threads, _ := p.NumThreadsWithContext(ctx)
	return Usage{
		PID:        p.Pid,
		CPUPercent: cpu,
		MemoryRSS:  mem.RSS,
		NumThreads: threads,
		Timestamp:  time.Now(),
	}, nil
}
