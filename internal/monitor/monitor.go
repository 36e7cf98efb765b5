// Package monitor watches launched engine processes and captures the
// engine's own log when one dies right after starting.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/loykin/librebrowser/internal/logger"
	"github.com/loykin/librebrowser/internal/process"
)

// Defaults for Monitor fields left zero.
const (
	DefaultInterval       = 200 * time.Millisecond
	DefaultCrashThreshold = 5 * time.Second
	DefaultTailLines      = 100
	DefaultTailBytes      = 64 * 1024
)

// Clock abstracts time so tests can run the poll loop in virtual time.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Target is one process to watch.
type Target struct {
	Label string
	PID   int
	// LogPath is the engine log tailed on an early exit.
	LogPath string
	// StartedAt defaults to the time Watch is called.
	StartedAt time.Time
}

// Report describes an observed exit.
type Report struct {
	Label   string
	PID     int
	Elapsed time.Duration
	// Early is set when the process exited before the crash threshold.
	Early bool
	// Tail holds the engine log lines captured for an early exit.
	Tail []string
}

// Monitor polls liveness of launched processes.
type Monitor struct {
	Prober         process.Prober
	Clock          Clock
	Interval       time.Duration
	CrashThreshold time.Duration
	TailLines      int
	TailBytes      int
	Logger         *slog.Logger
}

// New returns a Monitor with default timing that probes the OS.
func New(logger *slog.Logger) *Monitor {
	return &Monitor{Prober: process.SystemProber{}, Logger: logger}
}

// Watch starts a goroutine that polls t.PID until it is gone. The returned
// channel yields exactly one Report and is then closed. Cancelling ctx stops
// the watcher and closes the channel without a report. Watch never touches
// pid files or process tables.
func (m *Monitor) Watch(ctx context.Context, t Target) <-chan Report {
	clock := m.Clock
	if clock == nil {
		clock = realClock{}
	}
	prober := m.Prober
	if prober == nil {
		prober = process.SystemProber{}
	}
	if t.StartedAt.IsZero() {
		t.StartedAt = clock.Now()
	}
	out := make(chan Report, 1)
	go func() {
		defer close(out)
		for prober.Alive(t.PID) {
			select {
			case <-ctx.Done():
				return
			case <-clock.After(valOr(m.Interval, DefaultInterval)):
			}
		}
		out <- m.exited(t, clock.Now().Sub(t.StartedAt))
	}()
	return out
}

func (m *Monitor) exited(t Target, elapsed time.Duration) Report {
	r := Report{Label: t.Label, PID: t.PID, Elapsed: elapsed}
	log := m.Logger
	if log == nil {
		log = slog.Default()
	}
	if elapsed >= valOr(m.CrashThreshold, DefaultCrashThreshold) {
		log.Info("engine exited", "label", t.Label, "pid", t.PID, "elapsed_ms", elapsed.Milliseconds())
		return r
	}
	r.Early = true
	log.Error("engine exited quickly", "label", t.Label, "pid", t.PID, "elapsed_ms", elapsed.Milliseconds())
	lines, err := logger.TailFile(t.LogPath, intOr(m.TailLines, DefaultTailLines), intOr(m.TailBytes, DefaultTailBytes))
	if err != nil {
		log.Warn("no engine log", "label", t.Label, "path", t.LogPath)
		return r
	}
	r.Tail = lines
	for _, line := range lines {
		log.Error("[ChromeLog]["+t.Label+"] "+line, "label", t.Label)
	}
	return r
}

func valOr(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func intOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
