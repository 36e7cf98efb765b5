// Package profile launches, tracks and closes per-label engine processes.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loykin/librebrowser/internal/metrics"
	"github.com/loykin/librebrowser/internal/monitor"
	"github.com/loykin/librebrowser/internal/paths"
	"github.com/loykin/librebrowser/internal/platform"
	"github.com/loykin/librebrowser/internal/process"
	"github.com/loykin/librebrowser/internal/store"
	"github.com/loykin/librebrowser/internal/surface"
)

// Engines resolves engine executables. *engine.Store implements it.
type Engines interface {
	LocateBinary(version string) (string, bool)
}

// OpenRequest asks for a profile to be shown. Only Label is required.
type OpenRequest struct {
	Label       string `json:"label"`
	URL         string `json:"url,omitempty"`
	Version     string `json:"version,omitempty"`
	WindowTitle string `json:"window_title,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// Close paths reported to metrics.
const (
	closeTracked = "tracked"
	closePIDFile = "pidfile"
	closeSurface = "surface"
)

type Options struct {
	Paths    paths.Resolver
	Engines  Engines
	Platform platform.Capabilities
	Surface  surface.Surface
	// DefaultURL is shown by the embedded surface when Open has no URL.
	DefaultURL string
	Monitor    *monitor.Monitor
	Prober     process.Prober
	// Ledger is optional.
	Ledger         store.Store
	Logger         *slog.Logger
	TerminateGrace time.Duration
	TerminatePoll  time.Duration
}

// tracked is an engine process owned by this host run.
type tracked struct {
	handle   *process.Handle
	launchID string
}

// Manager owns the tracked process table. All methods are safe for
// concurrent use; the table lock is never held across a spawn, a signal
// wait or file I/O.
type Manager struct {
	paths    paths.Resolver
	engines  Engines
	caps     platform.Capabilities
	surface  surface.Surface
	startURL string
	monitor  *monitor.Monitor
	prober   process.Prober
	ledger   store.Store
	logger   *slog.Logger
	grace    time.Duration
	poll     time.Duration
	newID    func() string
	watchCtx context.Context
	stop     context.CancelFunc
	watchers sync.WaitGroup

	mu      sync.Mutex
	tracked map[string]*tracked
}

func NewManager(opts Options) *Manager {
	m := &Manager{
		paths:    opts.Paths,
		engines:  opts.Engines,
		caps:     opts.Platform,
		surface:  opts.Surface,
		startURL: opts.DefaultURL,
		monitor:  opts.Monitor,
		prober:   opts.Prober,
		ledger:   opts.Ledger,
		logger:   opts.Logger,
		grace:    opts.TerminateGrace,
		poll:     opts.TerminatePoll,
		newID:    uuid.NewString,
		tracked:  map[string]*tracked{},
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.caps == nil {
		m.caps = platform.Current(platform.Options{Logger: m.logger})
	}
	if m.surface == nil {
		m.surface = surface.NewRegistry()
	}
	if m.startURL == "" {
		m.startURL = surface.DefaultURL
	}
	if m.prober == nil {
		m.prober = process.SystemProber{}
	}
	if m.monitor == nil {
		m.monitor = monitor.New(m.logger)
		m.monitor.Prober = m.prober
	}
	if m.grace <= 0 {
		m.grace = process.DefaultTerminateGrace
	}
	if m.poll <= 0 {
		m.poll = process.DefaultTerminatePoll
	}
	m.watchCtx, m.stop = context.WithCancel(context.Background())
	return m
}

// Open shows the profile for req.Label and returns the engine pid. ok is
// false when no pid is known: the profile went to an embedded surface
// because no engine is installed, or an indirect launch could not recover
// the pid in time.
func (m *Manager) Open(ctx context.Context, req OpenRequest) (pid int, ok bool, err error) {
	label := req.Label
	if err := ValidateLabel(label); err != nil {
		return 0, false, err
	}
	if req.URL != "" {
		if u, err := url.Parse(req.URL); err != nil || u.Scheme == "" {
			return 0, false, fmt.Errorf("%w: %q", ErrInvalidURL, req.URL)
		}
	}
	m.logger.Info("open profile", "label", label, "version", req.Version, "url", req.URL)

	if pid, ok := m.alive(label); ok {
		m.logger.Info("profile already running", "label", label, "pid", pid)
		return pid, true, nil
	}

	binary, found := m.engines.LocateBinary(req.Version)
	if !found {
		m.logger.Warn("no engine binary found, falling back to embedded surface", "label", label, "version", req.Version)
		return 0, false, m.openSurface(ctx, label, req.URL)
	}

	profileDir := m.paths.ProfileDir(label)
	crashDir := m.paths.CrashDir(label)
	if err := os.MkdirAll(crashDir, 0o750); err != nil {
		return 0, false, fmt.Errorf("create profile dir: %w", err)
	}
	title := req.WindowTitle
	if title == "" {
		title = DefaultTitle(label)
	}
	displayName := req.DisplayName
	if displayName == "" {
		displayName = label
	}
	args := LaunchArgs{
		ProfileDir: profileDir,
		CrashDir:   crashDir,
		LogFile:    m.paths.EngineLog(label),
		URL:        req.URL,
		Title:      title,
		Extra:      m.caps.ExtraArgs(),
	}.Build()
	if bundle, ok := platform.BundlePath(binary); ok {
		m.caps.RepairInstall(ctx, bundle)
	}

	m.logger.Info("launch engine", "label", label, "binary", binary, "args", args)
	// indirect launches spend time recovering the pid; lifetime counts from here
	startedAt := time.Now()
	res, err := m.caps.Launcher().Launch(ctx, platform.LaunchRequest{
		Label:       label,
		DisplayName: displayName,
		Binary:      binary,
		Args:        args,
		ProfileDir:  profileDir,
	})
	if err != nil {
		m.logger.Error("spawn failed", "label", label, "error", err)
		return 0, false, fmt.Errorf("launch engine: %w", err)
	}
	metrics.IncLaunch(res.Strategy)
	if res.PID == 0 {
		return 0, false, nil
	}

	launchID := m.newID()
	if res.Handle != nil {
		if winner, lost := m.track(label, res.Handle, launchID); lost {
			m.logger.Warn("concurrent open won the race, stopping duplicate", "label", label, "pid", res.PID, "winner", winner)
			_ = res.Handle.Kill()
			return winner, true, nil
		}
		startedAt = res.Handle.StartedAt()
	}

	if err := process.WritePIDFile(m.paths.PIDFile(label), res.PID); err != nil {
		m.logger.Error("write pid file", "label", label, "error", err)
	} else {
		m.logger.Info("wrote pid file", "label", label, "pid", res.PID)
	}
	m.record(ctx, store.Record{Label: label, PID: res.PID, LastStatus: store.StatusLaunched, LaunchID: launchID})
	m.watch(label, res.PID, launchID, startedAt, res.Handle)
	m.logger.Info("spawn ok", "label", label, "pid", res.PID, "strategy", res.Strategy)
	return res.PID, true, nil
}

func (m *Manager) openSurface(ctx context.Context, label, rawURL string) error {
	if m.surface.Exists(label) {
		return nil
	}
	if rawURL == "" {
		rawURL = m.startURL
	}
	if err := m.surface.Open(ctx, label, rawURL); err != nil {
		m.logger.Error("open embedded surface", "label", label, "error", err)
		return err
	}
	return nil
}

// alive returns the pid of a tracked process that has not exited, dropping
// a stale entry.
func (m *Manager) alive(label string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tracked[label]
	if !ok {
		return 0, false
	}
	if t.handle.Exited() {
		delete(m.tracked, label)
		metrics.SetTracked(len(m.tracked))
		return 0, false
	}
	return t.handle.PID(), true
}

// track inserts h unless another live process was tracked for label while
// h was being spawned, in which case it reports the winner's pid.
func (m *Manager) track(label string, h *process.Handle, launchID string) (winner int, lost bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tracked[label]; ok && !t.handle.Exited() {
		return t.handle.PID(), true
	}
	m.tracked[label] = &tracked{handle: h, launchID: launchID}
	metrics.SetTracked(len(m.tracked))
	return 0, false
}

func (m *Manager) watch(label string, pid int, launchID string, startedAt time.Time, h *process.Handle) {
	reports := m.monitor.Watch(m.watchCtx, monitor.Target{
		Label:     label,
		PID:       pid,
		LogPath:   m.paths.EngineLog(label),
		StartedAt: startedAt,
	})
	m.watchers.Add(1)
	go func() {
		defer m.watchers.Done()
		r, ok := <-reports
		if !ok {
			return
		}
		status := store.StatusExited
		if r.Early {
			status = store.StatusExitedEarly
			metrics.IncEarlyExit()
		}
		m.recordExit(label, launchID, pid, status)
		if h != nil {
			select {
			case <-h.Done():
				if err := h.ExitErr(); err != nil {
					m.logger.Info("engine exit status", "label", label, "pid", pid, "error", err)
				}
			case <-m.watchCtx.Done():
				return
			}
			m.untrackExited(label, h)
		}
	}()
}

// untrackExited drops the entry for label if it still refers to h. The pid
// file is left alone; Running and Close deal with stale files.
func (m *Manager) untrackExited(label string, h *process.Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tracked[label]; ok && t.handle == h && h.Exited() {
		delete(m.tracked, label)
		metrics.SetTracked(len(m.tracked))
	}
}

// Close stops the engine for label. Closing a profile that is not open
// succeeds.
func (m *Manager) Close(ctx context.Context, label string) error {
	if err := ValidateLabel(label); err != nil {
		return err
	}
	m.mu.Lock()
	t := m.tracked[label]
	delete(m.tracked, label)
	metrics.SetTracked(len(m.tracked))
	m.mu.Unlock()

	pidFile := m.paths.PIDFile(label)
	if t != nil {
		pid := t.handle.PID()
		m.logger.Info("close tracked engine", "label", label, "pid", pid)
		m.markClosed(ctx, label, pid)
		if err := t.handle.Kill(); err != nil {
			return fmt.Errorf("kill %d: %w", pid, err)
		}
		timer := time.NewTimer(m.grace)
		select {
		case <-t.handle.Done():
		case <-timer.C:
			m.logger.Warn("engine did not exit after kill", "label", label, "pid", pid)
		case <-ctx.Done():
			m.logger.Warn("close cancelled before engine exit", "label", label, "pid", pid, "error", ctx.Err())
		}
		timer.Stop()
		m.removePIDFile(label, pidFile)
		m.closed(label, closeTracked)
		return nil
	}

	pid, err := process.ReadPIDFile(pidFile)
	if err == nil {
		m.markClosed(ctx, label, pid)
		if m.prober.Alive(pid) {
			m.logger.Info("close engine by pid file", "label", label, "pid", pid)
			forced, err := process.Terminate(pid, m.grace, m.poll, m.prober)
			if err != nil {
				return err
			}
			if forced {
				m.logger.Warn("engine ignored terminate, killed", "label", label, "pid", pid)
			}
		}
		m.removePIDFile(label, pidFile)
		m.closed(label, closePIDFile)
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		m.logger.Warn("unreadable pid file", "label", label, "error", err)
		m.removePIDFile(label, pidFile)
	}

	if m.surface.Exists(label) {
		if err := m.surface.Close(ctx, label); err != nil {
			return err
		}
		metrics.IncClose(closeSurface)
	}
	return nil
}

func (m *Manager) removePIDFile(label, path string) {
	if err := process.RemovePIDFile(path); err != nil {
		m.logger.Warn("remove pid file", "label", label, "error", err)
	}
}

// markClosed is recorded before any signal is sent, so the exit the
// watcher observes afterwards is never written over it.
func (m *Manager) markClosed(ctx context.Context, label string, pid int) {
	m.record(ctx, store.Record{Label: label, PID: pid, LastStatus: store.StatusClosed, LaunchID: m.lastLaunchID(ctx, label)})
}

func (m *Manager) closed(label, path string) {
	metrics.IncClose(path)
	metrics.ClearProfileMemory(label)
}

// Exists reports whether label has a live tracked engine or an open
// embedded surface.
func (m *Manager) Exists(label string) bool {
	if _, ok := m.alive(label); ok {
		return true
	}
	return m.surface.Exists(label)
}

// Running returns the pid recorded for label if that process is alive. It
// never modifies the pid file.
func (m *Manager) Running(label string) (int, bool) {
	if ValidateLabel(label) != nil {
		return 0, false
	}
	pid, err := process.ReadPIDFile(m.paths.PIDFile(label))
	if err != nil || !m.prober.Alive(pid) {
		return 0, false
	}
	return pid, true
}

// Tracked returns the number of owned engine processes.
func (m *Manager) Tracked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tracked)
}

// Shutdown stops all watchers. Engine processes keep running.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.stop()
	done := make(chan struct{})
	go func() {
		m.watchers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
