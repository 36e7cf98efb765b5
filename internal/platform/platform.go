// Package platform holds the per-OS differences in launching and installing
// browser engines behind one Capabilities interface.
package platform

import (
	"context"
	"log/slog"
	"os/exec"
	"time"

	"github.com/loykin/librebrowser/internal/process"
)

// Launch strategies reported in Launched.Strategy.
const (
	StrategyDirect   = "direct"
	StrategyBundle   = "bundle"
	StrategyFallback = "bundle_fallback"
)

// LaunchRequest describes one engine start.
type LaunchRequest struct {
	Label       string
	DisplayName string
	Binary      string
	Args        []string
	// ProfileDir identifies the launched process when its pid has to be
	// recovered from the process table.
	ProfileDir string
}

// Launched is the outcome of a launch. PID is 0 when the process was started
// but its id could not be recovered. Handle is set only when the process is
// a child owned by this host.
type Launched struct {
	PID      int
	Handle   *process.Handle
	Strategy string
}

// Launcher starts an engine process.
type Launcher interface {
	Launch(ctx context.Context, req LaunchRequest) (Launched, error)
}

// Capabilities is everything that differs between operating systems.
type Capabilities interface {
	Name() string
	// ExtraArgs are appended to every engine command line.
	ExtraArgs() []string
	// RepairInstall fixes a freshly extracted engine tree. Best effort.
	RepairInstall(ctx context.Context, root string)
	Launcher() Launcher
}

// Commander runs external helper programs.
type Commander interface {
	// Run executes name and waits for it; a non-zero exit is an error.
	Run(ctx context.Context, name string, args ...string) error
	// Start executes name without waiting; the child is reaped in the
	// background.
	Start(name string, args ...string) error
}

// ExecCommander runs commands through os/exec.
type ExecCommander struct{}

func (ExecCommander) Run(ctx context.Context, name string, args ...string) error {
	// #nosec G204 -- helper names are fixed by this package
	return exec.CommandContext(ctx, name, args...).Run()
}

func (ExecCommander) Start(name string, args ...string) error {
	// #nosec G204 -- helper names are fixed by this package
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// Options wires collaborators into Capabilities. Zero values select the
// system implementations.
type Options struct {
	Logger    *slog.Logger
	Commander Commander
	Finder    process.Finder
	Rebrander Rebrander
	// Spawn starts an owned child; defaults to process.Spawn.
	Spawn             func(binary string, args ...string) (*process.Handle, error)
	DiscoveryTimeout  time.Duration
	DiscoveryInterval time.Duration
}

// Default bounds for recovering the pid of an indirectly launched engine.
const (
	DefaultDiscoveryTimeout  = 3 * time.Second
	DefaultDiscoveryInterval = 100 * time.Millisecond
)

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Commander == nil {
		o.Commander = ExecCommander{}
	}
	if o.Finder == nil {
		o.Finder = process.SystemFinder{}
	}
	if o.Spawn == nil {
		o.Spawn = process.Spawn
	}
	if o.DiscoveryTimeout <= 0 {
		o.DiscoveryTimeout = DefaultDiscoveryTimeout
	}
	if o.DiscoveryInterval <= 0 {
		o.DiscoveryInterval = DefaultDiscoveryInterval
	}
	return o
}

// generic is the capability set for platforms without bundles or
// quarantine markers.
type generic struct {
	name     string
	launcher Launcher
}

// Generic returns capabilities that spawn the engine directly and need no
// install repair.
func Generic(name string, opts Options) Capabilities {
	opts = opts.withDefaults()
	return &generic{name: name, launcher: &DirectLauncher{Spawn: opts.Spawn}}
}

func (g *generic) Name() string                          { return g.name }
func (g *generic) ExtraArgs() []string                   { return nil }
func (g *generic) RepairInstall(context.Context, string) {}
func (g *generic) Launcher() Launcher                    { return g.launcher }
