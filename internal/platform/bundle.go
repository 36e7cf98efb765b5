package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/loykin/librebrowser/internal/process"
)

// EngineFamilies are the process names an indirectly launched engine can
// show up under.
var EngineFamilies = []string{"Google Chrome for Testing", "Chromium"}

// Rebrander produces a per-profile copy of an application bundle. The
// returned path is opened instead of the original bundle.
type Rebrander interface {
	Rebrand(ctx context.Context, bundle, label, displayName string) (string, error)
}

// BundleLauncher opens an application bundle through the OS opener and
// recovers the resulting pid from the process table. Binaries that are not
// inside a bundle, and failures of the opener, fall back to a direct spawn.
type BundleLauncher struct {
	Direct    *DirectLauncher
	Commander Commander
	Finder    process.Finder
	Rebrander Rebrander
	Logger    *slog.Logger
	Timeout   time.Duration
	Interval  time.Duration
}

func newBundleLauncher(opts Options) *BundleLauncher {
	opts = opts.withDefaults()
	return &BundleLauncher{
		Direct:    &DirectLauncher{Spawn: opts.Spawn},
		Commander: opts.Commander,
		Finder:    opts.Finder,
		Rebrander: opts.Rebrander,
		Logger:    opts.Logger,
		Timeout:   opts.DiscoveryTimeout,
		Interval:  opts.DiscoveryInterval,
	}
}

func (b *BundleLauncher) Launch(ctx context.Context, req LaunchRequest) (Launched, error) {
	bundle, ok := BundlePath(req.Binary)
	if !ok {
		return b.Direct.Launch(ctx, req)
	}
	if b.Rebrander != nil {
		if custom, err := b.Rebrander.Rebrand(ctx, bundle, req.Label, req.DisplayName); err != nil {
			b.Logger.Warn("rebrand bundle", "label", req.Label, "bundle", bundle, "error", err)
		} else if custom != "" {
			bundle = custom
		}
	}

	b.Logger.Info("open app", "label", req.Label, "bundle", bundle, "args", req.Args)
	openArgs := append([]string{"-n", bundle, "--args"}, req.Args...)
	if err := b.Commander.Run(ctx, "open", openArgs...); err != nil {
		b.Logger.Error("open failed, spawning directly", "label", req.Label, "error", err)
		l, err := b.Direct.Launch(ctx, req)
		if err != nil {
			return Launched{}, err
		}
		l.Strategy = StrategyFallback
		return l, nil
	}

	pid := b.discover(ctx, req.ProfileDir)
	if pid == 0 {
		b.Logger.Warn("open succeeded but pid not found within timeout", "label", req.Label, "timeout", b.Timeout)
		return Launched{Strategy: StrategyBundle}, nil
	}
	b.Logger.Info("open ok", "label", req.Label, "pid", pid)
	b.activate(req, bundle)
	return Launched{PID: pid, Strategy: StrategyBundle}, nil
}

var errNotFound = errors.New("engine process not found yet")

// discover polls the process table for a command line naming profileDir and
// an engine family. It returns 0 once the timeout elapses. Matching is by
// substring, so an unrelated process mentioning the same path can win.
func (b *BundleLauncher) discover(ctx context.Context, profileDir string) int {
	dctx, cancel := context.WithTimeout(ctx, b.Timeout)
	defer cancel()
	policy := backoff.WithContext(backoff.NewConstantBackOff(b.Interval), dctx)
	pid, err := backoff.RetryWithData(func() (int, error) {
		pid, err := b.Finder.FindByCmdline(dctx, profileDir, EngineFamilies)
		if err != nil {
			return 0, err
		}
		if pid == 0 {
			return 0, errNotFound
		}
		return pid, nil
	}, policy)
	if err != nil {
		return 0
	}
	return pid
}

// activate brings the engine window forward without waiting. When the
// automation helper cannot be started a direct spawn makes sure a visible
// process exists; that child is not tracked.
func (b *BundleLauncher) activate(req LaunchRequest, bundle string) {
	app := strings.TrimSuffix(filepath.Base(bundle), ".app")
	script := fmt.Sprintf("tell application %q to activate", app)
	if err := b.Commander.Start("osascript", "-e", script); err != nil {
		b.Logger.Error("osascript spawn error, falling back to direct spawn", "label", req.Label, "error", err)
		l, err := b.Direct.Launch(context.Background(), req)
		if err != nil {
			b.Logger.Error("fallback direct spawn", "label", req.Label, "error", err)
			return
		}
		b.Logger.Info("fallback direct spawn", "label", req.Label, "pid", l.PID)
		return
	}
	b.Logger.Info("osascript activate spawned", "app", app)
}

// BundlePath returns the .app directory containing binary when binary sits
// at <bundle>.app/Contents/MacOS/<name>.
func BundlePath(binary string) (string, bool) {
	macos := filepath.Dir(binary)
	contents := filepath.Dir(macos)
	app := filepath.Dir(contents)
	if filepath.Base(macos) != "MacOS" || filepath.Base(contents) != "Contents" || !strings.HasSuffix(app, ".app") {
		return "", false
	}
	return app, true
}
