package platform

import (
	"context"
	"log/slog"
)

type darwin struct {
	logger    *slog.Logger
	commander Commander
	launcher  *BundleLauncher
}

// Darwin returns the macOS capability set: bundle launch through the OS
// opener, a non-interactive credential store and post-install repair of
// exec bits and quarantine markers.
func Darwin(opts Options) Capabilities {
	opts = opts.withDefaults()
	return &darwin{logger: opts.Logger, commander: opts.Commander, launcher: newBundleLauncher(opts)}
}

func (d *darwin) Name() string { return "darwin" }

func (d *darwin) ExtraArgs() []string {
	return []string{"--password-store=basic", "--use-mock-keychain"}
}

func (d *darwin) RepairInstall(ctx context.Context, root string) {
	n := RepairExecBits(root, d.logger)
	d.logger.Info("repaired exec bits", "root", root, "files", n)
	StripQuarantine(ctx, d.commander, root, d.logger)
}

func (d *darwin) Launcher() Launcher { return d.launcher }
