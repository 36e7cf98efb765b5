package platform

import (
	"context"

	"github.com/loykin/librebrowser/internal/process"
)

// DirectLauncher spawns the engine binary as an owned child.
type DirectLauncher struct {
	Spawn func(binary string, args ...string) (*process.Handle, error)
}

func (d *DirectLauncher) Launch(_ context.Context, req LaunchRequest) (Launched, error) {
	spawn := d.Spawn
	if spawn == nil {
		spawn = process.Spawn
	}
	h, err := spawn(req.Binary, req.Args...)
	if err != nil {
		return Launched{}, err
	}
	return Launched{PID: h.PID(), Handle: h, Strategy: StrategyDirect}, nil
}
