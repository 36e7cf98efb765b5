//go:build !darwin

package platform

import "runtime"

// Current returns the capabilities of the running platform.
func Current(opts Options) Capabilities { return Generic(runtime.GOOS, opts) }
