//go:build darwin

package platform

// Current returns the capabilities of the running platform.
func Current(opts Options) Capabilities { return Darwin(opts) }
