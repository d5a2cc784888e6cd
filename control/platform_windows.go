//go:build windows
// +build windows

package control

import "runtime"

// RegisterPlatformProbes adds the Windows host probes: CPU count (the same
// value results.SystemInfo.CPUCount captures in the results file) and the
// current GOMAXPROCS.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
	dp.RegisterProbe("platform.gomaxprocs", func() any {
		return runtime.GOMAXPROCS(0)
	})
}
