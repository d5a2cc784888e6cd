//go:build linux
// +build linux

package control

import "runtime"

// RegisterPlatformProbes adds the Linux host probes: CPU count (the same
// value results.SystemInfo.CPUCount captures in the results file) and the
// current GOMAXPROCS, which on a cgroup-limited CI runner can differ from
// NumCPU and explains an otherwise-puzzling concurrency ceiling.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
	dp.RegisterProbe("platform.gomaxprocs", func() any {
		return runtime.GOMAXPROCS(0)
	})
}
