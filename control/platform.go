// control/platform.go
// Author: momentics <momentics@gmail.com>
//
// Host platform debug probes.

package control

import (
	"runtime"
)

// RegisterPlatformProbes sets host platform debug metrics.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.os", func() any {
		return runtime.GOOS + "/" + runtime.GOARCH
	})
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
}
