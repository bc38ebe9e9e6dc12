//go:build !linux
// +build !linux

// control/platform_other.go
// Author: momentics <momentics@gmail.com>
//
// Debug probe integrations for platforms without epoll.

package control

import (
	"runtime"
)

// RegisterPlatformProbes sets platform debug probes.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
	dp.RegisterProbe("platform.notifier", func() any {
		switch runtime.GOOS {
		case "darwin", "freebsd":
			return "kqueue"
		default:
			return "none"
		}
	})
}
