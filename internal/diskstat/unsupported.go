//go:build !linux

package diskstat

import "github.com/nugget/pulse/internal/pulseerr"

// UnixProbe has no statfs(2) equivalent wired on this platform; every
// Stat fails, which SystemMonitor logs and skips per mount.
type UnixProbe struct{}

func (UnixProbe) Stat(path string) (Usage, error) {
	return Usage{}, pulseerr.New(pulseerr.IoError, "disk probing is not supported on this platform")
}
