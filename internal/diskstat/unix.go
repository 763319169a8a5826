//go:build linux

package diskstat

import (
	"golang.org/x/sys/unix"

	"github.com/nugget/pulse/internal/pulseerr"
)

// UnixProbe is the live MountProbe, backed by statfs(2) via
// golang.org/x/sys/unix, a one-syscall adapter.
type UnixProbe struct{}

// Stat resolves path via statfs(2).
func (UnixProbe) Stat(path string) (Usage, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Usage{}, pulseerr.Wrap(pulseerr.IoError, "statfs "+path, err)
	}
	blockSize := uint64(st.Bsize)
	return Usage{
		TotalBytes: st.Blocks * blockSize,
		AvailBytes: st.Bavail * blockSize,
		MountedOn:  path,
	}, nil
}
