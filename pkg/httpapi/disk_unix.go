//go:build linux || darwin

package httpapi

import "syscall"

// diskFreeMB reports the space available to unprivileged writes under
// path, in megabytes.
func diskFreeMB(path string) (float64, bool) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, false
	}
	return float64(uint64(stat.Bavail)*uint64(stat.Bsize)) / (1024 * 1024), true
}
