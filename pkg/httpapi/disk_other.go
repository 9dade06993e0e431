//go:build !linux && !darwin

package httpapi

// diskFreeMB is unavailable on this platform; callers skip the disk guard.
func diskFreeMB(path string) (float64, bool) {
	return 0, false
}
