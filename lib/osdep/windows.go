//go:build windows

package osdep

// ResourceUsage is not available on Windows, zeros are returned.
func ResourceUsage() (int64, int64) {
	return 0, 0
}
