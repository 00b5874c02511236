//go:build linux || darwin || freebsd || openbsd || netbsd || dragonfly

package osdep

import (
	"golang.org/x/sys/unix"
)

// ResourceUsage returns user and system CPU time consumed by this OS process, in nanoseconds.
func ResourceUsage() (int64, int64) {
	var usage unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &usage); err != nil {
		return 0, 0
	}
	return usage.Utime.Nano(), usage.Stime.Nano()
}
