package lib

import (
	"os"
	"runtime"
)

// GetHostname returns the host name a node advertises in its PIDs when
// no host was given in the options.
func GetHostname() string {
	// Kubernetes pods are addressed by IP rather than by the pod host name.
	if podIP := os.Getenv("POD_IP"); podIP != "" {
		return podIP
	}

	// Docker creates a .dockerenv file at the root of the directory tree inside the container
	if _, err := os.Stat("/.dockerenv"); err == nil {
		if hostname, err := os.Hostname(); err == nil {
			return hostname
		}
	}

	return "localhost"
}

// Workers returns the default size of the scheduler worker pool.
func Workers() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}
