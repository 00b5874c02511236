//go:build !trace

package lib

// Trace reports whether the trace-level log calls of the runtime internals are enabled.
// Build with the 'trace' tag to enable them.
func Trace() bool {
	return false
}
