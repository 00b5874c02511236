//go:build !norecover

package lib

// Recover reports whether panics in process handlers are recovered.
// Build with the 'norecover' tag to let them crash the program with the full stack.
func Recover() bool {
	return true
}
