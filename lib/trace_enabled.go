//go:build trace

package lib

func Trace() bool {
	return true
}
