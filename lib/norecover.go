//go:build norecover

package lib

func Recover() bool {
	return false
}
