//go:build !arm64

package scalar

func neonAvailable() bool {
	return false
}
