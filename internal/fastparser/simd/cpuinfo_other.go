//go:build !amd64 && !arm64

package simd

// hardwareWidth returns WidthScalar on platforms without a known vector unit.
func hardwareWidth() Width {
	return WidthScalar
}
