//go:build arm64

package simd

import "golang.org/x/sys/cpu"

// hardwareWidth maps arm64 feature flags to a vector width. NEON (ASIMD) is
// 128 bits; SVE widths are not used.
func hardwareWidth() Width {
	if cpu.ARM64.HasASIMD {
		return Width128
	}
	return WidthScalar
}
