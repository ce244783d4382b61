//go:build amd64

package simd

import "golang.org/x/sys/cpu"

// hardwareWidth maps x86-64 feature flags to a vector width.
// AVX-512BW is required for byte-granular 512-bit compares.
func hardwareWidth() Width {
	switch {
	case cpu.X86.HasAVX512BW:
		return Width512
	case cpu.X86.HasAVX2:
		return Width256
	case cpu.X86.HasSSE2:
		return Width128
	}
	return WidthScalar
}
