package simd

import (
	"github.com/ajroetker/go-highway/hwy"
)

// PortableBytes returns the go-highway vector size in bytes, capped at 64 so a
// byte mask still fits in a uint64. It returns 0 when hwy reports no width.
func PortableBytes() int {
	return min(hwy.CurrentWidth(), 64)
}

// Portable classifies tokens with go-highway vectors. Its width is whatever hwy
// dispatched to at init time (SSE2/AVX2/AVX-512/NEON, or the scalar fallback).
//
// hwy.Vec and hwy.Mask are slice backed, so Match allocates on every vector.
// Portable cross-checks the SWAR providers and is never picked by DetectWidth.
type Portable[T Token] struct{}

// Width returns the number of tokens per vector.
func (Portable[T]) Width() int {
	return PortableBytes() / TokenSize[T]()
}

// Match classifies src[:Width()].
func (p Portable[T]) Match(src []T, m *Matchers[T]) Masks {
	w := p.Width()
	if m.vec == nil || w == 0 {
		return matchFallback(src[:w], m)
	}
	v := hwy.Load(src[:w])
	masks := Masks{
		Delimiters: hwy.BitsFromMask(hwy.Equal(v, m.vec.delimiter)),
		Quotes:     hwy.BitsFromMask(hwy.Equal(v, m.vec.quote)),
		Newlines:   hwy.BitsFromMask(hwy.Equal(v, m.vec.newline)),
	}
	if m.HasEscape {
		masks.Escapes = hwy.BitsFromMask(hwy.Equal(v, m.vec.escape))
	}
	return masks
}

func (Portable[T]) Name() string { return "hwy-" + hwy.CurrentName() }
