// Package simd provides the structural-token matchers used by the vector scanner.
//
// The scanner works in two stages, following the simdjson/simdcsv layout:
// Stage 1: a lane provider compares a full vector of tokens against the dialect's
// delimiter, quote, escape and first newline token, producing one bitmask per class.
// Stage 2: the scanner in the parent package walks those bitmasks and emits field
// metadata.
//
// Lane providers exist for 128, 256 and 512-bit vectors (SWAR over 64-bit words,
// usable on every platform) and for the portable go-highway backend. The widest
// width supported by the current CPU is detected once per process.
package simd

import (
	"fmt"
	"strings"
	"unsafe"
)

// Token is a CSV token: a byte of UTF-8 input or a UTF-16 code unit.
type Token interface {
	uint8 | uint16
}

// TokenSize returns the size of T in bytes.
func TokenSize[T Token]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// Masks holds the structural token positions for one vector.
// Bit i corresponds to lane i of the vector.
type Masks struct {
	Delimiters uint64 // Positions of the delimiter token
	Quotes     uint64 // Positions of the quote token
	Newlines   uint64 // Positions of the first newline token
	Escapes    uint64 // Positions of the escape token (always 0 without an escape)
}

// Any returns the union of all classes.
func (m Masks) Any() uint64 {
	return m.Delimiters | m.Quotes | m.Newlines | m.Escapes
}

// Width selects the vector width used by the scanner.
type Width int

const (
	// WidthAuto picks the widest width supported by the CPU.
	WidthAuto Width = iota
	// WidthScalar disables the vector scanner.
	WidthScalar
	// Width128 processes 16 bytes per vector.
	Width128
	// Width256 processes 32 bytes per vector.
	Width256
	// Width512 processes 64 bytes per vector.
	Width512
	// WidthPortable uses go-highway vectors at the width hwy dispatched to.
	// Every vector allocates, so it is only used when asked for by name and
	// WidthAuto never resolves to it.
	WidthPortable
)

var widthNames = [...]string{
	WidthAuto:     "auto",
	WidthScalar:   "scalar",
	Width128:      "128",
	Width256:      "256",
	Width512:      "512",
	WidthPortable: "portable",
}

// String returns the name of the width as accepted by ParseWidth.
func (w Width) String() string {
	if w >= 0 && int(w) < len(widthNames) {
		return widthNames[w]
	}
	return fmt.Sprintf("Width(%d)", int(w))
}

// Bytes returns the vector size in bytes, or 0 for WidthAuto and WidthScalar.
func (w Width) Bytes() int {
	switch w {
	case Width128:
		return 16
	case Width256:
		return 32
	case Width512:
		return 64
	case WidthPortable:
		return PortableBytes()
	}
	return 0
}

// ParseWidth parses a width name ("auto", "scalar", "128", "256", "512",
// "portable"). The "sse", "avx2" and "avx512" aliases are accepted as well.
func ParseWidth(s string) (Width, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return WidthAuto, nil
	case "scalar", "none", "off":
		return WidthScalar, nil
	case "128", "sse", "sse2", "neon":
		return Width128, nil
	case "256", "avx2":
		return Width256, nil
	case "512", "avx512":
		return Width512, nil
	case "portable", "hwy":
		return WidthPortable, nil
	}
	return WidthAuto, fmt.Errorf("simd: unknown width %q", s)
}
