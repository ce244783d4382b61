package fastparser

import (
	"strings"
	"unicode/utf16"

	"github.com/shapestone/shape-csvtok/internal/fastparser/simd"
)

// Structure renders field as one character per token class:
//
//	,  delimiter
//	"  quote
//	E  escape
//	N  newline token
//	x  anything else
//
// It carries the shape of malformed data without its content.
func Structure[T simd.Token](d Dialect[T], field []T) string {
	var b strings.Builder
	b.Grow(len(field))

	nl := d.newline
	for _, c := range field {
		switch {
		case c == d.delimiter:
			b.WriteByte(',')
		case c == d.quote:
			b.WriteByte('"')
		case d.hasEscape && c == d.escape:
			b.WriteByte('E')
		case nl.Len() > 0 && c == nl.first, nl.Len() == 2 && c == nl.second:
			b.WriteByte('N')
		case nl.IsZero() && (c == '\r' || c == '\n'):
			b.WriteByte('N')
		default:
			b.WriteByte('x')
		}
	}
	return b.String()
}

// TokensString converts tokens to a string: bytes are copied as-is, UTF-16
// code units are decoded.
func TokensString[T simd.Token](tokens []T) string {
	switch s := any(tokens).(type) {
	case []byte:
		return string(s)
	case []uint16:
		return string(utf16.Decode(s))
	}
	return ""
}

// AppendTokens appends the UTF-8 encoding of s to dst as tokens.
func AppendTokens[T simd.Token](dst []T, s string) []T {
	switch d := any(dst).(type) {
	case []byte:
		return any(append(d, s...)).([]T)
	case []uint16:
		for _, r := range s {
			d = utf16.AppendRune(d, r)
		}
		return any(d).([]T)
	}
	return dst
}
