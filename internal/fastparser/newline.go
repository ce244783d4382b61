package fastparser

import (
	"github.com/shapestone/shape-csvtok/internal/fastparser/simd"
)

// NewlineDetectionCap is the number of tokens inspected by DetectNewline.
const NewlineDetectionCap = 1024

// Newline is a one or two token record terminator.
// The zero value means "not known yet".
type Newline[T simd.Token] struct {
	first  T
	second T
	n      uint8
}

// NewNewline builds a newline from 0, 1 or 2 tokens.
func NewNewline[T simd.Token](tokens ...T) (Newline[T], error) {
	switch len(tokens) {
	case 0:
		return Newline[T]{}, nil
	case 1:
		if tokens[0] == 0 {
			return Newline[T]{}, &ConfigError{Field: "newline", Message: "must not be zero"}
		}
		return Newline[T]{first: tokens[0], n: 1}, nil
	case 2:
		if tokens[0] == 0 || tokens[1] == 0 {
			return Newline[T]{}, &ConfigError{Field: "newline", Message: "must not be zero"}
		}
		if tokens[0] == tokens[1] {
			return Newline[T]{}, &ConfigError{Field: "newline", Message: "both tokens are " + TokenString(tokens[0])}
		}
		return Newline[T]{first: tokens[0], second: tokens[1], n: 2}, nil
	}
	return Newline[T]{}, &ConfigError{Field: "newline", Message: "must be 1 or 2 tokens"}
}

// LF returns the "\n" newline.
func LF[T simd.Token]() Newline[T] { return Newline[T]{first: '\n', n: 1} }

// CRLF returns the "\r\n" newline.
func CRLF[T simd.Token]() Newline[T] { return Newline[T]{first: '\r', second: '\n', n: 2} }

// Len returns the number of tokens, 0 when unknown.
func (nl Newline[T]) Len() int { return int(nl.n) }

// IsZero reports whether the newline is unknown.
func (nl Newline[T]) IsZero() bool { return nl.n == 0 }

// First returns the first token.
func (nl Newline[T]) First() T { return nl.first }

// Second returns the second token; zero for one-token newlines.
func (nl Newline[T]) Second() T { return nl.second }

// Match reports whether a newline starts at data[i].
// ok is false when data ends before a two token newline can be decided.
func (nl Newline[T]) Match(data []T, i int) (n int, ok bool) {
	if data[i] != nl.first {
		return 0, true
	}
	if nl.n == 1 {
		return 1, true
	}
	if i+1 >= len(data) {
		return 0, false
	}
	if data[i+1] != nl.second {
		return 0, true
	}
	return 2, true
}

// String returns the newline as a quoted Go string.
func (nl Newline[T]) String() string {
	switch nl.n {
	case 0:
		return "auto"
	case 1:
		return TokenString(nl.first)
	}
	return TokenString(nl.first) + TokenString(nl.second)
}

// DetectNewline inspects up to NewlineDetectionCap tokens of data for the first
// line feed outside quotes. A carriage return right before it makes the newline
// CRLF; otherwise it is LF. Nothing is consumed.
//
// ErrNeedMoreData is returned when no line feed was found and more data may
// follow. ErrNoNewline is returned when the cap was reached. With final set and
// no line feed, the input is a single record and LF is returned.
func DetectNewline[T simd.Token](data []T, d Dialect[T], final bool) (Newline[T], error) {
	limit := min(len(data), NewlineDetectionCap)
	inQuotes := false
	cr := -1

	for i := 0; i < limit; i++ {
		c := data[i]
		switch {
		case d.hasEscape && c == d.escape:
			i++
		case c == d.quote:
			inQuotes = !inQuotes
		case inQuotes:
		case c == '\r':
			cr = i
		case c == '\n':
			if cr == i-1 {
				return CRLF[T](), nil
			}
			return LF[T](), nil
		}
	}

	if len(data) >= NewlineDetectionCap {
		return Newline[T]{}, ErrNoNewline
	}
	if final {
		return LF[T](), nil
	}
	return Newline[T]{}, ErrNeedMoreData
}
