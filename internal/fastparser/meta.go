package fastparser

import (
	"fmt"
)

// Meta describes one structural token found by a scanner: a delimiter, a
// newline, or the end of the final unterminated record.
//
// A run of Metas ending in one EOL Meta is a record. Field i of the record
// spans from run[i-1].NextStart() to run[i].End(), where run[-1] is the last
// Meta of the previous record (StartOfData for the first record).
//
// Layout, 8 bytes:
//
//	end:     bit 31 EOL flag, bits 0-30 offset of the token
//	special: bits 0-1 offset from end to the next field start
//	         bit 2    escape mode
//	         bit 3    field wrapped in quotes (escape mode)
//	         bit 4    malformed quoting seen by the scanner
//	         bits 5+  number of quotes plus escapes in the field
type Meta struct {
	end     uint32
	special uint32
}

const (
	eolFlag       = 1 << 31
	offsetMask    = 0b11
	escapeFlag    = 1 << 2
	quotedFlag    = 1 << 3
	malformedFlag = 1 << 4
	countShift    = 5

	// MaxSpecialCount is the largest quote+escape count a Meta can hold.
	MaxSpecialCount = 1<<(32-countShift) - 1

	// MaxViewLen is the largest buffered view Meta offsets can address.
	MaxViewLen = eolFlag - 1
)

// StartOfData is the sentinel placed before the first Meta of a buffer.
var StartOfData = Meta{}

// rfcMeta builds a Meta for an RFC4180 dialect.
func rfcMeta(end int, eol bool, offset int, quotes uint32) Meta {
	m := Meta{end: uint32(end), special: uint32(offset)}
	if eol {
		m.end |= eolFlag
	}
	if quotes > MaxSpecialCount {
		quotes = MaxSpecialCount
		m.special |= malformedFlag
	}
	if quotes&1 != 0 {
		m.special |= malformedFlag
	}
	m.special |= quotes << countShift
	return m
}

// escapeMeta builds a Meta for an escape mode dialect.
func escapeMeta(end int, eol bool, offset int, quotes, escapes uint32) Meta {
	m := Meta{end: uint32(end), special: uint32(offset) | escapeFlag}
	if eol {
		m.end |= eolFlag
	}
	switch quotes {
	case 0:
	case 2:
		m.special |= quotedFlag
	default:
		m.special |= malformedFlag
	}
	count := quotes + escapes
	if count > MaxSpecialCount || count < quotes {
		count = MaxSpecialCount
		m.special |= malformedFlag
	}
	m.special |= count << countShift
	return m
}

// End returns the offset of the structural token.
func (m Meta) End() int { return int(m.end &^ eolFlag) }

// IsEOL reports whether the Meta ends a record.
func (m Meta) IsEOL() bool { return m.end&eolFlag != 0 }

// SpecialCount returns the number of quotes plus escapes in the field.
func (m Meta) SpecialCount() uint32 { return m.special >> countShift }

// IsEscape reports whether the Meta was produced for an escape mode dialect.
func (m Meta) IsEscape() bool { return m.special&escapeFlag != 0 }

// IsQuoted reports whether an escape mode field had exactly two quotes.
func (m Meta) IsQuoted() bool { return m.special&quotedFlag != 0 }

// IsMalformed reports whether the scanner saw quoting that cannot be decoded.
func (m Meta) IsMalformed() bool { return m.special&malformedFlag != 0 }

// NewlineLen returns the newline length of an EOL Meta: 0 for the end of data.
func (m Meta) NewlineLen() int {
	if !m.IsEOL() {
		return 0
	}
	return int(m.special & offsetMask)
}

// NextStart returns the offset where the next field begins.
func (m Meta) NextStart() int { return m.End() + int(m.special&offsetMask) }

// String returns a debugging representation.
func (m Meta) String() string {
	if m == StartOfData {
		return "Meta{start}"
	}
	kind := "field"
	if m.IsEOL() {
		kind = "eol"
	}
	s := fmt.Sprintf("Meta{%s end:%d next:%d count:%d", kind, m.End(), m.NextStart(), m.SpecialCount())
	if m.IsQuoted() {
		s += " quoted"
	}
	if m.IsMalformed() {
		s += " malformed"
	}
	return s + "}"
}

// ShiftMetas rebases metas after n tokens were dropped from the front of the
// buffer they index. Every Meta must end at or after n.
func ShiftMetas(metas []Meta, n int) {
	if n == 0 {
		return
	}
	for i := range metas {
		metas[i].end -= uint32(n)
	}
}

// FindEOL returns the index of the first EOL Meta in metas, or -1.
// malformed reports whether any Meta up to and including it is malformed.
func FindEOL(metas []Meta) (index int, malformed bool) {
	var flags uint32
	for i, m := range metas {
		flags |= m.special
		if m.IsEOL() {
			return i, flags&malformedFlag != 0
		}
	}
	return -1, false
}
