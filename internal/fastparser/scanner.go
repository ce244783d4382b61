package fastparser

import (
	"fmt"

	"github.com/shapestone/shape-csvtok/internal/fastparser/simd"
)

// ScanState carries everything a scanner needs to resume where it stopped.
//
// Pos never points past a token whose meaning depends on data the scanner has
// not seen: when data ends on the first token of a two token newline, or on an
// escape token, a non-final scan stops with Pos on that token. Quote parity is
// Quotes&1.
type ScanState struct {
	Pos        int    // Next token to scan
	FieldStart int    // Start of the current field
	Quotes     uint32 // Quotes seen in the current field
	Escapes    uint32 // Escape tokens seen in the current field
	Delimited  bool   // The last emitted Meta was a delimiter
	OneRecord  bool   // Stop after the first EOL Meta
}

// Shift rebases the state after n tokens were dropped from the front of the buffer.
func (st *ScanState) Shift(n int) {
	st.Pos -= n
	st.FieldStart -= n
}

// Drained reports whether a final scan over n tokens has emitted everything.
func (st *ScanState) Drained(n int) bool {
	return st.Pos >= n && st.FieldStart >= n && !st.Delimited
}

// Reset clears the state for a scan starting at pos.
func (st *ScanState) Reset(pos int) {
	*st = ScanState{Pos: pos, FieldStart: pos, OneRecord: st.OneRecord}
}

// Scanner turns a token buffer into Metas.
//
// Scan writes Metas for structural tokens in data[st.Pos:] into dst and returns
// how many were written. It stops when data is exhausted or dst cannot take
// more; the state records where to resume. With final set, the end of data is
// the end of input and an unterminated last record gets an EOL Meta with a
// newline length of 0.
//
// Every implementation produces the same Metas for the same input.
type Scanner[T simd.Token] interface {
	Scan(dst []Meta, data []T, st *ScanState, final bool) int
	// Slack is the free space dst needs beyond the Metas actually produced.
	Slack() int
	Name() string
}

// NewScanner returns the scanner for the dialect at the given width.
// The dialect's newline must be known.
func NewScanner[T simd.Token](d Dialect[T], width simd.Width) (Scanner[T], error) {
	if d.newline.IsZero() {
		return nil, &ConfigError{Field: "newline", Message: "must be known before scanning"}
	}
	scalar := newScalarScanner(d)

	switch width.Resolve() {
	case simd.WidthScalar:
		return scalar, nil
	case simd.Width128:
		return newVectorScanner(d, scalar, simd.Lanes128[T]{}), nil
	case simd.Width256:
		return newVectorScanner(d, scalar, simd.Lanes256[T]{}), nil
	case simd.Width512:
		return newVectorScanner(d, scalar, simd.Lanes512[T]{}), nil
	case simd.WidthPortable:
		if (simd.Portable[T]{}).Width() == 0 {
			return scalar, nil
		}
		return newVectorScanner(d, scalar, simd.Portable[T]{}), nil
	}
	return nil, fmt.Errorf("csv: unsupported scan width %s", width)
}
