package fastparser

import (
	"bytes"

	"github.com/shapestone/shape-csvtok/internal/fastparser/simd"
)

// scalarScanner finds structural tokens one at a time.
// It is the reference implementation and the tail pass of the vector scanner.
type scalarScanner[T simd.Token] struct {
	delimiter T
	quote     T
	escape    T
	hasEscape bool
	nl1       T
	nl2       T
	nlLen     int
}

func newScalarScanner[T simd.Token](d Dialect[T]) *scalarScanner[T] {
	return &scalarScanner[T]{
		delimiter: d.delimiter,
		quote:     d.quote,
		escape:    d.escape,
		hasEscape: d.hasEscape,
		nl1:       d.newline.First(),
		nl2:       d.newline.Second(),
		nlLen:     d.newline.Len(),
	}
}

func (s *scalarScanner[T]) Name() string { return "scalar" }

func (s *scalarScanner[T]) Slack() int { return 1 }

// Scan implements Scanner.
func (s *scalarScanner[T]) Scan(dst []Meta, data []T, st *ScanState, final bool) int {
	var n int
	if s.hasEscape {
		n = s.scanEscape(dst, data, st, final)
	} else {
		n = s.scanRFC(dst, data, st, final)
	}
	return n + s.finish(dst[n:], data, st, final)
}

// finish emits the EOL Meta of an unterminated final record.
func (s *scalarScanner[T]) finish(dst []Meta, data []T, st *ScanState, final bool) int {
	if !final || len(dst) == 0 || st.Pos < len(data) {
		return 0
	}
	if st.FieldStart >= len(data) && !st.Delimited {
		return 0
	}
	if s.hasEscape {
		dst[0] = escapeMeta(len(data), true, 0, st.Quotes, st.Escapes)
	} else {
		dst[0] = rfcMeta(len(data), true, 0, st.Quotes)
	}
	st.FieldStart = len(data)
	st.Quotes, st.Escapes = 0, 0
	st.Delimited = false
	return 1
}

func (s *scalarScanner[T]) scanRFC(dst []Meta, data []T, st *ScanState, final bool) int {
	n := 0
	i := st.Pos
	quotes := st.Quotes

scan:
	for n < len(dst) && i < len(data) {
		if quotes&1 != 0 {
			j := indexToken(data[i:], s.quote)
			if j < 0 {
				i = len(data)
				break
			}
			i += j + 1
			quotes++
			continue
		}

		j := indexAny3(data[i:], s.delimiter, s.quote, s.nl1)
		if j < 0 {
			i = len(data)
			break
		}
		i += j

		switch data[i] {
		case s.quote:
			quotes++
			i++
		case s.delimiter:
			dst[n] = rfcMeta(i, false, 1, quotes)
			n++
			i++
			quotes = 0
			st.FieldStart = i
			st.Delimited = true
		default:
			if s.nlLen == 2 {
				if i+1 >= len(data) {
					if !final {
						break scan
					}
					i++
					continue
				}
				if data[i+1] != s.nl2 {
					i++
					continue
				}
			}
			dst[n] = rfcMeta(i, true, s.nlLen, quotes)
			n++
			i += s.nlLen
			quotes = 0
			st.FieldStart = i
			st.Delimited = false
			if st.OneRecord {
				break scan
			}
		}
	}

	st.Pos = i
	st.Quotes = quotes
	return n
}

func (s *scalarScanner[T]) scanEscape(dst []Meta, data []T, st *ScanState, final bool) int {
	n := 0
	i := st.Pos
	quotes, escapes := st.Quotes, st.Escapes

scan:
	for n < len(dst) && i < len(data) {
		var j int
		if quotes&1 != 0 {
			j = indexAny2(data[i:], s.quote, s.escape)
		} else {
			j = indexAny4(data[i:], s.delimiter, s.quote, s.escape, s.nl1)
		}
		if j < 0 {
			i = len(data)
			break
		}
		i += j

		switch data[i] {
		case s.escape:
			if i+1 >= len(data) {
				if !final {
					break scan
				}
				escapes++
				i++
				continue
			}
			escapes++
			i += 2
		case s.quote:
			quotes++
			i++
		case s.delimiter:
			dst[n] = escapeMeta(i, false, 1, quotes, escapes)
			n++
			i++
			quotes, escapes = 0, 0
			st.FieldStart = i
			st.Delimited = true
		default:
			if s.nlLen == 2 {
				if i+1 >= len(data) {
					if !final {
						break scan
					}
					i++
					continue
				}
				if data[i+1] != s.nl2 {
					i++
					continue
				}
			}
			dst[n] = escapeMeta(i, true, s.nlLen, quotes, escapes)
			n++
			i += s.nlLen
			quotes, escapes = 0, 0
			st.FieldStart = i
			st.Delimited = false
			if st.OneRecord {
				break scan
			}
		}
	}

	st.Pos = i
	st.Quotes, st.Escapes = quotes, escapes
	return n
}

// indexToken returns the index of the first v in data, or -1.
func indexToken[T simd.Token](data []T, v T) int {
	if b, ok := any(data).([]byte); ok {
		return bytes.IndexByte(b, byte(v))
	}
	for i, c := range data {
		if c == v {
			return i
		}
	}
	return -1
}

func indexAny2[T simd.Token](data []T, a, b T) int {
	for i, c := range data {
		if c == a || c == b {
			return i
		}
	}
	return -1
}

func indexAny3[T simd.Token](data []T, a, b, c T) int {
	for i, v := range data {
		if v == a || v == b || v == c {
			return i
		}
	}
	return -1
}

func indexAny4[T simd.Token](data []T, a, b, c, d T) int {
	for i, v := range data {
		if v == a || v == b || v == c || v == d {
			return i
		}
	}
	return -1
}
