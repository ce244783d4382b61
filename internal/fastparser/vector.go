package fastparser

import (
	"math/bits"

	"github.com/shapestone/shape-csvtok/internal/fastparser/simd"
)

// vectorScanner classifies one vector of tokens at a time through a lane
// provider and walks the resulting bitmasks. It is instantiated once per lane
// provider, so the width is fixed for the life of a parser.
//
// A vector at i is only processed while i+W+1 <= len(data): the token after
// the window can always be read, so a newline or escape in the last lane is
// resolved without a bounds check. When such a token consumes the next lane,
// the bit is cleared; when it consumes the first token of the next window, that
// window starts one token later. Everything left after the last full window is
// handed to the scalar scanner with the same state.
type vectorScanner[T simd.Token, L simd.Lanes[T]] struct {
	lanes    L
	matchers *simd.Matchers[T]
	scalar   *scalarScanner[T]
	nl2      T
	nlLen    int
	escape   bool
}

func newVectorScanner[T simd.Token, L simd.Lanes[T]](d Dialect[T], scalar *scalarScanner[T], lanes L) *vectorScanner[T, L] {
	return &vectorScanner[T, L]{
		lanes:    lanes,
		matchers: d.Matchers(),
		scalar:   scalar,
		nl2:      d.newline.Second(),
		nlLen:    d.newline.Len(),
		escape:   d.hasEscape,
	}
}

func (s *vectorScanner[T, L]) Name() string { return s.lanes.Name() }

func (s *vectorScanner[T, L]) Slack() int { return s.lanes.Width() }

func (s *vectorScanner[T, L]) meta(end int, eol bool, offset int, quotes, escapes uint32) Meta {
	if s.escape {
		return escapeMeta(end, eol, offset, quotes, escapes)
	}
	return rfcMeta(end, eol, offset, quotes)
}

// Scan implements Scanner.
func (s *vectorScanner[T, L]) Scan(dst []Meta, data []T, st *ScanState, final bool) int {
	if st.OneRecord {
		return s.scalar.Scan(dst, data, st, final)
	}

	w := s.lanes.Width()
	n := 0
	i := st.Pos
	quotes, escapes := st.Quotes, st.Escapes
	fieldStart, delimited := st.FieldStart, st.Delimited
	plainDelimiter := s.meta(0, false, 1, 0, 0)

	for i+w+1 <= len(data) && n+w <= len(dst) {
		m := s.lanes.Match(data[i:i+w], s.matchers)
		mask := m.Any()

		// Nothing structural in this vector.
		if mask == 0 {
			i += w
			continue
		}

		// Inside quotes only a quote or an escape matters.
		if quotes&1 != 0 && m.Quotes|m.Escapes == 0 {
			i += w
			continue
		}

		// Only delimiters, and the current field has no quotes or escapes:
		// every bit is a field end.
		if mask == m.Delimiters && quotes == 0 && escapes == 0 {
			for mask != 0 {
				k := bits.TrailingZeros64(mask)
				mask &= mask - 1
				dst[n] = plainDelimiter
				dst[n].end = uint32(i + k)
				n++
			}
			fieldStart = i + 64 - bits.LeadingZeros64(m.Delimiters)
			delimited = true
			i += w
			continue
		}

		next := i + w
		for mask != 0 {
			k := bits.TrailingZeros64(mask)
			bit := uint64(1) << uint(k)
			mask &^= bit
			p := i + k

			switch {
			case m.Escapes&bit != 0:
				escapes++
				if k+1 < w {
					mask &^= bit << 1
				} else {
					next = p + 2
				}
			case m.Quotes&bit != 0:
				quotes++
			case quotes&1 != 0:
				// Delimiter or newline inside quotes.
			case m.Delimiters&bit != 0:
				dst[n] = s.meta(p, false, 1, quotes, escapes)
				n++
				quotes, escapes = 0, 0
				fieldStart = p + 1
				delimited = true
			default:
				if s.nlLen == 2 {
					if data[p+1] != s.nl2 {
						continue
					}
					if k+1 < w {
						mask &^= bit << 1
					} else {
						next = p + 2
					}
				}
				dst[n] = s.meta(p, true, s.nlLen, quotes, escapes)
				n++
				quotes, escapes = 0, 0
				fieldStart = p + s.nlLen
				delimited = false
			}
		}
		i = next
	}

	st.Pos = i
	st.Quotes, st.Escapes = quotes, escapes
	st.FieldStart, st.Delimited = fieldStart, delimited
	return n + s.scalar.Scan(dst[n:], data, st, final)
}
