package fastparser

import (
	"github.com/shapestone/shape-csvtok/internal/fastparser/simd"
)

// MaxScratchLen is the largest single field the decoder will unescape.
const MaxScratchLen = 1 << 30

const minScratch = 256

// Scratch is an arena for unescaped fields.
//
// Take hands out non-overlapping slices that stay valid until Reset. When the
// current buffer is full a larger one is rented; the old one is kept until Reset
// because fields handed out earlier still point into it.
type Scratch[T simd.Token] struct {
	buf     []T
	off     int
	retired [][]T
}

// Take returns a slice of exactly n tokens.
func (s *Scratch[T]) Take(n int) ([]T, error) {
	if n > MaxScratchLen || n < 0 {
		return nil, ErrScratchExhausted
	}
	if s.off+n > len(s.buf) {
		size := max(2*len(s.buf), n, minScratch)
		if s.buf != nil {
			if s.off == 0 {
				PutBuffer(s.buf)
			} else {
				s.retired = append(s.retired, s.buf)
			}
		}
		s.buf = GetBuffer[T](size)
		s.off = 0
	}
	out := s.buf[s.off : s.off+n : s.off+n]
	s.off += n
	return out, nil
}

// Release gives back the last n tokens taken, after a failed decode.
func (s *Scratch[T]) Release(n int) {
	s.off = max(s.off-n, 0)
}

// Reset invalidates every slice handed out and makes the space reusable.
func (s *Scratch[T]) Reset() {
	for _, b := range s.retired {
		PutBuffer(b)
	}
	clear(s.retired)
	s.retired = s.retired[:0]
	s.off = 0
}

// Close returns all memory to the pool.
func (s *Scratch[T]) Close() {
	s.Reset()
	if s.buf != nil {
		PutBuffer(s.buf)
		s.buf = nil
	}
}
