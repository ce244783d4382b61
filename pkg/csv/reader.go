package csv

import (
	"context"
)

// Sequence is a logical run of tokens held in one or more segments.
// Segments are never empty.
type Sequence[T Token] struct {
	segments [][]T
	length   int
}

// NewSequence returns a sequence over the given segments. Empty segments are
// dropped.
func NewSequence[T Token](segments ...[]T) Sequence[T] {
	var s Sequence[T]
	for _, seg := range segments {
		s = s.append(seg)
	}
	return s
}

func (s Sequence[T]) append(seg []T) Sequence[T] {
	if len(seg) == 0 {
		return s
	}
	s.segments = append(s.segments, seg)
	s.length += len(seg)
	return s
}

// Len returns the number of tokens in the sequence.
func (s Sequence[T]) Len() int { return s.length }

// Segments returns the number of segments.
func (s Sequence[T]) Segments() int { return len(s.segments) }

// Segment returns segment i.
func (s Sequence[T]) Segment(i int) []T { return s.segments[i] }

// First returns the first segment, or nil for an empty sequence.
func (s Sequence[T]) First() []T {
	if len(s.segments) == 0 {
		return nil
	}
	return s.segments[0]
}

// IsSingleSegment reports whether the sequence is contiguous.
func (s Sequence[T]) IsSingleSegment() bool { return len(s.segments) <= 1 }

// CopyTo copies tokens starting at logical offset from into dst and returns
// the number copied.
func (s Sequence[T]) CopyTo(dst []T, from int) int {
	n := 0
	for _, seg := range s.segments {
		if len(dst) == n {
			break
		}
		if from >= len(seg) {
			from -= len(seg)
			continue
		}
		n += copy(dst[n:], seg[from:])
		from = 0
	}
	return n
}

// ReadResult is the outcome of a BufferReader.Read.
type ReadResult[T Token] struct {
	// Buffer holds every token that has not been consumed.
	Buffer Sequence[T]
	// Final is set when Buffer reaches the end of the input.
	Final bool
}

// BufferReader is a pull-based source of buffered tokens.
//
// Read returns every unconsumed token. A Read that follows another Read
// without an Advance past all of the returned tokens adds data to the end,
// possibly as a new segment, so a caller that needs more simply reads
// again. Views returned by Read stay valid until the next Advance.
//
// Advance marks the first n tokens of the last result as consumed.
// TryReset rewinds the source to its start when it can.
type BufferReader[T Token] interface {
	Read(ctx context.Context) (ReadResult[T], error)
	Advance(n int)
	TryReset() bool
	Close() error
}

// BytesReader serves an in-memory token slice as a single final segment.
type BytesReader[T Token] struct {
	data     []T
	consumed int
	closed   bool
}

// NewBytesReader returns a reader over data. The slice is not copied.
func NewBytesReader[T Token](data []T) *BytesReader[T] {
	return &BytesReader[T]{data: data}
}

// Read returns the unconsumed tail of the slice.
func (r *BytesReader[T]) Read(ctx context.Context) (ReadResult[T], error) {
	if r.closed {
		return ReadResult[T]{}, ErrDisposed
	}
	if err := ctx.Err(); err != nil {
		return ReadResult[T]{}, err
	}
	return ReadResult[T]{Buffer: NewSequence(r.data[r.consumed:]), Final: true}, nil
}

// Advance consumes n tokens.
func (r *BytesReader[T]) Advance(n int) {
	r.consumed = min(r.consumed+n, len(r.data))
}

// TryReset rewinds to the start of the slice.
func (r *BytesReader[T]) TryReset() bool {
	if r.closed {
		return false
	}
	r.consumed = 0
	return true
}

// Close releases the slice.
func (r *BytesReader[T]) Close() error {
	r.closed = true
	r.data = nil
	return nil
}
