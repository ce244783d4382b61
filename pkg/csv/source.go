package csv

import (
	"bufio"
	"context"
	"io"
	"unicode/utf16"

	"golang.org/x/exp/mmap"

	"github.com/shapestone/shape-csvtok/internal/fastparser"
)

// maxEmptyReads is how many (0, nil) reads an io.Reader gets before
// io.ErrNoProgress is reported.
const maxEmptyReads = 100

// StreamOptions configures the streaming readers.
type StreamOptions struct {
	// ChunkSize is the number of tokens requested from the source per read
	// and the capacity of each buffered segment. Must be at least 2.
	// Default: 65536
	ChunkSize int
}

// DefaultStreamOptions returns the default stream configuration.
func DefaultStreamOptions() StreamOptions {
	return StreamOptions{ChunkSize: fastparser.DefaultChunkSize}
}

// Validate checks if the options are valid.
func (o StreamOptions) Validate() error {
	if o.ChunkSize < 2 || o.ChunkSize > fastparser.MaxViewLen {
		return &OptionsError{Field: "ChunkSize", Message: "must be at least 2"}
	}
	return nil
}

// segment is a pooled buffer filled up to n.
type segment[T Token] struct {
	buf []T
	n   int
}

// segmentReader implements BufferReader over a fill function. Each Read
// fills the last segment or a new pooled one, so unconsumed data stays
// where it is and the first segment only grows until it is full.
type segmentReader[T Token] struct {
	fill    func(dst []T) (int, error) // io.EOF at the end of input
	rewind  func() bool
	release func() error

	chunk   int
	minFill int // tokens a fill needs to make progress
	segs    []segment[T]
	view    [][]T
	head    int // consumed tokens in segs[0]
	eof     bool
	err     error
	closed  bool
}

// Read fills one more chunk unless the input is exhausted, then returns
// every unconsumed token.
func (r *segmentReader[T]) Read(ctx context.Context) (ReadResult[T], error) {
	if r.closed {
		return ReadResult[T]{}, ErrDisposed
	}
	if err := ctx.Err(); err != nil {
		return ReadResult[T]{}, err
	}
	if r.err != nil {
		return ReadResult[T]{}, r.err
	}
	if !r.eof {
		if err := r.fetch(); err != nil {
			r.err = err
			return ReadResult[T]{}, err
		}
		if err := ctx.Err(); err != nil {
			return ReadResult[T]{}, err
		}
	}
	return ReadResult[T]{Buffer: r.sequence(), Final: r.eof}, nil
}

func (r *segmentReader[T]) fetch() error {
	last := len(r.segs) - 1
	if last < 0 || r.segs[last].n+r.minFill > len(r.segs[last].buf) {
		r.segs = append(r.segs, segment[T]{buf: fastparser.GetBuffer[T](r.chunk)})
		last++
	}
	s := &r.segs[last]

	var err error
	for range maxEmptyReads {
		var n int
		n, err = r.fill(s.buf[s.n:])
		s.n += n
		if n > 0 || err != nil {
			break
		}
	}
	switch {
	case err == io.EOF:
		r.eof = true
		err = nil
	case err == nil && s.n == 0:
		err = io.ErrNoProgress
	}
	if s.n == 0 {
		fastparser.PutBuffer(s.buf)
		r.segs = r.segs[:last]
	}
	return err
}

func (r *segmentReader[T]) sequence() Sequence[T] {
	r.view = r.view[:0]
	length := 0
	for i, s := range r.segs {
		from := 0
		if i == 0 {
			from = r.head
		}
		if s.n > from {
			r.view = append(r.view, s.buf[from:s.n])
			length += s.n - from
		}
	}
	return Sequence[T]{segments: r.view, length: length}
}

// Advance consumes n tokens and recycles segments that were fully consumed.
func (r *segmentReader[T]) Advance(n int) {
	r.head += n
	for len(r.segs) > 0 {
		s := &r.segs[0]
		if r.head < s.n {
			return
		}
		if len(r.segs) == 1 {
			// Keep the buffer for the next fill.
			s.n = 0
			r.head = 0
			return
		}
		r.head -= s.n
		fastparser.PutBuffer(s.buf)
		r.segs = append(r.segs[:0], r.segs[1:]...)
	}
	r.head = 0
}

func (r *segmentReader[T]) drop() {
	for _, s := range r.segs {
		fastparser.PutBuffer(s.buf)
	}
	clear(r.segs)
	r.segs = r.segs[:0]
	clear(r.view)
	r.head = 0
}

// TryReset rewinds the source if it supports it.
func (r *segmentReader[T]) TryReset() bool {
	if r.closed || r.rewind == nil || !r.rewind() {
		return false
	}
	r.drop()
	r.eof = false
	r.err = nil
	return true
}

// Close returns every buffer to the pool and releases the source.
func (r *segmentReader[T]) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.drop()
	if r.release != nil {
		return r.release()
	}
	return nil
}

func newSegmentReader[T Token](opts StreamOptions, minFill int) (segmentReader[T], error) {
	if err := opts.Validate(); err != nil {
		return segmentReader[T]{}, err
	}
	return segmentReader[T]{chunk: opts.ChunkSize, minFill: minFill}, nil
}

// StreamReader buffers bytes from an io.Reader.
// TryReset succeeds when the source is an io.Seeker.
type StreamReader struct {
	segmentReader[byte]
	src io.Reader
}

// NewStreamReader returns a reader over src. The source is not closed by Close.
func NewStreamReader(src io.Reader, opts StreamOptions) (*StreamReader, error) {
	base, err := newSegmentReader[byte](opts, 1)
	if err != nil {
		return nil, err
	}
	r := &StreamReader{segmentReader: base, src: src}
	r.fill = src.Read
	r.rewind = func() bool {
		s, ok := src.(io.Seeker)
		if !ok {
			return false
		}
		_, err := s.Seek(0, io.SeekStart)
		return err == nil
	}
	return r, nil
}

// TextReader decodes UTF-8 text into UTF-16 code units. Runes above U+FFFF
// become surrogate pairs and are never split across segments. Each invalid
// byte becomes U+FFFD, and a rune split across reads of src is decoded whole.
type TextReader struct {
	segmentReader[uint16]
	src *bufio.Reader
}

// NewTextReader returns a UTF-16 reader over UTF-8 text from src.
func NewTextReader(src io.Reader, opts StreamOptions) (*TextReader, error) {
	base, err := newSegmentReader[uint16](opts, 2)
	if err != nil {
		return nil, err
	}
	r := &TextReader{segmentReader: base, src: bufio.NewReader(src)}
	r.fill = r.decode
	return r, nil
}

func (r *TextReader) decode(dst []uint16) (int, error) {
	n := 0
	for n < len(dst) {
		c, _, err := r.src.ReadRune()
		if err != nil {
			return n, err
		}
		if utf16.RuneLen(c) == 2 && n+2 > len(dst) {
			r.src.UnreadRune()
			break
		}
		n = len(utf16.AppendRune(dst[:n], c))
	}
	return n, nil
}

// FileReader serves a memory mapped file in chunks.
type FileReader struct {
	segmentReader[byte]
	ra  *mmap.ReaderAt
	off int64
}

// OpenFile maps the file at path for reading.
func OpenFile(path string, opts StreamOptions) (*FileReader, error) {
	base, err := newSegmentReader[byte](opts, 1)
	if err != nil {
		return nil, err
	}
	ra, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	r := &FileReader{segmentReader: base, ra: ra}
	r.fill = r.readAt
	r.rewind = func() bool {
		r.off = 0
		return true
	}
	r.release = ra.Close
	return r, nil
}

// Size returns the file size in bytes.
func (r *FileReader) Size() int64 {
	return int64(r.ra.Len())
}

func (r *FileReader) readAt(dst []byte) (int, error) {
	if r.off >= int64(r.ra.Len()) {
		return 0, io.EOF
	}
	n, err := r.ra.ReadAt(dst, r.off)
	r.off += int64(n)
	return n, err
}
