package csv_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/shapestone/shape-csvtok/pkg/csv"
)

// readAll drains p and returns every record as strings.
func readAll[T csv.Token](t testing.TB, p *csv.Parser[T]) ([][]string, error) {
	t.Helper()
	var out [][]string
	for {
		rec, err := p.Read(context.Background())
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		fields, err := rec.Strings()
		if err != nil {
			return out, err
		}
		out = append(out, fields)
	}
}

func newParser[T csv.Token](t testing.TB, r csv.BufferReader[T], opts csv.ParserOptions[T]) *csv.Parser[T] {
	t.Helper()
	p, err := csv.NewParser(r, opts)
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

// parseString parses input in one segment.
func parseString(t testing.TB, input string, opts csv.ParserOptions[byte]) ([][]string, error) {
	t.Helper()
	return readAll(t, newParser(t, csv.NewBytesReader([]byte(input)), opts))
}

// parseUTF16 parses input as UTF-16 code units in one segment.
func parseUTF16(t testing.TB, input string, opts csv.ParserOptions[uint16]) ([][]string, error) {
	t.Helper()
	return readAll(t, newParser(t, csv.NewBytesReader(utf16.Encode([]rune(input))), opts))
}

// chunkedReader reveals one chunk per Read and keeps every unconsumed chunk
// as its own segment, so records crossing a chunk boundary take the slow path.
type chunkedReader[T csv.Token] struct {
	chunks   [][]T
	shown    int
	consumed int
	resets   int
	closed   bool
}

func newChunkedReader[T csv.Token](data []T, splits ...int) *chunkedReader[T] {
	r := &chunkedReader[T]{}
	prev := 0
	for _, s := range splits {
		r.chunks = append(r.chunks, data[prev:s])
		prev = s
	}
	r.chunks = append(r.chunks, data[prev:])
	return r
}

func (r *chunkedReader[T]) Read(ctx context.Context) (csv.ReadResult[T], error) {
	if r.closed {
		return csv.ReadResult[T]{}, csv.ErrDisposed
	}
	if err := ctx.Err(); err != nil {
		return csv.ReadResult[T]{}, err
	}
	if r.shown < len(r.chunks) {
		r.shown++
	}
	var segs [][]T
	skip := r.consumed
	for _, c := range r.chunks[:r.shown] {
		if skip >= len(c) {
			skip -= len(c)
			continue
		}
		segs = append(segs, c[skip:])
		skip = 0
	}
	return csv.ReadResult[T]{Buffer: csv.NewSequence(segs...), Final: r.shown == len(r.chunks)}, nil
}

func (r *chunkedReader[T]) Advance(n int) { r.consumed += n }

func (r *chunkedReader[T]) TryReset() bool {
	r.shown, r.consumed = 0, 0
	r.resets++
	return true
}

func (r *chunkedReader[T]) Close() error {
	r.closed = true
	return nil
}

// quoteRecord writes fields with RFC 4180 quoting: fields holding a
// structural character are quoted and their quotes doubled.
func quoteRecord(sb *strings.Builder, fields []string, delim byte) {
	for i, f := range fields {
		if i > 0 {
			sb.WriteByte(delim)
		}
		if strings.ContainsAny(f, string(delim)+"\"\r\n") || f == "" && len(fields) == 1 {
			sb.WriteByte('"')
			sb.WriteString(strings.ReplaceAll(f, `"`, `""`))
			sb.WriteByte('"')
			continue
		}
		sb.WriteString(f)
	}
	sb.WriteByte('\n')
}
