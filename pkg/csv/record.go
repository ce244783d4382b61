package csv

import (
	"errors"
	"iter"

	"github.com/shapestone/shape-csvtok/internal/fastparser"
)

// Record is one parsed record. Its field views point into the parser's
// buffers and are valid until the next call to Read.
type Record[T Token] struct {
	p     *Parser[T]
	gen   uint64
	data  []T
	metas []fastparser.Meta // metas[0] ends the previous record
	index int
	base  int64 // stream offset of data[0]
}

// FieldCount returns the number of fields in the record.
func (r Record[T]) FieldCount() int {
	return max(len(r.metas)-1, 0)
}

// Index returns the 0-based index of the record in the stream, counting
// skipped records.
func (r Record[T]) Index() int { return r.index }

// Offset returns the token offset of the record start in the stream.
func (r Record[T]) Offset() int64 {
	if len(r.metas) == 0 {
		return 0
	}
	return r.base + int64(r.metas[0].NextStart())
}

// FieldOffset returns the token offset of field i in the stream.
func (r Record[T]) FieldOffset(i int) int64 {
	if i < 0 || i >= r.FieldCount() {
		return r.Offset()
	}
	return r.base + int64(r.metas[i].NextStart())
}

// Raw returns the record as it appears in the input, without its newline.
func (r Record[T]) Raw() []T {
	if len(r.metas) == 0 {
		return nil
	}
	return r.data[r.metas[0].NextStart():r.metas[len(r.metas)-1].End()]
}

// Field returns the value of field i. Fields without quotes or escapes are
// views of the input; the rest are unescaped into scratch space owned by
// the parser. A decoding error is fatal for the parser.
func (r Record[T]) Field(i int) ([]T, error) {
	if err := r.live(); err != nil {
		return nil, err
	}
	if i < 0 || i >= r.FieldCount() {
		return nil, errors.New("csv: field index out of range")
	}
	v, err := r.p.decoder.Field(r.data, r.metas[i], r.metas[i+1])
	if err != nil {
		return nil, r.fail(i, err)
	}
	return v, nil
}

// Fields iterates over the decoded fields in order. Iteration stops at the
// first error, which Err reports.
func (r Record[T]) Fields() iter.Seq2[int, []T] {
	return func(yield func(int, []T) bool) {
		for i := range r.FieldCount() {
			v, err := r.Field(i)
			if err != nil || !yield(i, v) {
				return
			}
		}
	}
}

// Err returns the error that stopped Fields, if any.
func (r Record[T]) Err() error {
	if r.p == nil {
		return nil
	}
	if err := r.live(); err != nil {
		return err
	}
	return r.p.err
}

// AppendStrings appends every field as a string to dst.
func (r Record[T]) AppendStrings(dst []string) ([]string, error) {
	for i := range r.FieldCount() {
		v, err := r.Field(i)
		if err != nil {
			return dst, err
		}
		dst = append(dst, fastparser.TokensString(v))
	}
	return dst, nil
}

// Strings returns every field as a string.
func (r Record[T]) Strings() ([]string, error) {
	return r.AppendStrings(make([]string, 0, r.FieldCount()))
}

func (r Record[T]) live() error {
	switch {
	case r.p == nil:
		return ErrRecordExpired
	case r.p.state == StateDisposed:
		return ErrDisposed
	case r.p.gen != r.gen:
		return ErrRecordExpired
	}
	return nil
}

// fail wraps a decoding error of field i and makes it sticky.
func (r Record[T]) fail(i int, err error) error {
	pe := &ParseError{Record: r.index, Field: i, Offset: r.Offset(), Err: err}
	var fe *FieldError
	if errors.As(err, &fe) {
		pe.Offset = r.base + int64(fe.Offset)
	}
	if r.p.err == nil {
		r.p.err = pe
	}
	r.p.log.Debug("csv: malformed field", "record", r.index, "field", i, "offset", pe.Offset, "error", err)
	return pe
}

// checkQuoting returns the error of the first field the scanner flagged as
// malformed.
func (r Record[T]) checkQuoting() error {
	for i := 1; i < len(r.metas); i++ {
		if !r.metas[i].IsMalformed() {
			continue
		}
		if _, err := r.Field(i - 1); err != nil {
			return err
		}
		return r.fail(i-1, ErrUnbalancedQuotes)
	}
	return nil
}
