package fastparser

import (
	"github.com/shapestone/shape-csvtok/internal/fastparser/simd"
)

// Trim selects which ASCII spaces are removed from raw fields before quotes
// are interpreted.
type Trim uint8

const (
	TrimNone     Trim = 0
	TrimLeading  Trim = 1 << 0
	TrimTrailing Trim = 1 << 1
	TrimBoth          = TrimLeading | TrimTrailing
)

// Decoder turns a pair of Metas into a field value.
//
// Fields without quotes or escapes, and fields that are only wrapped in one
// pair of quotes, are returned as subslices of the input. Everything else is
// unescaped into the Scratch arena, sized exactly from the Meta's special count.
type Decoder[T simd.Token] struct {
	dialect Dialect[T]
	scratch *Scratch[T]
	trim    Trim
	expose  bool
}

// NewDecoder creates a decoder. expose allows raw field content in errors.
func NewDecoder[T simd.Token](d Dialect[T], scratch *Scratch[T], trim Trim, expose bool) *Decoder[T] {
	return &Decoder[T]{dialect: d, scratch: scratch, trim: trim, expose: expose}
}

// Field returns the value of the field that starts at prev.NextStart() and
// ends at cur.End() in data.
func (d *Decoder[T]) Field(data []T, prev, cur Meta) ([]T, error) {
	start, end := prev.NextStart(), cur.End()
	field := data[start:end]

	if d.trim != TrimNone {
		var cut int
		field, cut = trimSpaces(field, d.trim)
		start += cut
	}

	if cur.SpecialCount() == 0 && !cur.IsMalformed() {
		return field, nil
	}
	if cur.IsEscape() {
		return d.unescape(field, start, cur)
	}
	return d.unquote(field, start, cur)
}

// unquote handles RFC4180 fields: strip the wrapping quotes and collapse
// every doubled quote in the body.
func (d *Decoder[T]) unquote(field []T, offset int, cur Meta) ([]T, error) {
	quote := d.dialect.quote
	count := int(cur.SpecialCount())

	if count&1 != 0 || cur.IsMalformed() {
		return nil, d.fail(ErrUnbalancedQuotes, field, offset)
	}
	if len(field) < 2 || field[0] != quote || field[len(field)-1] != quote {
		return nil, d.fail(ErrInvalidQuote, field, offset)
	}

	body := field[1 : len(field)-1]
	if count == 2 {
		return body, nil
	}

	size := len(body) - (count-2)/2
	if size < 0 {
		return nil, d.fail(ErrInvalidQuote, field, offset)
	}
	buf, err := d.scratch.Take(size)
	if err != nil {
		return nil, err
	}

	w := 0
	for i := 0; i < len(body); {
		j := indexToken(body[i:], quote)
		if j < 0 {
			if w+len(body)-i != size {
				d.scratch.Release(size)
				return nil, d.fail(ErrUnbalancedQuotes, field, offset)
			}
			w += copy(buf[w:], body[i:])
			break
		}
		// Every quote in the body must be the first half of a pair.
		if i+j+1 >= len(body) || body[i+j+1] != quote || w+j+1 > size {
			d.scratch.Release(size)
			return nil, d.fail(ErrInvalidQuote, field, offset)
		}
		w += copy(buf[w:], body[i:i+j+1])
		i += j + 2
	}

	if w != size {
		d.scratch.Release(size)
		return nil, d.fail(ErrUnbalancedQuotes, field, offset)
	}
	return buf, nil
}

// unescape handles escape mode fields: strip an optional pair of wrapping
// quotes, then copy the token after every escape verbatim.
func (d *Decoder[T]) unescape(field []T, offset int, cur Meta) ([]T, error) {
	quote, escape := d.dialect.quote, d.dialect.escape

	if cur.IsMalformed() {
		return nil, d.fail(ErrEscapeQuotes, field, offset)
	}

	escapes := int(cur.SpecialCount())
	if cur.IsQuoted() {
		if len(field) < 2 || field[0] != quote || field[len(field)-1] != quote {
			return nil, d.fail(ErrInvalidQuote, field, offset)
		}
		field = field[1 : len(field)-1]
		escapes -= 2
	}
	if escapes == 0 {
		return field, nil
	}

	size := len(field) - escapes
	if size < 0 {
		return nil, d.fail(ErrDanglingEscape, field, offset)
	}
	buf, err := d.scratch.Take(size)
	if err != nil {
		return nil, err
	}

	w := 0
	for i := 0; i < len(field); {
		j := indexToken(field[i:], escape)
		if j < 0 {
			if w+len(field)-i != size {
				d.scratch.Release(size)
				return nil, d.fail(ErrDanglingEscape, field, offset)
			}
			w += copy(buf[w:], field[i:])
			break
		}
		if i+j+1 >= len(field) || w+j+1 > size {
			d.scratch.Release(size)
			return nil, d.fail(ErrDanglingEscape, field, offset)
		}
		w += copy(buf[w:], field[i:i+j])
		buf[w] = field[i+j+1]
		w++
		i += j + 2
	}

	if w != size {
		d.scratch.Release(size)
		return nil, d.fail(ErrDanglingEscape, field, offset)
	}
	return buf, nil
}

func (d *Decoder[T]) fail(err error, field []T, offset int) *FieldError {
	fe := &FieldError{
		Offset:    offset,
		Err:       err,
		Structure: Structure(d.dialect, field),
	}
	if d.expose {
		fe.Content = TokensString(field)
	}
	return fe
}

func trimSpaces[T simd.Token](field []T, trim Trim) ([]T, int) {
	cut := 0
	if trim&TrimLeading != 0 {
		for cut < len(field) && field[cut] == ' ' {
			cut++
		}
		field = field[cut:]
	}
	if trim&TrimTrailing != 0 {
		end := len(field)
		for end > 0 && field[end-1] == ' ' {
			end--
		}
		field = field[:end]
	}
	return field, cut
}
