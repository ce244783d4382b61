// Package fastparser implements the tokenizer core: dialects, field metadata,
// the scalar and vector scanners, and the field decoder.
//
// The package works on slices of simd.Token (bytes or UTF-16 code units) and
// never allocates on the scanning hot path. Buffer ownership and streaming are
// handled by the public csv package.
package fastparser

import (
	"errors"
	"fmt"

	"github.com/shapestone/shape-csvtok/internal/fastparser/simd"
)

// Mode selects how quotes and escapes are interpreted.
type Mode uint8

const (
	// ModeRFC4180 quotes fields and doubles embedded quotes.
	ModeRFC4180 Mode = iota
	// ModeEscape uses an escape token that makes the next token literal.
	// Quotes may still wrap a field.
	ModeEscape
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeRFC4180:
		return "RFC4180"
	case ModeEscape:
		return "Escape"
	default:
		return fmt.Sprintf("Mode(%d)", m)
	}
}

// DialectConfig describes a dialect before validation.
type DialectConfig[T simd.Token] struct {
	Delimiter T
	Quote     T
	Escape    T    // Only used when HasEscape is set
	HasEscape bool // Escape mode
	// Newline holds 0 tokens (auto-detect), 1 token or 2 tokens.
	Newline []T
	// RequireASCII makes validation fail for tokens above 0x7F.
	RequireASCII bool
}

// DefaultDialectConfig returns a comma separated, double-quoted RFC4180 dialect
// with newline auto-detection.
func DefaultDialectConfig[T simd.Token]() DialectConfig[T] {
	return DialectConfig[T]{
		Delimiter: ',',
		Quote:     '"',
	}
}

// Dialect is an immutable, validated set of structural tokens.
// Copying a Dialect is cheap; With* methods return modified copies.
type Dialect[T simd.Token] struct {
	delimiter    T
	quote        T
	escape       T
	hasEscape    bool
	newline      Newline[T]
	ascii        bool
	requireASCII bool
}

// NewDialect validates cfg and returns the dialect.
// All problems are reported at once, joined with errors.Join.
func NewDialect[T simd.Token](cfg DialectConfig[T]) (Dialect[T], error) {
	nl, err := NewNewline(cfg.Newline...)
	if err != nil {
		return Dialect[T]{}, err
	}
	d := Dialect[T]{
		delimiter:    cfg.Delimiter,
		quote:        cfg.Quote,
		escape:       cfg.Escape,
		hasEscape:    cfg.HasEscape,
		newline:      nl,
		requireASCII: cfg.RequireASCII,
	}
	if !d.hasEscape {
		d.escape = 0
	}
	if err := d.validate(); err != nil {
		return Dialect[T]{}, err
	}
	return d, nil
}

// Delimiter returns the field separator.
func (d Dialect[T]) Delimiter() T { return d.delimiter }

// Quote returns the quote token.
func (d Dialect[T]) Quote() T { return d.quote }

// Escape returns the escape token and whether the dialect has one.
func (d Dialect[T]) Escape() (T, bool) { return d.escape, d.hasEscape }

// Newline returns the newline; it is zero until detected when auto-detection is used.
func (d Dialect[T]) Newline() Newline[T] { return d.newline }

// Mode returns ModeEscape when the dialect has an escape token.
func (d Dialect[T]) Mode() Mode {
	if d.hasEscape {
		return ModeEscape
	}
	return ModeRFC4180
}

// IsASCII reports whether every token is ASCII. Only ASCII dialects use the
// parser's in-place fast path.
func (d Dialect[T]) IsASCII() bool { return d.ascii }

// WithDelimiter returns a copy using delimiter, validated again.
func (d Dialect[T]) WithDelimiter(delimiter T) (Dialect[T], error) {
	d.delimiter = delimiter
	if err := d.validate(); err != nil {
		return Dialect[T]{}, err
	}
	return d, nil
}

// WithNewline returns a copy using nl, validated again.
func (d Dialect[T]) WithNewline(nl Newline[T]) (Dialect[T], error) {
	d.newline = nl
	if err := d.validate(); err != nil {
		return Dialect[T]{}, err
	}
	return d, nil
}

// Matchers returns the vector matchers for this dialect.
// The newline must be known.
func (d Dialect[T]) Matchers() *simd.Matchers[T] {
	return simd.NewMatchers(d.delimiter, d.quote, d.newline.First(), d.escape, d.hasEscape)
}

type namedToken[T simd.Token] struct {
	name  string
	value T
}

func (d *Dialect[T]) tokens() []namedToken[T] {
	tokens := make([]namedToken[T], 0, 5)
	tokens = append(tokens,
		namedToken[T]{"delimiter", d.delimiter},
		namedToken[T]{"quote", d.quote},
	)
	if d.hasEscape {
		tokens = append(tokens, namedToken[T]{"escape", d.escape})
	}
	switch d.newline.Len() {
	case 1:
		tokens = append(tokens, namedToken[T]{"newline", d.newline.First()})
	case 2:
		tokens = append(tokens,
			namedToken[T]{"newline[0]", d.newline.First()},
			namedToken[T]{"newline[1]", d.newline.Second()},
		)
	}
	return tokens
}

func (d *Dialect[T]) validate() error {
	var errs []error

	if d.delimiter == 0 {
		errs = append(errs, &ConfigError{Field: "delimiter", Message: "must not be zero"})
	}
	if d.quote == 0 {
		errs = append(errs, &ConfigError{Field: "quote", Message: "must not be zero"})
	}
	if d.hasEscape && d.escape == 0 {
		errs = append(errs, &ConfigError{Field: "escape", Message: "must not be zero"})
	}

	tokens := d.tokens()
	for i := 0; i < len(tokens); i++ {
		for j := i + 1; j < len(tokens); j++ {
			if tokens[i].value == tokens[j].value && tokens[i].value != 0 {
				errs = append(errs, &ConfigError{
					Field:   tokens[j].name,
					Message: fmt.Sprintf("%s collides with %s", TokenString(tokens[j].value), tokens[i].name),
				})
			}
		}
	}

	d.ascii = true
	byteTokens := simd.TokenSize[T]() == 1
	for _, tok := range tokens {
		if tok.value > 0x7F {
			d.ascii = false
			if byteTokens {
				errs = append(errs, &ConfigError{
					Field:   tok.name,
					Message: fmt.Sprintf("%s is not ASCII; multi-byte tokens are not supported", TokenString(tok.value)),
				})
			}
		}
		if u := uint16(tok.value); !byteTokens && u >= 0xD800 && u <= 0xDFFF {
			errs = append(errs, &ConfigError{
				Field:   tok.name,
				Message: fmt.Sprintf("%s is a surrogate code unit", TokenString(tok.value)),
			})
		}
	}
	if d.requireASCII && !d.ascii && !byteTokens {
		errs = append(errs, &ConfigError{Field: "dialect", Message: "ASCII dialect requested but a token is not ASCII"})
	}

	return errors.Join(errs...)
}

// TokenString renders a token for messages: printable ASCII as-is, the common
// control tokens by name, anything else as U+XXXX.
func TokenString[T simd.Token](t T) string {
	switch t {
	case '\n':
		return `'\n'`
	case '\r':
		return `'\r'`
	case '\t':
		return `'\t'`
	}
	if t >= 0x20 && t < 0x7F {
		return fmt.Sprintf("'%c'", rune(t))
	}
	return fmt.Sprintf("U+%04X", uint16(t))
}
