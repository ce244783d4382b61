package csv

import (
	"log/slog"
	"unicode/utf8"

	"github.com/shapestone/shape-csvtok/internal/fastparser"
	"github.com/shapestone/shape-csvtok/internal/fastparser/simd"
)

// Token is the unit the parser works on: byte for UTF-8 input, uint16 for
// UTF-16 code units.
type Token = simd.Token

// Dialect is a validated set of structural tokens.
type Dialect[T Token] = fastparser.Dialect[T]

// Newline is a one or two token record separator.
type Newline[T Token] = fastparser.Newline[T]

// Width selects the vector width used to scan for structural tokens.
type Width = simd.Width

// Scan widths. WidthAuto picks the widest width the CPU supports; the
// CSVTOK_SCAN_WIDTH environment variable overrides the detection.
const (
	WidthAuto     = simd.WidthAuto
	WidthScalar   = simd.WidthScalar
	Width128      = simd.Width128
	Width256      = simd.Width256
	Width512      = simd.Width512
	WidthPortable = simd.WidthPortable
)

// ParseWidth parses a width name such as "auto", "scalar", "256" or "avx2".
func ParseWidth(s string) (Width, error) {
	return simd.ParseWidth(s)
}

// Trim selects which ASCII spaces are removed from fields before quotes
// are interpreted.
type Trim = fastparser.Trim

const (
	TrimNone     = fastparser.TrimNone
	TrimLeading  = fastparser.TrimLeading
	TrimTrailing = fastparser.TrimTrailing
	TrimBoth     = fastparser.TrimBoth
)

// MaxReadAheadCount bounds ParserOptions.ReadAheadCount.
const MaxReadAheadCount = 1 << 20

// DialectOptions describes a dialect independently of the token type.
type DialectOptions struct {
	// Delimiter separates fields.
	// Default: ','
	Delimiter rune

	// Quote wraps fields that contain structural tokens.
	// Default: '"'
	Quote rune

	// Escape, if not 0, switches to escape mode: the token after an escape
	// is taken literally and quotes only wrap whole fields.
	// Default: 0 (RFC 4180 doubled quotes)
	Escape rune

	// Newline separates records: one or two characters, usually "\n" or
	// "\r\n". Empty means detect it from the first line.
	// Default: ""
	Newline string

	// NoReadAhead makes the parser scan exactly one record at a time.
	// Default: false
	NoReadAhead bool

	// RequireASCII rejects dialects with non-ASCII tokens.
	// Default: false
	RequireASCII bool
}

// DefaultDialectOptions returns the RFC 4180 dialect with newline detection.
func DefaultDialectOptions() DialectOptions {
	return DialectOptions{
		Delimiter: ',',
		Quote:     '"',
	}
}

// validToken reports whether r can be used as a structural token.
func validToken(r rune) bool {
	return r > 0 && r <= 0xFFFF && utf8.ValidRune(r) && r != utf8.RuneError
}

// Validate checks the options that do not depend on the token type.
func (o DialectOptions) Validate() error {
	if !validToken(o.Delimiter) {
		return &OptionsError{Field: "Delimiter", Message: "invalid delimiter"}
	}
	if !validToken(o.Quote) {
		return &OptionsError{Field: "Quote", Message: "invalid quote character"}
	}
	if o.Escape != 0 && !validToken(o.Escape) {
		return &OptionsError{Field: "Escape", Message: "invalid escape character"}
	}
	if n := utf8.RuneCountInString(o.Newline); n > 2 || !utf8.ValidString(o.Newline) {
		return &OptionsError{Field: "Newline", Message: "must be empty or 1 or 2 characters"}
	}
	if o.Newline == "" {
		// Detection looks for CR and LF, so neither may be claimed by another token.
		for _, r := range []rune{o.Delimiter, o.Quote, o.Escape} {
			if r == '\r' || r == '\n' {
				return &OptionsError{Field: "Newline", Message: "detection needs CR and LF to be free"}
			}
		}
	}
	return nil
}

// maxToken returns the largest rune a token of type T can carry.
// Byte dialects are limited to ASCII.
func maxToken[T Token]() rune {
	if simd.TokenSize[T]() == 1 {
		return utf8.RuneSelf - 1
	}
	return 0xFFFF
}

// BuildDialect converts options to a validated dialect for token type T.
func BuildDialect[T Token](o DialectOptions) (Dialect[T], error) {
	if err := o.Validate(); err != nil {
		return Dialect[T]{}, err
	}
	limit := maxToken[T]()
	for _, f := range []struct {
		name string
		r    rune
	}{{"Delimiter", o.Delimiter}, {"Quote", o.Quote}, {"Escape", o.Escape}} {
		if f.r > limit {
			return Dialect[T]{}, &OptionsError{Field: f.name, Message: "not representable as a single token"}
		}
	}

	cfg := fastparser.DialectConfig[T]{
		Delimiter:    T(o.Delimiter),
		Quote:        T(o.Quote),
		Escape:       T(o.Escape),
		HasEscape:    o.Escape != 0,
		Newline:      fastparser.AppendTokens[T](nil, o.Newline),
		RequireASCII: o.RequireASCII,
	}
	return fastparser.NewDialect(cfg)
}

// ParserOptions configures a Parser.
type ParserOptions[T Token] struct {
	// Dialect holds the structural tokens.
	Dialect DialectOptions

	// Trim removes ASCII spaces around fields before quotes are interpreted.
	// Default: TrimNone
	Trim Trim

	// ExposeContent includes raw field content in error messages.
	// Default: false
	ExposeContent bool

	// ReadAheadCount is the number of field Metas buffered ahead of the
	// consumer.
	// Default: 4096
	ReadAheadCount int

	// ScanWidth selects the vector width of the scanner.
	// Default: WidthAuto
	ScanWidth Width

	// Detector, if set, determines the delimiter from the first records.
	// Default: nil (use Dialect.Delimiter)
	Detector DelimiterDetector[T]

	// SkipRecord, if set, drops every record for which it returns true.
	// Default: nil
	SkipRecord func(Record[T]) bool

	// SkipBOM drops a leading byte order mark.
	// Default: true
	SkipBOM bool

	// Logger receives debug records about state changes, detection and
	// buffer growth.
	// Default: nil (discard)
	Logger *slog.Logger
}

// DefaultParserOptions returns the default parser configuration.
func DefaultParserOptions[T Token]() ParserOptions[T] {
	return ParserOptions[T]{
		Dialect:        DefaultDialectOptions(),
		Trim:           TrimNone,
		ReadAheadCount: fastparser.DefaultReadAhead,
		ScanWidth:      WidthAuto,
		SkipBOM:        true,
	}
}

// Validate checks if the options are valid.
func (o ParserOptions[T]) Validate() error {
	if err := o.Dialect.Validate(); err != nil {
		return err
	}
	if o.ReadAheadCount < 1 || o.ReadAheadCount > MaxReadAheadCount {
		return &OptionsError{Field: "ReadAheadCount", Message: "must be between 1 and 1048576"}
	}
	if o.ScanWidth < WidthAuto || o.ScanWidth > WidthPortable {
		return &OptionsError{Field: "ScanWidth", Message: "unknown width " + o.ScanWidth.String()}
	}
	if o.Trim > TrimBoth {
		return &OptionsError{Field: "Trim", Message: "unknown trim mode"}
	}
	return nil
}

// OptionsError represents an invalid option configuration.
type OptionsError struct {
	Field   string
	Message string
}

func (e *OptionsError) Error() string {
	return "csv: invalid " + e.Field + ": " + e.Message
}
