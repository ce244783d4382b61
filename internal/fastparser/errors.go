package fastparser

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by the tokenizer core.
var (
	// ErrNeedMoreData means a decision depends on data that has not been read yet.
	// It never escapes the parser.
	ErrNeedMoreData = errors.New("csv: need more data")

	// ErrNoNewline is returned when newline detection saw NewlineDetectionCap
	// tokens without a line feed.
	ErrNoNewline = errors.New("csv: no newline found in the first 1024 tokens")

	// ErrUnbalancedQuotes means a field has an odd number of quotes.
	ErrUnbalancedQuotes = errors.New("csv: unbalanced quotes")

	// ErrInvalidQuote means a quoted field is not wrapped in quotes, or an
	// embedded quote is not doubled.
	ErrInvalidQuote = errors.New("csv: invalid quote")

	// ErrDanglingEscape means a field ends with an escape token.
	ErrDanglingEscape = errors.New("csv: escape token at end of field")

	// ErrEscapeQuotes means an escape mode field has a quote count other than 0 or 2.
	ErrEscapeQuotes = errors.New("csv: escape mode field must have 0 or 2 quotes")

	// ErrScratchExhausted means an unescaped field needs more scratch than allowed.
	ErrScratchExhausted = errors.New("csv: unescape buffer limit exceeded")

	// ErrViewTooLarge means a buffered view exceeds the offsets Meta can store.
	ErrViewTooLarge = errors.New("csv: buffered data exceeds 2 GiB of tokens")
)

// ConfigError describes an invalid dialect.
type ConfigError struct {
	Field   string // The dialect token or setting that is invalid
	Message string // Description of the problem
}

// Error returns the error message.
func (e *ConfigError) Error() string {
	return "csv: invalid dialect " + e.Field + ": " + e.Message
}

// FieldError is a well-formedness error found while decoding a field.
//
// Structure always holds the field rendered as token classes so the error can
// be diagnosed without leaking data. Content holds the raw field only when the
// parser was configured to expose content.
type FieldError struct {
	Offset    int    // Offset of the field start in the buffered view
	Err       error  // One of the sentinel errors above
	Structure string // Token class pattern, see Structure
	Content   string // Raw field, empty unless content exposure is enabled
}

// Error returns a formatted error message.
func (e *FieldError) Error() string {
	var b strings.Builder
	b.WriteString(e.Err.Error())
	fmt.Fprintf(&b, " at offset %d", e.Offset)
	if e.Content != "" {
		fmt.Fprintf(&b, ". Content: [%s]", e.Content)
	}
	fmt.Fprintf(&b, ", data structure: [%s]", e.Structure)
	return b.String()
}

// Unwrap returns the underlying error.
func (e *FieldError) Unwrap() error {
	return e.Err
}
