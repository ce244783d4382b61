package csv

import (
	"errors"
	"fmt"

	"github.com/shapestone/shape-csvtok/internal/fastparser"
)

// ConfigError describes an invalid dialect: a zero token, two tokens that
// collide, or a token the token type cannot represent.
type ConfigError = fastparser.ConfigError

// FieldError is a quoting or escaping error found while decoding a field.
// It is always wrapped in a *ParseError by the parser.
type FieldError = fastparser.FieldError

// Well-formedness and resource errors, usable with errors.Is.
var (
	ErrUnbalancedQuotes = fastparser.ErrUnbalancedQuotes
	ErrInvalidQuote     = fastparser.ErrInvalidQuote
	ErrDanglingEscape   = fastparser.ErrDanglingEscape
	ErrEscapeQuotes     = fastparser.ErrEscapeQuotes
	ErrScratchExhausted = fastparser.ErrScratchExhausted
	ErrViewTooLarge     = fastparser.ErrViewTooLarge
	ErrNoNewline        = fastparser.ErrNoNewline
)

var (
	// ErrDelimiterNotDetected is returned when a required delimiter detector
	// found no delimiter in the first records.
	ErrDelimiterNotDetected = errors.New("csv: delimiter could not be detected")

	// ErrDisposed is returned by every Parser method after Close.
	ErrDisposed = errors.New("csv: parser is closed")

	// ErrRecordExpired is returned when a Record is used after the parser
	// moved past it.
	ErrRecordExpired = errors.New("csv: record used after the next Read")
)

// ParseError reports a well-formedness error in a record.
// Parse errors are fatal: the parser returns the same error from then on.
type ParseError struct {
	// Record is the 0-based index of the record in the stream.
	Record int
	// Field is the 0-based index of the field in the record, or -1.
	Field int
	// Offset is the token offset of the field start in the stream.
	Offset int64
	// Err is the underlying error, usually a *FieldError.
	Err error
}

// Error returns a formatted error message with position information.
func (e *ParseError) Error() string {
	if e.Field < 0 {
		return fmt.Sprintf("parse error in record %d at offset %d: %v", e.Record, e.Offset, e.Err)
	}
	return fmt.Sprintf("parse error in record %d, field %d at offset %d: %v", e.Record, e.Field, e.Offset, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// FormatError reports that the shape of the stream could not be determined:
// no newline was found, or no delimiter could be detected.
type FormatError struct {
	// Offset is the token offset in the stream where detection looked.
	Offset int64
	// Err is the underlying error.
	Err error
}

// Error returns the error message.
func (e *FormatError) Error() string {
	return fmt.Sprintf("csv: format error at offset %d: %v", e.Offset, e.Err)
}

// Unwrap returns the underlying error.
func (e *FormatError) Unwrap() error {
	return e.Err
}
