package tokenizer

import (
	"github.com/shapestone/shape-core/pkg/tokenizer"
)

// Options configures the tokenizer dialect.
type Options struct {
	// Delimiter is the field separator. Default: ','
	Delimiter rune
	// Quote wraps fields. Default: '"'
	Quote rune
	// Escape makes the next character literal. 0 disables escape mode.
	Escape rune
	// Newline is the one or two character record terminator. Default: "\n"
	Newline string
}

// DefaultOptions returns RFC 4180 options with LF records.
func DefaultOptions() Options {
	return Options{
		Delimiter: ',',
		Quote:     '"',
		Newline:   "\n",
	}
}

// NewTokenizer creates a tokenizer for the default dialect.
func NewTokenizer() tokenizer.Tokenizer {
	return NewTokenizerWithOptions(DefaultOptions())
}

// NewTokenizerWithOptions creates a tokenizer for a dialect.
// Matchers run in order of specificity:
// 1. Newline (whole terminator, so CRLF wins over a lone CR)
// 2. Delimiter
// 3. Quote
// 4. Escape (when configured)
// 5. Text (any run of other characters)
func NewTokenizerWithOptions(opts Options) tokenizer.Tokenizer {
	matchers := []tokenizer.Matcher{
		tokenizer.StringMatcherFunc(TokenNewline, opts.Newline),
		tokenizer.StringMatcherFunc(TokenDelimiter, string(opts.Delimiter)),
		tokenizer.StringMatcherFunc(TokenQuote, string(opts.Quote)),
	}
	if opts.Escape != 0 {
		matchers = append(matchers, tokenizer.StringMatcherFunc(TokenEscape, string(opts.Escape)))
	}
	matchers = append(matchers, TextMatcher(opts))
	return tokenizer.NewTokenizerWithoutWhitespace(matchers...)
}

// NewTokenizerWithStream creates a tokenizer from a pre-configured stream.
// This is used to support streaming from io.Reader.
func NewTokenizerWithStream(stream tokenizer.Stream, opts Options) tokenizer.Tokenizer {
	tok := NewTokenizerWithOptions(opts)
	tok.InitializeFromStream(stream)
	return tok
}

// TextMatcher matches runs of characters that cannot start a structural
// token.
//
// Grammar:
//
//	Text = Character+ ;
//	Character = <any character except delimiter, quote, escape, newline start> ;
//
// The first character of a two character newline stops the run even when the
// second does not follow; the newline matcher then rejects it and the next
// Text token starts with it.
//
// Performance: Uses ByteStream for fast ASCII scanning when available.
func TextMatcher(opts Options) tokenizer.Matcher {
	stop := [4]rune{opts.Delimiter, opts.Quote, opts.Escape, firstRune(opts.Newline)}
	ascii := true
	for _, r := range stop {
		if r >= 0x80 {
			ascii = false
		}
	}

	return func(stream tokenizer.Stream) *tokenizer.Token {
		if ascii {
			if byteStream, ok := stream.(tokenizer.ByteStream); ok {
				return textMatcherByte(byteStream, stop)
			}
		}
		return textMatcherRune(stream, stop)
	}
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

func isStop(r rune, stop [4]rune) bool {
	return r != 0 && (r == stop[0] || r == stop[1] || r == stop[2] || r == stop[3])
}

// textMatcherByte scans ASCII stop characters over a ByteStream.
// A stop character that begins the run is consumed, so a lone newline start
// never stalls the tokenizer.
func textMatcherByte(stream tokenizer.ByteStream, stop [4]rune) *tokenizer.Token {
	startPos := stream.BytePosition()

	for {
		b, ok := stream.PeekByte()
		if !ok {
			break
		}
		if isStop(rune(b), stop) && stream.BytePosition() != startPos {
			break
		}
		stream.NextByte()
	}

	if stream.BytePosition() == startPos {
		return nil
	}

	value := stream.SliceFrom(startPos)
	return tokenizer.NewToken(TokenText, []rune(string(value)))
}

// textMatcherRune is the rune-based fallback.
func textMatcherRune(stream tokenizer.Stream, stop [4]rune) *tokenizer.Token {
	var value []rune

	for {
		r, ok := stream.PeekChar()
		if !ok {
			break
		}
		if isStop(r, stop) && len(value) > 0 {
			break
		}
		stream.NextChar()
		value = append(value, r)
	}

	if len(value) == 0 {
		return nil
	}

	return tokenizer.NewToken(TokenText, value)
}
