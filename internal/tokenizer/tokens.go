// Package tokenizer provides dialect-aware CSV tokenization using Shape's tokenizer framework.
package tokenizer

// Token type constants for CSV format.
//
// Note: The tokenizer emits simple character-level tokens. The parser is
// responsible for quote state, escapes and field boundaries.
const (
	// Structural tokens
	TokenDelimiter = "Delimiter" // field separator
	TokenQuote     = "Quote"     // quote character
	TokenEscape    = "Escape"    // escape character, escape mode only
	TokenNewline   = "Newline"   // record terminator

	// Field content token
	TokenText = "Text" // run of non-structural characters

	// Special token
	TokenEOF = "EOF" // End of file
)
