// Package parser implements a rune-at-a-time LL(1) CSV parser.
//
// It trades speed for obviousness: every production of the grammar below is
// one function, and field values are decoded from the token stream without
// any lookahead beyond the current token. The vectorized parser in
// internal/fastparser is checked against it.
//
//	File          = { Record } ;
//	Record        = Field { Delimiter Field } ( Newline | EOF ) ;
//	Field         = { Piece } ;
//	Piece         = Text | Quote | Escape Any | <Delimiter or Newline inside quotes> ;
package parser

import (
	"fmt"
	"strings"

	"github.com/shapestone/shape-core/pkg/ast"
	shapetokenizer "github.com/shapestone/shape-core/pkg/tokenizer"

	"github.com/shapestone/shape-csvtok/internal/fastparser"
	"github.com/shapestone/shape-csvtok/internal/tokenizer"
)

// Options configures the dialect. It mirrors tokenizer.Options.
type Options = tokenizer.Options

// DefaultOptions returns RFC 4180 options with LF records.
func DefaultOptions() Options {
	return tokenizer.DefaultOptions()
}

// Parser implements LL(1) recursive descent parsing for CSV.
// It maintains a single token lookahead for predictive parsing.
type Parser struct {
	tokenizer *shapetokenizer.Tokenizer
	current   *shapetokenizer.Token
	hasToken  bool
	opts      Options
	record    int
}

// piece is one unit of field content. Quotes that were not escaped keep
// their kind; everything else is text.
type piece struct {
	quote bool
	text  string
}

// NewParser creates a parser for the default dialect.
func NewParser(input string) *Parser {
	return NewParserWithOptions(input, DefaultOptions())
}

// NewParserWithOptions creates a parser for input.
func NewParserWithOptions(input string, opts Options) *Parser {
	return newParserWithStream(shapetokenizer.NewStream(input), opts)
}

// NewParserFromStream creates a parser over a pre-configured stream.
// This allows parsing from io.Reader using tokenizer.NewStreamFromReader.
func NewParserFromStream(stream shapetokenizer.Stream, opts Options) *Parser {
	return newParserWithStream(stream, opts)
}

func newParserWithStream(stream shapetokenizer.Stream, opts Options) *Parser {
	if opts.Newline == "" {
		opts.Newline = "\n"
	}
	tok := tokenizer.NewTokenizerWithStream(stream, opts)

	p := &Parser{
		tokenizer: &tok,
		opts:      opts,
	}
	p.advance() // Load first token
	return p
}

// Parse parses the input and returns an AST representing the CSV file.
//
// Returns *ast.ArrayDataNode - an array of records, where each record is an
// ArrayDataNode of LiteralNode fields holding string values.
func (p *Parser) Parse() (ast.SchemaNode, error) {
	records := make([]ast.SchemaNode, 0, 16)

	for p.hasToken {
		record, err := p.parseRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return ast.NewArrayDataNode(records, ast.ZeroPosition()), nil
}

// Records parses the input into field values.
func (p *Parser) Records() ([][]string, error) {
	node, err := p.Parse()
	if err != nil {
		return nil, err
	}
	file := node.(*ast.ArrayDataNode)

	var out [][]string
	for _, elem := range file.Elements() {
		record := elem.(*ast.ArrayDataNode)
		fields := make([]string, 0, len(record.Elements()))
		for _, f := range record.Elements() {
			fields = append(fields, f.(*ast.LiteralNode).Value().(string))
		}
		out = append(out, fields)
	}
	return out, nil
}

// parseRecord parses a single record.
//
// Grammar:
//
//	Record = Field { Delimiter Field } ( Newline | EOF ) ;
func (p *Parser) parseRecord() (*ast.ArrayDataNode, error) {
	startPos := p.position()
	fields := make([]ast.SchemaNode, 0, 8)

	for {
		fieldPos := p.position()
		value, err := p.parseField()
		if err != nil {
			return nil, fmt.Errorf("record %d, field %d at %s: %w", p.record, len(fields), fieldPos.String(), err)
		}
		fields = append(fields, ast.NewLiteralNode(value, fieldPos))

		if p.peekKind() != tokenizer.TokenDelimiter {
			break
		}
		p.advance() // consume delimiter
	}

	// EOF is also a valid line terminator (no need to advance)
	if p.peekKind() == tokenizer.TokenNewline {
		p.advance()
	}
	p.record++

	return ast.NewArrayDataNode(fields, startPos), nil
}

// parseField collects the pieces of one field and decodes them.
//
// Quote state flips on every unescaped quote, wherever it appears; delimiters
// and newlines only end the field outside quotes. Whether the quotes were
// well placed is decided afterwards, by decodeQuoted or decodeEscaped.
func (p *Parser) parseField() (string, error) {
	var pieces []piece
	quoted := false

	for p.hasToken {
		kind := p.current.Kind()
		if !quoted && (kind == tokenizer.TokenDelimiter || kind == tokenizer.TokenNewline) {
			break
		}

		switch kind {
		case tokenizer.TokenEscape:
			p.advance()
			if !p.hasToken {
				return "", fastparser.ErrDanglingEscape
			}
			// The escaped token is literal, whatever its kind.
			pieces = append(pieces, piece{text: p.current.ValueString()})
		case tokenizer.TokenQuote:
			quoted = !quoted
			pieces = append(pieces, piece{quote: true, text: p.current.ValueString()})
		default:
			pieces = append(pieces, piece{text: p.current.ValueString()})
		}
		p.advance()
	}

	if quoted {
		return "", fastparser.ErrUnbalancedQuotes
	}
	if p.opts.Escape != 0 {
		return decodeEscaped(pieces)
	}
	return decodeQuoted(pieces)
}

// decodeQuoted applies RFC 4180: a field with quotes must be wrapped in a
// pair, and every quote inside the pair must be doubled.
func decodeQuoted(pieces []piece) (string, error) {
	if countQuotes(pieces) == 0 {
		return join(pieces), nil
	}
	if !wrapped(pieces) {
		return "", fastparser.ErrInvalidQuote
	}

	var sb strings.Builder
	body := pieces[1 : len(pieces)-1]
	for i := 0; i < len(body); i++ {
		if !body[i].quote {
			sb.WriteString(body[i].text)
			continue
		}
		if i+1 >= len(body) || !body[i+1].quote {
			return "", fastparser.ErrInvalidQuote
		}
		sb.WriteString(body[i].text)
		i++
	}
	return sb.String(), nil
}

// decodeEscaped applies escape mode: zero quotes, or exactly one wrapping
// pair. Escapes were resolved while collecting pieces.
func decodeEscaped(pieces []piece) (string, error) {
	switch countQuotes(pieces) {
	case 0:
		return join(pieces), nil
	case 2:
		if !wrapped(pieces) {
			return "", fastparser.ErrInvalidQuote
		}
		return join(pieces[1 : len(pieces)-1]), nil
	}
	return "", fastparser.ErrEscapeQuotes
}

func countQuotes(pieces []piece) int {
	n := 0
	for _, pc := range pieces {
		if pc.quote {
			n++
		}
	}
	return n
}

func wrapped(pieces []piece) bool {
	return len(pieces) >= 2 && pieces[0].quote && pieces[len(pieces)-1].quote
}

func join(pieces []piece) string {
	var sb strings.Builder
	for _, pc := range pieces {
		sb.WriteString(pc.text)
	}
	return sb.String()
}

// Helper methods

// peekKind returns the current token kind, or "" at EOF.
func (p *Parser) peekKind() string {
	if !p.hasToken || p.current == nil {
		return ""
	}
	return p.current.Kind()
}

// advance moves to next token.
func (p *Parser) advance() {
	token, ok := p.tokenizer.NextToken()
	if ok {
		p.current = token
		p.hasToken = true
	} else {
		p.hasToken = false
		p.current = nil
	}
}

// position returns current position for AST nodes.
func (p *Parser) position() ast.Position {
	if p.hasToken && p.current != nil {
		return ast.NewPosition(
			p.current.Offset(),
			p.current.Row(),
			p.current.Column(),
		)
	}
	return ast.ZeroPosition()
}
