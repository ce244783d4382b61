// Package csv provides a high-throughput CSV tokenizer.
//
// A Parser pulls buffered tokens from a BufferReader, finds every delimiter
// and newline with a vector scanner, and hands out records whose fields are
// decoded lazily. Fields without quotes or escapes are returned as views of
// the input; the rest are unescaped into scratch space owned by the parser.
//
// The parser is generic over its token type: byte for UTF-8 input and
// uint16 for UTF-16 code units.
//
// # Dialects
//
// The default dialect is RFC 4180 with a detected newline. Setting
// DialectOptions.Escape switches to escape mode, where the token after an
// escape is taken literally. A DelimiterDetector picks the delimiter from
// the first records:
//
//	opts := csv.DefaultParserOptions[byte]()
//	opts.Detector = csv.NewValuesDetector[byte](csv.ValuesDetectorOptions{})
//
// # Example usage
//
//	src, _ := csv.OpenFile("data.csv", csv.DefaultStreamOptions())
//	p, _ := csv.NewParser[byte](src, csv.DefaultParserOptions[byte]())
//	defer p.Close()
//
//	for rec, err := range p.All(ctx) {
//	    if err != nil {
//	        // handle error
//	    }
//	    for i, field := range rec.Fields() {
//	        fmt.Println(i, string(field))
//	    }
//	}
//
// # Thread Safety
//
// A Parser and its readers are used by one goroutine at a time. The
// package level functions create their own parser per call and are safe
// for concurrent use.
package csv

import (
	"context"
	"io"

	"github.com/shapestone/shape-core/pkg/ast"

	"github.com/shapestone/shape-csvtok/internal/fastparser"
)

// ReadAll parses data with the default options and returns every record.
func ReadAll(data []byte) ([][]string, error) {
	return ReadAllWithOptions(data, DefaultParserOptions[byte]())
}

// ReadAllWithOptions parses data with opts and returns every record.
func ReadAllWithOptions(data []byte, opts ParserOptions[byte]) ([][]string, error) {
	p, err := NewParser[byte](NewBytesReader(data), opts)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return collect(context.Background(), p)
}

func collect[T Token](ctx context.Context, p *Parser[T]) ([][]string, error) {
	var records [][]string
	for rec, err := range p.All(ctx) {
		if err != nil {
			return records, err
		}
		fields, err := rec.Strings()
		if err != nil {
			return records, err
		}
		records = append(records, fields)
	}
	return records, nil
}

// Parse parses CSV format into an AST from a string.
//
// Returns an ast.ArrayDataNode representing the parsed CSV:
//   - *ast.ArrayDataNode for the file (array of records)
//   - Each record is an *ast.ArrayDataNode of fields
//   - Each field is an *ast.LiteralNode containing a string value
//
// Positions carry the token offset, the 1-based record number and the
// 1-based field number.
//
// Example:
//
//	node, err := csv.Parse("name,age\nAlice,30\nBob,25")
//	arrayNode := node.(*ast.ArrayDataNode)
//	records := arrayNode.Elements()
//	// records[0] is the header row
func Parse(input string) (ast.SchemaNode, error) {
	p, err := NewParser[byte](NewBytesReader([]byte(input)), DefaultParserOptions[byte]())
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return buildAST(context.Background(), p)
}

// ParseReader parses CSV format into an AST from an io.Reader.
//
// The text is decoded from UTF-8 into UTF-16 code units and parsed
// incrementally, so offsets in positions and errors count code units.
func ParseReader(reader io.Reader) (ast.SchemaNode, error) {
	src, err := NewTextReader(reader, DefaultStreamOptions())
	if err != nil {
		return nil, err
	}
	p, err := NewParser[uint16](src, DefaultParserOptions[uint16]())
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return buildAST(context.Background(), p)
}

func buildAST[T Token](ctx context.Context, p *Parser[T]) (ast.SchemaNode, error) {
	records := make([]ast.SchemaNode, 0, 16)
	for rec, err := range p.All(ctx) {
		if err != nil {
			return nil, err
		}
		row := rec.Index() + 1
		fields := make([]ast.SchemaNode, 0, rec.FieldCount())
		for i, v := range rec.Fields() {
			pos := ast.NewPosition(int(rec.FieldOffset(i)), row, i+1)
			fields = append(fields, ast.NewLiteralNode(fastparser.TokensString(v), pos))
		}
		if err := rec.Err(); err != nil {
			return nil, err
		}
		records = append(records, ast.NewArrayDataNode(fields, ast.NewPosition(int(rec.Offset()), row, 1)))
	}
	return ast.NewArrayDataNode(records, ast.ZeroPosition()), nil
}

// NodeToRecords converts an AST produced by Parse back to string records.
// Nodes of other shapes yield no records.
func NodeToRecords(node ast.SchemaNode) [][]string {
	file, ok := node.(*ast.ArrayDataNode)
	if !ok {
		return [][]string{}
	}
	records := make([][]string, 0, len(file.Elements()))
	for _, elem := range file.Elements() {
		record, ok := elem.(*ast.ArrayDataNode)
		if !ok {
			continue
		}
		fields := make([]string, 0, len(record.Elements()))
		for _, f := range record.Elements() {
			if lit, ok := f.(*ast.LiteralNode); ok {
				s, _ := lit.Value().(string)
				fields = append(fields, s)
			}
		}
		records = append(records, fields)
	}
	return records
}

// Format returns the format identifier for this parser.
func Format() string {
	return "CSV"
}

// Validate checks if the input string is well-formed CSV: every field is
// quoted and escaped correctly. Fields are decoded and discarded.
//
//	if err := csv.Validate(input); err != nil {
//	    fmt.Println("Invalid CSV:", err)
//	}
func Validate(input string) error {
	p, err := NewParser[byte](NewBytesReader([]byte(input)), DefaultParserOptions[byte]())
	if err != nil {
		return err
	}
	defer p.Close()
	return drain(context.Background(), p)
}

// ValidateReader checks if the input from an io.Reader is well-formed CSV.
// The input is streamed, not read into memory at once.
func ValidateReader(reader io.Reader) error {
	src, err := NewStreamReader(reader, DefaultStreamOptions())
	if err != nil {
		return err
	}
	p, err := NewParser[byte](src, DefaultParserOptions[byte]())
	if err != nil {
		return err
	}
	defer p.Close()
	return drain(context.Background(), p)
}

func drain[T Token](ctx context.Context, p *Parser[T]) error {
	for rec, err := range p.All(ctx) {
		if err != nil {
			return err
		}
		for i := range rec.FieldCount() {
			if _, err := rec.Field(i); err != nil {
				return err
			}
		}
	}
	return nil
}
