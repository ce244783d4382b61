package parser

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/shapestone/shape-core/pkg/ast"
	shapetokenizer "github.com/shapestone/shape-core/pkg/tokenizer"

	"github.com/shapestone/shape-csvtok/internal/fastparser"
)

func TestParser_Records(t *testing.T) {
	escape := Options{Delimiter: ',', Quote: '"', Escape: '\\', Newline: "\n"}
	crlf := Options{Delimiter: ',', Quote: '"', Newline: "\r\n"}

	tests := []struct {
		name  string
		input string
		opts  Options
		want  [][]string
	}{
		{name: "empty input", input: "", opts: DefaultOptions(), want: nil},
		{name: "one record", input: "a,b,c\n", opts: DefaultOptions(), want: [][]string{{"a", "b", "c"}}},
		{name: "no trailing newline", input: "a,b\nc,d", opts: DefaultOptions(), want: [][]string{{"a", "b"}, {"c", "d"}}},
		{name: "empty line", input: "a\n\nb\n", opts: DefaultOptions(), want: [][]string{{"a"}, {""}, {"b"}}},
		{name: "trailing delimiter", input: "a,", opts: DefaultOptions(), want: [][]string{{"a", ""}}},
		{name: "quoted", input: "\"a,b\",\"c\"\"d\"\n", opts: DefaultOptions(), want: [][]string{{"a,b", `c"d`}}},
		{name: "newline in quotes", input: "\"x\ny\",z\n", opts: DefaultOptions(), want: [][]string{{"x\ny", "z"}}},
		{name: "empty quoted", input: "\"\",\"\"\"\"\n", opts: DefaultOptions(), want: [][]string{{"", `"`}}},
		{name: "crlf", input: "a\rb,c\r\nd\r\n", opts: crlf, want: [][]string{{"a\rb", "c"}, {"d"}}},
		{name: "escaped delimiter", input: "a\\,b,c\n", opts: escape, want: [][]string{{"a,b", "c"}}},
		{name: "escaped quote in quotes", input: "\"a\\\"b\",c\n", opts: escape, want: [][]string{{`a"b`, "c"}}},
		{name: "escaped newline", input: "a\\\nb\n", opts: escape, want: [][]string{{"a\nb"}}},
		{name: "escaped escape", input: "a\\\\\n", opts: escape, want: [][]string{{"a\\"}}},
		{name: "unicode", input: "名前,😀\n", opts: DefaultOptions(), want: [][]string{{"名前", "😀"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewParserWithOptions(tt.input, tt.opts).Records()
			if err != nil {
				t.Fatalf("Records() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParser_Errors(t *testing.T) {
	escape := Options{Delimiter: ',', Quote: '"', Escape: '\\', Newline: "\n"}

	tests := []struct {
		name    string
		input   string
		opts    Options
		wantErr error
	}{
		{name: "unterminated quote", input: "\"a,b\n", opts: DefaultOptions(), wantErr: fastparser.ErrUnbalancedQuotes},
		{name: "text after quote", input: "\"a\"b,c\n", opts: DefaultOptions(), wantErr: fastparser.ErrInvalidQuote},
		{name: "quote in unquoted field", input: "a\"\"b\n", opts: DefaultOptions(), wantErr: fastparser.ErrInvalidQuote},
		{name: "lone inner quote", input: "\"a\"\"\"b\"\"\n", opts: DefaultOptions(), wantErr: fastparser.ErrInvalidQuote},
		{name: "dangling escape", input: "a\\", opts: escape, wantErr: fastparser.ErrDanglingEscape},
		{name: "four quotes in escape mode", input: "\"a\"\"b\"\n", opts: escape, wantErr: fastparser.ErrEscapeQuotes},
		{name: "unwrapped pair in escape mode", input: "a\"b\"\n", opts: escape, wantErr: fastparser.ErrInvalidQuote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParserWithOptions(tt.input, tt.opts).Records()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
			if !strings.HasPrefix(err.Error(), "record 0, field 0 at ") {
				t.Errorf("message %q lacks the record position", err)
			}
		})
	}
}

func TestParser_ErrorPosition(t *testing.T) {
	_, err := NewParser("a,b\nc,\"d\n").Records()
	if !errors.Is(err, fastparser.ErrUnbalancedQuotes) {
		t.Fatalf("got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "record 1, field 1 ") {
		t.Errorf("message %q", err)
	}
}

func TestParser_ASTShape(t *testing.T) {
	node, err := NewParser("a,b\nc\n").Parse()
	if err != nil {
		t.Fatal(err)
	}
	file, ok := node.(*ast.ArrayDataNode)
	if !ok {
		t.Fatalf("got %T, want *ast.ArrayDataNode", node)
	}
	if len(file.Elements()) != 2 {
		t.Fatalf("got %d records, want 2", len(file.Elements()))
	}
	first := file.Elements()[0].(*ast.ArrayDataNode)
	if lit, ok := first.Elements()[1].(*ast.LiteralNode); !ok || lit.Value() != "b" {
		t.Errorf("field 1 = %v", first.Elements()[1])
	}
}

func TestNewParserFromStream(t *testing.T) {
	stream := shapetokenizer.NewStreamFromReader(strings.NewReader("x;\"y;z\"\n"))
	got, err := NewParserFromStream(stream, Options{Delimiter: ';', Quote: '"'}).Records()
	if err != nil {
		t.Fatal(err)
	}
	if want := [][]string{{"x", "y;z"}}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}
