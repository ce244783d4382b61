package csv_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/shapestone/shape-csvtok/pkg/csv"
)

func withEscape(r rune) func(*csv.ParserOptions[byte]) {
	return func(o *csv.ParserOptions[byte]) { o.Dialect.Escape = r }
}

func TestParserRead(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  func(*csv.ParserOptions[byte])
		want  [][]string
	}{
		{
			name:  "two records",
			input: "a,b,c\n1,2,3\n",
			want:  [][]string{{"a", "b", "c"}, {"1", "2", "3"}},
		},
		{
			name:  "quoted delimiter and doubled quote",
			input: "\"a,b\",\"c\"\"d\",e\n",
			want:  [][]string{{"a,b", `c"d`, "e"}},
		},
		{
			name:  "escaped delimiter",
			input: "a\\,b,c\n",
			opts:  withEscape('\\'),
			want:  [][]string{{"a,b", "c"}},
		},
		{
			name:  "escaped quote inside quotes",
			input: "\"a\\\"b\",c\n",
			opts:  withEscape('\\'),
			want:  [][]string{{`a"b`, "c"}},
		},
		{
			name:  "quoted delimiter in escape mode",
			input: "\"x,y\",z\n",
			opts:  withEscape('\\'),
			want:  [][]string{{"x,y", "z"}},
		},
		{
			name:  "no trailing newline",
			input: "a,b\nc,d",
			want:  [][]string{{"a", "b"}, {"c", "d"}},
		},
		{
			name:  "crlf",
			input: "a,b\r\nc,d\r\n",
			want:  [][]string{{"a", "b"}, {"c", "d"}},
		},
		{
			name:  "lone carriage return in crlf data",
			input: "a\rb,c\r\nd,e\r\n",
			want:  [][]string{{"a\rb", "c"}, {"d", "e"}},
		},
		{
			name:  "newline inside quotes",
			input: "\"multi\nline\",x\ny,z\n",
			want:  [][]string{{"multi\nline", "x"}, {"y", "z"}},
		},
		{
			name:  "empty fields",
			input: ",,\n",
			want:  [][]string{{"", "", ""}},
		},
		{
			name:  "trailing delimiter at end of input",
			input: "a,",
			want:  [][]string{{"a", ""}},
		},
		{
			name:  "empty line",
			input: "a\n\nb\n",
			want:  [][]string{{"a"}, {""}, {"b"}},
		},
		{
			name:  "empty quoted field",
			input: "\"\",a\n",
			want:  [][]string{{"", "a"}},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
		{
			name:  "byte order mark",
			input: "\uFEFFa,b\n",
			want:  [][]string{{"a", "b"}},
		},
		{
			name:  "byte order mark kept",
			input: "\uFEFFa,b\n",
			opts:  func(o *csv.ParserOptions[byte]) { o.SkipBOM = false },
			want:  [][]string{{"\uFEFFa", "b"}},
		},
		{
			name:  "configured newline",
			input: "a,b|c,d|",
			opts:  func(o *csv.ParserOptions[byte]) { o.Dialect.Newline = "|" },
			want:  [][]string{{"a", "b"}, {"c", "d"}},
		},
		{
			name:  "tab delimiter",
			input: "a\tb\n",
			opts:  func(o *csv.ParserOptions[byte]) { o.Dialect.Delimiter = '\t' },
			want:  [][]string{{"a", "b"}},
		},
		{
			name:  "trim both",
			input: " a , \"b\" \n",
			opts:  func(o *csv.ParserOptions[byte]) { o.Trim = csv.TrimBoth },
			want:  [][]string{{"a", "b"}},
		},
		{
			name:  "trim leading",
			input: "  a ,b\n",
			opts:  func(o *csv.ParserOptions[byte]) { o.Trim = csv.TrimLeading },
			want:  [][]string{{"a ", "b"}},
		},
		{
			name:  "skip comments",
			input: "#c\na,b\n#d\ne,f\n",
			opts: func(o *csv.ParserOptions[byte]) {
				o.SkipRecord = func(r csv.Record[byte]) bool {
					raw := r.Raw()
					return len(raw) > 0 && raw[0] == '#'
				}
			},
			want: [][]string{{"a", "b"}, {"e", "f"}},
		},
		{
			name:  "one record at a time",
			input: "a,b\nc,d\ne,f\n",
			opts:  func(o *csv.ParserOptions[byte]) { o.Dialect.NoReadAhead = true },
			want:  [][]string{{"a", "b"}, {"c", "d"}, {"e", "f"}},
		},
		{
			name:  "tiny read ahead",
			input: "a,b,c,d,e,f,g\n1,2,3,4,5,6,7\n",
			opts:  func(o *csv.ParserOptions[byte]) { o.ReadAheadCount = 1 },
			want:  [][]string{{"a", "b", "c", "d", "e", "f", "g"}, {"1", "2", "3", "4", "5", "6", "7"}},
		},
	}

	for _, tt := range tests {
		for _, w := range []csv.Width{csv.WidthScalar, csv.Width128, csv.Width256, csv.Width512, csv.WidthPortable} {
			t.Run(tt.name+"/"+w.String(), func(t *testing.T) {
				opts := csv.DefaultParserOptions[byte]()
				opts.ScanWidth = w
				if tt.opts != nil {
					tt.opts(&opts)
				}
				got, err := parseString(t, tt.input, opts)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if !reflect.DeepEqual(got, tt.want) {
					t.Errorf("got %q, want %q", got, tt.want)
				}
			})
		}
	}
}

func TestParserMalformed(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		escape  rune
		wantErr error
		// records that parse before the error
		before int
	}{
		{name: "unterminated quote", input: "\"a,b\n", wantErr: csv.ErrUnbalancedQuotes},
		{name: "unterminated quote in later record", input: "x,y\n\"a,b\n", wantErr: csv.ErrUnbalancedQuotes, before: 1},
		{name: "text after closing quote", input: "\"a\"b,c\n", wantErr: csv.ErrInvalidQuote},
		{name: "quote inside unquoted field", input: "a\"\"b,c\n", wantErr: csv.ErrInvalidQuote},
		{name: "dangling escape", input: "a\\", escape: '\\', wantErr: csv.ErrDanglingEscape},
		{name: "three quotes in escape mode", input: "\"a\"\"\n", escape: '\\', wantErr: csv.ErrEscapeQuotes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := csv.DefaultParserOptions[byte]()
			opts.Dialect.Escape = tt.escape
			got, err := parseString(t, tt.input, opts)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got error %v, want %v", err, tt.wantErr)
			}
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error %T is not a *ParseError", err)
			}
			if pe.Record != tt.before {
				t.Errorf("ParseError.Record = %d, want %d", pe.Record, tt.before)
			}
			if len(got) != tt.before {
				t.Errorf("got %d records before the error, want %d", len(got), tt.before)
			}
		})
	}
}

func TestParserErrorIsSticky(t *testing.T) {
	p := newParser(t, csv.NewBytesReader([]byte("\"a,b\nc,d\n")), csv.DefaultParserOptions[byte]())
	ctx := context.Background()

	_, err1 := p.Read(ctx)
	if err1 == nil {
		t.Fatal("expected an error")
	}
	_, err2 := p.Read(ctx)
	if err2 != err1 {
		t.Errorf("second Read returned %v, want the first error %v", err2, err1)
	}
}

func TestParserErrorExposesContent(t *testing.T) {
	input := "ok\n\"se\"cret\n"
	for _, expose := range []bool{false, true} {
		opts := csv.DefaultParserOptions[byte]()
		opts.ExposeContent = expose
		_, err := parseString(t, input, opts)

		var fe *csv.FieldError
		if !errors.As(err, &fe) {
			t.Fatalf("expose=%v: got %v, want a *FieldError", expose, err)
		}
		if fe.Structure != `"xx"xxxx` {
			t.Errorf("expose=%v: Structure = %q", expose, fe.Structure)
		}
		if got := strings.Contains(err.Error(), "cret"); got != expose {
			t.Errorf("expose=%v: error %q mentions the content: %v", expose, err, got)
		}
	}
}

func TestParserFieldViews(t *testing.T) {
	data := []byte("abc,\"q\"\"x\",\"plain\"\n")
	p := newParser(t, csv.NewBytesReader(data), csv.DefaultParserOptions[byte]())

	rec, err := p.Read(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	f0, _ := rec.Field(0)
	if &f0[0] != &data[0] {
		t.Error("unquoted field was copied")
	}
	f2, _ := rec.Field(2)
	if &f2[0] != &data[12] {
		t.Error("field wrapped in quotes was copied")
	}
	f1, _ := rec.Field(1)
	if string(f1) != `q"x` {
		t.Errorf("field 1 = %q", f1)
	}
	if _, err := rec.Field(3); err == nil {
		t.Error("expected an out of range error")
	}
}

func TestRecordPositions(t *testing.T) {
	p := newParser(t, csv.NewBytesReader([]byte("a,bb\r\nccc,\"d\"\r\n")), csv.DefaultParserOptions[byte]())
	ctx := context.Background()

	rec, err := p.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Index() != 0 || rec.Offset() != 0 || rec.FieldOffset(1) != 2 || string(rec.Raw()) != "a,bb" {
		t.Errorf("record 0: index %d offset %d field offset %d raw %q",
			rec.Index(), rec.Offset(), rec.FieldOffset(1), rec.Raw())
	}

	rec, err = p.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Index() != 1 || rec.Offset() != 6 || rec.FieldOffset(1) != 10 || string(rec.Raw()) != `ccc,"d"` {
		t.Errorf("record 1: index %d offset %d field offset %d raw %q",
			rec.Index(), rec.Offset(), rec.FieldOffset(1), rec.Raw())
	}
}

func TestRecordExpires(t *testing.T) {
	p := newParser(t, csv.NewBytesReader([]byte("a\nb\n")), csv.DefaultParserOptions[byte]())
	ctx := context.Background()

	first, err := p.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Read(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := first.Field(0); !errors.Is(err, csv.ErrRecordExpired) {
		t.Errorf("got %v, want ErrRecordExpired", err)
	}

	var zero csv.Record[byte]
	if _, err := zero.Field(0); !errors.Is(err, csv.ErrRecordExpired) {
		t.Errorf("zero record: got %v, want ErrRecordExpired", err)
	}
}

func TestRecordFieldsIterator(t *testing.T) {
	p := newParser(t, csv.NewBytesReader([]byte("a,\"b\"\"\",c\n")), csv.DefaultParserOptions[byte]())
	rec, err := p.Read(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	var got []string
	for i, f := range rec.Fields() {
		if i != len(got) {
			t.Fatalf("index %d out of order", i)
		}
		got = append(got, string(f))
	}
	if err := rec.Err(); err != nil {
		t.Fatal(err)
	}
	if want := []string{"a", `b"`, "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRecordFieldsStopsOnError(t *testing.T) {
	p := newParser(t, csv.NewBytesReader([]byte("a,\"b\"x,c\n")), csv.DefaultParserOptions[byte]())
	rec, err := p.Read(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// The scanner sees balanced quotes; the decoder rejects the field.
	n := 0
	for range rec.Fields() {
		n++
	}
	if n != 1 {
		t.Errorf("iterated %d fields, want 1", n)
	}
	err = rec.Err()
	if !errors.Is(err, csv.ErrInvalidQuote) {
		t.Errorf("got %v, want ErrInvalidQuote", err)
	}
}

func TestParserStates(t *testing.T) {
	var logs bytes.Buffer
	opts := csv.DefaultParserOptions[byte]()
	opts.Logger = slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	p, err := csv.NewParser(csv.NewBytesReader([]byte("a\nb\n")), opts)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if p.State() != csv.StateInitialized {
		t.Errorf("new parser: state %s", p.State())
	}
	if _, err := p.Read(ctx); err != nil {
		t.Fatal(err)
	}
	if p.State() != csv.StateReaderCompleted {
		t.Errorf("after first record: state %s", p.State())
	}
	if _, err := p.Read(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Read(ctx); err != io.EOF {
		t.Fatalf("got %v, want io.EOF", err)
	}
	if p.State() != csv.StateReadToEnd {
		t.Errorf("after EOF: state %s", p.State())
	}
	if _, err := p.Read(ctx); err != io.EOF {
		t.Errorf("Read after EOF: got %v, want io.EOF", err)
	}

	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if p.State() != csv.StateDisposed {
		t.Errorf("after Close: state %s", p.State())
	}
	if _, err := p.Read(ctx); !errors.Is(err, csv.ErrDisposed) {
		t.Errorf("Read after Close: got %v, want ErrDisposed", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if p.Reset() {
		t.Error("Reset after Close succeeded")
	}

	for _, want := range []string{"newline detected", "parser started", "to=read-to-end", "to=disposed"} {
		if !strings.Contains(logs.String(), want) {
			t.Errorf("log does not mention %q:\n%s", want, logs.String())
		}
	}
}

func TestParserStatesStream(t *testing.T) {
	var logs bytes.Buffer
	opts := csv.DefaultParserOptions[byte]()
	opts.Logger = slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	src, err := csv.NewStreamReader(strings.NewReader("a,b\nc,d\ne,f\n"), csv.StreamOptions{ChunkSize: 4})
	if err != nil {
		t.Fatal(err)
	}
	p := newParser[byte](t, src, opts)
	ctx := context.Background()

	var records int
	for {
		_, err := p.Read(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		records++
		if p.State() != csv.StateReading {
			t.Errorf("after record %d: state %s, want %s", records, p.State(), csv.StateReading)
		}
	}
	if records != 3 {
		t.Errorf("got %d records, want 3", records)
	}
	if p.State() != csv.StateReadToEnd {
		t.Errorf("after EOF: state %s", p.State())
	}

	for _, want := range []string{"to=reading", "to=data-exhausted", "to=reader-completed", "to=read-to-end"} {
		if !strings.Contains(logs.String(), want) {
			t.Errorf("log does not mention %q:\n%s", want, logs.String())
		}
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state csv.State
		want  string
	}{
		{csv.StateInitialized, "initialized"},
		{csv.StateReading, "reading"},
		{csv.StateDataExhausted, "data-exhausted"},
		{csv.StateReaderCompleted, "reader-completed"},
		{csv.StateReadToEnd, "read-to-end"},
		{csv.StateDisposed, "disposed"},
		{csv.State(42), "State(42)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}

func TestRecordAfterClose(t *testing.T) {
	p, err := csv.NewParser(csv.NewBytesReader([]byte("a\n")), csv.DefaultParserOptions[byte]())
	if err != nil {
		t.Fatal(err)
	}
	rec, err := p.Read(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	p.Close()
	if _, err := rec.Field(0); !errors.Is(err, csv.ErrDisposed) {
		t.Errorf("got %v, want ErrDisposed", err)
	}
}

func TestParserReset(t *testing.T) {
	input := []byte("sep=;\na;b\nc;d\n")
	opts := csv.DefaultParserOptions[byte]()
	opts.Detector = csv.NewPrefixDetector[byte]("", false)
	src := newChunkedReader(input, 4, 9)
	p := newParser[byte](t, src, opts)

	want := [][]string{{"a", "b"}, {"c", "d"}}
	for round := range 2 {
		got, err := readAll(t, p)
		if err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("round %d: got %q, want %q", round, got, want)
		}
		if !p.Reset() {
			t.Fatalf("round %d: Reset failed", round)
		}
		if p.State() != csv.StateInitialized {
			t.Errorf("round %d: state after Reset %s", round, p.State())
		}
	}
	if src.resets != 2 {
		t.Errorf("reader reset %d times, want 2", src.resets)
	}
}

func TestParserResetWithoutRewind(t *testing.T) {
	src, err := csv.NewStreamReader(io.MultiReader(strings.NewReader("a\n")), csv.DefaultStreamOptions())
	if err != nil {
		t.Fatal(err)
	}
	p := newParser[byte](t, src, csv.DefaultParserOptions[byte]())
	if p.Reset() {
		t.Error("Reset succeeded on a reader that cannot seek")
	}
}

func TestParserContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newParser(t, csv.NewBytesReader([]byte("a\n")), csv.DefaultParserOptions[byte]())
	if _, err := p.Read(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	// Context errors are not sticky.
	rec, err := p.Read(context.Background())
	if err != nil {
		t.Fatalf("Read after cancellation: %v", err)
	}
	if got, _ := rec.Strings(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("got %q", got)
	}
}

func TestParserReadAsync(t *testing.T) {
	p := newParser(t, csv.NewBytesReader([]byte("a,b\nc,d\n")), csv.DefaultParserOptions[byte]())
	ctx := context.Background()

	var got [][]string
	for {
		res, ok := <-p.ReadAsync(ctx)
		if !ok {
			t.Fatal("channel closed without a result")
		}
		if res.Err == io.EOF {
			break
		}
		if res.Err != nil {
			t.Fatal(res.Err)
		}
		fields, err := res.Record.Strings()
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, fields)
	}
	if want := [][]string{{"a", "b"}, {"c", "d"}}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestParserAll(t *testing.T) {
	p := newParser(t, csv.NewBytesReader([]byte("1\n2\n3\n")), csv.DefaultParserOptions[byte]())
	ctx := context.Background()

	var got []string
	for rec, err := range p.All(ctx) {
		if err != nil {
			t.Fatal(err)
		}
		f, _ := rec.Field(0)
		got = append(got, string(f))
		if len(got) == 2 {
			break
		}
	}
	for rec, err := range p.All(ctx) {
		if err != nil {
			t.Fatal(err)
		}
		f, _ := rec.Field(0)
		got = append(got, string(f))
	}
	if want := []string{"1", "2", "3"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestParserAllYieldsError(t *testing.T) {
	p := newParser(t, csv.NewBytesReader([]byte("a\n\"b\n")), csv.DefaultParserOptions[byte]())
	var errs int
	for _, err := range p.All(context.Background()) {
		if err != nil {
			errs++
		}
	}
	if errs != 1 {
		t.Errorf("got %d errors, want 1", errs)
	}
}

func TestParserNoNewline(t *testing.T) {
	input := strings.Repeat("x", 2048)
	_, err := parseString(t, input+"\n", csv.DefaultParserOptions[byte]())
	var fe *csv.FormatError
	if !errors.As(err, &fe) || !errors.Is(err, csv.ErrNoNewline) {
		t.Fatalf("got %v, want a FormatError wrapping ErrNoNewline", err)
	}

	// A configured newline needs no detection.
	opts := csv.DefaultParserOptions[byte]()
	opts.Dialect.Newline = "\n"
	got, err := parseString(t, input+"\n", opts)
	if err != nil || len(got) != 1 || got[0][0] != input {
		t.Errorf("configured newline: %d records, err %v", len(got), err)
	}
}

func TestParserDetectsCRLF(t *testing.T) {
	p := newParser(t, csv.NewBytesReader([]byte("\"x\ny\",a\r\nb\r\n")), csv.DefaultParserOptions[byte]())
	got, err := readAll(t, p)
	if err != nil {
		t.Fatal(err)
	}
	if nl := p.Dialect().Newline(); nl.Len() != 2 {
		t.Errorf("detected %s, want CRLF", nl)
	}
	if want := [][]string{{"x\ny", "a"}, {"b"}}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestParserUTF16(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  func(*csv.ParserOptions[uint16])
		want  [][]string
	}{
		{
			name:  "ascii dialect",
			input: "ä,\"b\"\"😀\"\r\nc,d\r\n",
			want:  [][]string{{"ä", `b"😀`}, {"c", "d"}},
		},
		{
			name:  "non-ascii delimiter",
			input: "a¦b¦\"c¦d\"\nx¦y¦z\n",
			opts:  func(o *csv.ParserOptions[uint16]) { o.Dialect.Delimiter = '¦' },
			want:  [][]string{{"a", "b", "c¦d"}, {"x", "y", "z"}},
		},
		{
			name:  "non-ascii escape",
			input: "a§,b,c\n",
			opts:  func(o *csv.ParserOptions[uint16]) { o.Dialect.Escape = '§' },
			want:  [][]string{{"a,b", "c"}},
		},
		{
			name:  "byte order mark",
			input: "\uFEFFa\n",
			want:  [][]string{{"a"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := csv.DefaultParserOptions[uint16]()
			if tt.opts != nil {
				tt.opts(&opts)
			}
			got, err := parseUTF16(t, tt.input, opts)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParserRejectsNonASCIIByteDialect(t *testing.T) {
	opts := csv.DefaultParserOptions[byte]()
	opts.Dialect.Delimiter = '¦'
	if _, err := csv.NewParser(csv.NewBytesReader([]byte("a")), opts); err == nil {
		t.Error("expected an error for a non-ASCII byte delimiter")
	}
}

func TestParserUTF16Offsets(t *testing.T) {
	data := utf16.Encode([]rune("😀,b\n"))
	p := newParser(t, csv.NewBytesReader(data), csv.DefaultParserOptions[uint16]())
	rec, err := p.Read(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// The emoji takes two code units.
	if got := rec.FieldOffset(1); got != 3 {
		t.Errorf("FieldOffset(1) = %d, want 3", got)
	}
}
