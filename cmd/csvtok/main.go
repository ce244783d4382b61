// Command csvtok tokenizes a CSV file and reports what it found.
//
// Usage:
//
//	csvtok data.csv                  # record and field counts
//	csvtok -dump -d ';' data.csv     # print every record
//	csvtok -detect -v - < data.csv   # detect the delimiter, log parser states
//	csvtok -verify -escape '\' data.csv
//
// Files are memory mapped; "-" reads standard input. -verify reads the whole
// input into memory and compares every record with the reference parser.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"reflect"
	"unicode/utf8"

	"github.com/shapestone/shape-csvtok/internal/parser"
	"github.com/shapestone/shape-csvtok/pkg/csv"
)

var (
	delimiter = flag.String("d", ",", "Field delimiter (one character)")
	detect    = flag.Bool("detect", false, "Detect the delimiter from the first records")
	escape    = flag.String("escape", "", "Escape character; empty for RFC 4180 quoting")
	width     = flag.String("width", "auto", "Scan width: auto, scalar, 128, 256, 512 or portable")
	chunk     = flag.Int("chunk", 0, "Read chunk size in bytes (default: 64 KiB)")
	verbose   = flag.Bool("v", false, "Log parser activity to stderr")
	dump      = flag.Bool("dump", false, "Print every record")
	verify    = flag.Bool("verify", false, "Compare against the reference parser")
)

func main() {
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Error: expected one input file or -\n\n")
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, flag.Arg(0), logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func options(logger *slog.Logger) (csv.ParserOptions[byte], error) {
	opts := csv.DefaultParserOptions[byte]()
	opts.Logger = logger

	d, err := singleRune("-d", *delimiter)
	if err != nil {
		return opts, err
	}
	opts.Dialect.Delimiter = d

	if *escape != "" {
		e, err := singleRune("-escape", *escape)
		if err != nil {
			return opts, err
		}
		opts.Dialect.Escape = e
	}

	w, err := csv.ParseWidth(*width)
	if err != nil {
		return opts, err
	}
	opts.ScanWidth = w

	if *detect {
		opts.Detector = csv.NewValuesDetector[byte](csv.ValuesDetectorOptions{})
	}
	if *verify {
		// The reference parser does not skip a BOM.
		opts.SkipBOM = false
	}
	return opts, opts.Validate()
}

func singleRune(flagName, s string) (rune, error) {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 || n != len(s) {
		return 0, fmt.Errorf("%s must be exactly one character, got %q", flagName, s)
	}
	return r, nil
}

func open(path string, verifying bool) (csv.BufferReader[byte], []byte, error) {
	streamOpts := csv.DefaultStreamOptions()
	if *chunk > 0 {
		streamOpts.ChunkSize = *chunk
	}

	if verifying {
		var data []byte
		var err error
		if path == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(path)
		}
		if err != nil {
			return nil, nil, err
		}
		return csv.NewBytesReader(data), data, nil
	}

	if path == "-" {
		r, err := csv.NewStreamReader(os.Stdin, streamOpts)
		return r, nil, err
	}
	r, err := csv.OpenFile(path, streamOpts)
	return r, nil, err
}

func run(ctx context.Context, path string, logger *slog.Logger) error {
	opts, err := options(logger)
	if err != nil {
		return err
	}
	src, data, err := open(path, *verify)
	if err != nil {
		return err
	}
	p, err := csv.NewParser(src, opts)
	if err != nil {
		src.Close()
		return err
	}
	defer p.Close()

	var (
		records, fields int
		got             [][]string
		row             []string
	)
	for rec, err := range p.All(ctx) {
		if err != nil {
			return err
		}
		var ferr error
		row, ferr = rec.AppendStrings(row[:0])
		if ferr != nil {
			return ferr
		}
		records++
		fields += len(row)
		if *dump {
			fmt.Printf("%d\t%q\n", rec.Index(), row)
		}
		if *verify {
			got = append(got, append([]string(nil), row...))
		}
	}

	dialect := p.Dialect()
	fmt.Printf("records: %d\nfields: %d\ndelimiter: %q\nnewline: %s\n",
		records, fields, rune(dialect.Delimiter()), dialect.Newline())

	if *verify {
		return compare(data, dialect, got)
	}
	return nil
}

// compare parses data with the reference parser using the dialect the fast
// parser settled on and reports the first difference.
func compare(data []byte, dialect csv.Dialect[byte], got [][]string) error {
	opts := parser.Options{
		Delimiter: rune(dialect.Delimiter()),
		Quote:     rune(dialect.Quote()),
		Newline:   "\n",
	}
	if e, ok := dialect.Escape(); ok {
		opts.Escape = rune(e)
	}
	if nl := dialect.Newline(); nl.Len() == 2 {
		opts.Newline = string([]byte{nl.First(), nl.Second()})
	} else if nl.Len() == 1 {
		opts.Newline = string([]byte{nl.First()})
	}

	want, err := parser.NewParserWithOptions(string(data), opts).Records()
	if err != nil {
		return fmt.Errorf("reference parser: %w", err)
	}
	if len(want) != len(got) {
		return fmt.Errorf("verify: %d records, reference has %d", len(got), len(want))
	}
	for i := range want {
		if !reflect.DeepEqual(got[i], want[i]) {
			return fmt.Errorf("verify: record %d is %q, reference has %q", i, got[i], want[i])
		}
	}
	fmt.Println("verify: ok")
	return nil
}
