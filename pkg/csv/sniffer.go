package csv

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/shapestone/shape-csvtok/internal/fastparser"
)

var (
	headerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`),      // snake_case or identifier
		regexp.MustCompile(`^[a-zA-Z]+[A-Z][a-zA-Z]*$`),     // camelCase
		regexp.MustCompile(`^[A-Z][a-z]+([ ][A-Z][a-z]+)*$`), // Title Case
	}
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),
		regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`),
	}
)

// Sniffer detects the dialect of a sample: newline, delimiter and whether
// the first row is a header.
type Sniffer struct {
	sample    []byte
	newline   fastparser.Newline[byte]
	delimiter rune
	hasHeader bool
	analyzed  bool
}

// NewSniffer creates a new Sniffer with a sample of CSV data.
// For best results, provide at least 2-3 lines of data.
func NewSniffer(sample string) *Sniffer {
	return &Sniffer{sample: []byte(sample)}
}

func (s *Sniffer) analyze() {
	if s.analyzed {
		return
	}
	s.analyzed = true

	d, _ := BuildDialect[byte](DefaultDialectOptions())
	nl, err := fastparser.DetectNewline(s.sample, d, true)
	if err != nil {
		nl = fastparser.LF[byte]()
	}
	s.newline = nl
	s.delimiter = s.detectDelimiter()
	s.hasHeader = s.detectHeader()
}

// DetectDelimiter returns the detected field delimiter.
// Common delimiters checked: comma, tab, semicolon, pipe.
func (s *Sniffer) DetectDelimiter() rune {
	s.analyze()
	return s.delimiter
}

// Newline returns the detected record separator.
func (s *Sniffer) Newline() string {
	s.analyze()
	return fastparser.TokensString([]byte{s.newline.First(), s.newline.Second()}[:s.newline.Len()])
}

// HasHeader returns true if the first row appears to be a header.
func (s *Sniffer) HasHeader() bool {
	s.analyze()
	return s.hasHeader
}

// Options returns parser options for the detected dialect.
func (s *Sniffer) Options() ParserOptions[byte] {
	s.analyze()
	opts := DefaultParserOptions[byte]()
	opts.Dialect.Delimiter = s.delimiter
	opts.Dialect.Newline = s.Newline()
	return opts
}

func (s *Sniffer) detectDelimiter() rune {
	records := splitRecords(s.sample, s.newline, MaxDetectionRecords, true)
	det := NewValuesDetector[byte](ValuesDetectorOptions{
		Candidates:      []rune{',', '\t', ';', '|'},
		RecordCountHint: MaxDetectionRecords,
	})
	if delim, _, ok := det.TryDetect(s.sample, records); ok {
		return rune(delim)
	}
	return ','
}

// detectHeader uses heuristics to determine if first row is a header.
func (s *Sniffer) detectHeader() bool {
	rows := s.rows(2)
	if len(rows) < 2 || len(rows[0]) == 0 {
		return false
	}

	headerScore := 0
	dataScore := 0
	for _, field := range rows[0] {
		field = strings.TrimSpace(field)
		if isLikelyHeader(field) {
			headerScore++
		}
		if isLikelyData(field) {
			dataScore++
		}
	}
	return headerScore > dataScore
}

// rows parses up to n non-empty rows of the sample. A sample cut in the
// middle of a quoted field yields the rows before it.
func (s *Sniffer) rows(n int) [][]string {
	opts := DefaultParserOptions[byte]()
	opts.Dialect.Delimiter = s.delimiter
	opts.Dialect.Newline = s.Newline()
	opts.ReadAheadCount = 64
	p, err := NewParser[byte](NewBytesReader(s.sample), opts)
	if err != nil {
		return nil
	}
	defer p.Close()

	var rows [][]string
	for rec, err := range p.All(context.Background()) {
		if err != nil || len(rows) == n {
			break
		}
		fields, err := rec.Strings()
		if err != nil {
			break
		}
		if len(fields) == 1 && fields[0] == "" {
			continue
		}
		rows = append(rows, fields)
	}
	return rows
}

// isLikelyHeader checks if a field looks like a header name.
func isLikelyHeader(s string) bool {
	if s == "" || isNumeric(s) {
		return false
	}
	for _, pattern := range headerPatterns {
		if pattern.MatchString(s) {
			return true
		}
	}
	return false
}

// isLikelyData checks if a field looks like data rather than a header.
func isLikelyData(s string) bool {
	if s == "" {
		return false
	}
	if isNumeric(s) || strings.Contains(s, "@") {
		return true
	}
	for _, pattern := range datePatterns {
		if pattern.MatchString(s) {
			return true
		}
	}
	return false
}

// isNumeric checks if a string represents a number.
func isNumeric(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}

	// Allow leading minus for negative numbers
	if s[0] == '-' {
		s = s[1:]
	}

	hasDot := false
	for _, ch := range s {
		if ch == '.' {
			if hasDot {
				return false
			}
			hasDot = true
		} else if !unicode.IsDigit(ch) {
			return false
		}
	}
	return len(s) > 0
}
