package csv

import (
	"context"
	"io"
)

// Row is a record copied out of the parser's buffers, with optional
// name-based access through the header row.
type Row struct {
	fields  []string
	headers []string
}

// Get gets the field value at the specified index.
// Returns (value, false) if the index is out of bounds.
func (r Row) Get(index int) (string, bool) {
	if index < 0 || index >= len(r.fields) {
		return "", false
	}
	return r.fields[index], true
}

// GetByName gets the field value by header name.
// Returns (value, false) if the header name is not found or if no headers are set.
func (r Row) GetByName(name string) (string, bool) {
	for i, header := range r.headers {
		if header == name {
			return r.Get(i)
		}
	}
	return "", false
}

// Fields returns a copy of the field values.
func (r Row) Fields() []string {
	fields := make([]string, len(r.fields))
	copy(fields, r.fields)
	return fields
}

// Len returns the number of fields in the row.
func (r Row) Len() int {
	return len(r.fields)
}

// Scanner provides a streaming interface for reading CSV records one at a time.
// Records are parsed incrementally from the reader, so memory use does not
// grow with the input.
//
// Example usage:
//
//	file, _ := os.Open("data.csv")
//	defer file.Close()
//
//	scanner := csv.NewScanner(file).SetHasHeaders(true)
//	for scanner.Scan() {
//	    row := scanner.Row()
//	    name, _ := row.GetByName("name")
//	    fmt.Println(name)
//	}
//	if err := scanner.Err(); err != nil {
//	    // handle error
//	}
type Scanner struct {
	reader      io.Reader
	opts        ParserOptions[byte]
	ctx         context.Context
	parser      *Parser[byte]
	hasHeaders  bool
	reuseRecord bool
	headers     []string
	fields      []string
	err         error
	done        bool
}

// NewScanner creates a new Scanner that reads CSV from the given io.Reader.
// By default, the scanner assumes no headers and detects the newline.
func NewScanner(reader io.Reader) *Scanner {
	return &Scanner{
		reader: reader,
		opts:   DefaultParserOptions[byte](),
		ctx:    context.Background(),
	}
}

// SetHasHeaders sets whether the first row should be treated as headers.
// Returns the Scanner for method chaining.
func (s *Scanner) SetHasHeaders(hasHeaders bool) *Scanner {
	s.hasHeaders = hasHeaders
	return s
}

// SetReuseRecord makes successive rows share one backing slice.
// Returns the Scanner for method chaining.
func (s *Scanner) SetReuseRecord(reuse bool) *Scanner {
	s.reuseRecord = reuse
	return s
}

// SetDelimiter sets the field delimiter. It has no effect after the first Scan.
// Returns the Scanner for method chaining.
func (s *Scanner) SetDelimiter(delimiter rune) *Scanner {
	s.opts.Dialect.Delimiter = delimiter
	return s
}

// SetOptions replaces the parser options. It has no effect after the first Scan.
// Returns the Scanner for method chaining.
func (s *Scanner) SetOptions(opts ParserOptions[byte]) *Scanner {
	s.opts = opts
	return s
}

// SetContext sets the context passed to the underlying reads.
// Returns the Scanner for method chaining.
func (s *Scanner) SetContext(ctx context.Context) *Scanner {
	s.ctx = ctx
	return s
}

// Scan advances the scanner to the next record.
// It returns false when there are no more records or an error occurs.
// After Scan returns false, the Err method will return any error that occurred.
func (s *Scanner) Scan() bool {
	if s.done {
		return false
	}
	if s.parser == nil {
		if !s.open() {
			return false
		}
		if s.hasHeaders {
			if !s.next() {
				return false
			}
			s.headers = append([]string(nil), s.fields...)
		}
	}
	return s.next()
}

func (s *Scanner) open() bool {
	src, err := NewStreamReader(s.reader, DefaultStreamOptions())
	if err == nil {
		s.parser, err = NewParser[byte](src, s.opts)
	}
	if err != nil {
		s.fail(err)
		return false
	}
	return true
}

func (s *Scanner) next() bool {
	rec, err := s.parser.Read(s.ctx)
	if err != nil {
		if err != io.EOF {
			s.err = err
		}
		s.fail(nil)
		return false
	}
	if !s.reuseRecord {
		s.fields = nil
	}
	if s.fields, err = rec.AppendStrings(s.fields[:0]); err != nil {
		s.fail(err)
		return false
	}
	return true
}

func (s *Scanner) fail(err error) {
	if err != nil {
		s.err = err
	}
	s.done = true
	s.fields = nil
	if s.parser != nil {
		s.parser.Close()
	}
}

// Row returns the current record.
// This should only be called after Scan() returns true.
func (s *Scanner) Row() Row {
	return Row{fields: s.fields, headers: s.headers}
}

// Record returns the current record as a slice of fields.
// When ReuseRecord is enabled, the slice is overwritten by the next Scan.
func (s *Scanner) Record() []string {
	return s.fields
}

// Err returns the error, if any, that was encountered during scanning.
// It returns nil if no error occurred or at EOF.
func (s *Scanner) Err() error {
	return s.err
}

// Headers returns the column headers if SetHasHeaders(true) was called.
// This is available after the first call to Scan().
func (s *Scanner) Headers() []string {
	return s.headers
}
