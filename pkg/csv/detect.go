package csv

import (
	"slices"

	"github.com/shapestone/shape-csvtok/internal/fastparser"
)

// DetectionBufferCap bounds the tokens delimiter detection looks at.
const DetectionBufferCap = 64 << 10

// MaxDetectionRecords bounds the records handed to a DelimiterDetector.
const MaxDetectionRecords = 16

// Range is a record in a detection sample, without its newline.
type Range struct {
	Start, End int
}

// DelimiterDetector picks the delimiter of a stream from its first records.
//
// TryDetect gets the sample and the records found in it, split on the
// newline without regard to quotes. On success it returns the delimiter and
// how many leading records to drop before parsing.
type DelimiterDetector[T Token] interface {
	// RecordCountHint is the number of records the detector wants to see.
	RecordCountHint() int
	// Optional reports whether the configured delimiter is kept when
	// detection fails instead of failing the parse.
	Optional() bool
	TryDetect(data []T, records []Range) (delimiter T, consumed int, ok bool)
}

// PrefixDetector reads the delimiter from a first line such as "sep=;".
type PrefixDetector[T Token] struct {
	prefix   []T
	optional bool
}

// NewPrefixDetector returns a detector for a first line consisting of
// prefix followed by exactly one delimiter token. An empty prefix means "sep=".
func NewPrefixDetector[T Token](prefix string, optional bool) *PrefixDetector[T] {
	if prefix == "" {
		prefix = "sep="
	}
	return &PrefixDetector[T]{prefix: fastparser.AppendTokens[T](nil, prefix), optional: optional}
}

func (d *PrefixDetector[T]) RecordCountHint() int { return 1 }

func (d *PrefixDetector[T]) Optional() bool { return d.optional }

// TryDetect checks the first record and consumes it on a match.
func (d *PrefixDetector[T]) TryDetect(data []T, records []Range) (T, int, bool) {
	var zero T
	if len(records) == 0 {
		return zero, 0, false
	}
	first := data[records[0].Start:records[0].End]
	if len(first) != len(d.prefix)+1 || !slices.Equal(first[:len(d.prefix)], d.prefix) {
		return zero, 0, false
	}
	return first[len(d.prefix)], 1, true
}

func (d *PrefixDetector[T]) String() string {
	return "prefix " + fastparser.TokensString(d.prefix)
}

// ValuesDetectorOptions configures a ValuesDetector.
type ValuesDetectorOptions struct {
	// Candidates are the possible delimiters, in order of preference.
	// Default: ',', ';', '\t', '|'
	Candidates []rune

	// RecordCountHint is the number of records to score, at most 16.
	// Default: 4
	RecordCountHint int

	// Optional keeps the configured delimiter when no candidate occurs.
	// Default: false
	Optional bool
}

// ValuesDetector scores candidate delimiters on how often and how
// consistently they occur in the first records.
type ValuesDetector[T Token] struct {
	candidates []T
	hint       int
	optional   bool
}

// NewValuesDetector returns a detector over the given candidates.
// Duplicate candidates and runes that do not fit in T are dropped.
func NewValuesDetector[T Token](opts ValuesDetectorOptions) *ValuesDetector[T] {
	candidates := opts.Candidates
	if len(candidates) == 0 {
		candidates = []rune{',', ';', '\t', '|'}
	}
	limit := maxToken[T]()

	d := &ValuesDetector[T]{optional: opts.Optional, hint: opts.RecordCountHint}
	for _, r := range candidates {
		if r <= 0 || r > limit || slices.Contains(d.candidates, T(r)) {
			continue
		}
		d.candidates = append(d.candidates, T(r))
	}
	if d.hint <= 0 {
		d.hint = 4
	}
	d.hint = min(d.hint, MaxDetectionRecords)
	return d
}

func (d *ValuesDetector[T]) RecordCountHint() int { return d.hint }

func (d *ValuesDetector[T]) Optional() bool { return d.optional }

// TryDetect scores every candidate as 2*average - variance - 3*fieldVariance
// over the per record occurrence counts. Candidates that never occur are
// skipped; on a tie the earlier candidate wins. It never consumes records.
func (d *ValuesDetector[T]) TryDetect(data []T, records []Range) (T, int, bool) {
	var zero T
	if len(records) == 0 {
		return zero, 0, false
	}

	counts := make([]int, len(records))
	best := -1
	var bestScore float64
	for ci, c := range d.candidates {
		total := 0
		for i, rg := range records {
			n := 0
			for _, t := range data[rg.Start:rg.End] {
				if t == c {
					n++
				}
			}
			counts[i] = n
			total += n
		}
		if total == 0 {
			continue
		}

		nrec := float64(len(counts))
		average := float64(total) / nrec
		var variance, fieldVariance float64
		fieldAverage := average + 1
		for _, n := range counts {
			variance += (float64(n) - average) * (float64(n) - average)
			fields := float64(n + 1)
			fieldVariance += (fields - fieldAverage) * (fields - fieldAverage)
		}
		variance /= nrec
		fieldVariance /= nrec

		score := average*2 - variance - fieldVariance*3
		if best < 0 || score > bestScore {
			best, bestScore = ci, score
		}
	}
	if best < 0 {
		return zero, 0, false
	}
	return d.candidates[best], 0, true
}

func (d *ValuesDetector[T]) String() string {
	return "values " + fastparser.TokensString(d.candidates)
}

// splitRecords finds up to limit records in data by searching for the
// newline, ignoring quotes. With final set, trailing data without a newline
// is a record too.
func splitRecords[T Token](data []T, nl Newline[T], limit int, final bool) []Range {
	var records []Range
	start := 0
	for i := 0; i < len(data) && len(records) < limit; {
		n, _ := nl.Match(data, i)
		if n == 0 {
			i++
			continue
		}
		records = append(records, Range{Start: start, End: i})
		i += n
		start = i
	}
	if len(records) < limit && final && start < len(data) {
		records = append(records, Range{Start: start, End: len(data)})
	}
	return records
}
