package fastparser

import (
	"testing"

	"github.com/shapestone/shape-csvtok/internal/fastparser/simd"
)

var allWidths = []simd.Width{
	simd.WidthScalar,
	simd.Width128,
	simd.Width256,
	simd.Width512,
	simd.WidthPortable,
}

func mustDialect[T simd.Token](t testing.TB, cfg DialectConfig[T]) Dialect[T] {
	t.Helper()
	d, err := NewDialect(cfg)
	if err != nil {
		t.Fatalf("NewDialect: %v", err)
	}
	return d
}

func rfcDialect[T simd.Token](t testing.TB, newline ...T) Dialect[T] {
	cfg := DefaultDialectConfig[T]()
	cfg.Newline = newline
	return mustDialect(t, cfg)
}

func escapeDialect[T simd.Token](t testing.TB, newline ...T) Dialect[T] {
	cfg := DefaultDialectConfig[T]()
	cfg.Escape = '\\'
	cfg.HasEscape = true
	cfg.Newline = newline
	return mustDialect(t, cfg)
}

func mustScanner[T simd.Token](t testing.TB, d Dialect[T], w simd.Width) Scanner[T] {
	t.Helper()
	s, err := NewScanner(d, w)
	if err != nil {
		t.Fatalf("NewScanner(%s): %v", w, err)
	}
	return s
}

// scanAll scans data in one final pass, using a small Meta buffer so the
// "destination full" path is exercised too.
func scanAll[T simd.Token](s Scanner[T], data []T) []Meta {
	var out []Meta
	dst := make([]Meta, 3+s.Slack())
	var st ScanState
	for {
		n := s.Scan(dst, data, &st, true)
		out = append(out, dst[:n]...)
		if n == 0 && st.Drained(len(data)) {
			return out
		}
	}
}

// scanGrowing scans data as if it arrived in two reads: the first visible
// prefix is data[:split], then all of it.
func scanGrowing[T simd.Token](s Scanner[T], data []T, split int) []Meta {
	var out []Meta
	dst := make([]Meta, 64+s.Slack())
	var st ScanState
	for {
		n := s.Scan(dst, data[:split], &st, false)
		out = append(out, dst[:n]...)
		if n == 0 {
			break
		}
	}
	for {
		n := s.Scan(dst, data, &st, true)
		out = append(out, dst[:n]...)
		if n == 0 && st.Drained(len(data)) {
			return out
		}
	}
}

// decodeAll groups metas into records and decodes every field.
func decodeAll[T simd.Token](d Dialect[T], data []T, metas []Meta) ([][]string, error) {
	var scratch Scratch[T]
	defer scratch.Close()
	dec := NewDecoder(d, &scratch, TrimNone, true)

	var records [][]string
	prev := StartOfData
	var record []string
	for _, m := range metas {
		v, err := dec.Field(data, prev, m)
		if err != nil {
			return records, err
		}
		record = append(record, TokensString(v))
		prev = m
		if m.IsEOL() {
			records = append(records, record)
			record = nil
			scratch.Reset()
		}
	}
	return records, nil
}

func tokens[T simd.Token](s string) []T {
	return AppendTokens[T](nil, s)
}

func equalRecords(a, b [][]string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}

func equalMetas(a, b []Meta) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
