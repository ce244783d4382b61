package simd

// matchFallback classifies tokens one lane at a time.
// It is the reference the word-parallel providers are tested against, and the
// portable provider uses it when hwy has no vectors for T.
func matchFallback[T Token](src []T, m *Matchers[T]) Masks {
	var masks Masks

	for i := 0; i < len(src) && i < 64; i++ {
		c := src[i]
		bit := uint64(1) << uint(i)

		switch c {
		case m.Delimiter:
			masks.Delimiters |= bit
		case m.Quote:
			masks.Quotes |= bit
		case m.Newline:
			masks.Newlines |= bit
		}

		if m.HasEscape && c == m.Escape {
			masks.Escapes |= bit
		}
	}

	return masks
}
