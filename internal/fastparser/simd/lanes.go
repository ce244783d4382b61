package simd

import (
	"encoding/binary"

	"github.com/ajroetker/go-highway/hwy"
)

// Lanes loads one vector of tokens and classifies every lane.
//
// Width reports the number of lanes; it is at most 64 so that each class fits
// in a uint64 mask. Match reads exactly src[:Width()].
type Lanes[T Token] interface {
	Width() int
	Match(src []T, m *Matchers[T]) Masks
	Name() string
}

// Matchers holds the dialect tokens in the forms the lane providers need:
// scalar values, SWAR broadcast words and hwy vectors.
type Matchers[T Token] struct {
	Delimiter T
	Quote     T
	Newline   T // first newline token
	Escape    T
	HasEscape bool

	delimiter uint64
	quote     uint64
	newline   uint64
	escape    uint64

	vec *portableVecs[T]
}

type portableVecs[T Token] struct {
	delimiter hwy.Vec[T]
	quote     hwy.Vec[T]
	newline   hwy.Vec[T]
	escape    hwy.Vec[T]
}

// NewMatchers builds the matchers for a dialect. escape is ignored when
// hasEscape is false.
func NewMatchers[T Token](delimiter, quote, newline, escape T, hasEscape bool) *Matchers[T] {
	m := &Matchers[T]{
		Delimiter: delimiter,
		Quote:     quote,
		Newline:   newline,
		Escape:    escape,
		HasEscape: hasEscape,
		delimiter: broadcast(delimiter),
		quote:     broadcast(quote),
		newline:   broadcast(newline),
		escape:    broadcast(escape),
	}
	if PortableBytes() > 0 {
		m.vec = &portableVecs[T]{
			delimiter: hwy.Set(delimiter),
			quote:     hwy.Set(quote),
			newline:   hwy.Set(newline),
			escape:    hwy.Set(escape),
		}
	}
	return m
}

// SWAR constants. lo7/lo15 clear the high bit of every lane; the magic
// multipliers gather the high bit of every lane into the top bits of the word.
const (
	ones8   = 0x0101010101010101
	lo7     = 0x7f7f7f7f7f7f7f7f
	gather8 = 0x0102040810204080

	ones16   = 0x0001000100010001
	lo15     = 0x7fff7fff7fff7fff
	gather16 = 0x0001000200040008
)

func broadcast[T Token](v T) uint64 {
	if TokenSize[T]() == 1 {
		return uint64(v) * ones8
	}
	return uint64(v) * ones16
}

// eq8 returns an 8-bit mask of the bytes of x equal to the byte broadcast in b.
// The zero-lane test is exact: no borrow crosses lanes.
func eq8(x, b uint64) uint64 {
	x ^= b
	t := ^(((x & lo7) + lo7) | x | lo7)
	return ((t >> 7) * gather8) >> 56
}

// eq16 returns a 4-bit mask of the 16-bit lanes of x equal to the lane broadcast in b.
func eq16(x, b uint64) uint64 {
	x ^= b
	t := ^(((x & lo15) + lo15) | x | lo15)
	return (((t >> 15) * gather16) >> 48) & 0xf
}

// loadWord reads 64 bits of tokens starting at src[0], little endian.
func loadWord[T Token](src []T) uint64 {
	switch s := any(src).(type) {
	case []uint8:
		return binary.LittleEndian.Uint64(s)
	case []uint16:
		_ = s[3]
		return uint64(s[0]) | uint64(s[1])<<16 | uint64(s[2])<<32 | uint64(s[3])<<48
	}
	panic("simd: unsupported token type")
}

// matchWords classifies words*8 bytes of tokens, one 64-bit word at a time.
func matchWords[T Token](src []T, m *Matchers[T], words int) Masks {
	var masks Masks
	if TokenSize[T]() == 1 {
		for w := 0; w < words; w++ {
			x := loadWord(src[w*8:])
			shift := uint(w * 8)
			masks.Delimiters |= eq8(x, m.delimiter) << shift
			masks.Quotes |= eq8(x, m.quote) << shift
			masks.Newlines |= eq8(x, m.newline) << shift
			if m.HasEscape {
				masks.Escapes |= eq8(x, m.escape) << shift
			}
		}
		return masks
	}
	for w := 0; w < words; w++ {
		x := loadWord(src[w*4:])
		shift := uint(w * 4)
		masks.Delimiters |= eq16(x, m.delimiter) << shift
		masks.Quotes |= eq16(x, m.quote) << shift
		masks.Newlines |= eq16(x, m.newline) << shift
		if m.HasEscape {
			masks.Escapes |= eq16(x, m.escape) << shift
		}
	}
	return masks
}

// Lanes128 is a 128-bit vector emulated with two 64-bit words.
type Lanes128[T Token] struct{ _ [0]func() }

// Width returns the number of tokens per vector.
func (Lanes128[T]) Width() int { return 16 / TokenSize[T]() }

// Match classifies src[:Width()].
func (l Lanes128[T]) Match(src []T, m *Matchers[T]) Masks {
	return matchWords(src[:l.Width()], m, 2)
}

func (Lanes128[T]) Name() string { return "swar128" }

// Lanes256 is a 256-bit vector emulated with four 64-bit words.
type Lanes256[T Token] struct{ _ [0]int }

// Width returns the number of tokens per vector.
func (Lanes256[T]) Width() int { return 32 / TokenSize[T]() }

// Match classifies src[:Width()].
func (l Lanes256[T]) Match(src []T, m *Matchers[T]) Masks {
	return matchWords(src[:l.Width()], m, 4)
}

func (Lanes256[T]) Name() string { return "swar256" }

// Lanes512 is a 512-bit vector emulated with eight 64-bit words.
type Lanes512[T Token] struct{ _ [0]uint64 }

// Width returns the number of tokens per vector.
func (Lanes512[T]) Width() int { return 64 / TokenSize[T]() }

// Match classifies src[:Width()].
func (l Lanes512[T]) Match(src []T, m *Matchers[T]) Masks {
	return matchWords(src[:l.Width()], m, 8)
}

func (Lanes512[T]) Name() string { return "swar512" }
