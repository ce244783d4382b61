package fastparser

import (
	"math/bits"
	"sync"

	"github.com/shapestone/shape-csvtok/internal/fastparser/simd"
)

// slicePool is a sync.Pool of slices with a capacity cap.
// Slices larger than maxCap are dropped instead of pooled to avoid keeping
// huge buffers alive.
type slicePool[E any] struct {
	pool   sync.Pool
	maxCap int
}

func newSlicePool[E any](defaultCap, maxCap int) *slicePool[E] {
	p := &slicePool[E]{maxCap: maxCap}
	p.pool.New = func() any {
		s := make([]E, 0, defaultCap)
		return &s
	}
	return p
}

// get returns a slice of length n. The contents are not cleared.
func (p *slicePool[E]) get(n int) []E {
	ptr := p.pool.Get().(*[]E)
	s := *ptr
	if cap(s) < n {
		// Pooled slice is too small; let it go and allocate the right size
		p.pool.Put(ptr)
		return make([]E, n)
	}
	return s[:n]
}

// put returns a slice to the pool.
func (p *slicePool[E]) put(s []E) {
	if cap(s) == 0 || cap(s) > p.maxCap {
		return
	}
	s = s[:0]
	p.pool.Put(&s)
}

// Token buffers are pooled by power-of-two capacity, from 1<<minClass to
// 1<<maxClass tokens. A request never gets a buffer from a larger class, so
// small chunks do not pin default-sized buffers.
const (
	minClass = 6
	maxClass = 22
)

// classPool keeps one slicePool per size class.
type classPool[E any] struct {
	classes []*slicePool[E]
}

func newClassPool[E any]() *classPool[E] {
	p := &classPool[E]{}
	for c := minClass; c <= maxClass; c++ {
		p.classes = append(p.classes, newSlicePool[E](1<<c, 2<<c-1))
	}
	return p
}

// ceilClass is the smallest class holding n tokens.
func ceilClass(n int) int {
	return max(bits.Len(uint(n-1)), minClass)
}

// floorClass is the largest class a capacity of n satisfies.
func floorClass(n int) int {
	return bits.Len(uint(n)) - 1
}

func (p *classPool[E]) get(n int) []E {
	c := ceilClass(n)
	if c > maxClass {
		return make([]E, n)
	}
	return p.classes[c-minClass].get(n)
}

func (p *classPool[E]) put(s []E) {
	c := floorClass(cap(s))
	if c < minClass || c > maxClass {
		return
	}
	p.classes[c-minClass].put(s)
}

// Process-wide pools for raw chunks, Meta arrays and unescape scratch.
var (
	bytePool = newClassPool[byte]()
	unitPool = newClassPool[uint16]()
	metaPool = newSlicePool[Meta](DefaultReadAhead+64, 1<<20)
)

const (
	// DefaultChunkSize is the default raw chunk size in bytes.
	DefaultChunkSize = 64 << 10

	// DefaultReadAhead is the default number of Metas buffered ahead.
	DefaultReadAhead = 4096
)

func poolFor[T simd.Token]() *classPool[T] {
	if p, ok := any(bytePool).(*classPool[T]); ok {
		return p
	}
	return any(unitPool).(*classPool[T])
}

// GetBuffer gets a token buffer of length n from the pool.
func GetBuffer[T simd.Token](n int) []T {
	return poolFor[T]().get(n)
}

// PutBuffer returns a token buffer to the pool.
// The buffer must not be used afterwards.
func PutBuffer[T simd.Token](buf []T) {
	poolFor[T]().put(buf)
}

// GetMetas gets a Meta array of length n from the pool.
func GetMetas(n int) []Meta {
	return metaPool.get(n)
}

// PutMetas returns a Meta array to the pool.
func PutMetas(metas []Meta) {
	metaPool.put(metas)
}
