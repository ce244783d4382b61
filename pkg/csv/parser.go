package csv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/shapestone/shape-csvtok/internal/fastparser"
)

// slowBlock is how many tokens the slow path copies per step.
const slowBlock = 4096

// State is the lifecycle state of a Parser.
type State int

const (
	// StateInitialized means nothing has been read yet.
	StateInitialized State = iota
	// StateReading means the reader has more data.
	StateReading
	// StateDataExhausted means the buffered data holds no complete record
	// and the parser is about to read more.
	StateDataExhausted
	// StateReaderCompleted means the reader returned its final buffer.
	StateReaderCompleted
	// StateReadToEnd means every record was produced.
	StateReadToEnd
	// StateDisposed means Close was called.
	StateDisposed
)

var stateNames = [...]string{
	StateInitialized:     "initialized",
	StateReading:         "reading",
	StateDataExhausted:   "data-exhausted",
	StateReaderCompleted: "reader-completed",
	StateReadToEnd:       "read-to-end",
	StateDisposed:        "disposed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Result is the outcome of an asynchronous read.
type Result[T Token] struct {
	Record Record[T]
	Err    error
}

// Parser pulls records from a BufferReader.
//
// On the fast path the first buffered segment is scanned in place and
// records are handed out from a read-ahead buffer of Metas. A record that
// crosses a segment boundary, a non-ASCII dialect or disabled read-ahead
// moves the parser to the slow path, which copies the data into a linear
// buffer and scans it with the scalar scanner.
//
// A Parser is not safe for concurrent use.
type Parser[T Token] struct {
	reader  BufferReader[T]
	opts    ParserOptions[T]
	log     *slog.Logger
	initial Dialect[T]
	dialect Dialect[T]

	fast    fastparser.Scanner[T]
	scalar  fastparser.Scanner[T]
	decoder *fastparser.Decoder[T]
	scratch fastparser.Scratch[T]

	state    State
	err      error
	gen      uint64
	started  bool
	bomDone  bool
	detected bool

	buf   Sequence[T]
	final bool
	base  int64 // stream offset of buf[0]

	data  []T               // tokens the metas index
	metas []fastparser.Meta // metas[0] ends the last record handed out before next
	count int
	next  int
	scan  fastparser.ScanState

	slow       bool
	slowOnly   bool
	slowFrom   int // record index when the slow path was entered
	linear     []T
	linearLen  int
	linearBase int // offset of linear[0] in buf

	records int
}

// NewParser returns a parser over r. The parser owns r and closes it.
func NewParser[T Token](r BufferReader[T], opts ParserOptions[T]) (*Parser[T], error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	d, err := BuildDialect[T](opts.Dialect)
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Parser[T]{
		reader:  r,
		opts:    opts,
		log:     log,
		initial: d,
		dialect: d,
	}, nil
}

// State returns the lifecycle state.
func (p *Parser[T]) State() State { return p.state }

// Dialect returns the dialect in use. The newline and delimiter reflect
// detection once the first record was read.
func (p *Parser[T]) Dialect() Dialect[T] { return p.dialect }

// Read returns the next record, or io.EOF after the last one.
// Errors other than io.EOF and context errors are sticky.
func (p *Parser[T]) Read(ctx context.Context) (Record[T], error) {
	if p.state == StateDisposed {
		return Record[T]{}, ErrDisposed
	}
	if p.err != nil {
		return Record[T]{}, p.err
	}
	p.gen++
	p.scratch.Reset()

	for {
		rec, err := p.nextRecord(ctx)
		if err != nil {
			if err != io.EOF && ctx.Err() == nil && p.err == nil {
				p.err = err
				p.log.Debug("csv: parser failed", "error", err)
			}
			return Record[T]{}, err
		}
		if p.opts.SkipRecord == nil || !p.opts.SkipRecord(rec) {
			return rec, nil
		}
		if p.err != nil {
			return Record[T]{}, p.err
		}
		p.scratch.Reset()
	}
}

// ReadAsync performs one Read on another goroutine and delivers the result
// on the returned channel, which is closed afterwards. The caller must
// receive the result before calling Read or ReadAsync again.
func (p *Parser[T]) ReadAsync(ctx context.Context) <-chan Result[T] {
	ch := make(chan Result[T], 1)
	go func() {
		defer close(ch)
		rec, err := p.Read(ctx)
		ch <- Result[T]{Record: rec, Err: err}
	}()
	return ch
}

// All returns an iterator over the remaining records. It stops after the
// last record or after yielding the first error.
func (p *Parser[T]) All(ctx context.Context) iter.Seq2[Record[T], error] {
	return func(yield func(Record[T], error) bool) {
		for {
			rec, err := p.Read(ctx)
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(Record[T]{}, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// Reset rewinds the parser to the start of the input if the reader can be
// rewound. Detection runs again.
func (p *Parser[T]) Reset() bool {
	if p.state == StateDisposed || !p.reader.TryReset() {
		return false
	}
	p.release()
	gen := p.gen + 1
	*p = Parser[T]{
		reader:  p.reader,
		opts:    p.opts,
		log:     p.log,
		initial: p.initial,
		dialect: p.initial,
		gen:     gen,
	}
	p.log.Debug("csv: parser reset")
	return true
}

// Close releases the buffers and closes the reader.
func (p *Parser[T]) Close() error {
	if p.state == StateDisposed {
		return nil
	}
	p.setState(StateDisposed)
	p.release()
	return p.reader.Close()
}

func (p *Parser[T]) release() {
	if p.metas != nil {
		fastparser.PutMetas(p.metas)
		p.metas = nil
	}
	if p.linear != nil {
		fastparser.PutBuffer(p.linear)
		p.linear = nil
	}
	p.scratch.Close()
	p.data = nil
	p.buf = Sequence[T]{}
}

func (p *Parser[T]) setState(s State) {
	if p.state == s {
		return
	}
	p.log.Debug("csv: parser state", "from", p.state, "to", s)
	p.state = s
}

func (p *Parser[T]) nextRecord(ctx context.Context) (Record[T], error) {
	if !p.started {
		if err := p.start(ctx); err != nil {
			return Record[T]{}, err
		}
	}
	for {
		rec, ok, err := p.take()
		if ok || err != nil {
			return rec, err
		}
		if p.state == StateReadToEnd {
			return Record[T]{}, io.EOF
		}
		if p.slow {
			err = p.advanceSlow(ctx)
		} else {
			err = p.advanceFast(ctx)
		}
		if err != nil {
			return Record[T]{}, err
		}
	}
}

// take hands out the next complete record in the Meta buffer.
func (p *Parser[T]) take() (Record[T], bool, error) {
	i, malformed := fastparser.FindEOL(p.metas[p.next+1 : p.count])
	if i < 0 {
		return Record[T]{}, false, nil
	}
	end := p.next + 1 + i
	base := p.base
	if p.slow {
		base += int64(p.linearBase)
	}
	rec := Record[T]{
		p:     p,
		gen:   p.gen,
		data:  p.data,
		metas: p.metas[p.next : end+1],
		index: p.records,
		base:  base,
	}
	p.next = end
	p.records++
	if malformed {
		return Record[T]{}, false, rec.checkQuoting()
	}
	return rec, true, nil
}

// advanceFast scans more of the first segment, or reads more data, or
// switches to the slow path when a record continues in the next segment.
func (p *Parser[T]) advanceFast(ctx context.Context) error {
	data := p.buf.First()
	final := p.final && p.buf.IsSingleSegment()
	if !final || !p.scan.Drained(len(data)) {
		p.reserve(p.fast.Slack())
		if n := p.fast.Scan(p.metas[p.count:], data, &p.scan, final); n > 0 {
			p.count += n
			return nil
		}
	}

	switch {
	case final:
		p.setState(StateReadToEnd)
		return nil
	case !p.buf.IsSingleSegment():
		p.enterSlow()
		return nil
	}

	p.setState(StateDataExhausted)
	if consumed := p.metas[p.next].NextStart(); consumed > 0 {
		p.reader.Advance(consumed)
		p.base += int64(consumed)
		p.rebase(consumed)
	}
	return p.readMore(ctx)
}

// advanceSlow scans the linear buffer, copies the next block into it, or
// reads more data. It returns to the fast path once a record was handed
// out and the buffered Metas hold no further complete record.
func (p *Parser[T]) advanceSlow(ctx context.Context) error {
	if !p.slowOnly && p.records > p.slowFrom {
		return p.leaveSlow(ctx)
	}

	end := p.linearBase + p.linearLen
	final := p.final && end == p.buf.Len()
	if !final || !p.scan.Drained(p.linearLen) {
		p.reserve(p.scalar.Slack())
		if n := p.scalar.Scan(p.metas[p.count:], p.data, &p.scan, final); n > 0 {
			p.count += n
			return nil
		}
	}

	switch {
	case final:
		p.setState(StateReadToEnd)
		return nil
	case end < p.buf.Len():
		return p.copyBlock()
	}

	p.setState(StateDataExhausted)
	p.compactLinear()
	p.reader.Advance(p.linearBase)
	p.base += int64(p.linearBase)
	p.linearBase = 0
	return p.readMore(ctx)
}

func (p *Parser[T]) enterSlow() {
	start := p.metas[p.next].NextStart()
	p.log.Debug("csv: record crosses a segment boundary", "offset", p.base+int64(start))
	p.slow = true
	p.slowFrom = p.records
	p.linearBase = start
	p.linearLen = 0
	p.data = p.linear[:0]
	p.resetMetas()
}

func (p *Parser[T]) leaveSlow(ctx context.Context) error {
	consumed := p.linearBase + p.metas[p.next].NextStart()
	p.reader.Advance(consumed)
	p.base += int64(consumed)
	p.slow = false
	p.linearBase = 0
	p.linearLen = 0
	p.resetMetas()
	return p.readMore(ctx)
}

// copyBlock appends the next block of the buffered sequence to the linear
// buffer, dropping the records already handed out.
func (p *Parser[T]) copyBlock() error {
	p.compactLinear()
	from := p.linearBase + p.linearLen
	n := min(slowBlock, p.buf.Len()-from)
	need := p.linearLen + n
	if need > fastparser.MaxViewLen {
		return ErrViewTooLarge
	}
	if need > len(p.linear) {
		grown := fastparser.GetBuffer[T](max(2*len(p.linear), need, slowBlock))
		copy(grown, p.linear[:p.linearLen])
		if p.linear != nil {
			fastparser.PutBuffer(p.linear)
		}
		p.linear = grown
	}
	p.buf.CopyTo(p.linear[p.linearLen:need], from)
	p.linearLen = need
	p.data = p.linear[:p.linearLen]
	return nil
}

// compactLinear drops the tokens of records already handed out from the
// front of the linear buffer.
func (p *Parser[T]) compactLinear() {
	c := p.metas[p.next].NextStart()
	if c == 0 {
		return
	}
	copy(p.linear, p.linear[c:p.linearLen])
	p.linearLen -= c
	p.linearBase += c
	p.data = p.linear[:p.linearLen]
	p.rebase(c)
}

// rebase moves the unconsumed Metas to the front after n tokens were
// dropped from the front of the data they index.
func (p *Parser[T]) rebase(n int) {
	p.compact()
	fastparser.ShiftMetas(p.metas[1:p.count], n)
	p.metas[0] = fastparser.StartOfData
	p.scan.Shift(n)
}

func (p *Parser[T]) compact() {
	if p.next == 0 {
		return
	}
	p.count = copy(p.metas, p.metas[p.next:p.count])
	p.next = 0
}

// reserve makes room for at least slack+1 Metas.
func (p *Parser[T]) reserve(slack int) {
	if len(p.metas)-p.count > slack {
		return
	}
	p.compact()
	if len(p.metas)-p.count > slack {
		return
	}
	grown := fastparser.GetMetas(2 * len(p.metas))
	copy(grown, p.metas[:p.count])
	fastparser.PutMetas(p.metas)
	p.metas = grown
	p.log.Debug("csv: meta buffer grown", "size", len(grown))
}

func (p *Parser[T]) resetMetas() {
	p.metas[0] = fastparser.StartOfData
	p.count = 1
	p.next = 0
	p.scan.Reset(0)
}

// readMore reads from the reader without consuming anything.
func (p *Parser[T]) readMore(ctx context.Context) error {
	res, err := p.reader.Read(ctx)
	if err != nil {
		return err
	}
	if res.Buffer.Len() > fastparser.MaxViewLen {
		return ErrViewTooLarge
	}
	p.buf, p.final = res.Buffer, res.Final
	if p.final {
		p.setState(StateReaderCompleted)
	} else {
		p.setState(StateReading)
	}
	if !p.slow && p.metas != nil {
		p.data = p.buf.First()
		if p.scan.Pos > len(p.data) {
			// The reader moved the unconsumed data; scan the record again.
			p.resetMetas()
		}
	}
	return nil
}

// consume drops n tokens before the first record and reads again.
func (p *Parser[T]) consume(ctx context.Context, n int) error {
	p.reader.Advance(n)
	p.base += int64(n)
	p.buf = Sequence[T]{}
	return p.readMore(ctx)
}

// sample returns up to n leading tokens as one slice, and whether they are
// all of the buffered data.
func (p *Parser[T]) sample(n int) ([]T, bool) {
	n = min(n, p.buf.Len())
	if first := p.buf.First(); len(first) >= n {
		return first[:n], n == p.buf.Len()
	}
	s := make([]T, n)
	p.buf.CopyTo(s, 0)
	return s, n == p.buf.Len()
}

// start reads the first buffer, skips the byte order mark, detects the
// newline and delimiter, and sets up the scanners. Every step can be
// retried after a context error.
func (p *Parser[T]) start(ctx context.Context) error {
	if p.state == StateInitialized {
		if err := p.readMore(ctx); err != nil {
			return err
		}
	}

	for p.opts.SkipBOM && !p.bomDone {
		n, decided := bomLen(p.buf)
		if !decided && !p.final {
			if err := p.readMore(ctx); err != nil {
				return err
			}
			continue
		}
		p.bomDone = true
		if n > 0 {
			if err := p.consume(ctx, n); err != nil {
				return err
			}
		}
	}

	for p.dialect.Newline().IsZero() {
		sample, whole := p.sample(fastparser.NewlineDetectionCap)
		nl, err := fastparser.DetectNewline(sample, p.dialect, p.final && whole)
		if errors.Is(err, fastparser.ErrNeedMoreData) {
			if err := p.readMore(ctx); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return &FormatError{Offset: p.base, Err: err}
		}
		d, err := p.dialect.WithNewline(nl)
		if err != nil {
			return &FormatError{Offset: p.base, Err: err}
		}
		p.dialect = d
		p.log.Debug("csv: newline detected", "newline", nl.String())
	}

	if det := p.opts.Detector; det != nil && !p.detected {
		if err := p.detect(ctx, det); err != nil {
			return err
		}
	}

	fast, err := fastparser.NewScanner(p.dialect, p.opts.ScanWidth)
	if err != nil {
		return err
	}
	scalar, err := fastparser.NewScanner(p.dialect, WidthScalar)
	if err != nil {
		return err
	}
	p.fast, p.scalar = fast, scalar
	p.decoder = fastparser.NewDecoder(p.dialect, &p.scratch, p.opts.Trim, p.opts.ExposeContent)
	p.metas = fastparser.GetMetas(p.opts.ReadAheadCount + fast.Slack() + 1)
	p.resetMetas()

	p.slowOnly = !p.dialect.IsASCII() || p.opts.Dialect.NoReadAhead
	if p.slowOnly {
		p.slow = true
		p.scan.OneRecord = p.opts.Dialect.NoReadAhead
		p.data = p.linear[:0]
	} else {
		p.data = p.buf.First()
	}
	p.started = true
	p.log.Debug("csv: parser started",
		"scanner", fast.Name(),
		"mode", p.dialect.Mode().String(),
		"delimiter", fastparser.TokenString(p.dialect.Delimiter()),
		"newline", p.dialect.Newline().String(),
		"fast", !p.slowOnly)
	return nil
}

// detect runs the delimiter detector over the first records.
func (p *Parser[T]) detect(ctx context.Context, det DelimiterDetector[T]) error {
	hint := min(max(det.RecordCountHint(), 1), MaxDetectionRecords)
	nl := p.dialect.Newline()

	for {
		sample, whole := p.sample(DetectionBufferCap)
		final := p.final && whole
		records := splitRecords(sample, nl, hint, final)
		if len(records) < hint && !final && len(sample) < DetectionBufferCap {
			if err := p.readMore(ctx); err != nil {
				return err
			}
			continue
		}
		p.detected = true

		if len(sample) == 0 {
			return nil
		}
		delim, consumed, ok := det.TryDetect(sample, records)
		if !ok || consumed > len(records) {
			if det.Optional() {
				p.log.Debug("csv: delimiter not detected, keeping configured one",
					"delimiter", fastparser.TokenString(p.dialect.Delimiter()))
				return nil
			}
			return &FormatError{Offset: p.base, Err: ErrDelimiterNotDetected}
		}

		d, err := p.dialect.WithDelimiter(delim)
		if err != nil {
			return &FormatError{Offset: p.base, Err: err}
		}
		p.dialect = d
		p.log.Debug("csv: delimiter detected", "delimiter", fastparser.TokenString(delim), "records", len(records))

		if consumed > 0 {
			skip := min(records[consumed-1].End+nl.Len(), len(sample))
			return p.consume(ctx, skip)
		}
		return nil
	}
}

// bomLen returns the length of a leading byte order mark. decided is false
// when the buffer is a strict prefix of one.
func bomLen[T Token](seq Sequence[T]) (n int, decided bool) {
	bom := fastparser.AppendTokens[T](nil, "\uFEFF")
	head := make([]T, len(bom))
	got := seq.CopyTo(head, 0)
	for i := range got {
		if head[i] != bom[i] {
			return 0, true
		}
	}
	if got < len(bom) {
		return 0, false
	}
	return len(bom), true
}
