// Package body keeps a decoded byte payload and a derived, asynchronously
// encoded copy of it consistent while either the payload or the declared
// content encodings change underneath. Re-encoding is throttled, and when
// runs overlap the last-scheduled one wins regardless of completion order.
package body

import (
	"context"
	"sync"
	"time"

	"mockbody/internal/encoder"
	"mockbody/internal/logger"
)

// DefaultInterval is the default re-encode throttle window.
const DefaultInterval = 500 * time.Millisecond

// Encoder applies the named encodings in order to the decoded bytes.
type Encoder func(decoded []byte, encodings []string) ([]byte, error)

// ErrorReporter is a fire-and-forget diagnostic sink for encoder failures.
type ErrorReporter func(err error, encodings []string)

// EncodeTask is one scheduled encoding computation. It always resolves with
// a byte value, even when a later-scheduled task has already superseded it;
// superseded results are simply never applied to the owning body.
type EncodeTask struct {
	done   chan struct{}
	result []byte
}

func newTask() *EncodeTask {
	return &EncodeTask{done: make(chan struct{})}
}

func resolvedTask(result []byte) *EncodeTask {
	t := newTask()
	t.result = result
	close(t.done)
	return t
}

// Done is closed once the task has resolved.
func (t *EncodeTask) Done() <-chan struct{} { return t.done }

// Wait blocks until the task resolves or ctx is cancelled. The returned
// bytes are what this task computed, which may by then have been superseded;
// callers that need the applied state should re-check EncodedLength after
// waiting.
func (t *EncodeTask) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-t.done:
		return t.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *EncodeTask) resolve(result []byte) {
	t.result = result
	close(t.done)
}

// EditableBody owns a decoded payload and its encoded counterpart.
//
// SetDecoded replaces the payload; RefreshEncoding tells the body its
// owner's Content-Encoding header may have changed. Both schedule a
// re-encode through the throttle gate. Encoder failures never surface to
// callers: the decoded bytes stand in for the encoded ones (fail-open) and
// the failure goes to the error sink.
type EditableBody struct {
	mu       sync.Mutex
	decoded  []byte
	encoded  []byte
	lastSpec []string
	latest   *EncodeTask

	gate   *throttle
	header HeaderFunc
	encode Encoder
	report ErrorReporter
}

// Option configures an EditableBody.
type Option func(*options)

type options struct {
	encoded  []byte
	seeded   bool
	interval time.Duration
	encode   Encoder
	report   ErrorReporter
	log      logger.Logger
}

// WithEncoded seeds a known-correct encoded payload; no initial encode is
// scheduled, the seed is used verbatim until the first real trigger.
func WithEncoded(encoded []byte) Option {
	return func(o *options) {
		o.encoded = encoded
		o.seeded = true
	}
}

// WithInterval overrides the throttle window.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithEncoder overrides the encoding implementation.
func WithEncoder(fn Encoder) Option {
	return func(o *options) { o.encode = fn }
}

// WithReporter overrides the encoder-failure sink.
func WithReporter(fn ErrorReporter) Option {
	return func(o *options) { o.report = fn }
}

// WithLogger routes default failure reports to l.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// New creates an editable body holding decoded. header supplies the raw
// Content-Encoding value of the owner and may be nil when no encoding ever
// applies. Unless a seeded encoded payload is supplied, an initial encode is
// scheduled immediately.
func New(decoded []byte, header HeaderFunc, opts ...Option) *EditableBody {
	o := options{
		interval: DefaultInterval,
		encode:   encoder.Chain,
		log:      logger.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.report == nil {
		log := o.log
		o.report = func(err error, encodings []string) {
			log.Error("body encode failed", "error", err, "encodings", encodings)
		}
	}

	b := &EditableBody{
		decoded: decoded,
		header:  header,
		encode:  o.encode,
		report:  o.report,
	}
	b.gate = newThrottle(o.interval, b.runEncode)
	b.lastSpec = NormalizeEncodings(b.headerValue())

	if o.seeded {
		b.encoded = o.encoded
		b.latest = resolvedTask(o.encoded)
	} else {
		b.gate.Trigger()
	}
	return b
}

// SetDecoded replaces the decoded payload and schedules a re-encode. It
// never blocks and never fails.
func (b *EditableBody) SetDecoded(decoded []byte) {
	b.mu.Lock()
	b.decoded = decoded
	b.mu.Unlock()
	b.gate.Trigger()
}

// Decoded returns the current decoded payload. Always up to date.
func (b *EditableBody) Decoded() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.decoded
}

// EncodedLength reports the byte length of the currently applied encoded
// payload; 0 until a first result has been committed. Superseded task
// results never show up here.
func (b *EditableBody) EncodedLength() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.encoded)
}

// Encoded returns the most recently scheduled encode task, which may
// already be resolved.
func (b *EditableBody) Encoded() *EncodeTask {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest
}

// RefreshEncoding re-reads the header accessor and schedules a re-encode if
// the normalized encoding list changed. A new raw representation of the
// same tokens is not a change.
func (b *EditableBody) RefreshEncoding() {
	spec := NormalizeEncodings(b.headerValue())
	b.mu.Lock()
	if encodingsEqual(spec, b.lastSpec) {
		b.mu.Unlock()
		return
	}
	b.lastSpec = spec
	b.mu.Unlock()
	b.gate.Trigger()
}

// Close cancels any pending trailing run. In-flight encodes still resolve
// their own tasks but schedule nothing further.
func (b *EditableBody) Close() {
	b.gate.Stop()
}

func (b *EditableBody) headerValue() any {
	if b.header == nil {
		return nil
	}
	return b.header()
}

// runEncode is the throttled recompute. The task pointer is swapped in
// synchronously, before the encode itself runs, so the last-scheduled task
// wins the commit race even when an earlier one resolves after it.
func (b *EditableBody) runEncode() {
	spec := NormalizeEncodings(b.headerValue())
	t := newTask()

	b.mu.Lock()
	decoded := b.decoded
	b.lastSpec = spec
	b.latest = t
	b.mu.Unlock()

	go func() {
		out, err := b.encode(decoded, spec)
		if err != nil {
			b.report(err, spec)
			out = decoded
		}

		b.mu.Lock()
		if b.latest == t {
			b.encoded = out
		}
		b.mu.Unlock()

		t.resolve(out)
	}()
}
