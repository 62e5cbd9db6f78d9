package body

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mockbody/internal/encoder"
)

// headerStub is a mutable Content-Encoding source safe to update from the
// test goroutine while the body reads it.
type headerStub struct {
	mu  sync.Mutex
	raw any
}

func (h *headerStub) get() any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.raw
}

func (h *headerStub) set(raw any) {
	h.mu.Lock()
	h.raw = raw
	h.mu.Unlock()
}

// encodeCall is one in-flight invocation of a blockingEncoder; the test
// decides when and with what result it completes.
type encodeCall struct {
	decoded   []byte
	encodings []string
	release   chan []byte
}

type blockingEncoder struct {
	calls chan *encodeCall
}

func newBlockingEncoder() *blockingEncoder {
	return &blockingEncoder{calls: make(chan *encodeCall, 8)}
}

func (e *blockingEncoder) encode(decoded []byte, encodings []string) ([]byte, error) {
	c := &encodeCall{decoded: decoded, encodings: encodings, release: make(chan []byte)}
	e.calls <- c
	return <-c.release, nil
}

func (e *blockingEncoder) next(t *testing.T) *encodeCall {
	t.Helper()
	select {
	case c := <-e.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an encode call")
		return nil
	}
}

func waitTask(t *testing.T, task *EncodeTask) []byte {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := task.Wait(ctx)
	require.NoError(t, err)
	return out
}

func TestFailOpenOnEncoderError(t *testing.T) {
	t.Parallel()

	decoded := []byte(`{"hello":"world"}`)
	encodeErr := errors.New("kaboom")

	var reports atomic.Int32
	var reportedSpec []string
	var reportMu sync.Mutex

	b := New(decoded, func() any { return "gzip, br" },
		WithEncoded([]byte("seed")),
		WithInterval(testInterval),
		WithEncoder(func([]byte, []string) ([]byte, error) { return nil, encodeErr }),
		WithReporter(func(err error, encodings []string) {
			assert.ErrorIs(t, err, encodeErr)
			reportMu.Lock()
			reportedSpec = encodings
			reportMu.Unlock()
			reports.Add(1)
		}),
	)
	defer b.Close()

	b.SetDecoded(decoded)
	out := waitTask(t, b.Encoded())

	assert.Equal(t, decoded, out, "failed encode must resolve with the decoded bytes")
	assert.Equal(t, len(decoded), b.EncodedLength(), "decoded length stands in for the encoded length")
	assert.EqualValues(t, 1, reports.Load(), "error sink invoked exactly once")
	reportMu.Lock()
	assert.Equal(t, []string{"gzip", "br"}, reportedSpec, "spec passed as report context")
	reportMu.Unlock()
}

func TestLastScheduledWins(t *testing.T) {
	t.Parallel()

	enc := newBlockingEncoder()
	b := New([]byte("a"), nil,
		WithEncoded([]byte("seed")),
		WithInterval(testInterval),
		WithEncoder(enc.encode),
	)
	defer b.Close()

	// Task A starts on the leading edge and blocks inside the encoder.
	b.SetDecoded([]byte("payload-a"))
	taskA := b.Encoded()
	callA := enc.next(t)
	assert.Equal(t, []byte("payload-a"), callA.decoded)

	// Task B is scheduled while A is still in flight (trailing edge), so B
	// supersedes A the moment it starts.
	b.SetDecoded([]byte("payload-b"))
	callB := enc.next(t)
	assert.Equal(t, []byte("payload-b"), callB.decoded)
	taskB := b.Encoded()
	require.NotSame(t, taskA, taskB)

	// B resolves first and commits.
	callB.release <- []byte("encoded-b")
	assert.Equal(t, []byte("encoded-b"), waitTask(t, taskB))
	require.Equal(t, len("encoded-b"), b.EncodedLength())

	// A resolves later in wall-clock time but was scheduled earlier: its
	// result reaches its own awaiters and nothing else.
	callA.release <- []byte("encoded-a-long")
	assert.Equal(t, []byte("encoded-a-long"), waitTask(t, taskA))
	assert.Equal(t, len("encoded-b"), b.EncodedLength(), "stale result must not be applied")
	assert.Equal(t, []byte("payload-b"), b.Decoded())
}

func TestThrottledEditsCoalesce(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	var inputsMu sync.Mutex
	var inputs [][]byte

	b := New([]byte("initial"), nil,
		WithEncoded([]byte("seed")),
		WithInterval(testInterval),
		WithEncoder(func(decoded []byte, _ []string) ([]byte, error) {
			calls.Add(1)
			inputsMu.Lock()
			inputs = append(inputs, decoded)
			inputsMu.Unlock()
			return append([]byte("enc:"), decoded...), nil
		}),
	)
	defer b.Close()

	b.SetDecoded([]byte("edit-1"))
	b.SetDecoded([]byte("edit-2"))
	b.SetDecoded([]byte("edit-3"))

	require.Eventually(t, func() bool { return calls.Load() == 2 },
		time.Second, 5*time.Millisecond, "leading run plus exactly one trailing run")

	// Quiet period: no further runs appear.
	time.Sleep(3 * testInterval)
	require.EqualValues(t, 2, calls.Load())

	inputsMu.Lock()
	defer inputsMu.Unlock()
	require.Len(t, inputs, 2)
	assert.Equal(t, []byte("edit-1"), inputs[0], "leading run sees the first edit")
	assert.Equal(t, []byte("edit-3"), inputs[1], "trailing run uses the latest payload, not an intermediate one")
	assert.Equal(t, len("enc:edit-3"), b.EncodedLength())
}

func TestHeaderRefreshIgnoresEquivalentRepresentations(t *testing.T) {
	t.Parallel()

	hdr := &headerStub{raw: "gzip"}
	var calls atomic.Int32

	b := New([]byte("data"), hdr.get,
		WithEncoded([]byte("seed")),
		WithInterval(testInterval),
		WithEncoder(func(decoded []byte, _ []string) ([]byte, error) {
			calls.Add(1)
			return decoded, nil
		}),
	)
	defer b.Close()

	// Same ordered tokens under different raw shapes: no new task.
	hdr.set([]string{"gzip"})
	b.RefreshEncoding()
	hdr.set([]any{"gzip"})
	b.RefreshEncoding()
	assert.EqualValues(t, 0, calls.Load())

	// A real change triggers.
	hdr.set("gzip, deflate")
	b.RefreshEncoding()
	require.Eventually(t, func() bool { return calls.Load() == 1 },
		time.Second, 5*time.Millisecond)
}

func TestSeededConstructionSkipsInitialEncode(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	seed := []byte("already-encoded")

	b := New([]byte("decoded"), func() any { return "gzip" },
		WithEncoded(seed),
		WithInterval(testInterval),
		WithEncoder(func(decoded []byte, _ []string) ([]byte, error) {
			calls.Add(1)
			return decoded, nil
		}),
	)
	defer b.Close()

	time.Sleep(3 * testInterval)
	assert.EqualValues(t, 0, calls.Load(), "seeded construction performs no encoder calls")
	assert.Equal(t, len(seed), b.EncodedLength())
	assert.Equal(t, seed, waitTask(t, b.Encoded()))

	// The first real trigger encodes as usual.
	b.SetDecoded([]byte("edited"))
	require.Eventually(t, func() bool { return calls.Load() == 1 },
		time.Second, 5*time.Millisecond)
}

func TestUnseededConstructionEncodesImmediately(t *testing.T) {
	t.Parallel()

	decoded := []byte("plain text body")
	b := New(decoded, nil, WithInterval(testInterval))
	defer b.Close()

	out := waitTask(t, b.Encoded())
	assert.Equal(t, decoded, out)
	assert.Equal(t, len(decoded), b.EncodedLength())
}

func TestEmptySpecStillInvokesEncoder(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	decoded := []byte("no encodings declared")

	b := New(decoded, func() any { return nil },
		WithInterval(testInterval),
		WithEncoder(func(d []byte, encodings []string) ([]byte, error) {
			calls.Add(1)
			return encoder.Chain(d, encodings)
		}),
	)
	defer b.Close()

	waitTask(t, b.Encoded())
	assert.GreaterOrEqual(t, calls.Load(), int32(1), "empty spec is not special-cased")
	assert.Equal(t, len(decoded), b.EncodedLength(), "identity chain preserves the byte length")
}

func TestGzipHeaderShrinksCompressibleBody(t *testing.T) {
	t.Parallel()

	hdr := &headerStub{}
	decoded := make([]byte, 4096) // zeros compress well

	b := New(decoded, hdr.get, WithInterval(testInterval))
	defer b.Close()

	waitTask(t, b.Encoded())
	require.Equal(t, len(decoded), b.EncodedLength())

	hdr.set("gzip")
	b.RefreshEncoding()
	require.Eventually(t, func() bool {
		n := b.EncodedLength()
		return n > 0 && n < len(decoded)
	}, time.Second, 5*time.Millisecond, "gzip output expected to be smaller than 4k of zeros")
}
