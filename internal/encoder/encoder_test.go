package encoder

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gunzip(t *testing.T, data []byte) []byte {
	t.Helper()
	r, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return out
}

func inflate(t *testing.T, data []byte) []byte {
	t.Helper()
	r, err := zlib.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return out
}

func TestChainEmptyListReturnsInput(t *testing.T) {
	t.Parallel()

	in := []byte("untouched")
	out, err := Chain(in, nil)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestChainGzipRoundTrips(t *testing.T) {
	t.Parallel()

	in := []byte(`{"some":"body","repeated":"body body body"}`)
	for _, token := range []string{Gzip, XGzip} {
		out, err := Chain(in, []string{token})
		require.NoError(t, err)
		assert.Equal(t, in, gunzip(t, out), "token %q", token)
	}
}

func TestChainDeflateIsZlibWrapped(t *testing.T) {
	t.Parallel()

	in := []byte("http deflate means zlib")
	out, err := Chain(in, []string{Deflate})
	require.NoError(t, err)
	assert.Equal(t, in, inflate(t, out))
}

func TestChainIdentityIsNoOp(t *testing.T) {
	t.Parallel()

	in := []byte("as-is")
	out, err := Chain(in, []string{Identity})
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestChainAppliesEncodingsInOrder(t *testing.T) {
	t.Parallel()

	in := []byte("layered onion")
	out, err := Chain(in, []string{Deflate, Gzip})
	require.NoError(t, err)

	// Outermost layer was applied last: gunzip first, then inflate.
	assert.Equal(t, in, inflate(t, gunzip(t, out)))
}

func TestChainRejectsUnknownToken(t *testing.T) {
	t.Parallel()

	for _, token := range []string{"br", "zstd", "bogus"} {
		_, err := Chain([]byte("data"), []string{token})
		assert.ErrorIs(t, err, ErrUnsupported, "token %q", token)
	}
}

func TestChainStopsAtFirstUnknownToken(t *testing.T) {
	t.Parallel()

	_, err := Chain([]byte("data"), []string{Gzip, "bogus"})
	require.ErrorIs(t, err, ErrUnsupported)
}
