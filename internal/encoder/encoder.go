package encoder

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
)

// Content-encoding tokens, per the IANA HTTP Content-Encoding registry.
const (
	Gzip     = "gzip"
	XGzip    = "x-gzip"
	Deflate  = "deflate"
	Identity = "identity"
)

var ErrUnsupported = errors.New("unsupported content encoding")

// Chain applies the named encodings to data in order and returns the wire
// bytes. An empty list returns the input unchanged. Unknown tokens fail the
// whole chain; the caller decides what to do with the original bytes.
func Chain(data []byte, encodings []string) ([]byte, error) {
	out := data
	for _, enc := range encodings {
		var err error
		switch enc {
		case Identity:
			// no-op
		case Gzip, XGzip:
			out, err = compressGzip(out)
		case Deflate:
			// HTTP "deflate" is zlib-wrapped deflate (RFC 9110 §8.4.1.2).
			out, err = compressZlib(out)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnsupported, enc)
		}
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", enc, err)
		}
	}
	return out, nil
}

func compressGzip(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func compressZlib(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
