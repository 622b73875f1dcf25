// Package compress wraps object payloads in the codec recorded in a transfer
// manifest.
package compress

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const (
	TypeNone = "none"
	TypeGzip = "gzip"
	TypeZstd = "zstd"
)

var ErrUnsupported = errors.New("unsupported compression")

type codec struct {
	writer func(io.Writer) (io.WriteCloser, error)
	reader func(io.Reader) (io.ReadCloser, error)
}

// Each payload is a single stream, so zstd runs with one goroutine per side.
var codecs = map[string]codec{
	TypeGzip: {
		writer: func(w io.Writer) (io.WriteCloser, error) { return gzip.NewWriter(w), nil },
		reader: func(r io.Reader) (io.ReadCloser, error) { return gzip.NewReader(r) },
	},
	TypeZstd: {
		writer: func(w io.Writer) (io.WriteCloser, error) {
			return zstd.NewWriter(w, zstd.WithEncoderConcurrency(1))
		},
		reader: func(r io.Reader) (io.ReadCloser, error) {
			dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
			if err != nil {
				return nil, err
			}
			return dec.IOReadCloser(), nil
		},
	},
}

// Supported reports whether kind names a known compression. Empty means none.
func Supported(kind string) bool {
	if !Enabled(kind) {
		return true
	}
	_, ok := codecs[kind]
	return ok
}

// Enabled reports whether kind actually transforms the payload.
func Enabled(kind string) bool {
	return kind != "" && kind != TypeNone
}

func lookup(kind string) (codec, error) {
	c, ok := codecs[kind]
	if !ok {
		return codec{}, fmt.Errorf("%w: %s", ErrUnsupported, kind)
	}
	return c, nil
}

// WrapWriter returns a writer that compresses into w. Close flushes the codec
// but leaves w open.
func WrapWriter(kind string, w io.Writer) (io.WriteCloser, error) {
	if !Enabled(kind) {
		return nopWriteCloser{w}, nil
	}
	c, err := lookup(kind)
	if err != nil {
		return nil, err
	}
	return c.writer(w)
}

func WrapReader(kind string, r io.Reader) (io.ReadCloser, error) {
	if !Enabled(kind) {
		return io.NopCloser(r), nil
	}
	c, err := lookup(kind)
	if err != nil {
		return nil, err
	}
	return c.reader(r)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
