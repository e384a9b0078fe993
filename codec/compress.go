package codec

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/kbukum/gostream/errors"
	"github.com/kbukum/gostream/stream"
)

// Algorithm names a compression format.
type Algorithm string

const (
	Gzip    Algorithm = "gzip"
	Deflate Algorithm = "deflate"
	Zstd    Algorithm = "zstd"
)

// Algorithms returns every supported compression format.
func Algorithms() []Algorithm {
	return []Algorithm{Gzip, Deflate, Zstd}
}

// CompressOption configures Compress.
type CompressOption func(*compressOptions)

type compressOptions struct {
	level    int
	hasLevel bool
}

// WithLevel sets the compression level. gzip and deflate take -2..9; zstd
// takes its own 1..22 scale, mapped to the nearest encoder speed.
func WithLevel(level int) CompressOption {
	return func(o *compressOptions) {
		o.level = level
		o.hasLevel = true
	}
}

// Compressor is a transform compressing the concatenated input. Output is
// emitted as the encoder produces it; the trailer is emitted at finish.
type Compressor struct {
	algo   Algorithm
	out    bytes.Buffer
	w      io.WriteCloser
	closed bool
}

// Compress returns a compressing transform for algo.
func Compress(algo Algorithm, opts ...CompressOption) (*Compressor, error) {
	o := &compressOptions{}
	for _, opt := range opts {
		opt(o)
	}
	c := &Compressor{algo: algo}
	w, err := newWriter(algo, o, &c.out)
	if err != nil {
		return nil, err
	}
	c.w = w
	return c, nil
}

func newWriter(algo Algorithm, o *compressOptions, dst io.Writer) (io.WriteCloser, error) {
	switch algo {
	case Gzip:
		level := gzip.DefaultCompression
		if o.hasLevel {
			level = o.level
		}
		w, err := gzip.NewWriterLevel(dst, level)
		if err != nil {
			return nil, errors.InvalidInput("level", err.Error())
		}
		return w, nil
	case Deflate:
		level := flate.DefaultCompression
		if o.hasLevel {
			level = o.level
		}
		w, err := flate.NewWriter(dst, level)
		if err != nil {
			return nil, errors.InvalidInput("level", err.Error())
		}
		return w, nil
	case Zstd:
		var zopts []zstd.EOption
		if o.hasLevel {
			zopts = append(zopts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(o.level)))
		}
		w, err := zstd.NewWriter(dst, zopts...)
		if err != nil {
			return nil, errors.InvalidInput("level", err.Error())
		}
		return w, nil
	default:
		return nil, errors.InvalidInput("algorithm", fmt.Sprintf("unsupported compression %q", algo))
	}
}

// Algorithm returns the compression format.
func (c *Compressor) Algorithm() Algorithm { return c.algo }

func (c *Compressor) Transform(_ context.Context, in stream.Chunk, emit stream.Emit) error {
	if _, err := c.w.Write(payload(in)); err != nil {
		return fmt.Errorf("%s write: %w", c.algo, err)
	}
	return c.drain(emit)
}

func (c *Compressor) Flush(_ context.Context, emit stream.Emit) error {
	c.closed = true
	if err := c.w.Close(); err != nil {
		return fmt.Errorf("%s close: %w", c.algo, err)
	}
	return c.drain(emit)
}

// Close releases the encoder if the stage stopped before finishing.
func (c *Compressor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.w.Close()
}

func (c *Compressor) drain(emit stream.Emit) error {
	if c.out.Len() == 0 {
		return nil
	}
	data := bytes.Clone(c.out.Bytes())
	c.out.Reset()
	return emit(stream.Bytes(data))
}

// DecompressReader wraps r so reads return the decompressed stream. Use
// it with stream.FromReader for source-side decompression.
func DecompressReader(r io.Reader, algo Algorithm) (io.ReadCloser, error) {
	switch algo {
	case Gzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip header: %w", err)
		}
		return zr, nil
	case Deflate:
		return flate.NewReader(r), nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		return zr.IOReadCloser(), nil
	default:
		return nil, errors.InvalidInput("algorithm", fmt.Sprintf("unsupported compression %q", algo))
	}
}

// payload returns the bytes a codec transform operates on.
func payload(c stream.Chunk) []byte {
	if c.IsObject() {
		return []byte(c.String())
	}
	return c.Data
}
