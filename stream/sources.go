package stream

import (
	"context"
	stderrors "errors"
	"io"
)

// DefaultReadSize is the chunk size FromReader uses when given 0.
const DefaultReadSize = 64 * 1024

type sliceProducer struct {
	items []Chunk
	pos   int
}

func (p *sliceProducer) Next(ctx context.Context) (Chunk, bool, error) {
	if err := ctx.Err(); err != nil {
		return Chunk{}, false, err
	}
	if p.pos >= len(p.items) {
		return Chunk{}, false, nil
	}
	c := p.items[p.pos]
	p.pos++
	return c, true, nil
}

// FromSlice produces chunks in order, then ends.
func FromSlice(chunks []Chunk) Producer {
	return &sliceProducer{items: chunks}
}

// FromStrings produces one text chunk per string.
func FromStrings(ss ...string) Producer {
	chunks := make([]Chunk, len(ss))
	for i, s := range ss {
		chunks[i] = Text(s)
	}
	return FromSlice(chunks)
}

// FromValues produces one object-mode chunk per value.
func FromValues(vs ...any) Producer {
	chunks := make([]Chunk, len(vs))
	for i, v := range vs {
		chunks[i] = Object(v)
	}
	return FromSlice(chunks)
}

// FromBytes splits data into chunks of at most size bytes. The chunks
// share data's backing array.
func FromBytes(data []byte, size int) Producer {
	if size <= 0 {
		size = DefaultReadSize
	}
	var chunks []Chunk
	for len(data) > 0 {
		n := min(size, len(data))
		chunks = append(chunks, Bytes(data[:n:n]))
		data = data[n:]
	}
	return FromSlice(chunks)
}

// maxEmptyReads bounds consecutive (0, nil) reads, as bufio does.
const maxEmptyReads = 100

type readerProducer struct {
	r    io.Reader
	size int
}

// FromReader emits what each Read of r returns, at most size bytes per
// chunk, until EOF. If r is an io.Closer it is closed when the source
// stage exits.
func FromReader(r io.Reader, size int) Producer {
	if size <= 0 {
		size = DefaultReadSize
	}
	return &readerProducer{r: r, size: size}
}

func (p *readerProducer) Next(ctx context.Context) (Chunk, bool, error) {
	buf := make([]byte, p.size)
	for range maxEmptyReads {
		if err := ctx.Err(); err != nil {
			return Chunk{}, false, err
		}
		n, err := p.r.Read(buf)
		if stderrors.Is(err, io.EOF) {
			err = nil
			if n == 0 {
				return Chunk{}, false, nil
			}
		}
		if n > 0 {
			return Bytes(buf[:n:n]), true, err
		}
		if err != nil {
			return Chunk{}, false, err
		}
	}
	return Chunk{}, false, io.ErrNoProgress
}

func (p *readerProducer) Close() error {
	if c, ok := p.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// FromFunc adapts fn to a Producer.
func FromFunc(fn func(ctx context.Context) (Chunk, bool, error)) Producer {
	return ProducerFunc(fn)
}

type generator struct {
	fn func(i int) (Chunk, bool)
	i  int
}

// Generate calls fn with 0, 1, 2, ... until it returns false. A generator
// that never returns false runs until the source is finished or the run
// is cancelled.
func Generate(fn func(i int) (Chunk, bool)) Producer {
	return &generator{fn: fn}
}

func (g *generator) Next(ctx context.Context) (Chunk, bool, error) {
	if err := ctx.Err(); err != nil {
		return Chunk{}, false, err
	}
	c, ok := g.fn(g.i)
	g.i++
	return c, ok, nil
}

type limited struct {
	p    Producer
	left int
}

// Limit ends p after n chunks. Closing the result closes p.
func Limit(p Producer, n int) Producer {
	return &limited{p: p, left: max(n, 0)}
}

func (l *limited) Next(ctx context.Context) (Chunk, bool, error) {
	if l.left == 0 {
		return Chunk{}, false, nil
	}
	c, ok, err := l.p.Next(ctx)
	if ok {
		l.left--
	}
	return c, ok, err
}

func (l *limited) Close() error {
	if c, ok := l.p.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
