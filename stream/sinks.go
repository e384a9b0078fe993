package stream

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// Collector is a sink that keeps every chunk it receives.
type Collector struct {
	mu     sync.Mutex
	chunks []Chunk
}

// Collect returns an empty Collector.
func Collect() *Collector {
	return &Collector{}
}

func (c *Collector) Consume(_ context.Context, in Chunk) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunks = append(c.chunks, in)
	return nil
}

// Chunks returns the chunks received so far, in order.
func (c *Collector) Chunks() []Chunk {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Chunk, len(c.chunks))
	copy(out, c.chunks)
	return out
}

// Bytes returns the concatenated byte payloads.
func (c *Collector) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	var buf bytes.Buffer
	for _, ch := range c.chunks {
		buf.Write(ch.Data)
	}
	return buf.Bytes()
}

// String returns Bytes as a string.
func (c *Collector) String() string {
	return string(c.Bytes())
}

// Strings renders every chunk with Chunk.String.
func (c *Collector) Strings() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.chunks))
	for i, ch := range c.chunks {
		out[i] = ch.String()
	}
	return out
}

// Values returns the object-mode values received.
func (c *Collector) Values() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, 0, len(c.chunks))
	for _, ch := range c.chunks {
		if ch.IsObject() {
			out = append(out, ch.Value)
		}
	}
	return out
}

type flusher interface {
	Flush() error
}

type writerSink struct {
	w io.Writer
}

// ToWriter writes every chunk to w. Writers with a Flush() error method,
// such as *bufio.Writer, are flushed at finish. w is never closed.
func ToWriter(w io.Writer) Consumer {
	return &writerSink{w: w}
}

type writeCloserSink struct {
	writerSink
	c io.Closer
}

// ToWriteCloser is ToWriter followed by closing w when the stage exits.
func ToWriteCloser(w io.WriteCloser) Consumer {
	return &writeCloserSink{writerSink: writerSink{w: w}, c: w}
}

func (s *writeCloserSink) Close() error { return s.c.Close() }

func (s *writerSink) Consume(_ context.Context, in Chunk) error {
	data := in.Data
	if in.IsObject() {
		data = []byte(in.String())
	}
	_, err := s.w.Write(data)
	return err
}

func (s *writerSink) Finish(context.Context) error {
	if f, ok := s.w.(flusher); ok {
		return f.Flush()
	}
	return nil
}

// Discard accepts and drops every chunk.
func Discard() Consumer {
	return ConsumerFunc(func(context.Context, Chunk) error { return nil })
}
