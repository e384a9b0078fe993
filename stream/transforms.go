package stream

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"sync/atomic"
	"unicode"
	"unicode/utf8"

	"golang.org/x/time/rate"
)

// PassThrough emits every chunk unchanged.
func PassThrough() Transformer {
	return TransformFunc(func(_ context.Context, in Chunk, emit Emit) error {
		return emit(in)
	})
}

// Map emits fn's result for every chunk.
func Map(fn func(Chunk) (Chunk, error)) Transformer {
	return TransformFunc(func(_ context.Context, in Chunk, emit Emit) error {
		out, err := fn(in)
		if err != nil {
			return err
		}
		return emit(out)
	})
}

// Filter emits only the chunks keep accepts.
func Filter(keep func(Chunk) bool) Transformer {
	return TransformFunc(func(_ context.Context, in Chunk, emit Emit) error {
		if !keep(in) {
			return nil
		}
		return emit(in)
	})
}

// Separator appends sep to every chunk.
func Separator(sep string) Transformer {
	return TransformFunc(func(_ context.Context, in Chunk, emit Emit) error {
		if in.IsObject() {
			return emit(Text(in.String() + sep))
		}
		out := make([]byte, 0, len(in.Data)+len(sep))
		out = append(out, in.Data...)
		out = append(out, sep...)
		return emit(Bytes(out))
	})
}

type uppercase struct {
	carry []byte
}

// Uppercase upper-cases text. A multi-byte rune split across chunks is
// held back until its remaining bytes arrive.
func Uppercase() Transformer {
	return &uppercase{}
}

func (u *uppercase) Transform(_ context.Context, in Chunk, emit Emit) error {
	if in.IsObject() {
		return emit(Text(strings.ToUpper(in.String())))
	}
	if len(in.Data) == 0 && len(u.carry) == 0 {
		return emit(Bytes(nil))
	}
	data := joinCarry(u.carry, in.Data)
	data, u.carry = splitIncompleteRune(data)
	if len(data) == 0 {
		// Only a partial rune so far.
		return nil
	}
	return emit(Bytes(bytes.ToUpper(data)))
}

func (u *uppercase) Flush(_ context.Context, emit Emit) error {
	if len(u.carry) == 0 {
		return nil
	}
	out := bytes.ToUpper(u.carry)
	u.carry = nil
	return emit(Bytes(out))
}

// splitIncompleteRune separates a trailing partial UTF-8 sequence.
func splitIncompleteRune(data []byte) (complete, partial []byte) {
	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
		if utf8.RuneStart(data[i]) {
			if !utf8.FullRune(data[i:]) {
				return data[:i], slices.Clone(data[i:])
			}
			break
		}
	}
	return data, nil
}

func joinCarry(carry, data []byte) []byte {
	if len(carry) == 0 {
		return data
	}
	out := make([]byte, 0, len(carry)+len(data))
	out = append(out, carry...)
	return append(out, data...)
}

// CountingTransformer passes chunks through and counts their bytes.
type CountingTransformer struct {
	chunks atomic.Int64
	bytes  atomic.Int64
}

// CountBytes returns a pass-through transform that counts traffic.
func CountBytes() *CountingTransformer {
	return &CountingTransformer{}
}

func (c *CountingTransformer) Transform(_ context.Context, in Chunk, emit Emit) error {
	c.chunks.Add(1)
	c.bytes.Add(int64(in.Size()))
	return emit(in)
}

// Count returns the bytes seen so far.
func (c *CountingTransformer) Count() int64 { return c.bytes.Load() }

// Chunks returns the chunks seen so far.
func (c *CountingTransformer) Chunks() int64 { return c.chunks.Load() }

func isWordDelimiter(r rune) bool {
	switch r {
	case ',', '.', ';', ':':
		return true
	}
	return unicode.IsSpace(r)
}

type words struct {
	carry []byte
}

// Words splits text into words on whitespace and the punctuation , . ; :
// and emits one chunk per word. A word cut off at the end of a chunk is
// completed by the next one; the last word is emitted at finish.
func Words() Transformer {
	return &words{}
}

func (w *words) Transform(_ context.Context, in Chunk, emit Emit) error {
	payload := in.Data
	if in.IsObject() {
		payload = []byte(in.String())
	}
	data := joinCarry(w.carry, payload)
	w.carry = nil

	i := bytes.LastIndexFunc(data, isWordDelimiter)
	if i < 0 {
		w.carry = slices.Clone(data)
		return nil
	}
	_, n := utf8.DecodeRune(data[i:])
	if tail := data[i+n:]; len(tail) > 0 {
		w.carry = slices.Clone(tail)
	}
	for _, word := range bytes.FieldsFunc(data[:i+n], isWordDelimiter) {
		if err := emit(Bytes(slices.Clone(word))); err != nil {
			return err
		}
	}
	return nil
}

func (w *words) Flush(_ context.Context, emit Emit) error {
	if len(w.carry) == 0 {
		return nil
	}
	word := w.carry
	w.carry = nil
	return emit(Bytes(word))
}

type throttle struct {
	limiter *rate.Limiter
	burst   int
}

// Throttle limits throughput to bytesPerSecond, or chunks per second in
// object mode. burst is the largest amount let through at once; 0 selects
// one second's worth.
func Throttle(bytesPerSecond, burst int) Transformer {
	if bytesPerSecond <= 0 {
		return PassThrough()
	}
	if burst <= 0 {
		burst = bytesPerSecond
	}
	return &throttle{limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), burst), burst: burst}
}

func (t *throttle) Transform(ctx context.Context, in Chunk, emit Emit) error {
	for n := in.Size(); n > 0; {
		k := min(n, t.burst)
		if err := t.limiter.WaitN(ctx, k); err != nil {
			return err
		}
		n -= k
	}
	return emit(in)
}
