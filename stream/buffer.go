package stream

import (
	"github.com/kbukum/gostream/errors"
)

// Buffer is a FIFO of chunks accepted by a stage but not yet processed.
// It tracks the cumulative weight of its chunks against the configured
// marks. Buffer is not safe for concurrent use; its owning Stage guards it.
type Buffer struct {
	items   []Chunk
	head    int
	size    int
	hwm     int
	lwm     int
	hardCap int
	objects bool
}

// NewBuffer creates a buffer with cfg's thresholds. Unset thresholds take
// their defaults.
func NewBuffer(cfg Config) *Buffer {
	cfg.ApplyDefaults()
	return &Buffer{
		hwm:     cfg.HighWaterMark,
		lwm:     max(cfg.LowWaterMark, 0),
		hardCap: cfg.HardCap,
		objects: cfg.ObjectMode,
	}
}

// Push appends c and reports whether the buffer is now at or above its
// high-water mark. It fails with CAPACITY_EXCEEDED only when the buffer
// was already at its hard cap, which a producer honouring backpressure
// never reaches.
func (b *Buffer) Push(c Chunk) (bool, error) {
	if b.size >= b.hardCap || b.Len() >= b.hardCap {
		return true, errors.CapacityExceeded("", b.size, b.hardCap)
	}
	b.items = append(b.items, c)
	b.size += b.weight(c)
	return b.IsAtOrAboveHighWaterMark(), nil
}

// Pop removes and returns the oldest chunk. ok is false when empty.
func (b *Buffer) Pop() (c Chunk, ok bool) {
	if b.head >= len(b.items) {
		return Chunk{}, false
	}
	c = b.items[b.head]
	b.items[b.head] = Chunk{}
	b.head++
	b.size -= b.weight(c)
	if b.head == len(b.items) {
		b.items = b.items[:0]
		b.head = 0
	} else if b.head > len(b.items)/2 && b.head > 32 {
		n := copy(b.items, b.items[b.head:])
		clear(b.items[n:])
		b.items = b.items[:n]
		b.head = 0
	}
	return c, true
}

// weight is 1 per chunk in object mode and the payload length otherwise.
func (b *Buffer) weight(c Chunk) int {
	if b.objects {
		return 1
	}
	return c.Size()
}

// Len returns the number of queued chunks.
func (b *Buffer) Len() int {
	return len(b.items) - b.head
}

// Size returns the cumulative weight of queued chunks.
func (b *Buffer) Size() int {
	return b.size
}

// IsAtOrAboveHighWaterMark reports whether the producer should pause.
func (b *Buffer) IsAtOrAboveHighWaterMark() bool {
	return b.size >= b.hwm || b.Len() >= b.hwm
}

// IsDrained reports whether a paused producer may resume.
func (b *Buffer) IsDrained() bool {
	return b.size <= b.lwm && b.Len() <= b.lwm
}

// Reset discards every queued chunk and returns how many were dropped.
func (b *Buffer) Reset() int {
	n := b.Len()
	clear(b.items)
	b.items = b.items[:0]
	b.head = 0
	b.size = 0
	return n
}
