package stream

import "fmt"

// Chunk is one unit of data flowing through a pipeline. Byte-mode chunks
// carry Data; object-mode chunks carry Value. Chunks are treated as
// immutable once emitted: stages must not modify Data they received.
type Chunk struct {
	// Seq is assigned by the emitting stage, starting at 1.
	Seq   uint64
	Data  []byte
	Value any
}

// Bytes creates a byte-mode chunk. b is not copied.
func Bytes(b []byte) Chunk {
	return Chunk{Data: b}
}

// Text creates a byte-mode chunk from s.
func Text(s string) Chunk {
	return Chunk{Data: []byte(s)}
}

// Object creates an object-mode chunk carrying v.
func Object(v any) Chunk {
	return Chunk{Value: v}
}

// IsObject reports whether the chunk carries an object-mode value.
func (c Chunk) IsObject() bool {
	return c.Value != nil
}

// Size is the chunk's weight against a buffer's marks.
func (c Chunk) Size() int {
	if c.IsObject() {
		return 1
	}
	return len(c.Data)
}

// String renders the payload: Data as text, or Value with %v.
func (c Chunk) String() string {
	if c.IsObject() {
		if s, ok := c.Value.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", c.Value)
	}
	return string(c.Data)
}
