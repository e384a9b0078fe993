package codec

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/kbukum/gostream/encryption"
	"github.com/kbukum/gostream/stream"
)

const (
	frameHeaderSize = 4
	// MaxFrameSize bounds a sealed frame Decrypt will buffer.
	MaxFrameSize = 64 << 20
)

// Encrypt seals every input chunk into one length-prefixed frame.
func Encrypt(enc encryption.Encryptor) stream.Transformer {
	return stream.TransformFunc(func(_ context.Context, in stream.Chunk, emit stream.Emit) error {
		sealed, err := enc.Seal(payload(in))
		if err != nil {
			return err
		}
		frame := make([]byte, frameHeaderSize+len(sealed))
		binary.BigEndian.PutUint32(frame, uint32(len(sealed)))
		copy(frame[frameHeaderSize:], sealed)
		return emit(stream.Bytes(frame))
	})
}

// Decrypter reverses Encrypt. Frames may arrive split across any number
// of chunks; each complete frame is opened and emitted as one chunk.
type Decrypter struct {
	enc     encryption.Encryptor
	pending []byte
}

// Decrypt returns a Decrypter for frames sealed by enc.
func Decrypt(enc encryption.Encryptor) *Decrypter {
	return &Decrypter{enc: enc}
}

func (d *Decrypter) Transform(_ context.Context, in stream.Chunk, emit stream.Emit) error {
	d.pending = append(d.pending, payload(in)...)

	buf := d.pending
	for len(buf) >= frameHeaderSize {
		n := binary.BigEndian.Uint32(buf)
		if n > MaxFrameSize {
			return fmt.Errorf("frame of %d bytes exceeds limit %d", n, MaxFrameSize)
		}
		end := frameHeaderSize + int(n)
		if len(buf) < end {
			break
		}
		plaintext, err := d.enc.Open(buf[frameHeaderSize:end])
		if err != nil {
			return err
		}
		if err := emit(stream.Bytes(plaintext)); err != nil {
			return err
		}
		buf = buf[end:]
	}

	// Keep only the partial frame.
	d.pending = append(d.pending[:0], buf...)
	return nil
}

func (d *Decrypter) Flush(context.Context, stream.Emit) error {
	if len(d.pending) > 0 {
		return fmt.Errorf("truncated frame: %d trailing bytes", len(d.pending))
	}
	return nil
}
