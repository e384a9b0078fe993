package codec

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/kbukum/gostream/errors"
	"github.com/kbukum/gostream/stream"
)

// HashAlgorithm names a digest function.
type HashAlgorithm string

const (
	SHA256     HashAlgorithm = "sha256"
	HMACSHA256 HashAlgorithm = "hmac-sha256"
	BLAKE2b256 HashAlgorithm = "blake2b-256"
)

// DigestOption configures Digest and Tap.
type DigestOption func(*digestOptions)

type digestOptions struct {
	key []byte
	hex bool
}

// WithKey sets the key for HMAC-SHA256 (required) or keyed BLAKE2b.
func WithKey(key []byte) DigestOption {
	return func(o *digestOptions) { o.key = key }
}

// WithHexOutput makes Digest emit the lowercase hex encoding.
func WithHexOutput() DigestOption {
	return func(o *digestOptions) { o.hex = true }
}

// Digester hashes every chunk it sees.
type Digester struct {
	alg         HashAlgorithm
	h           hash.Hash
	hex         bool
	passThrough bool

	mu  sync.Mutex
	sum []byte
}

// Digest returns a transform that consumes its input and emits one chunk
// holding the digest at finish.
func Digest(alg HashAlgorithm, opts ...DigestOption) (*Digester, error) {
	return newDigester(alg, false, opts)
}

// Tap returns a transform that passes chunks through unchanged and
// records their digest, available from Sum once the stage has finished.
func Tap(alg HashAlgorithm, opts ...DigestOption) (*Digester, error) {
	return newDigester(alg, true, opts)
}

func newDigester(alg HashAlgorithm, passThrough bool, opts []DigestOption) (*Digester, error) {
	o := &digestOptions{}
	for _, opt := range opts {
		opt(o)
	}
	h, err := newHash(alg, o.key)
	if err != nil {
		return nil, err
	}
	return &Digester{alg: alg, h: h, hex: o.hex, passThrough: passThrough}, nil
}

func newHash(alg HashAlgorithm, key []byte) (hash.Hash, error) {
	switch alg {
	case SHA256:
		return sha256.New(), nil
	case HMACSHA256:
		if len(key) == 0 {
			return nil, errors.InvalidInput("key", "hmac-sha256 requires a key")
		}
		return hmac.New(sha256.New, key), nil
	case BLAKE2b256:
		h, err := blake2b.New256(key)
		if err != nil {
			return nil, errors.InvalidInput("key", err.Error())
		}
		return h, nil
	default:
		return nil, errors.InvalidInput("algorithm", fmt.Sprintf("unsupported digest %q", alg))
	}
}

// Algorithm returns the digest function.
func (d *Digester) Algorithm() HashAlgorithm { return d.alg }

func (d *Digester) Transform(_ context.Context, in stream.Chunk, emit stream.Emit) error {
	d.h.Write(payload(in))
	if d.passThrough {
		return emit(in)
	}
	return nil
}

func (d *Digester) Flush(_ context.Context, emit stream.Emit) error {
	sum := d.h.Sum(nil)
	d.mu.Lock()
	d.sum = sum
	d.mu.Unlock()

	if d.passThrough {
		return nil
	}
	if d.hex {
		return emit(stream.Text(hex.EncodeToString(sum)))
	}
	return emit(stream.Bytes(sum))
}

// Sum returns the digest, or nil before the stage finished.
func (d *Digester) Sum() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sum
}

// HexSum returns Sum hex-encoded.
func (d *Digester) HexSum() string {
	return hex.EncodeToString(d.Sum())
}
