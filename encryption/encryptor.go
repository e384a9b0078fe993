package encryption

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/kbukum/gostream/errors"
)

// Encryptor seals and opens byte payloads.
type Encryptor interface {
	// Seal returns nonce|ciphertext for plaintext.
	Seal(plaintext []byte) ([]byte, error)
	// Open authenticates and decrypts a payload produced by Seal.
	Open(sealed []byte) ([]byte, error)
	// Overhead is the number of bytes Seal adds to a plaintext.
	Overhead() int
	// Algorithm names the cipher.
	Algorithm() Algorithm
}

// Algorithm represents supported encryption algorithms.
type Algorithm string

const (
	// AlgorithmAESGCM is AES-256-GCM (default, widely supported).
	AlgorithmAESGCM Algorithm = "aes-256-gcm"

	// AlgorithmChaCha20 is ChaCha20-Poly1305 (modern, fast on CPUs without AES-NI).
	AlgorithmChaCha20 Algorithm = "chacha20-poly1305"
)

// Option configures New.
type Option func(*options)

type options struct {
	algorithm Algorithm
}

// WithAlgorithm selects the encryption algorithm (default: AES-256-GCM).
func WithAlgorithm(alg Algorithm) Option {
	return func(o *options) { o.algorithm = alg }
}

// New creates an Encryptor keyed by passphrase.
func New(passphrase string, opts ...Option) (Encryptor, error) {
	o := &options{algorithm: AlgorithmAESGCM}
	for _, opt := range opts {
		opt(o)
	}
	if passphrase == "" {
		return nil, errors.InvalidInput("passphrase", "must not be empty")
	}

	key := deriveKey(passphrase)
	switch o.algorithm {
	case AlgorithmAESGCM:
		return NewAESGCM(key)
	case AlgorithmChaCha20:
		return NewChaCha20(key)
	default:
		return nil, errors.InvalidInput("algorithm", fmt.Sprintf("unsupported algorithm %q", o.algorithm))
	}
}

// deriveKey hashes a passphrase to a 32-byte key.
func deriveKey(passphrase string) []byte {
	sum := sha256.Sum256([]byte(passphrase))
	return sum[:]
}

// aeadSealer implements Encryptor over any AEAD with a random nonce prefix.
type aeadSealer struct {
	aead cipher.AEAD
	alg  Algorithm
}

func (s *aeadSealer) Seal(plaintext []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	out := make([]byte, nonceSize, nonceSize+len(plaintext)+s.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, out); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return s.aead.Seal(out, out[:nonceSize], plaintext, nil), nil
}

func (s *aeadSealer) Open(sealed []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	if len(sealed) < nonceSize+s.aead.Overhead() {
		return nil, fmt.Errorf("sealed payload too short: %d bytes", len(sealed))
	}
	plaintext, err := s.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

func (s *aeadSealer) Overhead() int {
	return s.aead.NonceSize() + s.aead.Overhead()
}

func (s *aeadSealer) Algorithm() Algorithm { return s.alg }

// EncryptString seals plaintext and returns it base64-encoded.
func EncryptString(enc Encryptor, plaintext string) (string, error) {
	sealed, err := enc.Seal([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptString reverses EncryptString.
func DecryptString(enc Encryptor, ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode base64: %w", err)
	}
	plaintext, err := enc.Open(data)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
