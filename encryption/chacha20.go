package encryption

import (
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// NewChaCha20 creates a ChaCha20-Poly1305 Encryptor from a 32-byte key.
// It performs well on CPUs without AES hardware acceleration.
func NewChaCha20(key []byte) (Encryptor, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("create chacha20: %w", err)
	}
	return &aeadSealer{aead: aead, alg: AlgorithmChaCha20}, nil
}
