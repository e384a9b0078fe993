package encryption

import (
	"bytes"
	"testing"

	"github.com/kbukum/gostream/errors"
)

var algorithms = []Algorithm{AlgorithmAESGCM, AlgorithmChaCha20}

func TestNew(t *testing.T) {
	for _, alg := range algorithms {
		enc, err := New("test-key-123", WithAlgorithm(alg))
		if err != nil {
			t.Fatalf("New(%s) failed: %v", alg, err)
		}
		if enc.Algorithm() != alg {
			t.Errorf("expected %s, got %s", alg, enc.Algorithm())
		}
	}
}

func TestNewDefaultsToAESGCM(t *testing.T) {
	enc, err := New("key")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if enc.Algorithm() != AlgorithmAESGCM {
		t.Errorf("expected default %s, got %s", AlgorithmAESGCM, enc.Algorithm())
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	if _, err := New(""); !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for empty passphrase, got %v", err)
	}
	if _, err := New("key", WithAlgorithm("rot13")); !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for unknown algorithm, got %v", err)
	}
}

func TestSealOpen(t *testing.T) {
	payloads := [][]byte{
		[]byte("hello world"),
		{},
		[]byte("こんにちは世界"),
		bytes.Repeat([]byte{0xff, 0x00}, 4096),
	}
	for _, alg := range algorithms {
		enc, _ := New("my-secret-key", WithAlgorithm(alg))
		for _, p := range payloads {
			sealed, err := enc.Seal(p)
			if err != nil {
				t.Fatalf("%s: Seal failed: %v", alg, err)
			}
			if len(sealed) != len(p)+enc.Overhead() {
				t.Errorf("%s: expected %d sealed bytes, got %d", alg, len(p)+enc.Overhead(), len(sealed))
			}
			opened, err := enc.Open(sealed)
			if err != nil {
				t.Fatalf("%s: Open failed: %v", alg, err)
			}
			if !bytes.Equal(opened, p) {
				t.Errorf("%s: payload mismatch", alg)
			}
		}
	}
}

func TestSealUsesFreshNonce(t *testing.T) {
	enc, _ := New("my-key")
	a, _ := enc.Seal([]byte("same input"))
	b, _ := enc.Seal([]byte("same input"))
	if bytes.Equal(a, b) {
		t.Error("sealing the same plaintext twice should differ")
	}
}

func TestOpenWithWrongKey(t *testing.T) {
	for _, alg := range algorithms {
		one, _ := New("key-one", WithAlgorithm(alg))
		two, _ := New("key-two", WithAlgorithm(alg))

		sealed, _ := one.Seal([]byte("secret data"))
		if _, err := two.Open(sealed); err == nil {
			t.Errorf("%s: expected open to fail with wrong key", alg)
		}
	}
}

func TestOpenTampered(t *testing.T) {
	enc, _ := New("key", WithAlgorithm(AlgorithmChaCha20))
	sealed, _ := enc.Seal([]byte("chunk payload"))
	sealed[len(sealed)-1] ^= 0x01
	if _, err := enc.Open(sealed); err == nil {
		t.Error("expected tampered payload to fail authentication")
	}
}

func TestOpenTooShort(t *testing.T) {
	enc, _ := New("key")
	if _, err := enc.Open([]byte("a")); err == nil {
		t.Error("expected error for short payload")
	}
}

func TestStringHelpers(t *testing.T) {
	enc, _ := New("my-secret-key")
	ct, err := EncryptString(enc, `{"key":"value","num":42}`)
	if err != nil {
		t.Fatalf("EncryptString failed: %v", err)
	}
	pt, err := DecryptString(enc, ct)
	if err != nil {
		t.Fatalf("DecryptString failed: %v", err)
	}
	if pt != `{"key":"value","num":42}` {
		t.Errorf("unexpected plaintext %q", pt)
	}
	if _, err := DecryptString(enc, "not-valid-base64!!!"); err == nil {
		t.Error("expected error for invalid base64")
	}
}
