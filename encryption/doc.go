// Package encryption provides authenticated symmetric encryption of byte
// payloads, used by the codec package to seal pipeline chunks.
//
// Keys are derived from a passphrase with SHA-256. Each sealed payload
// carries its own random nonce as a prefix, so the same plaintext never
// seals to the same bytes twice.
//
// # Usage
//
//	enc, err := encryption.New("my-secret-passphrase",
//	    encryption.WithAlgorithm(encryption.AlgorithmChaCha20))
//	sealed, err := enc.Seal(plaintext)
//	plaintext, err := enc.Open(sealed)
package encryption
