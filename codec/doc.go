// Package codec provides stream transforms that encode chunk payloads:
// compression, authenticated encryption and digests.
//
// Compression uses github.com/klauspost/compress (gzip, raw deflate and
// zstd). Encrypt frames every input chunk as
//
//	uint32 big-endian length | nonce | ciphertext
//
// so Decrypt can reassemble frames that arrive split across chunks.
// Digest emits a single chunk holding the digest once input is finished;
// Tap passes chunks through and exposes the digest through Sum.
//
// Pack and Unpack wire these transforms into complete pipelines that
// compress-then-encrypt a reader into a writer and back again.
package codec
