// Package primitives implements the cryptographic leaves of the storage
// core: random generation, AEAD, the X25519 KEM, BLAKE3 hashing and the
// Bao-style verified tree hash. Nothing above this package may hand-roll a
// crypto primitive; everything else composes these.
package primitives

import (
	"crypto/rand"
	"fmt"
	"io"
)

// GenerateRandomBytes draws size bytes from a cryptographic source. Used
// for keys, nonces, salts and identifiers — never a weaker PRNG.
func GenerateRandomBytes(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("primitives: size must be positive, got %d", size)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return nil, fmt.Errorf("primitives: failed to read random bytes: %w", err)
	}
	return buf, nil
}

// Zero overwrites b with zeros in place. Call on SecretKey and DekKey
// buffers once they are no longer needed; it does not prevent the Go
// runtime from having copied the bytes elsewhere, but it closes the
// largest window.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
