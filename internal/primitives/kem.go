package primitives

import (
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// X25519KeySize is the length of both X25519 scalars and points.
const X25519KeySize = 32

// GenerateX25519KeyPair draws a fresh scalar and computes its basepoint
// multiple. Mirrors the construction other corpus HPKE sketches use
// (curve25519.X25519 against curve25519.Basepoint) rather than the NaCl
// box helper, since the KEM here must be composable with HKDF directly.
func GenerateX25519KeyPair() (publicKey, privateKey []byte, err error) {
	privateKey, err = GenerateRandomBytes(X25519KeySize)
	if err != nil {
		return nil, nil, err
	}
	publicKey, err = X25519PublicKey(privateKey)
	if err != nil {
		return nil, nil, err
	}
	return publicKey, privateKey, nil
}

// X25519PublicKey derives the public point for a private scalar.
func X25519PublicKey(privateKey []byte) ([]byte, error) {
	if len(privateKey) != X25519KeySize {
		return nil, fmt.Errorf("primitives: private key must be %d bytes, got %d", X25519KeySize, len(privateKey))
	}
	pub, err := curve25519.X25519(privateKey, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("primitives: x25519 public key derivation: %w", err)
	}
	return pub, nil
}

// X25519SharedSecret computes the Diffie-Hellman shared point between a
// private scalar and a peer's public point.
func X25519SharedSecret(privateKey, peerPublicKey []byte) ([]byte, error) {
	if len(privateKey) != X25519KeySize {
		return nil, fmt.Errorf("primitives: private key must be %d bytes, got %d", X25519KeySize, len(privateKey))
	}
	if len(peerPublicKey) != X25519KeySize {
		return nil, fmt.Errorf("primitives: peer public key must be %d bytes, got %d", X25519KeySize, len(peerPublicKey))
	}
	secret, err := curve25519.X25519(privateKey, peerPublicKey)
	if err != nil {
		return nil, fmt.Errorf("primitives: x25519 shared secret: %w", err)
	}
	return secret, nil
}
