package primitives

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/nacl/secretbox"
)

// Algorithm identifies an AEAD family. It is stored verbatim in
// ObjectEnvelope.Algorithm.
type Algorithm string

const (
	AlgorithmAES256GCM         Algorithm = "AES-256-GCM"
	AlgorithmChaCha20Poly1305 Algorithm = "ChaCha20-Poly1305"
	// AlgorithmXSalsa20Poly1305 is the envelope-version-1 AEAD (NaCl
	// secretbox). Readers must still accept it; writers never emit it.
	AlgorithmXSalsa20Poly1305 Algorithm = "xsalsa20poly1305"
)

const (
	KeySize = 32

	aesGCMNonceSize    = 12
	chachaNonceSize    = chacha20poly1305.NonceSize // 12
	secretboxNonceSize = 24
)

// NonceSize returns the nonce length required by alg.
func NonceSize(alg Algorithm) (int, error) {
	switch alg {
	case AlgorithmAES256GCM:
		return aesGCMNonceSize, nil
	case AlgorithmChaCha20Poly1305:
		return chachaNonceSize, nil
	case AlgorithmXSalsa20Poly1305:
		return secretboxNonceSize, nil
	default:
		return 0, fmt.Errorf("primitives: unsupported algorithm %q", alg)
	}
}

// ErrAuthenticationFailed is returned by Open whenever the ciphertext, tag,
// AAD, key or nonce is wrong. Deliberately indistinguishable: callers must
// not be able to tell which of those was the problem (spec §4.1).
var ErrAuthenticationFailed = errors.New("primitives: authentication failed")

// Seal encrypts plaintext under key with the given algorithm, a freshly
// generated nonce, and optional AAD. It returns the nonce and ciphertext
// (ciphertext includes the authentication tag).
func Seal(alg Algorithm, key, plaintext, aad []byte) (nonce, ciphertext []byte, err error) {
	if len(key) != KeySize {
		return nil, nil, fmt.Errorf("primitives: key must be %d bytes, got %d", KeySize, len(key))
	}
	size, err := NonceSize(alg)
	if err != nil {
		return nil, nil, err
	}
	nonce, err = GenerateRandomBytes(size)
	if err != nil {
		return nil, nil, err
	}
	ciphertext, err = sealWithNonce(alg, key, nonce, plaintext, aad)
	if err != nil {
		return nil, nil, err
	}
	return nonce, ciphertext, nil
}

// Open decrypts ciphertext under key, nonce and AAD. Any mismatch among
// those four plus the algorithm surfaces as ErrAuthenticationFailed.
func Open(alg Algorithm, key, nonce, ciphertext, aad []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("primitives: key must be %d bytes, got %d", KeySize, len(key))
	}
	switch alg {
	case AlgorithmAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("primitives: aes cipher init: %w", err)
		}
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("primitives: gcm init: %w", err)
		}
		if len(nonce) != gcm.NonceSize() {
			return nil, ErrAuthenticationFailed
		}
		plaintext, err := gcm.Open(nil, nonce, ciphertext, aad)
		if err != nil {
			return nil, ErrAuthenticationFailed
		}
		return plaintext, nil

	case AlgorithmChaCha20Poly1305:
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, fmt.Errorf("primitives: chacha20poly1305 init: %w", err)
		}
		if len(nonce) != aead.NonceSize() {
			return nil, ErrAuthenticationFailed
		}
		plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
		if err != nil {
			return nil, ErrAuthenticationFailed
		}
		return plaintext, nil

	case AlgorithmXSalsa20Poly1305:
		if len(nonce) != secretboxNonceSize {
			return nil, ErrAuthenticationFailed
		}
		var keyArray [32]byte
		var nonceArray [24]byte
		copy(keyArray[:], key)
		copy(nonceArray[:], nonce)
		plaintext, ok := secretbox.Open(nil, ciphertext, &nonceArray, &keyArray)
		if !ok {
			return nil, ErrAuthenticationFailed
		}
		return plaintext, nil

	default:
		return nil, fmt.Errorf("primitives: unsupported algorithm %q", alg)
	}
}

func sealWithNonce(alg Algorithm, key, nonce, plaintext, aad []byte) ([]byte, error) {
	switch alg {
	case AlgorithmAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("primitives: aes cipher init: %w", err)
		}
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("primitives: gcm init: %w", err)
		}
		return gcm.Seal(nil, nonce, plaintext, aad), nil

	case AlgorithmChaCha20Poly1305:
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, fmt.Errorf("primitives: chacha20poly1305 init: %w", err)
		}
		return aead.Seal(nil, nonce, plaintext, aad), nil

	case AlgorithmXSalsa20Poly1305:
		var keyArray [32]byte
		var nonceArray [24]byte
		copy(keyArray[:], key)
		copy(nonceArray[:], nonce)
		return secretbox.Seal(nil, plaintext, &nonceArray, &keyArray), nil

	default:
		return nil, fmt.Errorf("primitives: unsupported algorithm %q", alg)
	}
}
