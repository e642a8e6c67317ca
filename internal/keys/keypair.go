// Package keys implements the key hierarchy: the root KekKeyPair and its
// rotation, DEK generation, and deterministic path-key derivation (spec
// §3, §4.2). Nothing here encrypts bulk content directly — that is the
// pipeline package's job; this package only manufactures and manages key
// material.
package keys

import (
	"time"

	"github.com/fula-go/cryptostore/internal/common/errors"
	"github.com/fula-go/cryptostore/internal/primitives"
)

// KekKeyPair is the user's root asymmetric identity. It is generated once,
// persisted outside this module (the caller's backup flow), and rotated in
// place: rotation keeps the prior generation reachable for a retention
// window so legacy envelopes can still be unwrapped.
type KekKeyPair struct {
	secretKey []byte
	publicKey []byte
	version   uint32

	previous   *KekKeyPair
	retainedAt time.Time
}

// GenerateKekKeyPair draws a fresh X25519 keypair at version 1.
func GenerateKekKeyPair() (*KekKeyPair, error) {
	pub, priv, err := primitives.GenerateX25519KeyPair()
	if err != nil {
		return nil, errors.NewInvalidKey("failed to generate kek keypair", err)
	}
	return &KekKeyPair{secretKey: priv, publicKey: pub, version: 1}, nil
}

// ImportKekKeyPair rebuilds a KekKeyPair from a previously backed-up
// 32-byte secret (spec §4.2 from_secret_key).
func ImportKekKeyPair(secret []byte) (*KekKeyPair, error) {
	if len(secret) != primitives.X25519KeySize {
		return nil, errors.NewInvalidKey("secret key must be 32 bytes", nil)
	}
	pub, err := primitives.X25519PublicKey(secret)
	if err != nil {
		return nil, errors.NewInvalidKey("failed to derive public key from secret", err)
	}
	secretCopy := make([]byte, len(secret))
	copy(secretCopy, secret)
	return &KekKeyPair{secretKey: secretCopy, publicKey: pub, version: 1}, nil
}

// ImportKekKeyPairWithPassphrase decrypts a secret key that was wrapped for
// backup under a passphrase-derived key (supplementary to spec §4.2's bare
// from_secret_key, grounded in the teacher's DeriveKeyFromPassword +
// EncryptedMasterKey pattern).
func ImportKekKeyPairWithPassphrase(passphrase string, salt, nonce, wrappedSecret []byte) (*KekKeyPair, error) {
	kek, err := DeriveKeyEncryptionKeyFromPassphrase(passphrase, salt)
	if err != nil {
		return nil, err
	}
	defer primitives.Zero(kek)

	secret, err := primitives.Open(primitives.AlgorithmChaCha20Poly1305, kek, nonce, wrappedSecret, []byte("fula:v2:backup-unwrap"))
	if err != nil {
		return nil, errors.NewAuthenticationFailed(err)
	}
	defer primitives.Zero(secret)
	return ImportKekKeyPair(secret)
}

// PublicKey returns the 32-byte public point.
func (k *KekKeyPair) PublicKey() []byte { return k.publicKey }

// SecretKeyBytes exposes the raw secret. Callers must not retain it past the
// operation that needs it; zero it via primitives.Zero when done.
func (k *KekKeyPair) SecretKeyBytes() []byte { return k.secretKey }

// CurrentVersion returns the keypair's rotation generation.
func (k *KekKeyPair) CurrentVersion() uint32 { return k.version }

// PreviousKeyPair returns the keypair generation this one rotated away
// from, or nil if there has been no rotation (or the retention window has
// since been discarded by the caller via DiscardPrevious).
func (k *KekKeyPair) PreviousKeyPair() *KekKeyPair { return k.previous }

// RetainedAt reports when the previous generation was demoted, for
// enforcing kek_retention_window.
func (k *KekKeyPair) RetainedAt() time.Time { return k.retainedAt }

// Rotate generates a fresh keypair, demotes the current one to Previous,
// and bumps Version. The returned value is the new current keypair.
func (k *KekKeyPair) Rotate() (*KekKeyPair, error) {
	next, err := GenerateKekKeyPair()
	if err != nil {
		return nil, err
	}
	next.version = k.version + 1
	previous := *k
	previous.previous = nil
	next.previous = &previous
	next.retainedAt = time.Now()
	return next, nil
}

// DiscardPrevious drops the retained prior generation once the operator has
// confirmed every envelope has been re-wrapped (spec §4.8).
func (k *KekKeyPair) DiscardPrevious() {
	if k.previous != nil {
		primitives.Zero(k.previous.secretKey)
		k.previous = nil
	}
}

// Clear zeroes the secret key (and any retained previous generation).
func (k *KekKeyPair) Clear() {
	primitives.Zero(k.secretKey)
	if k.previous != nil {
		k.previous.Clear()
	}
}
