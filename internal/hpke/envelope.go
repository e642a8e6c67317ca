// Package hpke implements RFC 9180 base-mode hybrid public key encryption,
// used to wrap a DEK to one or more recipient public keys. Structurally
// grounded in the other_examples HPKE sketch (ephemeral X25519 + HKDF +
// AEAD, multi-recipient SealedEnvelope shape), but that sketch recovers the
// content key by XORing it with the shared secret — that is not
// encryption, it is obfuscation, and it leaks the content key to anyone who
// can compute the shared secret for ANY recipient. Here the DEK is always
// sealed with a real AEAD keyed by an HKDF-derived key, per RFC 9180 §5.1.
package hpke

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/fula-go/cryptostore/internal/common/errors"
	"github.com/fula-go/cryptostore/internal/primitives"
)

// suiteInfo is the fixed RFC 9180-style info string binding every key this
// package derives to the storage format version. Changing it invalidates
// every existing envelope, so it is never parameterized at runtime.
const suiteInfo = "fula-storage-v2"

// Encapsulation is one recipient's wrapped copy of a DEK: the sender's
// ephemeral public key plus the AEAD-sealed key material.
type Encapsulation struct {
	EphemeralPublicKey []byte
	Nonce              []byte
	WrappedKey         []byte
}

// deriveKey runs HKDF-SHA256 over the X25519 shared secret, binding in
// both ephemeral and recipient public keys (the RFC 9180 KEM context) plus
// the caller-supplied AAD so a wrapped key cannot be replayed against a
// different object or share scope. Matches the X25519-HKDF-SHA256 /
// HKDF-SHA256 / ChaCha20-Poly1305 suite spec.md names.
func deriveKey(sharedSecret, ephemeralPub, recipientPub, aad []byte) ([]byte, error) {
	salt := make([]byte, 0, len(ephemeralPub)+len(recipientPub))
	salt = append(salt, ephemeralPub...)
	salt = append(salt, recipientPub...)

	info := make([]byte, 0, len(suiteInfo)+len(aad))
	info = append(info, suiteInfo...)
	info = append(info, aad...)

	kdf := hkdf.New(sha256.New, sharedSecret, salt, info)
	key := make([]byte, primitives.KeySize)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, errors.NewInvalidKey("hpke: failed to derive wrap key", err)
	}
	return key, nil
}

// EncryptDEK wraps dek to a single recipient's X25519 public key. aad binds
// the encapsulation to its context (e.g. an object's storage key, or a
// share token's scope) so a wrapped DEK cannot be lifted and replayed
// elsewhere.
func EncryptDEK(dek, recipientPublicKey, aad []byte) (*Encapsulation, error) {
	ephemeralPub, ephemeralPriv, err := primitives.GenerateX25519KeyPair()
	if err != nil {
		return nil, err
	}
	defer primitives.Zero(ephemeralPriv)

	sharedSecret, err := primitives.X25519SharedSecret(ephemeralPriv, recipientPublicKey)
	if err != nil {
		return nil, err
	}
	defer primitives.Zero(sharedSecret)

	wrapKey, err := deriveKey(sharedSecret, ephemeralPub, recipientPublicKey, aad)
	if err != nil {
		return nil, err
	}
	defer primitives.Zero(wrapKey)

	nonce, wrapped, err := primitives.Seal(primitives.AlgorithmChaCha20Poly1305, wrapKey, dek, aad)
	if err != nil {
		return nil, err
	}

	return &Encapsulation{EphemeralPublicKey: ephemeralPub, Nonce: nonce, WrappedKey: wrapped}, nil
}

// DecryptDEK recovers the DEK sealed in encap using the recipient's secret
// key. aad must match the value passed to EncryptDEK exactly.
func DecryptDEK(encap *Encapsulation, recipientSecretKey, recipientPublicKey, aad []byte) ([]byte, error) {
	sharedSecret, err := primitives.X25519SharedSecret(recipientSecretKey, encap.EphemeralPublicKey)
	if err != nil {
		return nil, err
	}
	defer primitives.Zero(sharedSecret)

	wrapKey, err := deriveKey(sharedSecret, encap.EphemeralPublicKey, recipientPublicKey, aad)
	if err != nil {
		return nil, err
	}
	defer primitives.Zero(wrapKey)

	dek, err := primitives.Open(primitives.AlgorithmChaCha20Poly1305, wrapKey, encap.Nonce, encap.WrappedKey, aad)
	if err != nil {
		return nil, errors.NewAuthenticationFailed(err)
	}
	return dek, nil
}

// MultiRecipientEnvelope is a DEK wrapped independently to several
// recipients, e.g. a bucket owner plus every active share grantee.
type MultiRecipientEnvelope struct {
	Encapsulations map[string]Encapsulation // recipient public key (hex) -> encapsulation
}

// EncryptDEKForRecipients wraps dek once per recipient public key.
func EncryptDEKForRecipients(dek []byte, recipientPublicKeys [][]byte, aad []byte) (*MultiRecipientEnvelope, error) {
	if len(recipientPublicKeys) == 0 {
		return nil, errors.New("hpke: at least one recipient is required", nil)
	}
	out := &MultiRecipientEnvelope{Encapsulations: make(map[string]Encapsulation, len(recipientPublicKeys))}
	for _, pub := range recipientPublicKeys {
		encap, err := EncryptDEK(dek, pub, aad)
		if err != nil {
			return nil, err
		}
		out.Encapsulations[hexKey(pub)] = *encap
	}
	return out, nil
}

// DecryptDEKForRecipient recovers the DEK from env using the keypair
// identified by recipientPublicKey.
func DecryptDEKForRecipient(env *MultiRecipientEnvelope, recipientSecretKey, recipientPublicKey, aad []byte) ([]byte, error) {
	encap, ok := env.Encapsulations[hexKey(recipientPublicKey)]
	if !ok {
		return nil, errors.NewPermissionDenied("hpke: no encapsulation for this recipient")
	}
	return DecryptDEK(&encap, recipientSecretKey, recipientPublicKey, aad)
}

func hexKey(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexDigits[c>>4]
		out[i*2+1] = hexDigits[c&0x0f]
	}
	return string(out)
}
