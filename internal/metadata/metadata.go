// Package metadata implements PrivateMetadata: the small encrypted sidecar
// that carries a file's original path, size, content type, timestamps and
// user headers inside its ObjectEnvelope (spec §4.4.3). Grounded in the
// teacher's domain/file.Model, which carries the same fields in plaintext
// on a server-trusted record — here the same shape is AEAD-sealed under
// the per-object DEK before it ever leaves the client.
package metadata

import (
	"encoding/json"
	"time"

	"github.com/fula-go/cryptostore/internal/common/errors"
	"github.com/fula-go/cryptostore/internal/primitives"
)

// privMetaAAD domain-separates the metadata sub-blob from the object's bulk
// ciphertext so a wrapped metadata blob can never be swapped onto a
// different object's DEK without detection.
const privMetaAAD = "priv-meta"

// CurrentVersion is the encrypted-metadata wire version this build emits.
const CurrentVersion = 1

// PrivateMetadata is the plaintext carried inside the encrypted sub-blob.
type PrivateMetadata struct {
	OriginalPath string            `json:"original_path"`
	Size         int64             `json:"size"`
	ContentType  string            `json:"content_type,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	ModifiedAt   time.Time         `json:"modified_at"`
	UserMetadata map[string]string `json:"user_metadata,omitempty"`
	ContentHash  string            `json:"content_hash,omitempty"`
}

// EncryptedPrivateMetadata is the inline, AEAD-sealed form stored in an
// ObjectEnvelope.
type EncryptedPrivateMetadata struct {
	Version    int    `json:"version"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// Seal serializes meta as JSON and encrypts it under dek using alg, binding
// it to privMetaAAD.
func Seal(alg primitives.Algorithm, dek []byte, meta PrivateMetadata) (*EncryptedPrivateMetadata, error) {
	plaintext, err := json.Marshal(meta)
	if err != nil {
		return nil, errors.New("metadata: failed to marshal private metadata", err)
	}
	nonce, ciphertext, err := primitives.Seal(alg, dek, plaintext, []byte(privMetaAAD))
	if err != nil {
		return nil, err
	}
	return &EncryptedPrivateMetadata{Version: CurrentVersion, Nonce: nonce, Ciphertext: ciphertext}, nil
}

// Open decrypts enc under dek using alg and parses the resulting JSON.
func Open(alg primitives.Algorithm, dek []byte, enc *EncryptedPrivateMetadata) (*PrivateMetadata, error) {
	if enc == nil {
		return nil, errors.New("metadata: no encrypted metadata present", nil)
	}
	if enc.Version != CurrentVersion {
		return nil, errors.NewUnsupportedVersion(enc.Version)
	}
	plaintext, err := primitives.Open(alg, dek, enc.Nonce, enc.Ciphertext, []byte(privMetaAAD))
	if err != nil {
		return nil, errors.NewAuthenticationFailed(err)
	}
	var meta PrivateMetadata
	if err := json.Unmarshal(plaintext, &meta); err != nil {
		return nil, errors.NewIntegrity("metadata: corrupt private metadata payload", err)
	}
	return &meta, nil
}
