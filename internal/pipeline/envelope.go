// Package pipeline implements the object encryption pipeline: whole-object
// and chunked encrypt/decrypt, verified streaming, ranged reads, and the
// ObjectEnvelope that travels alongside each ciphertext blob (spec §4.4).
// Grounded in the teacher's domain/file package for the shape of a stored
// object's metadata, generalized here to carry real cryptographic state
// instead of a server-trusted record.
package pipeline

import (
	"encoding/json"

	"github.com/fula-go/cryptostore/internal/common/errors"
	"github.com/fula-go/cryptostore/internal/hpke"
	"github.com/fula-go/cryptostore/internal/metadata"
	"github.com/fula-go/cryptostore/internal/primitives"
)

// Envelope versions. 1 is the legacy whole-object format accepted for
// reads only (XSalsa20Poly1305, no AAD binding); 2 is the current
// whole-object format; 3 adds chunked mode.
const (
	VersionLegacy       = 1
	VersionWholeObject  = 2
	VersionChunked      = 3
	CurrentWriterVersion = VersionChunked
)

// DekWrapAAD is the fixed domain-separation context for wrapping an
// object's DEK to its owner (spec §4.3).
const DekWrapAAD = "fula:v2:dek-wrap"

// WrappedKey is the JSON form of an HPKE encapsulation (spec §3
// EncryptedData / §6.2 wrapped_key).
type WrappedKey struct {
	EncapsulatedKey []byte `json:"encapsulated_key"`
	Nonce           []byte `json:"nonce"`
	Ciphertext      []byte `json:"ciphertext"`
}

func wrapKeyFromEncapsulation(e *hpke.Encapsulation) WrappedKey {
	return WrappedKey{EncapsulatedKey: e.EphemeralPublicKey, Nonce: e.Nonce, Ciphertext: e.WrappedKey}
}

func (w WrappedKey) toEncapsulation() *hpke.Encapsulation {
	return &hpke.Encapsulation{EphemeralPublicKey: w.EncapsulatedKey, Nonce: w.Nonce, WrappedKey: w.Ciphertext}
}

// WrappedKeyFromEncapsulation exports wrapKeyFromEncapsulation for callers
// outside this package (e.g. the rotation package re-wrapping a DEK).
func WrappedKeyFromEncapsulation(e *hpke.Encapsulation) WrappedKey {
	return wrapKeyFromEncapsulation(e)
}

// ToHpkeEncapsulation exports toEncapsulation for callers outside this
// package.
func (w WrappedKey) ToHpkeEncapsulation() *hpke.Encapsulation {
	return w.toEncapsulation()
}

// ChunkedFileMetadata describes a chunked object's layout (spec §6.2).
type ChunkedFileMetadata struct {
	Format      string   `json:"format"`
	ChunkSize   uint32   `json:"chunk_size"`
	NumChunks   uint32   `json:"num_chunks"`
	TotalSize   uint64   `json:"total_size"`
	RootHash    []byte   `json:"root_hash"`
	ChunkNonces [][]byte `json:"chunk_nonces"`
	ContentType string   `json:"content_type,omitempty"`
}

// ObjectEnvelope is the small JSON document stored under the
// x-fula-encryption header alongside each ciphertext blob (spec §6.2).
type ObjectEnvelope struct {
	Version          int                               `json:"version"`
	Algorithm        primitives.Algorithm               `json:"algorithm"`
	Nonce            []byte                             `json:"nonce,omitempty"`
	WrappedKey       WrappedKey                         `json:"wrapped_key"`
	KekVersion       uint32                             `json:"kek_version"`
	MetadataPrivacy  bool                               `json:"metadata_privacy"`
	PrivateMetadata  *metadata.EncryptedPrivateMetadata `json:"private_metadata,omitempty"`
	Chunked          *ChunkedFileMetadata               `json:"chunked,omitempty"`
	BaoOutboard      []byte                             `json:"bao_outboard,omitempty"`
}

// ValidateVersion rejects any envelope version this build does not know
// how to read (spec §4.4.4).
func ValidateVersion(v int) error {
	switch v {
	case VersionLegacy, VersionWholeObject, VersionChunked:
		return nil
	default:
		return errors.NewUnsupportedVersion(v)
	}
}

// unwrapDEK recovers the object DEK from an envelope's wrapped_key field
// using the owner's KekKeyPair secret and the current DekWrapAAD. Only
// valid for non-legacy envelopes; DecryptWholeObject handles version 1
// separately since it wraps under the empty AAD instead.
func unwrapDEK(env *ObjectEnvelope, recipientSecretKey, recipientPublicKey []byte) ([]byte, error) {
	return hpke.DecryptDEK(env.WrappedKey.toEncapsulation(), recipientSecretKey, recipientPublicKey, []byte(DekWrapAAD))
}

// MarshalEnvelopeJSON renders env as the JSON document stored under the
// x-fula-encryption header (spec §6.2).
func MarshalEnvelopeJSON(env *ObjectEnvelope) (string, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return "", errors.New("pipeline: failed to marshal envelope", err)
	}
	return string(data), nil
}

// UnmarshalEnvelopeJSON parses the x-fula-encryption header value back
// into an ObjectEnvelope.
func UnmarshalEnvelopeJSON(raw string) (*ObjectEnvelope, error) {
	var env ObjectEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, errors.NewIntegrity("pipeline: corrupt envelope header", err)
	}
	return &env, nil
}
