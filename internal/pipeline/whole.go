package pipeline

import (
	"github.com/fula-go/cryptostore/internal/hpke"
	"github.com/fula-go/cryptostore/internal/keys"
	"github.com/fula-go/cryptostore/internal/metadata"
	"github.com/fula-go/cryptostore/internal/primitives"
)

// ObjectContentAAD binds bulk ciphertext to its purpose, distinct from the
// AAD used to wrap the DEK itself.
const ObjectContentAAD = "fula:v2:object"

// legacyAAD is the empty-string AAD used by version-1 envelopes, retained
// only so historical objects remain readable.
const legacyAAD = ""

// EncryptWholeObject implements spec §4.4.1's write algorithm for
// small files: fresh DEK, AEAD-seal the plaintext, HPKE-wrap the DEK to
// ownerPublicKey, and seal the private metadata sidecar.
func EncryptWholeObject(alg primitives.Algorithm, ownerPublicKey []byte, kekVersion uint32, plaintext []byte, meta metadata.PrivateMetadata) (*ObjectEnvelope, []byte, error) {
	dek, err := keys.GenerateDEK()
	if err != nil {
		return nil, nil, err
	}
	defer primitives.Zero(dek)

	nonce, ciphertext, err := primitives.Seal(alg, dek, plaintext, []byte(ObjectContentAAD))
	if err != nil {
		return nil, nil, err
	}

	wrapped, err := hpke.EncryptDEK(dek, ownerPublicKey, []byte(DekWrapAAD))
	if err != nil {
		return nil, nil, err
	}

	encMeta, err := metadata.Seal(alg, dek, meta)
	if err != nil {
		return nil, nil, err
	}

	env := &ObjectEnvelope{
		Version:         VersionWholeObject,
		Algorithm:       alg,
		Nonce:           nonce,
		WrappedKey:      wrapKeyFromEncapsulation(wrapped),
		KekVersion:      kekVersion,
		MetadataPrivacy: true,
		PrivateMetadata: encMeta,
	}
	return env, ciphertext, nil
}

// DecryptWholeObject reverses EncryptWholeObject, also accepting legacy
// version-1 envelopes for backward compatibility.
func DecryptWholeObject(env *ObjectEnvelope, ownerSecretKey, ownerPublicKey []byte, ciphertext []byte) ([]byte, *metadata.PrivateMetadata, error) {
	if err := ValidateVersion(env.Version); err != nil {
		return nil, nil, err
	}

	wrapAAD := []byte(DekWrapAAD)
	contentAAD := []byte(ObjectContentAAD)
	alg := env.Algorithm
	if env.Version == VersionLegacy {
		wrapAAD = []byte(legacyAAD)
		contentAAD = []byte(legacyAAD)
		alg = primitives.AlgorithmXSalsa20Poly1305
	}

	dek, err := hpke.DecryptDEK(env.WrappedKey.toEncapsulation(), ownerSecretKey, ownerPublicKey, wrapAAD)
	if err != nil {
		return nil, nil, err
	}
	defer primitives.Zero(dek)

	plaintext, err := primitives.Open(alg, dek, env.Nonce, ciphertext, contentAAD)
	if err != nil {
		return nil, nil, err
	}

	var meta *metadata.PrivateMetadata
	if env.PrivateMetadata != nil {
		meta, err = metadata.Open(alg, dek, env.PrivateMetadata)
		if err != nil {
			return nil, nil, err
		}
	}
	return plaintext, meta, nil
}
