package keys

import (
	"golang.org/x/crypto/argon2"

	"github.com/fula-go/cryptostore/internal/common/errors"
	"github.com/fula-go/cryptostore/internal/primitives"
)

// DekKey is a per-object (or per-subtree) symmetric key. Never derived from
// a path or the root secret — always fresh randomness (spec §4.2).
type DekKey = []byte

// GenerateDEK draws a fresh 32-byte data encryption key.
func GenerateDEK() (DekKey, error) {
	dek, err := primitives.GenerateRandomBytes(primitives.KeySize)
	if err != nil {
		return nil, errors.NewInvalidKey("failed to generate dek", err)
	}
	return dek, nil
}

// pathKeyContext is the fixed BLAKE3 derive_key context for every
// path-key/forest-key derivation in this module (spec §4.2).
const pathKeyContext = "fula-path-key-v1"

// DerivePathKey computes a deterministic 32-byte key as
// BLAKE3_derive_key("fula-path-key-v1", root_secret || label || path).
// Used only for storage-key obfuscation and the forest index key — never
// to encrypt bulk content.
func DerivePathKey(rootSecret []byte, label, path string) [32]byte {
	ikm := make([]byte, 0, len(rootSecret)+len(label)+len(path))
	ikm = append(ikm, rootSecret...)
	ikm = append(ikm, label...)
	ikm = append(ikm, path...)
	return primitives.DeriveKey(pathKeyContext, ikm)
}

// DeriveForestDEK computes the forest's own encryption key for bucket:
// forest_dek := derive_path_key("forest:"+bucket) (spec §4.6), deterministic
// so the index can be located and decrypted after a restart with no side
// channel beyond the bucket name.
func DeriveForestDEK(rootSecret []byte, bucket string) [32]byte {
	return DerivePathKey(rootSecret, "forest:", bucket)
}

// Argon2 parameters for passphrase-wrapped backups (supplementary feature,
// grounded in the teacher's pkg/crypto.DeriveKeyFromPassword — kept at the
// same conservative interactive-use parameters).
const (
	Argon2SaltSize   = 16
	argon2MemLimit   = 4 * 1024 // KiB, the unit argon2.IDKey takes: 4 MiB
	argon2OpsLimit   = 1
	argon2Parallel   = 1
	argon2OutputSize = 32
)

// DeriveKeyEncryptionKeyFromPassphrase derives a 32-byte key from an
// operator-chosen passphrase and salt, for wrapping a KekKeyPair secret in
// a human-manageable backup.
func DeriveKeyEncryptionKeyFromPassphrase(passphrase string, salt []byte) ([]byte, error) {
	if len(salt) != Argon2SaltSize {
		return nil, errors.NewInvalidKey("salt must be 16 bytes", nil)
	}
	return argon2.IDKey([]byte(passphrase), salt, argon2OpsLimit, argon2MemLimit, argon2Parallel, argon2OutputSize), nil
}
