package keys

import (
	"crypto/sha256"
	"fmt"

	"github.com/tyler-smith/go-bip39"
)

// GenerateVerificationID produces a deterministic, human-readable BIP-39
// mnemonic fingerprint of a public key, grounded in the teacher's
// pkg/crypto.GenerateVerificationID. Sharing flows surface this so two
// parties can read a short phrase aloud to confirm they hold the same
// public key out of band, instead of comparing 32 raw bytes.
func GenerateVerificationID(publicKey []byte) (string, error) {
	if len(publicKey) == 0 {
		return "", fmt.Errorf("keys: public key is required")
	}
	hash := sha256.Sum256(publicKey)
	mnemonic, err := bip39.NewMnemonic(hash[:])
	if err != nil {
		return "", fmt.Errorf("keys: failed to generate verification id: %w", err)
	}
	return mnemonic, nil
}

// VerifyVerificationID reports whether id is the fingerprint of publicKey.
func VerifyVerificationID(publicKey []byte, id string) bool {
	expected, err := GenerateVerificationID(publicKey)
	if err != nil {
		return false
	}
	return expected == id
}
