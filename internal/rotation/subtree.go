package rotation

import (
	"github.com/fula-go/cryptostore/internal/keys"
)

// SubtreeRotationResult reports the outcome of RotateSubtree (spec §4.8).
type SubtreeRotationResult struct {
	NewDek         []byte
	AffectedPaths  []string
	WrappedOldToNew map[string][]byte // always empty: RotateSubtree re-encrypts nothing
}

// RotateSubtree generates a fresh DEK for prefix and reports which paths
// need re-encryption under it. No token is revoked here: share tokens minted
// for the subtree before the rotation still pass sharing.Accept and still
// yield the old DEK.
func RotateSubtree(manager *keys.SubtreeKeyManager, prefix string, affectedPaths []string) (*SubtreeRotationResult, error) {
	_, newDEK, err := manager.RotateSubtree(prefix)
	if err != nil {
		return nil, err
	}
	return &SubtreeRotationResult{
		NewDek:          newDEK,
		AffectedPaths:   affectedPaths,
		WrappedOldToNew: make(map[string][]byte),
	}, nil
}
