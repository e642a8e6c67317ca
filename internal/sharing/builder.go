package sharing

import (
	"time"

	"github.com/gocql/gocql"

	"github.com/fula-go/cryptostore/internal/hpke"
)

// ShareBuilder assembles a ShareToken step by step, mirroring spec §4.7's
// ShareBuilder::new(...).path_scope(...).permissions(...)... .build() chain.
type ShareBuilder struct {
	ownerSecretKey    []byte
	recipientPublicKey []byte
	dek               []byte
	pathScope         string
	permissions       Permissions
	expiresIn         time.Duration
	mode              Mode
	snapshot          *SnapshotBinding
}

// NewShareBuilder starts building a share of dek for recipientPublicKey.
// ownerSecretKey is accepted for symmetry with the spec's signature but is
// not needed by HPKE wrapping (only the recipient's public key is); it is
// kept so future signed-share variants have a natural extension point.
func NewShareBuilder(ownerSecretKey, recipientPublicKey, dek []byte) *ShareBuilder {
	return &ShareBuilder{
		ownerSecretKey:     ownerSecretKey,
		recipientPublicKey: recipientPublicKey,
		dek:                dek,
		permissions:        Permissions{CanRead: true},
		mode:               ModeTemporal,
	}
}

func (b *ShareBuilder) PathScope(p string) *ShareBuilder {
	b.pathScope = p
	return b
}

func (b *ShareBuilder) WithPermissions(p Permissions) *ShareBuilder {
	b.permissions = p
	return b
}

func (b *ShareBuilder) ExpiresIn(d time.Duration) *ShareBuilder {
	b.expiresIn = d
	return b
}

func (b *ShareBuilder) Temporal() *ShareBuilder {
	b.mode = ModeTemporal
	b.snapshot = nil
	return b
}

func (b *ShareBuilder) Snapshot(contentHash string, size int64, modifiedAt time.Time) *ShareBuilder {
	b.mode = ModeSnapshot
	b.snapshot = &SnapshotBinding{ContentHash: contentHash, Size: size, ModifiedAt: modifiedAt}
	return b
}

// Build HPKE-wraps the DEK under an AAD binding share_id, path_scope and
// mode, and assembles the final token.
func (b *ShareBuilder) Build() (*ShareToken, error) {
	shareID, err := gocql.RandomUUID()
	if err != nil {
		return nil, err
	}

	aad := wrapAAD(shareID, b.pathScope, b.mode)
	encap, err := hpke.EncryptDEK(b.dek, b.recipientPublicKey, aad)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	token := &ShareToken{
		Version:     CurrentTokenVersion,
		WrappedDek:  *encap,
		PathScope:   b.pathScope,
		Permissions: b.permissions,
		CreatedAt:   now,
		ExpiresAt:   now.Add(b.expiresIn),
		Mode:        b.mode,
		Snapshot:    b.snapshot,
		ShareID:     shareID,
	}
	return token, nil
}

// NewSubtreeShareBuilder is the same flow for a subtree DEK obtained from
// a SubtreeKeyManager (spec §4.7 Subtree share token); the wrapped key
// is a subtree DEK and PathScope is the subtree root.
func NewSubtreeShareBuilder(recipientPublicKey []byte, subtreeDEK []byte, prefix string) *ShareBuilder {
	b := NewShareBuilder(nil, recipientPublicKey, subtreeDEK)
	b.pathScope = prefix
	return b
}
