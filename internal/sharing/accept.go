package sharing

import (
	"strings"
	"time"

	"github.com/fula-go/cryptostore/internal/common/errors"
	"github.com/fula-go/cryptostore/internal/hpke"
)

// AcceptedShare is what a recipient gets back from a successful Accept
// (spec §4.7 Acceptance).
type AcceptedShare struct {
	Dek         []byte
	PathScope   string
	Permissions Permissions
	Mode        Mode
}

// CurrentContentState is what the caller supplies about the object
// currently bound to a snapshot share's path, for step (e) below.
type CurrentContentState struct {
	ContentHash string
	Size        int64
	ModifiedAt  time.Time
}

// Operation is the access the caller is attempting, checked against the
// token's Permissions in step (d).
type Operation string

const (
	OpRead   Operation = "read"
	OpWrite  Operation = "write"
	OpDelete Operation = "delete"
)

// Accept runs the verification steps of spec §4.7 Acceptance in order:
// expiry, HPKE unwrap with the binding AAD, path scope, permission, and
// (for snapshot shares) exact content match. current is ignored for
// Temporal shares and required for Snapshot shares.
func Accept(token *ShareToken, recipientSecretKey, recipientPublicKey []byte, requestPath string, op Operation, current *CurrentContentState) (*AcceptedShare, error) {
	if time.Now().After(token.ExpiresAt) {
		return nil, errors.NewShareExpired()
	}

	aad := wrapAAD(token.ShareID, token.PathScope, token.Mode)
	dek, err := hpke.DecryptDEK(&token.WrappedDek, recipientSecretKey, recipientPublicKey, aad)
	if err != nil {
		return nil, errors.NewAuthenticationFailed(err)
	}

	if !strings.HasPrefix(requestPath, token.PathScope) {
		return nil, errors.NewShareScopeMismatch(requestPath, token.PathScope)
	}

	if !permits(token.Permissions, op) {
		return nil, errors.NewPermissionDenied("sharing: share token does not grant " + string(op))
	}

	if token.Mode == ModeSnapshot {
		if current == nil || token.Snapshot == nil {
			return nil, errors.NewSnapshotMismatch("sharing: no current content state supplied")
		}
		if current.ContentHash != token.Snapshot.ContentHash ||
			current.Size != token.Snapshot.Size ||
			!current.ModifiedAt.Equal(token.Snapshot.ModifiedAt) {
			return nil, errors.NewSnapshotMismatch("sharing: content has changed since the share was created")
		}
	}

	return &AcceptedShare{Dek: dek, PathScope: token.PathScope, Permissions: token.Permissions, Mode: token.Mode}, nil
}

func permits(p Permissions, op Operation) bool {
	switch op {
	case OpRead:
		return p.CanRead
	case OpWrite:
		return p.CanWrite
	case OpDelete:
		return p.CanDelete
	default:
		return false
	}
}
