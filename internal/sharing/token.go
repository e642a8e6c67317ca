// Package sharing implements capability-based sharing: ShareToken creation
// and acceptance, secret-link encoding, and the asynchronous inbox for
// offline recipients (spec §4.7). Grounded in the teacher's
// domain/collection sharing DTOs for the shape of a scoped capability,
// generalized here into a stateless, cryptographically self-verifying
// token instead of one validated against a server-side membership table.
package sharing

import (
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gocql/gocql"

	"github.com/fula-go/cryptostore/internal/common/errors"
	"github.com/fula-go/cryptostore/internal/hpke"
)

// Mode distinguishes access to the current-latest content (Temporal) from
// access bound to one specific content version (Snapshot).
type Mode string

const (
	ModeTemporal Mode = "temporal"
	ModeSnapshot Mode = "snapshot"
)

// SnapshotBinding pins a share to one exact version of the shared content.
type SnapshotBinding struct {
	ContentHash string    `cbor:"content_hash"`
	Size        int64     `cbor:"size"`
	ModifiedAt  time.Time `cbor:"modified_at"`
}

// Permissions controls which operations an accepted share may perform.
type Permissions struct {
	CanRead   bool `cbor:"can_read"`
	CanWrite  bool `cbor:"can_write"`
	CanDelete bool `cbor:"can_delete"`
}

// ShareToken is the stateless capability a recipient presents to access
// shared content (spec §4.7).
type ShareToken struct {
	Version     uint8               `cbor:"version"`
	WrappedDek  hpke.Encapsulation  `cbor:"wrapped_dek"`
	PathScope   string              `cbor:"path_scope"`
	Permissions Permissions         `cbor:"permissions"`
	CreatedAt   time.Time           `cbor:"created_at"`
	ExpiresAt   time.Time           `cbor:"expires_at"`
	Mode        Mode                `cbor:"mode"`
	Snapshot    *SnapshotBinding    `cbor:"snapshot,omitempty"`
	ShareID     gocql.UUID          `cbor:"share_id"`
}

// CurrentTokenVersion is the version this build writes.
const CurrentTokenVersion = 1

// wrapAAD builds the AAD binding a wrapped DEK to its share_id, path_scope
// and mode tag, so a token cannot be silently retargeted to a different
// path or reinterpreted under a different mode (spec §4.7 Creation).
func wrapAAD(shareID gocql.UUID, pathScope string, mode Mode) []byte {
	aad := make([]byte, 0, 16+len(pathScope)+len(mode)+2)
	idBytes := shareID.Bytes()
	aad = append(aad, idBytes...)
	aad = append(aad, '|')
	aad = append(aad, pathScope...)
	aad = append(aad, '|')
	aad = append(aad, mode...)
	return aad
}

// Serialize encodes the token as CBOR (spec §6.4).
func (t *ShareToken) Serialize() ([]byte, error) {
	data, err := cbor.Marshal(t)
	if err != nil {
		return nil, errors.New("sharing: failed to serialize share token", err)
	}
	return data, nil
}

// DeserializeShareToken decodes a CBOR-encoded ShareToken.
func DeserializeShareToken(data []byte) (*ShareToken, error) {
	var t ShareToken
	if err := cbor.Unmarshal(data, &t); err != nil {
		return nil, errors.New("sharing: failed to parse share token", err)
	}
	return &t, nil
}
