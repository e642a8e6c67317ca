package sharing

import (
	"encoding/hex"
	"fmt"

	"github.com/gocql/gocql"

	"github.com/fxamacker/cbor/v2"

	"github.com/fula-go/cryptostore/internal/common/errors"
	"github.com/fula-go/cryptostore/internal/hpke"
	"github.com/fula-go/cryptostore/internal/keys"
	"github.com/fula-go/cryptostore/internal/primitives"
)

// inboxAAD domain-separates an inbox envelope's HPKE wrap from a share
// token's own DEK wrap (spec §4.7 Async inbox).
const inboxAAD = "inbox"

// ShareEnvelope carries a ShareToken plus optional human context to an
// offline recipient's inbox.
type ShareEnvelope struct {
	Token         ShareToken `cbor:"token"`
	Label         string     `cbor:"label,omitempty"`
	Message       string     `cbor:"message,omitempty"`
	SharerDisplay string     `cbor:"sharer_display,omitempty"`
}

// EncryptedInboxEntry is the HPKE-sealed form of a ShareEnvelope, stored
// at InboxEntryPath.
type EncryptedInboxEntry struct {
	Encapsulation hpke.Encapsulation
	Nonce         []byte
	Ciphertext    []byte
}

// SealInboxEntry serializes and HPKE-encrypts env for recipientPublicKey.
func SealInboxEntry(env *ShareEnvelope, recipientPublicKey []byte) (*EncryptedInboxEntry, error) {
	plaintext, err := marshalEnvelope(env)
	if err != nil {
		return nil, err
	}

	dek, err := keys.GenerateDEK()
	if err != nil {
		return nil, err
	}
	defer primitives.Zero(dek)

	encap, err := hpke.EncryptDEK(dek, recipientPublicKey, []byte(inboxAAD))
	if err != nil {
		return nil, err
	}
	nonce, ciphertext, err := primitives.Seal(primitives.AlgorithmChaCha20Poly1305, dek, plaintext, []byte(inboxAAD))
	if err != nil {
		return nil, err
	}
	return &EncryptedInboxEntry{Encapsulation: *encap, Nonce: nonce, Ciphertext: ciphertext}, nil
}

// OpenInboxEntry decrypts an EncryptedInboxEntry for the recipient.
func OpenInboxEntry(entry *EncryptedInboxEntry, recipientSecretKey, recipientPublicKey []byte) (*ShareEnvelope, error) {
	dek, err := hpke.DecryptDEK(&entry.Encapsulation, recipientSecretKey, recipientPublicKey, []byte(inboxAAD))
	if err != nil {
		return nil, err
	}
	defer primitives.Zero(dek)

	plaintext, err := primitives.Open(primitives.AlgorithmChaCha20Poly1305, dek, entry.Nonce, entry.Ciphertext, []byte(inboxAAD))
	if err != nil {
		return nil, errors.NewAuthenticationFailed(err)
	}
	return unmarshalEnvelope(plaintext)
}

func marshalEnvelope(env *ShareEnvelope) ([]byte, error) {
	data, err := cbor.Marshal(env)
	if err != nil {
		return nil, errors.New("sharing: failed to marshal share envelope", err)
	}
	return data, nil
}

func unmarshalEnvelope(data []byte) (*ShareEnvelope, error) {
	var env ShareEnvelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, errors.NewIntegrity("sharing: corrupt share envelope", err)
	}
	return &env, nil
}

// InboxEntryPath computes the storage convention path for a ShareEnvelope
// addressed to recipientPublicKey with a fresh entry id (spec §6.5):
// "/.fula/inbox/{BLAKE3_16(hash(recipient_pub))_hex}/{entry_id_hex}.share".
func InboxEntryPath(recipientPublicKey []byte) (string, error) {
	entryID, err := gocql.RandomUUID()
	if err != nil {
		return "", errors.New("sharing: failed to generate inbox entry id", err)
	}
	recipientHash := primitives.Hash256(recipientPublicKey)
	bucketHash := primitives.Hash256(recipientHash[:])
	return fmt.Sprintf("/.fula/inbox/%s/%s.share", hex.EncodeToString(bucketHash[:16]), hex.EncodeToString(entryID.Bytes())), nil
}

// InboxPrefix is the listable prefix a recipient scans for new entries.
func InboxPrefix(recipientPublicKey []byte) string {
	recipientHash := primitives.Hash256(recipientPublicKey)
	bucketHash := primitives.Hash256(recipientHash[:])
	return fmt.Sprintf("/.fula/inbox/%s/", hex.EncodeToString(bucketHash[:16]))
}
