// Package bucket is the facade tying every component together: a Bucket
// owns a loaded PrivateForest and drives the write/read control flow spec
// §2 describes, the way the teacher's usecase layer orchestrated
// repositories and services into one call per user action — except here
// the orchestration is pure client-side crypto plus a BlobStore, with no
// server round trip.
package bucket

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fula-go/cryptostore/internal/blobstore"
	"github.com/fula-go/cryptostore/internal/common/errors"
	"github.com/fula-go/cryptostore/internal/config"
	"github.com/fula-go/cryptostore/internal/forest"
	"github.com/fula-go/cryptostore/internal/keys"
	"github.com/fula-go/cryptostore/internal/metadata"
	"github.com/fula-go/cryptostore/internal/obfuscation"
	"github.com/fula-go/cryptostore/internal/pipeline"
	"github.com/fula-go/cryptostore/internal/primitives"
)

const pathKeyLabel = "storage-key:"

// Bucket is a single bucket handle: cooperative single-threaded state per
// spec §5, holding the in-memory forest. It takes no lock of its own:
// concurrent mutating calls on one handle are not serialized.
type Bucket struct {
	Name       string
	owner      *keys.KekKeyPair
	rootSecret []byte
	store      blobstore.BlobStore
	cfg        config.Config
	forest     *forest.PrivateForest
	audit      *keys.AuditLog
	logger     *zap.Logger
	subtrees   *keys.SubtreeKeyManager
}

// Open loads bucket's forest from store, or creates an empty one if none
// exists yet (spec §4.6 load()).
func Open(ctx context.Context, name string, owner *keys.KekKeyPair, rootSecret []byte, store blobstore.BlobStore, cfg config.Config, logger *zap.Logger) (*Bucket, error) {
	masterDEK := keys.DeriveForestDEK(rootSecret, "subtree-master:"+name)
	b := &Bucket{
		Name:       name,
		owner:      owner,
		rootSecret: rootSecret,
		store:      store,
		cfg:        cfg,
		audit:      keys.NewAuditLog(256),
		logger:     logger.Named("bucket").With(zap.String("bucket", name)),
		subtrees:   keys.NewSubtreeKeyManager(masterDEK[:]),
	}

	indexKey := forest.IndexStorageKey(rootSecret, name)
	data, headers, err := store.Get(ctx, indexKey)
	if err == blobstore.ErrNotFound {
		var salt [16]byte
		saltSource := keys.DeriveForestDEK(rootSecret, "salt:"+name)
		copy(salt[:], saltSource[:16])
		b.forest = forest.New(name, salt)
		b.forest.MigrationThreshold = cfg.HamtMigrationThreshold
		return b, nil
	}
	if err != nil {
		return nil, errors.NewUnavailable("bucket: failed to load forest", err)
	}
	if headers[blobstore.HeaderForest] != "true" {
		return nil, errors.NewForestCorrupt("bucket: index blob missing forest marker", nil)
	}

	env, err := pipeline.UnmarshalEnvelopeJSON(headers[blobstore.HeaderEnvelope])
	if err != nil {
		return nil, err
	}
	f, err := forest.Deserialize(name, rootSecret, env.Algorithm, env.Nonce, data, cfg.HamtMigrationThreshold)
	if err != nil {
		return nil, err
	}
	b.forest = f
	return b, nil
}

// pathKey derives the deterministic per-path key obfuscation uses — never
// the object's own DEK, so storage-key resolution never needs to unwrap
// anything (spec §3 invariant).
func (b *Bucket) pathKey(path string) []byte {
	k := keys.DerivePathKey(b.rootSecret, pathKeyLabel, path)
	return k[:]
}

func (b *Bucket) storageKeyFor(path string) (string, error) {
	key, err := obfuscation.Derive(b.cfg.ObfuscationMode, path, b.pathKey(path), b.forest.Salt[:])
	if err != nil {
		return "", err
	}
	return key, nil
}

// Put implements spec §2's write control flow and §4.4's mode selection.
func (b *Bucket) Put(ctx context.Context, path string, plaintext []byte, contentType string, userMeta map[string]string) error {
	now := time.Now()
	digest := primitives.Hash256(plaintext)
	contentHash := hex.EncodeToString(digest[:])
	meta := metadata.PrivateMetadata{
		OriginalPath: path,
		Size:         int64(len(plaintext)),
		ContentType:  contentType,
		ContentHash:  contentHash,
		CreatedAt:    now,
		ModifiedAt:   now,
		UserMetadata: userMeta,
	}

	storageKey, err := b.storageKeyFor(path)
	if err != nil {
		return err
	}

	var envelopeJSON string
	if int64(len(plaintext)) > b.cfg.ChunkThresholdBytes {
		env, chunks, err := pipeline.EncryptChunked(b.cfg.Aead, b.owner.PublicKey(), b.owner.CurrentVersion(), plaintext, b.cfg.ChunkSizeBytes, meta)
		if err != nil {
			return err
		}
		for _, c := range chunks {
			childKey := obfuscation.ChunkChildKey(storageKey, c.Index)
			if _, err := b.store.Put(ctx, childKey, c.Ciphertext, nil); err != nil {
				return errors.NewUnavailable("bucket: failed to upload chunk", err)
			}
		}
		envelopeJSON, err = pipeline.MarshalEnvelopeJSON(env)
		if err != nil {
			return err
		}
		headers := blobstore.Headers{
			blobstore.HeaderEncrypted: "true",
			blobstore.HeaderEnvelope:  envelopeJSON,
			blobstore.HeaderChunked:   "true",
		}
		// The index blob MUST be written last: a reader that finds no
		// index treats the object as absent regardless of orphan chunks.
		if _, err := b.store.Put(ctx, storageKey, nil, headers); err != nil {
			return errors.NewUnavailable("bucket: failed to upload chunked index", err)
		}
	} else {
		env, ciphertext, err := pipeline.EncryptWholeObject(b.cfg.Aead, b.owner.PublicKey(), b.owner.CurrentVersion(), plaintext, meta)
		if err != nil {
			return err
		}
		envelopeJSON, err = pipeline.MarshalEnvelopeJSON(env)
		if err != nil {
			return err
		}
		headers := blobstore.Headers{
			blobstore.HeaderEncrypted: "true",
			blobstore.HeaderEnvelope:  envelopeJSON,
		}
		if _, err := b.store.Put(ctx, storageKey, ciphertext, headers); err != nil {
			return errors.NewUnavailable("bucket: failed to upload object", err)
		}
	}

	entry := forest.ForestFileEntry{
		OriginalPath: path,
		StorageKey:   storageKey,
		Size:         int64(len(plaintext)),
		ContentType:  contentType,
		CreatedAt:    now,
		ModifiedAt:   now,
		UserMetadata: userMeta,
		ContentHash:  contentHash,
	}
	b.forest.UpsertFile(path, entry)
	return b.saveForest(ctx)
}

// Get implements spec §2's read control flow.
func (b *Bucket) Get(ctx context.Context, path string) ([]byte, *metadata.PrivateMetadata, error) {
	entry, ok := b.forest.GetFile(path)
	if !ok {
		return nil, nil, errors.NewNotFound(path)
	}

	data, headers, err := b.store.Get(ctx, entry.StorageKey)
	if err != nil {
		return nil, nil, errors.NewUnavailable("bucket: failed to fetch object", err)
	}
	if headers[blobstore.HeaderEncrypted] != "true" {
		return data, nil, nil
	}

	env, err := pipeline.UnmarshalEnvelopeJSON(headers[blobstore.HeaderEnvelope])
	if err != nil {
		return nil, nil, err
	}

	if headers[blobstore.HeaderChunked] == "true" {
		fetch := func(index uint32) ([]byte, error) {
			childKey := obfuscation.ChunkChildKey(entry.StorageKey, index)
			data, _, err := b.store.Get(ctx, childKey)
			return data, err
		}
		return pipeline.DecryptChunked(env, b.owner.SecretKeyBytes(), b.owner.PublicKey(), fetch)
	}
	return pipeline.DecryptWholeObject(env, b.owner.SecretKeyBytes(), b.owner.PublicKey(), data)
}

// GetRange implements spec §4.4.2's get_range for chunked objects.
func (b *Bucket) GetRange(ctx context.Context, path string, offset, length int64) ([]byte, error) {
	entry, ok := b.forest.GetFile(path)
	if !ok {
		return nil, errors.NewNotFound(path)
	}
	headers, err := b.store.Head(ctx, entry.StorageKey)
	if err != nil {
		return nil, errors.NewUnavailable("bucket: failed to fetch index", err)
	}
	if headers[blobstore.HeaderChunked] != "true" {
		return nil, errors.New("bucket: ranged read requires a chunked object", nil)
	}
	env, err := pipeline.UnmarshalEnvelopeJSON(headers[blobstore.HeaderEnvelope])
	if err != nil {
		return nil, err
	}
	fetch := func(index uint32) ([]byte, error) {
		childKey := obfuscation.ChunkChildKey(entry.StorageKey, index)
		data, _, err := b.store.Get(ctx, childKey)
		return data, err
	}
	return pipeline.ReadRange(env, b.owner.SecretKeyBytes(), b.owner.PublicKey(), offset, length, fetch)
}

// Delete removes path from the forest and its backing blob(s).
func (b *Bucket) Delete(ctx context.Context, path string) error {
	entry, ok := b.forest.GetFile(path)
	if !ok {
		return errors.NewNotFound(path)
	}
	headers, _ := b.store.Head(ctx, entry.StorageKey)
	if headers[blobstore.HeaderChunked] == "true" {
		if env, err := pipeline.UnmarshalEnvelopeJSON(headers[blobstore.HeaderEnvelope]); err == nil && env.Chunked != nil {
			for i := uint32(0); i < env.Chunked.NumChunks; i++ {
				_ = b.store.Delete(ctx, obfuscation.ChunkChildKey(entry.StorageKey, i))
			}
		}
	}
	if err := b.store.Delete(ctx, entry.StorageKey); err != nil {
		return errors.NewUnavailable("bucket: failed to delete object", err)
	}
	b.forest.RemoveFile(path)
	return b.saveForest(ctx)
}

// List delegates to the forest's list_directory (spec §4.6).
func (b *Bucket) List(prefix, delimiter, startAfter string, maxKeys int) forest.ListResult {
	return b.forest.ListDirectory(prefix, delimiter, startAfter, maxKeys)
}

// saveForest persists the forest under its deterministic index key,
// rewriting it on every mutation (spec §4.6 save()).
func (b *Bucket) saveForest(ctx context.Context) error {
	nonce, ciphertext, err := b.forest.Serialize(b.rootSecret, b.cfg.Aead)
	if err != nil {
		return err
	}
	env := &pipeline.ObjectEnvelope{Version: pipeline.VersionWholeObject, Algorithm: b.cfg.Aead, Nonce: nonce, KekVersion: b.owner.CurrentVersion()}
	envelopeJSON, err := pipeline.MarshalEnvelopeJSON(env)
	if err != nil {
		return err
	}
	headers := blobstore.Headers{
		blobstore.HeaderForest:   "true",
		blobstore.HeaderEnvelope: envelopeJSON,
	}
	indexKey := forest.IndexStorageKey(b.rootSecret, b.Name)
	if _, err := b.store.Put(ctx, indexKey, ciphertext, headers); err != nil {
		return errors.NewUnavailable("bucket: failed to persist forest", err)
	}
	return nil
}

// Owner exposes the bucket's current keypair, e.g. for building share
// tokens or driving rotation from the caller.
func (b *Bucket) Owner() *keys.KekKeyPair { return b.owner }

// AuditLog exposes recent key-lifecycle events for `--verbose` reporting.
func (b *Bucket) AuditLog() *keys.AuditLog { return b.audit }

// Subtrees exposes the bucket's subtree key manager, e.g. for building
// subtree share tokens from the caller.
func (b *Bucket) Subtrees() *keys.SubtreeKeyManager { return b.subtrees }

func (b *Bucket) String() string {
	return fmt.Sprintf("bucket(%s, %d files)", b.Name, b.forest.Count())
}
