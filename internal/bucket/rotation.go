package bucket

import (
	"context"
	"strconv"
	"strings"

	"github.com/fula-go/cryptostore/internal/blobstore"
	"github.com/fula-go/cryptostore/internal/common/errors"
	"github.com/fula-go/cryptostore/internal/pipeline"
	"github.com/fula-go/cryptostore/internal/rotation"
)

// envelopeStoreAdapter lets the rotation package read and rewrite an
// object's envelope header through the forest + blob store, without
// knowing anything about chunking or obfuscation.
type envelopeStoreAdapter struct {
	ctx    context.Context
	bucket *Bucket
}

func (a envelopeStoreAdapter) LoadEnvelope(path string) (*pipeline.ObjectEnvelope, error) {
	entry, ok := a.bucket.forest.GetFile(path)
	if !ok {
		return nil, errors.NewNotFound(path)
	}
	headers, err := a.bucket.store.Head(a.ctx, entry.StorageKey)
	if err != nil {
		return nil, errors.NewUnavailable("bucket: failed to load envelope for rotation", err)
	}
	return pipeline.UnmarshalEnvelopeJSON(headers[blobstore.HeaderEnvelope])
}

func (a envelopeStoreAdapter) SaveEnvelope(path string, env *pipeline.ObjectEnvelope) error {
	entry, ok := a.bucket.forest.GetFile(path)
	if !ok {
		return errors.NewNotFound(path)
	}
	headers, err := a.bucket.store.Head(a.ctx, entry.StorageKey)
	if err != nil {
		return errors.NewUnavailable("bucket: failed to reload headers before rewrap", err)
	}
	envelopeJSON, err := pipeline.MarshalEnvelopeJSON(env)
	if err != nil {
		return err
	}
	headers[blobstore.HeaderEnvelope] = envelopeJSON

	// The index blob for a chunked object carries no ciphertext of its
	// own (spec §4.4.2): rewriting it only needs to replace headers, not
	// reread and rewrite the chunk bodies the envelope points at.
	if headers[blobstore.HeaderChunked] == "true" {
		_, err = a.bucket.store.Put(a.ctx, entry.StorageKey, nil, headers)
		return err
	}
	data, _, err := a.bucket.store.Get(a.ctx, entry.StorageKey)
	if err != nil {
		return errors.NewUnavailable("bucket: failed to reload object before rewrap", err)
	}
	_, err = a.bucket.store.Put(a.ctx, entry.StorageKey, data, headers)
	return err
}

// RotateKek implements spec §4.8's rotate_kek + rotate_bucket: it rotates
// the owner's keypair, re-wraps every object's DEK under the new public
// key without touching ciphertext, and re-encrypts the forest itself
// under a forest DEK derived from the new root secret.
func (b *Bucket) RotateKek(ctx context.Context) (rotation.RotationReport, error) {
	previous := b.owner
	next, err := b.owner.Rotate()
	if err != nil {
		return rotation.RotationReport{}, err
	}

	paths := b.forest.AllPaths()
	adapter := envelopeStoreAdapter{ctx: ctx, bucket: b}
	report := rotation.RotateBucket(adapter, paths, previous, next)

	b.owner = next
	b.rootSecret = next.SecretKeyBytes()
	b.audit.Record("rotate_kek", b.Name, "version "+strconv.FormatUint(uint64(previous.CurrentVersion()), 10)+" -> "+strconv.FormatUint(uint64(next.CurrentVersion()), 10)+
		" attempted="+strconv.Itoa(report.Attempted)+" rewrapped="+strconv.Itoa(report.Rewrapped))

	if err := b.saveForest(ctx); err != nil {
		return report, err
	}
	return report, nil
}

// RotateSubtree implements spec §4.8's rotate_subtree: it installs a fresh
// subtree DEK for prefix in the bucket's SubtreeKeyManager and reports which
// forest paths fall under prefix so the caller can decide whether to
// re-encrypt them under the new key. Share tokens minted before the
// rotation are not invalidated: they carry their own wrap of the old DEK
// and still pass sharing.Accept.
func (b *Bucket) RotateSubtree(prefix string) (*rotation.SubtreeRotationResult, error) {
	var affected []string
	for _, p := range b.forest.AllPaths() {
		if strings.HasPrefix(p, prefix) {
			affected = append(affected, p)
		}
	}
	result, err := rotation.RotateSubtree(b.subtrees, prefix, affected)
	if err != nil {
		return nil, err
	}
	b.audit.Record("rotate_subtree", prefix, "affected="+strconv.Itoa(len(affected)))
	return result, nil
}
