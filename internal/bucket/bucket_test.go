package bucket

import (
	"bytes"
	"context"
	"encoding/hex"
	"testing"

	"go.uber.org/zap"

	"github.com/fula-go/cryptostore/internal/blobstore/leveldbstore"
	"github.com/fula-go/cryptostore/internal/config"
	"github.com/fula-go/cryptostore/internal/keys"
	"github.com/fula-go/cryptostore/internal/primitives"
	"github.com/fula-go/cryptostore/internal/rotation"
	"github.com/fula-go/cryptostore/internal/sharing"
)

func openTestBucket(t *testing.T) *Bucket {
	t.Helper()
	cfg := config.Default()
	cfg.ChunkThresholdBytes = 64 * 1024
	cfg.ChunkSizeBytes = 64 * 1024

	store, err := leveldbstore.Open(leveldbstore.NewConfigurationProvider(t.TempDir(), "bucket.db"), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	owner, err := keys.GenerateKekKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	rootSecret := owner.SecretKeyBytes()

	b, err := Open(context.Background(), "test-bucket", owner, rootSecret, store, cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestPutGetWholeObjectRoundTrip(t *testing.T) {
	b := openTestBucket(t)
	ctx := context.Background()
	plaintext := []byte("hello, bucket")

	if err := b.Put(ctx, "/a.txt", plaintext, "text/plain", nil); err != nil {
		t.Fatal(err)
	}
	got, meta, err := b.Get(ctx, "/a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatal("round-tripped plaintext mismatch")
	}
	if meta.OriginalPath != "/a.txt" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
}

func TestPutGetChunkedRoundTrip(t *testing.T) {
	b := openTestBucket(t)
	ctx := context.Background()
	plaintext := bytes.Repeat([]byte("0123456789"), 10000) // 100000 bytes, above the 64KiB threshold

	if err := b.Put(ctx, "/big.bin", plaintext, "application/octet-stream", nil); err != nil {
		t.Fatal(err)
	}
	got, _, err := b.Get(ctx, "/big.bin")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatal("round-tripped chunked plaintext mismatch")
	}

	ranged, err := b.GetRange(ctx, "/big.bin", 100, 50)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(ranged, plaintext[100:150]) {
		t.Fatal("ranged read mismatch")
	}
}

func TestListAndDelete(t *testing.T) {
	b := openTestBucket(t)
	ctx := context.Background()
	for _, p := range []string{"/docs/a.txt", "/docs/b.txt", "/readme.md"} {
		if err := b.Put(ctx, p, []byte("x"), "text/plain", nil); err != nil {
			t.Fatal(err)
		}
	}

	result := b.List("/", "/", "", 0)
	if len(result.Files) != 1 || len(result.CommonPrefixes) != 1 {
		t.Fatalf("unexpected listing: %+v", result)
	}

	if err := b.Delete(ctx, "/readme.md"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := b.Get(ctx, "/readme.md"); err == nil {
		t.Fatal("expected the deleted object to be gone")
	}
}

func TestRotateKekIsIdempotent(t *testing.T) {
	b := openTestBucket(t)
	ctx := context.Background()
	plaintext := []byte("rotate me")
	if err := b.Put(ctx, "/a.txt", plaintext, "text/plain", nil); err != nil {
		t.Fatal(err)
	}

	report, err := b.RotateKek(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Rewrapped != 1 {
		t.Fatalf("expected 1 rewrapped object, got %+v", report)
	}

	got, _, err := b.Get(ctx, "/a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatal("object unreadable after kek rotation")
	}

	// Re-running the rewrap pass for the same key generation is a no-op.
	previous := b.Owner().PreviousKeyPair()
	if previous == nil {
		t.Fatal("expected the pre-rotation keypair to be retained")
	}
	report2 := rotation.RotateBucket(envelopeStoreAdapter{ctx: ctx, bucket: b}, b.forest.AllPaths(), previous, b.Owner())
	if report2.Rewrapped != 0 || report2.Skipped != 1 {
		t.Fatalf("expected a second rotation to be a no-op, got %+v", report2)
	}
}

func TestPutPopulatesContentHash(t *testing.T) {
	b := openTestBucket(t)
	ctx := context.Background()
	plaintext := []byte("content to hash")
	want := primitives.Hash256(plaintext)
	wantHex := hex.EncodeToString(want[:])

	if err := b.Put(ctx, "/a.txt", plaintext, "text/plain", nil); err != nil {
		t.Fatal(err)
	}

	_, meta, err := b.Get(ctx, "/a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if meta.ContentHash != wantHex {
		t.Fatalf("expected metadata content_hash %q, got %q", wantHex, meta.ContentHash)
	}

	result := b.List("/", "", "", 0)
	if len(result.Files) != 1 || result.Files[0].ContentHash != wantHex {
		t.Fatalf("expected forest entry content_hash %q, got %+v", wantHex, result.Files)
	}
}

// TestSnapshotShareAcceptsOnlyExactContent exercises the snapshot-share
// invariant end to end through the Bucket facade: a share bound to the
// content hash Put() actually wrote verifies, and a stale hash does not.
func TestSnapshotShareAcceptsOnlyExactContent(t *testing.T) {
	b := openTestBucket(t)
	ctx := context.Background()
	plaintext := []byte("snapshot me")
	if err := b.Put(ctx, "/shared.txt", plaintext, "text/plain", nil); err != nil {
		t.Fatal(err)
	}
	result := b.List("/", "", "", 0)
	if len(result.Files) != 1 {
		t.Fatalf("expected exactly one entry, got %+v", result.Files)
	}
	entry := result.Files[0]

	recipient, err := keys.GenerateKekKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	subtreeDEK, err := b.Subtrees().GenerateSubtree("/shared.txt")
	if err != nil {
		t.Fatal(err)
	}
	token, err := sharing.NewShareBuilder(b.Owner().SecretKeyBytes(), recipient.PublicKey(), subtreeDEK).
		PathScope("/shared.txt").
		Snapshot(entry.ContentHash, entry.Size, entry.ModifiedAt).
		Build()
	if err != nil {
		t.Fatal(err)
	}

	current := &sharing.CurrentContentState{ContentHash: entry.ContentHash, Size: entry.Size, ModifiedAt: entry.ModifiedAt}
	if _, err := sharing.Accept(token, recipient.SecretKeyBytes(), recipient.PublicKey(), "/shared.txt", sharing.OpRead, current); err != nil {
		t.Fatalf("expected the matching snapshot to verify, got %v", err)
	}

	stale := &sharing.CurrentContentState{ContentHash: "0000", Size: entry.Size, ModifiedAt: entry.ModifiedAt}
	if _, err := sharing.Accept(token, recipient.SecretKeyBytes(), recipient.PublicKey(), "/shared.txt", sharing.OpRead, stale); err == nil {
		t.Fatal("expected a stale content hash to fail snapshot verification")
	}
}

func TestRotateSubtree(t *testing.T) {
	b := openTestBucket(t)
	ctx := context.Background()
	for _, p := range []string{"/photos/a.jpg", "/photos/b.jpg", "/docs/c.txt"} {
		if err := b.Put(ctx, p, []byte("x"), "text/plain", nil); err != nil {
			t.Fatal(err)
		}
	}

	result, err := b.RotateSubtree("/photos/")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.AffectedPaths) != 2 {
		t.Fatalf("expected 2 affected paths under /photos/, got %v", result.AffectedPaths)
	}
}
