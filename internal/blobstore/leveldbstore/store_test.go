package leveldbstore

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/fula-go/cryptostore/internal/blobstore"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := NewConfigurationProvider(t.TempDir(), "test.db")
	store, err := Open(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPutGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	headers := blobstore.Headers{blobstore.HeaderEncrypted: "true"}

	if _, err := store.Put(ctx, "key-a", []byte("payload"), headers); err != nil {
		t.Fatal(err)
	}
	data, gotHeaders, err := store.Get(ctx, "key-a")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Fatalf("got data %q, want %q", data, "payload")
	}
	if gotHeaders[blobstore.HeaderEncrypted] != "true" {
		t.Fatal("headers did not round-trip")
	}
}

func TestHeadReturnsHeadersWithoutData(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	headers := blobstore.Headers{blobstore.HeaderChunked: "true"}
	if _, err := store.Put(ctx, "key-a", []byte("payload"), headers); err != nil {
		t.Fatal(err)
	}
	got, err := store.Head(ctx, "key-a")
	if err != nil {
		t.Fatal(err)
	}
	if got[blobstore.HeaderChunked] != "true" {
		t.Fatal("head did not return the stored headers")
	}
}

func TestGetMissingKeyReturnsErrNotFound(t *testing.T) {
	store := newTestStore(t)
	_, _, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, blobstore.ErrNotFound) {
		t.Fatalf("expected blobstore.ErrNotFound, got %v", err)
	}
}

func TestDeleteRemovesKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if _, err := store.Put(ctx, "key-a", []byte("x"), nil); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "key-a"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := store.Get(ctx, "key-a"); !errors.Is(err, blobstore.ErrNotFound) {
		t.Fatal("expected the key to be gone after delete")
	}
}

func TestListGroupsByDelimiterAndPaginates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for _, k := range []string{"objs/a", "objs/b", "objs/dir/c", "other/x"} {
		if _, err := store.Put(ctx, k, []byte("v"), nil); err != nil {
			t.Fatal(err)
		}
	}

	result, err := store.List(ctx, "objs/", "", 0, "/")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Keys) != 2 {
		t.Fatalf("expected 2 keys directly under objs/, got %v", result.Keys)
	}
	if len(result.CommonPrefixes) != 1 || result.CommonPrefixes[0] != "objs/dir/" {
		t.Fatalf("expected common prefix objs/dir/, got %v", result.CommonPrefixes)
	}

	page, err := store.List(ctx, "objs/", "", 1, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Keys) != 1 || page.NextToken == "" {
		t.Fatalf("expected a paginated first page with a next token, got %+v", page)
	}
}
