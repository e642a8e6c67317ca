package forest

import (
	"fmt"
	"testing"

	"github.com/fula-go/cryptostore/internal/primitives"
)

func newTestForest() *PrivateForest {
	f := New("test-bucket", [16]byte{1, 2, 3})
	f.MigrationThreshold = 10
	return f
}

func TestUpsertAndGetFile(t *testing.T) {
	f := newTestForest()
	entry := ForestFileEntry{OriginalPath: "/a.txt", StorageKey: "key-a", Size: 10}
	f.UpsertFile("/a.txt", entry)

	got, ok := f.GetFile("/a.txt")
	if !ok {
		t.Fatal("expected to find the upserted file")
	}
	if got.StorageKey != "key-a" {
		t.Fatalf("got storage key %q, want %q", got.StorageKey, "key-a")
	}
}

func TestRemoveFile(t *testing.T) {
	f := newTestForest()
	f.UpsertFile("/a.txt", ForestFileEntry{OriginalPath: "/a.txt"})
	if !f.RemoveFile("/a.txt") {
		t.Fatal("expected RemoveFile to report the file existed")
	}
	if _, ok := f.GetFile("/a.txt"); ok {
		t.Fatal("expected the file to be gone after removal")
	}
	if f.RemoveFile("/a.txt") {
		t.Fatal("expected RemoveFile to report false for an already-removed file")
	}
}

func TestMigratesToHamtAtThreshold(t *testing.T) {
	f := newTestForest()
	f.MigrationThreshold = 5
	for i := 0; i < 5; i++ {
		path := fmt.Sprintf("/file-%02d.txt", i)
		f.UpsertFile(path, ForestFileEntry{OriginalPath: path})
	}
	if f.Format != FormatFlatMapV1 {
		t.Fatalf("expected FlatMapV1 at exactly the threshold, got format %v", f.Format)
	}

	f.UpsertFile("/file-06.txt", ForestFileEntry{OriginalPath: "/file-06.txt"})
	if f.Format != FormatHamtV2 {
		t.Fatal("expected migration to HamtV2 once the threshold is exceeded")
	}
	if f.Count() != 6 {
		t.Fatalf("expected 6 files after migration, got %d", f.Count())
	}
	for i := 0; i < 5; i++ {
		path := fmt.Sprintf("/file-%02d.txt", i)
		if _, ok := f.GetFile(path); !ok {
			t.Fatalf("lost file %q during migration", path)
		}
	}
}

func TestListDirectoryGroupsByDelimiter(t *testing.T) {
	f := newTestForest()
	for _, p := range []string{"/photos/a.jpg", "/photos/b.jpg", "/docs/report.pdf", "/readme.txt"} {
		f.UpsertFile(p, ForestFileEntry{OriginalPath: p})
	}

	result := f.ListDirectory("/", "/", "", 0)
	if len(result.Files) != 1 || result.Files[0].OriginalPath != "/readme.txt" {
		t.Fatalf("expected exactly /readme.txt at top level, got %+v", result.Files)
	}
	wantPrefixes := map[string]bool{"/photos/": true, "/docs/": true}
	if len(result.CommonPrefixes) != len(wantPrefixes) {
		t.Fatalf("expected %d common prefixes, got %v", len(wantPrefixes), result.CommonPrefixes)
	}
	for _, cp := range result.CommonPrefixes {
		if !wantPrefixes[cp] {
			t.Fatalf("unexpected common prefix %q", cp)
		}
	}
}

func TestListDirectoryPagination(t *testing.T) {
	f := newTestForest()
	for i := 0; i < 5; i++ {
		path := fmt.Sprintf("/f%d.txt", i)
		f.UpsertFile(path, ForestFileEntry{OriginalPath: path})
	}
	result := f.ListDirectory("/", "", "", 2)
	if len(result.Files) != 2 {
		t.Fatalf("expected 2 files in the first page, got %d", len(result.Files))
	}
	if result.NextToken == "" {
		t.Fatal("expected a next-page token")
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	f := newTestForest()
	f.UpsertFile("/a.txt", ForestFileEntry{OriginalPath: "/a.txt", StorageKey: "key-a"})
	f.UpsertFile("/b/c.txt", ForestFileEntry{OriginalPath: "/b/c.txt", StorageKey: "key-c"})

	rootSecret := []byte("0123456789abcdef0123456789abcdef")[:32]
	nonce, ciphertext, err := f.Serialize(rootSecret, primitives.AlgorithmAES256GCM)
	if err != nil {
		t.Fatal(err)
	}

	restored, err := Deserialize(f.Bucket, rootSecret, primitives.AlgorithmAES256GCM, nonce, ciphertext, 10)
	if err != nil {
		t.Fatal(err)
	}
	if restored.Count() != f.Count() {
		t.Fatalf("expected %d files after deserialize, got %d", f.Count(), restored.Count())
	}
	got, ok := restored.GetFile("/b/c.txt")
	if !ok || got.StorageKey != "key-c" {
		t.Fatal("deserialized forest lost the file entry")
	}
	if restored.Salt != f.Salt {
		t.Fatal("deserialized forest lost its salt")
	}
}

func TestDeserializeRejectsWrongRootSecret(t *testing.T) {
	f := newTestForest()
	f.UpsertFile("/a.txt", ForestFileEntry{OriginalPath: "/a.txt"})
	rootSecret := make([]byte, 32)
	nonce, ciphertext, err := f.Serialize(rootSecret, primitives.AlgorithmAES256GCM)
	if err != nil {
		t.Fatal(err)
	}
	wrongSecret := make([]byte, 32)
	wrongSecret[0] = 1
	if _, err := Deserialize(f.Bucket, wrongSecret, primitives.AlgorithmAES256GCM, nonce, ciphertext, 10); err == nil {
		t.Fatal("expected deserialize to fail under the wrong root secret")
	}
}

func TestAllPathsCoversEveryFile(t *testing.T) {
	f := newTestForest()
	want := map[string]bool{"/a": true, "/b": true, "/c": true}
	for p := range want {
		f.UpsertFile(p, ForestFileEntry{OriginalPath: p})
	}
	got := f.AllPaths()
	if len(got) != len(want) {
		t.Fatalf("expected %d paths, got %d", len(want), len(got))
	}
	for _, p := range got {
		if !want[p] {
			t.Fatalf("unexpected path %q", p)
		}
	}
}
