package pipeline

import (
	"bytes"
	"testing"

	"github.com/fula-go/cryptostore/internal/metadata"
	"github.com/fula-go/cryptostore/internal/primitives"
)

// memoryFetcher backs a ChunkFetcher with an in-memory slice, standing in
// for a BlobStore's chunk children during tests.
func memoryFetcher(blobs []ChunkBlob) ChunkFetcher {
	return func(index uint32) ([]byte, error) {
		for _, b := range blobs {
			if b.Index == index {
				return b.Ciphertext, nil
			}
		}
		return nil, errNotFound
	}
}

var errNotFound = &fetchError{"chunk not found"}

type fetchError struct{ msg string }

func (e *fetchError) Error() string { return e.msg }

func TestEncryptDecryptChunkedRoundTrip(t *testing.T) {
	pub, priv, err := primitives.GenerateX25519KeyPair()
	if err != nil {
		t.Fatal(err)
	}
	plaintext := bytes.Repeat([]byte("0123456789abcdef"), 10000) // 160000 bytes
	chunkSize := uint32(64 * 1024)

	env, chunks, err := EncryptChunked(primitives.AlgorithmAES256GCM, pub, 1, plaintext, chunkSize, metadata.PrivateMetadata{OriginalPath: "/big.bin"})
	if err != nil {
		t.Fatal(err)
	}
	wantChunks := (len(plaintext) + int(chunkSize) - 1) / int(chunkSize)
	if int(env.Chunked.NumChunks) != wantChunks {
		t.Fatalf("expected %d chunks, got %d", wantChunks, env.Chunked.NumChunks)
	}

	got, _, err := DecryptChunked(env, priv, pub, memoryFetcher(chunks))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatal("round-tripped chunked plaintext mismatch")
	}
}

func TestDecryptChunkedDetectsTamperedChunk(t *testing.T) {
	pub, priv, _ := primitives.GenerateX25519KeyPair()
	plaintext := bytes.Repeat([]byte("x"), 200*1024)
	env, chunks, err := EncryptChunked(primitives.AlgorithmAES256GCM, pub, 1, plaintext, 64*1024, metadata.PrivateMetadata{})
	if err != nil {
		t.Fatal(err)
	}
	chunks[0].Ciphertext[0] ^= 0xff

	if _, _, err := DecryptChunked(env, priv, pub, memoryFetcher(chunks)); err == nil {
		t.Fatal("expected decryption to fail for a tampered chunk")
	}
}

func TestReadRangeReturnsExactSlice(t *testing.T) {
	pub, priv, _ := primitives.GenerateX25519KeyPair()
	plaintext := make([]byte, 300*1024)
	for i := range plaintext {
		plaintext[i] = byte(i)
	}
	env, chunks, err := EncryptChunked(primitives.AlgorithmAES256GCM, pub, 1, plaintext, 64*1024, metadata.PrivateMetadata{})
	if err != nil {
		t.Fatal(err)
	}

	offset, length := int64(70000), int64(5000)
	got, err := ReadRange(env, priv, pub, offset, length, memoryFetcher(chunks))
	if err != nil {
		t.Fatal(err)
	}
	want := plaintext[offset : offset+length]
	if !bytes.Equal(got, want) {
		t.Fatal("ranged read did not return the expected slice")
	}
}

func TestReadRangeRejectsOutOfBounds(t *testing.T) {
	pub, priv, _ := primitives.GenerateX25519KeyPair()
	plaintext := bytes.Repeat([]byte("y"), 100*1024)
	env, chunks, err := EncryptChunked(primitives.AlgorithmAES256GCM, pub, 1, plaintext, 64*1024, metadata.PrivateMetadata{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ReadRange(env, priv, pub, 0, int64(len(plaintext))+1, memoryFetcher(chunks)); err == nil {
		t.Fatal("expected an error reading past the end of the object")
	}
}

func TestEncryptChunkedRejectsChunkSizeOutOfBounds(t *testing.T) {
	pub, _, _ := primitives.GenerateX25519KeyPair()
	if _, _, err := EncryptChunked(primitives.AlgorithmAES256GCM, pub, 1, []byte("x"), 1024, metadata.PrivateMetadata{}); err == nil {
		t.Fatal("expected an error for a chunk size below the minimum")
	}
}

func TestEncryptChunkedRejectsEmptyPlaintext(t *testing.T) {
	pub, _, _ := primitives.GenerateX25519KeyPair()
	if _, _, err := EncryptChunked(primitives.AlgorithmAES256GCM, pub, 1, []byte{}, MinChunkSizeBytes, metadata.PrivateMetadata{}); err == nil {
		t.Fatal("expected an error for a zero-length chunked upload")
	}
}

func TestEncryptChunkedExactChunkSizeBoundary(t *testing.T) {
	pub, priv, _ := primitives.GenerateX25519KeyPair()
	chunkSize := uint32(MinChunkSizeBytes)
	plaintext := bytes.Repeat([]byte("z"), int(chunkSize))

	env, chunks, err := EncryptChunked(primitives.AlgorithmAES256GCM, pub, 1, plaintext, chunkSize, metadata.PrivateMetadata{})
	if err != nil {
		t.Fatal(err)
	}
	if env.Chunked.NumChunks != 1 {
		t.Fatalf("expected exactly 1 chunk for an exactly-chunk-size file, got %d", env.Chunked.NumChunks)
	}
	got, _, err := DecryptChunked(env, priv, pub, memoryFetcher(chunks))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatal("boundary-size round trip mismatch")
	}
}
