package pipeline

import (
	"bytes"
	"testing"
	"time"

	"github.com/fula-go/cryptostore/internal/metadata"
	"github.com/fula-go/cryptostore/internal/primitives"
)

func TestEncryptDecryptWholeObjectRoundTrip(t *testing.T) {
	pub, priv, err := primitives.GenerateX25519KeyPair()
	if err != nil {
		t.Fatal(err)
	}
	plaintext := []byte("hello, encrypted world")
	meta := metadata.PrivateMetadata{OriginalPath: "/a.txt", Size: int64(len(plaintext)), CreatedAt: time.Now(), ModifiedAt: time.Now()}

	env, ciphertext, err := EncryptWholeObject(primitives.AlgorithmAES256GCM, pub, 1, plaintext, meta)
	if err != nil {
		t.Fatal(err)
	}
	if env.Version != VersionWholeObject {
		t.Fatalf("expected version %d, got %d", VersionWholeObject, env.Version)
	}

	got, gotMeta, err := DecryptWholeObject(env, priv, pub, ciphertext)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatal("round-tripped plaintext mismatch")
	}
	if gotMeta.OriginalPath != meta.OriginalPath {
		t.Fatalf("metadata mismatch: got %q want %q", gotMeta.OriginalPath, meta.OriginalPath)
	}
}

func TestDecryptWholeObjectRejectsTamperedCiphertext(t *testing.T) {
	pub, priv, _ := primitives.GenerateX25519KeyPair()
	env, ciphertext, err := EncryptWholeObject(primitives.AlgorithmChaCha20Poly1305, pub, 1, []byte("payload"), metadata.PrivateMetadata{})
	if err != nil {
		t.Fatal(err)
	}
	tampered := append([]byte(nil), ciphertext...)
	tampered[0] ^= 0x01
	if _, _, err := DecryptWholeObject(env, priv, pub, tampered); err == nil {
		t.Fatal("expected decryption to fail for tampered ciphertext")
	}
}

func TestDecryptWholeObjectRejectsWrongOwner(t *testing.T) {
	pub, _, _ := primitives.GenerateX25519KeyPair()
	otherPub, otherPriv, _ := primitives.GenerateX25519KeyPair()
	env, ciphertext, err := EncryptWholeObject(primitives.AlgorithmAES256GCM, pub, 1, []byte("payload"), metadata.PrivateMetadata{})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := DecryptWholeObject(env, otherPriv, otherPub, ciphertext); err == nil {
		t.Fatal("expected decryption to fail for the wrong owner keypair")
	}
}

func TestEnvelopeJSONRoundTrip(t *testing.T) {
	pub, _, _ := primitives.GenerateX25519KeyPair()
	env, _, err := EncryptWholeObject(primitives.AlgorithmAES256GCM, pub, 3, []byte("x"), metadata.PrivateMetadata{OriginalPath: "/x"})
	if err != nil {
		t.Fatal(err)
	}
	raw, err := MarshalEnvelopeJSON(env)
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalEnvelopeJSON(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got.KekVersion != env.KekVersion || got.Version != env.Version {
		t.Fatalf("unmarshaled envelope mismatch: got %+v want %+v", got, env)
	}
}

func TestValidateVersionRejectsUnknown(t *testing.T) {
	if err := ValidateVersion(42); err == nil {
		t.Fatal("expected an error for an unknown envelope version")
	}
	for _, v := range []int{VersionLegacy, VersionWholeObject, VersionChunked} {
		if err := ValidateVersion(v); err != nil {
			t.Fatalf("version %d should validate: %v", v, err)
		}
	}
}
