package metadata

import (
	"testing"
	"time"

	"github.com/fula-go/cryptostore/internal/keys"
	"github.com/fula-go/cryptostore/internal/primitives"
)

func TestSealOpenRoundTrip(t *testing.T) {
	dek, err := keys.GenerateDEK()
	if err != nil {
		t.Fatal(err)
	}
	meta := PrivateMetadata{
		OriginalPath: "/docs/report.pdf",
		Size:         1024,
		ContentType:  "application/pdf",
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
		ModifiedAt:   time.Now().UTC().Truncate(time.Second),
		UserMetadata: map[string]string{"author": "jane"},
	}

	enc, err := Seal(primitives.AlgorithmAES256GCM, dek, meta)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Open(primitives.AlgorithmAES256GCM, dek, enc)
	if err != nil {
		t.Fatal(err)
	}
	if got.OriginalPath != meta.OriginalPath || got.Size != meta.Size || got.ContentType != meta.ContentType {
		t.Fatalf("round-tripped metadata mismatch: got %+v want %+v", got, meta)
	}
	if got.UserMetadata["author"] != "jane" {
		t.Fatal("user metadata did not survive the round trip")
	}
}

func TestOpenRejectsWrongDEK(t *testing.T) {
	dek, _ := keys.GenerateDEK()
	other, _ := keys.GenerateDEK()
	enc, err := Seal(primitives.AlgorithmAES256GCM, dek, PrivateMetadata{OriginalPath: "/x"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Open(primitives.AlgorithmAES256GCM, other, enc); err == nil {
		t.Fatal("expected failure opening with the wrong DEK")
	}
}

func TestOpenRejectsUnsupportedVersion(t *testing.T) {
	dek, _ := keys.GenerateDEK()
	enc, err := Seal(primitives.AlgorithmAES256GCM, dek, PrivateMetadata{})
	if err != nil {
		t.Fatal(err)
	}
	enc.Version = 99
	if _, err := Open(primitives.AlgorithmAES256GCM, dek, enc); err == nil {
		t.Fatal("expected an unsupported-version error")
	}
}
