// Package obfuscation implements the four storage-key obfuscation modes
// (spec §4.5). Every mode maps a logical path to an opaque key the blob
// store sees instead of the real filename; only FlatNamespace hides
// directory shape entirely, and it is the only mode that needs a loaded
// forest to resolve a path back to its key (the forest records that
// mapping; its GenerateFlatKey calls through to this package, which
// supplies all four modes plus the shared base32 encoding they build on).
package obfuscation

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"path"
	"strings"

	"github.com/fula-go/cryptostore/internal/common/errors"
	"github.com/fula-go/cryptostore/internal/primitives"
)

// Mode selects one of the four obfuscation policies.
type Mode string

const (
	ModeDeterministicHash Mode = "DeterministicHash"
	ModeRandomUuid        Mode = "RandomUuid"
	ModePreserveStructure Mode = "PreserveStructure"
	ModeFlatNamespace     Mode = "FlatNamespace"
)

var base32Enc = base32.StdEncoding.WithPadding(base32.NoPadding)

// DeterministicHash produces "e/" + base32(BLAKE3(dek || path)): a flat,
// stable key that hides the filename but reveals nothing about structure.
func DeterministicHash(logicalPath string, dek []byte) string {
	ikm := make([]byte, 0, len(dek)+len(logicalPath))
	ikm = append(ikm, dek...)
	ikm = append(ikm, logicalPath...)
	sum := primitives.Hash256(ikm)
	return "e/" + base32Enc.EncodeToString(sum[:])
}

// RandomUuid draws a fresh random key per upload. It is not deterministic:
// repeated calls for the same path produce different keys, so it can only
// be used for write-once blobs resolved purely through the forest.
func RandomUuid() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.New("obfuscation: failed to draw random key", err)
	}
	return "u/" + base32Enc.EncodeToString(buf), nil
}

// PreserveStructure keeps the directory prefix of logicalPath and hashes
// only the basename, so directory shape is visible but filenames are not.
func PreserveStructure(logicalPath string, dek []byte) string {
	dir := path.Dir(logicalPath)
	base := path.Base(logicalPath)
	ikm := make([]byte, 0, len(dek)+len(base))
	ikm = append(ikm, dek...)
	ikm = append(ikm, base...)
	sum := primitives.Hash256(ikm)
	hashed := base32Enc.EncodeToString(sum[:16])
	if dir == "." || dir == "/" {
		return hashed
	}
	return strings.TrimPrefix(dir, "/") + "/" + hashed
}

// GenerateFlatKey derives a CID-shaped key for FlatNamespace mode:
// "Qm" + base32(BLAKE3(dek || salt || path)). It lives here as the shared
// primitive; PrivateForest.GenerateFlatKey (spec §4.6) calls through to it
// since that mode requires the forest to remember the mapping.
func GenerateFlatKey(logicalPath string, dek, salt []byte) string {
	ikm := make([]byte, 0, len(dek)+len(salt)+len(logicalPath))
	ikm = append(ikm, dek...)
	ikm = append(ikm, salt...)
	ikm = append(ikm, logicalPath...)
	sum := primitives.Hash256(ikm)
	return "Qm" + base32Enc.EncodeToString(sum[:])
}

// Derive computes the obfuscated storage key for logicalPath under mode.
// RandomUuid ignores dek/salt and draws fresh randomness each call.
func Derive(mode Mode, logicalPath string, dek, salt []byte) (string, error) {
	switch mode {
	case ModeDeterministicHash:
		return DeterministicHash(logicalPath, dek), nil
	case ModeRandomUuid:
		return RandomUuid()
	case ModePreserveStructure:
		return PreserveStructure(logicalPath, dek), nil
	case ModeFlatNamespace:
		return GenerateFlatKey(logicalPath, dek, salt), nil
	default:
		return "", errors.New(fmt.Sprintf("obfuscation: unknown mode %q", mode), nil)
	}
}

// ChunkChildKey computes the key of chunk index under storageKey (spec
// §6.3): "<storage_key>.chunks/<8-digit zero-padded index>".
func ChunkChildKey(storageKey string, index uint32) string {
	return fmt.Sprintf("%s.chunks/%08d", storageKey, index)
}
