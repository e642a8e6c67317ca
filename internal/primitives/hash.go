package primitives

import (
	"github.com/zeebo/blake3"
)

// HashSize is the output length of a BLAKE3 digest as used throughout this
// module (general hashing, keyed derivation, Bao tree nodes).
const HashSize = 32

// Hash256 returns the 32-byte BLAKE3 digest of data.
func Hash256(data []byte) [HashSize]byte {
	return blake3.Sum256(data)
}

// DeriveKey implements BLAKE3's key-derivation mode:
// derive_key(context, key_material). context is a stable, domain-separated
// string (e.g. "fula-path-key-v1"); the result is deterministic for a given
// (context, ikm) pair and is used for path-key derivation, the forest
// index key, and the per-object Bao tree keying.
func DeriveKey(context string, ikm []byte) [HashSize]byte {
	h := blake3.NewDeriveKey(context)
	h.Write(ikm)
	var out [HashSize]byte
	h.Sum(out[:0])
	return out
}

// KeyedHash computes a BLAKE3 keyed hash (key must be 32 bytes) — used by
// the Bao tree to bind each chunk's hash to the file's root key context.
func KeyedHash(key [HashSize]byte, data []byte) [HashSize]byte {
	h, err := blake3.NewKeyed(key[:])
	if err != nil {
		// NewKeyed only fails on a key of the wrong length, which cannot
		// happen here since key is a fixed-size array.
		panic(err)
	}
	h.Write(data)
	var out [HashSize]byte
	h.Sum(out[:0])
	return out
}
