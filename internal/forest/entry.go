// Package forest implements the PrivateForest: the per-bucket encrypted
// index mapping logical path to ForestFileEntry, with a flat-map
// representation below a configurable file count and a HAMT above it
// (spec §4.6). Grounded in the teacher's domain/collection package, which
// plays the same "directory index" role for a server-trusted collection
// tree — here the whole index is encrypted client-side and the directory
// hierarchy is flattened into two path-keyed maps instead of a parent-link
// tree, per spec §9's cyclic-graph design note.
package forest

import "time"

// ForestFileEntry is one file's record inside the forest (spec §3).
type ForestFileEntry struct {
	OriginalPath string            `cbor:"original_path"`
	StorageKey   string            `cbor:"storage_key"`
	Size         int64             `cbor:"size"`
	ContentType  string            `cbor:"content_type,omitempty"`
	CreatedAt    time.Time         `cbor:"created_at"`
	ModifiedAt   time.Time         `cbor:"modified_at"`
	UserMetadata map[string]string `cbor:"user_metadata,omitempty"`
	ContentHash  string            `cbor:"content_hash,omitempty"`
}

// ForestDirectoryEntry tracks one directory's children and, optionally, a
// wrapped subtree DEK for subtree sharing (spec §3).
type ForestDirectoryEntry struct {
	Path              string   `cbor:"path"`
	Children          []string `cbor:"children"`
	SubtreeDekWrapped []byte   `cbor:"subtree_dek_wrap,omitempty"`
}
