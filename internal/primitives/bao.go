package primitives

import (
	"encoding/binary"
	"fmt"
)

// Bao-style verified streaming: a binary hash tree over fixed-size chunks,
// keyed to a per-file context, producing a single root hash plus an
// "outboard" of internal node hashes that lets a reader verify any single
// chunk (or contiguous range of chunks) without hashing the whole file.
//
// This is a from-scratch, self-contained tree (not wire-compatible with the
// upstream bao crate) built on BLAKE3 keyed hashing, since the pack carries
// no ready-made Go Bao implementation. It follows the same shape: leaves
// hashed under one domain tag, internal nodes under another, both bound to
// a tree key so a tree built for one file can never be confused with
// another's.

const (
	baoLeafTag = "fula-bao-leaf-v1"
	baoNodeTag = "fula-bao-node-v1"
)

// BaoTree is the full verified tree for one chunked object.
type BaoTree struct {
	Key    [HashSize]byte
	Leaves [][HashSize]byte
	// Levels holds every level of the tree above the leaves, Levels[0]
	// being the first parent level and the last entry the single root.
	// An odd node out at any level is carried forward unhashed, so proof
	// generation knows when there is no sibling to include.
	Levels [][][HashSize]byte
}

// Root returns the tree's root hash.
func (t *BaoTree) Root() [HashSize]byte {
	if len(t.Levels) == 0 {
		if len(t.Leaves) == 1 {
			return t.Leaves[0]
		}
		var zero [HashSize]byte
		return zero
	}
	last := t.Levels[len(t.Levels)-1]
	return last[0]
}

// BuildBaoTree hashes each chunk as a leaf (bound to its index) and folds
// the leaves pairwise into a root under treeKey, which should be derived
// per-object (e.g. DeriveKey("bao-tree", dek)) so two files never share a
// tree namespace.
func BuildBaoTree(treeKey [HashSize]byte, chunks [][]byte) (*BaoTree, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("primitives: cannot build a bao tree over zero chunks")
	}
	leaves := make([][HashSize]byte, len(chunks))
	for i, c := range chunks {
		leaves[i] = leafHash(treeKey, uint32(i), c)
	}
	tree := &BaoTree{Key: treeKey, Leaves: leaves}
	level := leaves
	for len(level) > 1 {
		next := foldLevel(treeKey, level)
		tree.Levels = append(tree.Levels, next)
		level = next
	}
	return tree, nil
}

func leafHash(key [HashSize]byte, index uint32, data []byte) [HashSize]byte {
	buf := make([]byte, 0, len(baoLeafTag)+4+len(data))
	buf = append(buf, []byte(baoLeafTag)...)
	buf = append(buf, byte(index), byte(index>>8), byte(index>>16), byte(index>>24))
	buf = append(buf, data...)
	return KeyedHash(key, buf)
}

func nodeHash(key [HashSize]byte, left, right [HashSize]byte) [HashSize]byte {
	buf := make([]byte, 0, len(baoNodeTag)+2*HashSize)
	buf = append(buf, []byte(baoNodeTag)...)
	buf = append(buf, left[:]...)
	buf = append(buf, right[:]...)
	return KeyedHash(key, buf)
}

func foldLevel(key [HashSize]byte, level [][HashSize]byte) [][HashSize]byte {
	next := make([][HashSize]byte, 0, (len(level)+1)/2)
	for i := 0; i+1 < len(level); i += 2 {
		next = append(next, nodeHash(key, level[i], level[i+1]))
	}
	if len(level)%2 == 1 {
		next = append(next, level[len(level)-1])
	}
	return next
}

// ProofStep is one sibling hash on the path from a leaf to the root.
// HasSibling is false when the leaf (or an ancestor) was the odd node out
// at that level and was carried forward without hashing.
type ProofStep struct {
	Sibling    [HashSize]byte
	IsLeft     bool // true if Sibling is the left-hand node
	HasSibling bool
}

// Proof returns the sibling path for leaf index i, letting a verifier
// recompute the root from just that leaf's plaintext and this path.
func (t *BaoTree) Proof(i int) ([]ProofStep, error) {
	if i < 0 || i >= len(t.Leaves) {
		return nil, fmt.Errorf("primitives: leaf index %d out of range [0,%d)", i, len(t.Leaves))
	}
	var proof []ProofStep
	level := t.Leaves
	idx := i
	for _, next := range append(t.Levels, nil) {
		if next == nil {
			break
		}
		if idx%2 == 0 {
			if idx+1 < len(level) {
				proof = append(proof, ProofStep{Sibling: level[idx+1], IsLeft: false, HasSibling: true})
			} else {
				proof = append(proof, ProofStep{HasSibling: false})
			}
		} else {
			proof = append(proof, ProofStep{Sibling: level[idx-1], IsLeft: true, HasSibling: true})
		}
		idx /= 2
		level = next
	}
	return proof, nil
}

// VerifyChunk recomputes the root from chunk's plaintext, its index and a
// proof path, and reports whether it matches root. Any bit flipped in the
// chunk, a tampered proof step, or a proof for the wrong index fails this
// check.
func VerifyChunk(treeKey [HashSize]byte, index uint32, chunk []byte, proof []ProofStep, root [HashSize]byte) bool {
	h := leafHash(treeKey, index, chunk)
	for _, step := range proof {
		if !step.HasSibling {
			continue
		}
		if step.IsLeft {
			h = nodeHash(treeKey, step.Sibling, h)
		} else {
			h = nodeHash(treeKey, h, step.Sibling)
		}
	}
	return h == root
}

// SerializeOutboard flattens a tree's leaf and internal-node hashes (never
// the chunk plaintext) into a byte string suitable for the envelope's
// bao_outboard field, so a ranged read can verify a single chunk against
// the committed root without fetching or hashing its siblings' content.
func SerializeOutboard(t *BaoTree) []byte {
	out := make([]byte, 0, 4+len(t.Leaves)*HashSize)
	out = appendLevel(out, t.Leaves)
	for _, level := range t.Levels {
		out = appendLevel(out, level)
	}
	return out
}

func appendLevel(out []byte, level [][HashSize]byte) []byte {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(level)))
	out = append(out, n[:]...)
	for _, h := range level {
		out = append(out, h[:]...)
	}
	return out
}

// DeserializeOutboard reconstructs a BaoTree's hash structure (without the
// original chunk bytes) from an outboard produced by SerializeOutboard, for
// generating proof paths during a ranged read.
func DeserializeOutboard(treeKey [HashSize]byte, numChunks uint32, data []byte) (*BaoTree, error) {
	levels := make([][][HashSize]byte, 0)
	levelCount := 0
	pos := 0
	for pos < len(data) {
		if pos+4 > len(data) {
			return nil, fmt.Errorf("primitives: truncated bao outboard")
		}
		n := binary.LittleEndian.Uint32(data[pos:])
		pos += 4
		level := make([][HashSize]byte, n)
		for i := uint32(0); i < n; i++ {
			if pos+HashSize > len(data) {
				return nil, fmt.Errorf("primitives: truncated bao outboard")
			}
			copy(level[i][:], data[pos:pos+HashSize])
			pos += HashSize
		}
		levels = append(levels, level)
		levelCount++
	}
	if levelCount == 0 {
		return nil, fmt.Errorf("primitives: empty bao outboard")
	}
	tree := &BaoTree{Key: treeKey, Leaves: levels[0]}
	if len(levels) > 1 {
		tree.Levels = levels[1:]
	}
	if uint32(len(tree.Leaves)) != numChunks {
		return nil, fmt.Errorf("primitives: bao outboard leaf count %d does not match num_chunks %d", len(tree.Leaves), numChunks)
	}
	return tree, nil
}
