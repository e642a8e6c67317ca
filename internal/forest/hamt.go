package forest

import "github.com/fula-go/cryptostore/internal/primitives"

// hamtBucketSize is B in spec §4.6: a leaf bucket holds up to this many
// entries before it splits into a child node.
const hamtBucketSize = 8

// hamtNode is one node of the trie: either a leaf bucket (entries non-nil)
// or an internal node with up to 16 children selected by one nibble of the
// BLAKE3(path) key, tracked by a 16-bit presence bitmap.
type hamtNode struct {
	bitmap   uint16
	children [16]*hamtNode
	entries  map[string]ForestFileEntry // non-nil only on leaves
}

func newHamtLeaf() *hamtNode {
	return &hamtNode{entries: make(map[string]ForestFileEntry)}
}

// HamtIndex is the HAMT representation used above the migration threshold.
type HamtIndex struct {
	root  *hamtNode
	count int
}

// NewHamtIndex creates an empty HAMT.
func NewHamtIndex() *HamtIndex {
	return &HamtIndex{root: newHamtLeaf()}
}

func nibble(key [primitives.HashSize]byte, depth int) int {
	b := key[depth/2]
	if depth%2 == 0 {
		return int(b >> 4)
	}
	return int(b & 0x0f)
}

func hamtKey(path string) [primitives.HashSize]byte {
	return primitives.Hash256([]byte(path))
}

func (h *HamtIndex) Get(path string) (ForestFileEntry, bool) {
	key := hamtKey(path)
	node := h.root
	depth := 0
	for node.entries == nil {
		n := nibble(key, depth)
		child := node.children[n]
		if child == nil {
			return ForestFileEntry{}, false
		}
		node = child
		depth++
	}
	e, ok := node.entries[path]
	return e, ok
}

func (h *HamtIndex) Upsert(path string, entry ForestFileEntry) {
	key := hamtKey(path)
	node := h.root
	depth := 0
	for {
		if node.entries != nil {
			if _, exists := node.entries[path]; exists {
				node.entries[path] = entry
				return
			}
			if len(node.entries) < hamtBucketSize || depth >= primitives.HashSize*2-1 {
				node.entries[path] = entry
				h.count++
				return
			}
			h.splitLeaf(node, depth)
			// fall through: node is now internal, retry at same depth
		}
		n := nibble(key, depth)
		child := node.children[n]
		if child == nil {
			child = newHamtLeaf()
			node.children[n] = child
			node.bitmap |= 1 << uint(n)
		}
		node = child
		depth++
	}
}

// splitLeaf redistributes a full leaf's entries into child leaves keyed by
// the next nibble, converting node into an internal node in place.
func (h *HamtIndex) splitLeaf(node *hamtNode, depth int) {
	old := node.entries
	node.entries = nil
	for p, e := range old {
		n := nibble(hamtKey(p), depth)
		child := node.children[n]
		if child == nil {
			child = newHamtLeaf()
			node.children[n] = child
			node.bitmap |= 1 << uint(n)
		}
		child.entries[p] = e
	}
}

func (h *HamtIndex) Remove(path string) bool {
	key := hamtKey(path)
	node := h.root
	depth := 0
	for node.entries == nil {
		n := nibble(key, depth)
		child := node.children[n]
		if child == nil {
			return false
		}
		node = child
		depth++
	}
	if _, ok := node.entries[path]; !ok {
		return false
	}
	delete(node.entries, path)
	h.count--
	return true
}

func (h *HamtIndex) Len() int { return h.count }

func (h *HamtIndex) ForEach(fn func(path string, entry ForestFileEntry)) {
	var walk func(n *hamtNode)
	walk = func(n *hamtNode) {
		if n.entries != nil {
			for p, e := range n.entries {
				fn(p, e)
			}
			return
		}
		for _, c := range n.children {
			if c != nil {
				walk(c)
			}
		}
	}
	walk(h.root)
}
