package keys

import (
	"sort"
	"strings"
	"sync"

	"github.com/fula-go/cryptostore/internal/primitives"
)

// SubtreeKeyManager tracks per-subtree DEKs alongside a bucket's
// PrivateForest. It resolves the correct DEK for a logical path by
// most-specific-prefix match, and is the only thing a subtree ShareToken
// ever wraps — per-object content always uses its own fresh DEK (spec §9
// Open Question, resolved in SPEC_FULL.md §5).
type SubtreeKeyManager struct {
	mu        sync.RWMutex
	masterDEK []byte
	subtrees  map[string][]byte // path prefix -> subtree dek
}

// NewSubtreeKeyManager creates a manager rooted at masterDEK, which is held
// only for sharing the bucket root itself; it is never used to wrap
// individual object DEKs.
func NewSubtreeKeyManager(masterDEK []byte) *SubtreeKeyManager {
	return &SubtreeKeyManager{masterDEK: masterDEK, subtrees: make(map[string][]byte)}
}

// SetSubtreeDEK installs (or replaces) the DEK for prefix.
func (m *SubtreeKeyManager) SetSubtreeDEK(prefix string, dek []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subtrees[prefix] = dek
}

// Resolve returns the most-specific subtree DEK whose prefix is an
// ancestor of path, or the master DEK if no subtree matches.
func (m *SubtreeKeyManager) Resolve(path string) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefixes := make([]string, 0, len(m.subtrees))
	for p := range m.subtrees {
		if strings.HasPrefix(path, p) {
			prefixes = append(prefixes, p)
		}
	}
	if len(prefixes) == 0 {
		return m.masterDEK
	}
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })
	return m.subtrees[prefixes[0]]
}

// GenerateSubtree creates and installs a fresh DEK for prefix, returning it
// for the caller to wrap into a subtree ShareToken.
func (m *SubtreeKeyManager) GenerateSubtree(prefix string) ([]byte, error) {
	dek, err := GenerateDEK()
	if err != nil {
		return nil, err
	}
	m.SetSubtreeDEK(prefix, dek)
	return dek, nil
}

// RotateSubtree replaces prefix's DEK with a fresh one and returns both the
// old and new key so the caller can re-encrypt affected objects (spec
// §4.8 rotate_subtree). Share tokens minted before the rotation carry their
// own wrap of the old DEK and still pass sharing.Accept, which does not
// consult this manager.
func (m *SubtreeKeyManager) RotateSubtree(prefix string) (oldDEK, newDEK []byte, err error) {
	m.mu.Lock()
	old := m.subtrees[prefix]
	m.mu.Unlock()

	newDEK, err = GenerateDEK()
	if err != nil {
		return nil, nil, err
	}
	m.SetSubtreeDEK(prefix, newDEK)
	return old, newDEK, nil
}

// Clear zeroes every tracked key.
func (m *SubtreeKeyManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	primitives.Zero(m.masterDEK)
	for _, dek := range m.subtrees {
		primitives.Zero(dek)
	}
}
