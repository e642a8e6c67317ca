package forest

// FileIndex is the storage strategy behind a PrivateForest: either a plain
// map (FlatMapV1) or a hash-array-mapped trie (HamtV2). Listing always
// walks the full index via ForEach and sorts afterward — the forest is
// fully resident in memory regardless of representation (spec §5 memory
// discipline), so only point operations need the trie's O(log N) bound.
type FileIndex interface {
	Get(path string) (ForestFileEntry, bool)
	Upsert(path string, entry ForestFileEntry)
	Remove(path string) bool
	Len() int
	ForEach(fn func(path string, entry ForestFileEntry))
}

// FlatMapIndex is a plain hash map, used below the migration threshold.
type FlatMapIndex struct {
	entries map[string]ForestFileEntry
}

// NewFlatMapIndex creates an empty flat index.
func NewFlatMapIndex() *FlatMapIndex {
	return &FlatMapIndex{entries: make(map[string]ForestFileEntry)}
}

func (f *FlatMapIndex) Get(path string) (ForestFileEntry, bool) {
	e, ok := f.entries[path]
	return e, ok
}

func (f *FlatMapIndex) Upsert(path string, entry ForestFileEntry) {
	f.entries[path] = entry
}

func (f *FlatMapIndex) Remove(path string) bool {
	if _, ok := f.entries[path]; !ok {
		return false
	}
	delete(f.entries, path)
	return true
}

func (f *FlatMapIndex) Len() int { return len(f.entries) }

func (f *FlatMapIndex) ForEach(fn func(path string, entry ForestFileEntry)) {
	for p, e := range f.entries {
		fn(p, e)
	}
}
