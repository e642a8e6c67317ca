package forest

import (
	"encoding/hex"
	"sort"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/fula-go/cryptostore/internal/common/errors"
	"github.com/fula-go/cryptostore/internal/keys"
	"github.com/fula-go/cryptostore/internal/obfuscation"
	"github.com/fula-go/cryptostore/internal/primitives"
)

// Format tags which on-disk representation a serialized forest uses.
type Format byte

const (
	FormatFlatMapV1 Format = 0x01
	FormatHamtV2    Format = 0x02
)

// DefaultMigrationThreshold is the file count above which a forest
// transparently migrates to HamtV2 (spec §6.6 hamt_migration_threshold).
const DefaultMigrationThreshold = 1000

// indexKeyLabel and forestAAD fix the forest index's deterministic
// storage key and the AAD binding its ciphertext, so the blob is
// findable and authenticated the same way on every process restart.
const (
	indexKeyLabel = "forest-index:"
	forestAAD     = "fula:v2:forest"
)

// PrivateForest is the in-memory, per-bucket encrypted directory index
// (spec §3, §4.6).
type PrivateForest struct {
	Bucket             string
	Format             Format
	Index              FileIndex
	Directories        map[string]*ForestDirectoryEntry
	Salt               [16]byte
	MigrationThreshold int
}

// New creates an empty forest for bucket, starting in FlatMapV1 form.
func New(bucket string, salt [16]byte) *PrivateForest {
	return &PrivateForest{
		Bucket:             bucket,
		Format:             FormatFlatMapV1,
		Index:              NewFlatMapIndex(),
		Directories:        make(map[string]*ForestDirectoryEntry),
		Salt:               salt,
		MigrationThreshold: DefaultMigrationThreshold,
	}
}

// GenerateFlatKey derives the obfuscated storage key for a new file under
// FlatNamespace mode (spec §4.6 generate_flat_key).
func (f *PrivateForest) GenerateFlatKey(path string, dek []byte) string {
	return obfuscation.GenerateFlatKey(path, dek, f.Salt[:])
}

// UpsertFile records or updates entry at path, migrating to HamtV2 first
// if this insert would push the file count above MigrationThreshold.
func (f *PrivateForest) UpsertFile(path string, entry ForestFileEntry) {
	if _, exists := f.Index.Get(path); !exists && f.Format == FormatFlatMapV1 {
		if f.Index.Len()+1 > f.MigrationThreshold {
			f.migrateToHamt()
		}
	}
	f.Index.Upsert(path, entry)
	f.linkDirectories(path)
}

// GetFile returns the entry at path, if any.
func (f *PrivateForest) GetFile(path string) (ForestFileEntry, bool) {
	return f.Index.Get(path)
}

// RemoveFile deletes the entry at path, reporting whether it existed.
func (f *PrivateForest) RemoveFile(path string) bool {
	return f.Index.Remove(path)
}

// Count returns the number of files currently indexed.
func (f *PrivateForest) Count() int { return f.Index.Len() }

// AllPaths returns every indexed path, in no particular order. Used by
// rotate_bucket to enumerate the objects it needs to rewrap.
func (f *PrivateForest) AllPaths() []string {
	paths := make([]string, 0, f.Index.Len())
	f.Index.ForEach(func(path string, _ ForestFileEntry) {
		paths = append(paths, path)
	})
	return paths
}

func (f *PrivateForest) migrateToHamt() {
	hamt := NewHamtIndex()
	f.Index.ForEach(func(path string, entry ForestFileEntry) {
		hamt.Upsert(path, entry)
	})
	f.Index = hamt
	f.Format = FormatHamtV2
}

// linkDirectories maintains ForestDirectoryEntry.Children for every
// ancestor directory of path, lazily creating entries as needed.
func (f *PrivateForest) linkDirectories(path string) {
	dir := parentDir(path)
	child := path
	for {
		entry, ok := f.Directories[dir]
		if !ok {
			entry = &ForestDirectoryEntry{Path: dir}
			f.Directories[dir] = entry
		}
		if !contains(entry.Children, child) {
			entry.Children = append(entry.Children, child)
		}
		if dir == "/" || dir == "" {
			break
		}
		child = dir
		dir = parentDir(dir)
	}
}

func contains(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}

func parentDir(path string) string {
	trimmed := strings.TrimSuffix(path, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx <= 0 {
		return "/"
	}
	return trimmed[:idx+1]
}

// ListResult is the outcome of ListDirectory: matching files plus the
// common prefixes one delimiter level down, both lexicographically
// ordered, and a cursor for the next page.
type ListResult struct {
	Files          []ForestFileEntry
	CommonPrefixes []string
	NextToken      string
}

// ListDirectory implements spec §4.6's list_directory: groups everything
// under prefix by delimiter, paginating via startAfter/maxKeys. NextToken
// is the path of the last file returned, to be passed as startAfter.
func (f *PrivateForest) ListDirectory(prefix, delimiter, startAfter string, maxKeys int) ListResult {
	type row struct {
		path  string
		entry ForestFileEntry
	}
	var matched []row
	f.Index.ForEach(func(path string, entry ForestFileEntry) {
		if strings.HasPrefix(path, prefix) {
			matched = append(matched, row{path, entry})
		}
	})
	sort.Slice(matched, func(i, j int) bool { return matched[i].path < matched[j].path })

	var result ListResult
	seenPrefixes := make(map[string]bool)
	lastFile := ""
	for _, m := range matched {
		if startAfter != "" && m.path <= startAfter {
			continue
		}
		rest := strings.TrimPrefix(m.path, prefix)
		if delimiter != "" {
			if idx := strings.Index(rest, delimiter); idx >= 0 {
				cp := prefix + rest[:idx+len(delimiter)]
				if !seenPrefixes[cp] {
					seenPrefixes[cp] = true
					result.CommonPrefixes = append(result.CommonPrefixes, cp)
				}
				continue
			}
		}
		if maxKeys > 0 && len(result.Files) >= maxKeys {
			result.NextToken = lastFile
			break
		}
		result.Files = append(result.Files, m.entry)
		lastFile = m.path
	}
	sort.Strings(result.CommonPrefixes)
	return result
}

// --- Persistence ---

// wireForm is the CBOR body serialized after the discriminator byte.
type wireForm struct {
	Salt        [16]byte                         `cbor:"salt"`
	Files       map[string]ForestFileEntry        `cbor:"files"`
	Directories map[string]*ForestDirectoryEntry  `cbor:"directories"`
}

// IndexStorageKey is the forest's own deterministic storage key, derived
// from the root secret and bucket name so the index is findable after a
// restart with no side channel beyond the bucket name (spec §4.6).
func IndexStorageKey(rootSecret []byte, bucket string) string {
	key := keys.DerivePathKey(rootSecret, indexKeyLabel, bucket)
	return "forest/" + hex.EncodeToString(key[:])
}

// Serialize encrypts the forest under its derived forest DEK with alg,
// returning the nonce and ciphertext; the caller records alg alongside them.
func (f *PrivateForest) Serialize(rootSecret []byte, alg primitives.Algorithm) (nonce, ciphertext []byte, err error) {
	body := wireForm{Salt: f.Salt, Files: make(map[string]ForestFileEntry), Directories: f.Directories}
	f.Index.ForEach(func(path string, entry ForestFileEntry) {
		body.Files[path] = entry
	})

	payload, err := cbor.Marshal(body)
	if err != nil {
		return nil, nil, errors.New("forest: failed to marshal forest", err)
	}
	plaintext := append([]byte{byte(f.Format)}, payload...)

	dek := keys.DeriveForestDEK(rootSecret, f.Bucket)
	nonce, ciphertext, err = primitives.Seal(alg, dek[:], plaintext, []byte(forestAAD))
	if err != nil {
		return nil, nil, err
	}
	return nonce, ciphertext, nil
}

// Deserialize decrypts and parses a forest blob produced by Serialize.
func Deserialize(bucket string, rootSecret []byte, alg primitives.Algorithm, nonce, ciphertext []byte, migrationThreshold int) (*PrivateForest, error) {
	dek := keys.DeriveForestDEK(rootSecret, bucket)
	plaintext, err := primitives.Open(alg, dek[:], nonce, ciphertext, []byte(forestAAD))
	if err != nil {
		return nil, errors.NewAuthenticationFailed(err)
	}
	if len(plaintext) < 1 {
		return nil, errors.NewForestCorrupt("forest: empty payload", nil)
	}
	format := Format(plaintext[0])

	var body wireForm
	if err := cbor.Unmarshal(plaintext[1:], &body); err != nil {
		return nil, errors.NewForestCorrupt("forest: failed to decode forest body", err)
	}

	if migrationThreshold <= 0 {
		migrationThreshold = DefaultMigrationThreshold
	}
	f := &PrivateForest{
		Bucket:             bucket,
		Format:             format,
		Directories:        body.Directories,
		Salt:               body.Salt,
		MigrationThreshold: migrationThreshold,
	}
	if f.Directories == nil {
		f.Directories = make(map[string]*ForestDirectoryEntry)
	}

	switch format {
	case FormatHamtV2:
		idx := NewHamtIndex()
		for p, e := range body.Files {
			idx.Upsert(p, e)
		}
		f.Index = idx
	default:
		idx := NewFlatMapIndex()
		for p, e := range body.Files {
			idx.Upsert(p, e)
		}
		f.Index = idx
		f.Format = FormatFlatMapV1
	}
	return f, nil
}
