package leveldbstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/zap"

	"github.com/fula-go/cryptostore/internal/blobstore"
)

// record is the on-disk value: headers plus the opaque ciphertext.
type record struct {
	Headers blobstore.Headers `cbor:"headers"`
	Data    []byte            `cbor:"data"`
}

// Store is a BlobStore implementation over a single goleveldb database.
// It is the reference/demo backing store — production deployments swap
// this out for the real blockstore transport, which the core never sees
// directly.
type Store struct {
	mu     sync.Mutex
	db     *leveldb.DB
	logger *zap.Logger
}

// Open opens (or creates) the leveldb database described by cfg.
func Open(cfg ConfigurationProvider, logger *zap.Logger) (*Store, error) {
	path := filepath.Join(cfg.GetDBPath(), cfg.GetDBName())
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("leveldbstore: failed to open %s: %w", path, err)
	}
	return &Store{db: db, logger: logger.Named("leveldbstore")}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Put(ctx context.Context, key string, data []byte, headers blobstore.Headers) (string, error) {
	rec := record{Headers: headers, Data: data}
	payload, err := cbor.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("leveldbstore: failed to marshal record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Put([]byte(key), payload, nil); err != nil {
		return "", fmt.Errorf("leveldbstore: put failed: %w", err)
	}
	s.logger.Debug("put", zap.String("key", key), zap.Int("size", len(data)))
	return cidFor(key, data), nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, blobstore.Headers, error) {
	s.mu.Lock()
	payload, err := s.db.Get([]byte(key), nil)
	s.mu.Unlock()
	if err == leveldb.ErrNotFound {
		return nil, nil, blobstore.ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("leveldbstore: get failed: %w", err)
	}
	var rec record
	if err := cbor.Unmarshal(payload, &rec); err != nil {
		return nil, nil, fmt.Errorf("leveldbstore: corrupt record for %s: %w", key, err)
	}
	return rec.Data, rec.Headers, nil
}

func (s *Store) Head(ctx context.Context, key string) (blobstore.Headers, error) {
	_, headers, err := s.Get(ctx, key)
	return headers, err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Delete([]byte(key), nil); err != nil {
		return fmt.Errorf("leveldbstore: delete failed: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, prefix, startAfter string, max int, delimiter string) (blobstore.ListResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	iter := s.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()

	var keys []string
	for iter.Next() {
		keys = append(keys, string(iter.Key()))
	}
	if err := iter.Error(); err != nil {
		return blobstore.ListResult{}, fmt.Errorf("leveldbstore: list failed: %w", err)
	}
	sort.Strings(keys)

	var result blobstore.ListResult
	seen := make(map[string]bool)
	for _, k := range keys {
		if startAfter != "" && k <= startAfter {
			continue
		}
		rest := strings.TrimPrefix(k, prefix)
		if delimiter != "" {
			if idx := strings.Index(rest, delimiter); idx >= 0 {
				cp := prefix + rest[:idx+len(delimiter)]
				if !seen[cp] {
					seen[cp] = true
					result.CommonPrefixes = append(result.CommonPrefixes, cp)
				}
				continue
			}
		}
		if max > 0 && len(result.Keys) >= max {
			result.NextToken = k
			break
		}
		result.Keys = append(result.Keys, k)
	}
	return result, nil
}

// cidFor produces a stable, content-addressed-looking identifier for the
// put response, independent of the caller's obfuscated key.
func cidFor(key string, data []byte) string {
	sum := sha256.Sum256(data)
	return "bafy" + hex.EncodeToString(sum[:8])
}
