package bucketcmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fula-go/cryptostore/internal/keys"
)

// loadOrCreateIdentity reads a 32-byte root secret from <dir>/identity.key,
// generating and persisting a fresh one on first run. Identity persistence
// is a CLI-only convenience — the core itself never reads or writes key
// material to disk (spec §1: the core is handed keys, it does not manage
// their storage).
func loadOrCreateIdentity(dir string) (*keys.KekKeyPair, error) {
	path := filepath.Join(dir, "identity.key")
	data, err := os.ReadFile(path)
	if err == nil {
		return keys.ImportKekKeyPair(data)
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("bucketcmd: failed to read identity: %w", err)
	}

	pair, err := keys.GenerateKekKeyPair()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("bucketcmd: failed to create identity dir: %w", err)
	}
	if err := os.WriteFile(path, pair.SecretKeyBytes(), 0o600); err != nil {
		return nil, fmt.Errorf("bucketcmd: failed to persist identity: %w", err)
	}
	return pair, nil
}
