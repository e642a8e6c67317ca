// Package leveldbstore is a BlobStore backed by goleveldb, adapted from
// the teacher's pkg/storage/leveldb config provider — useful as the
// reference/test backing store when no real IPFS/blockstore transport is
// wired up.
package leveldbstore

// ConfigurationProvider supplies the on-disk location of the store,
// mirroring the teacher's LevelDBConfigurationProvider.
type ConfigurationProvider interface {
	GetDBPath() string
	GetDBName() string
}

type configurationProviderImpl struct {
	dbPath string
	dbName string
}

// NewConfigurationProvider builds a ConfigurationProvider from a path and
// logical database name.
func NewConfigurationProvider(dbPath, dbName string) ConfigurationProvider {
	return &configurationProviderImpl{dbPath: dbPath, dbName: dbName}
}

func (c *configurationProviderImpl) GetDBPath() string { return c.dbPath }
func (c *configurationProviderImpl) GetDBName() string { return c.dbName }
