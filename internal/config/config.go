// Package config holds the core's recognized options (spec §6.6), exposed
// through an fx module the way the teacher's config package wires its own
// Config through the application's dependency graph.
package config

import (
	"time"

	"go.uber.org/fx"

	"github.com/fula-go/cryptostore/internal/obfuscation"
	"github.com/fula-go/cryptostore/internal/primitives"
)

// Config holds every option spec §6.6 recognizes.
type Config struct {
	ObfuscationMode         obfuscation.Mode
	Aead                    primitives.Algorithm
	ChunkSizeBytes          uint32
	ChunkThresholdBytes     int64
	HamtMigrationThreshold  int
	KekRetentionWindow      time.Duration
}

// Default returns the recommended configuration: FlatNamespace
// obfuscation, AES-256-GCM, 256 KiB chunks above a 5 MiB threshold,
// migration to HAMT above 1000 files, and a 30-day KEK retention window.
func Default() Config {
	return Config{
		ObfuscationMode:        obfuscation.ModeFlatNamespace,
		Aead:                   primitives.AlgorithmAES256GCM,
		ChunkSizeBytes:         256 * 1024,
		ChunkThresholdBytes:    5 * 1024 * 1024,
		HamtMigrationThreshold: 1000,
		KekRetentionWindow:     30 * 24 * time.Hour,
	}
}

// Module provides the default Config to the fx graph; callers that need a
// non-default configuration should fx.Replace it.
func Module() fx.Option {
	return fx.Provide(Default)
}
