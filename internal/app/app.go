// Package app wires the core into a runnable CLI via fx, mirroring the
// teacher's own internal/app.App — a thin shell that builds the
// dependency graph and hands a root cobra.Command to main.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fula-go/cryptostore/cmd/bucketcmd"
	"github.com/fula-go/cryptostore/cmd/root"
	"github.com/fula-go/cryptostore/internal/blobstore"
	"github.com/fula-go/cryptostore/internal/blobstore/leveldbstore"
	"github.com/fula-go/cryptostore/internal/config"
)

// App wraps the CLI's root command once the dependency graph resolves.
type App struct {
	rootCmd *cobra.Command
}

// NewApp builds the fx graph and resolves the root command, the same
// structure the teacher's app.NewApp follows: provide a logger, provide
// the config module, provide domain constructors, populate a root cobra
// command.
func NewApp(dbPath string) *App {
	var a App

	logger, _ := zap.NewDevelopment()

	fxApp := fx.New(
		fx.Provide(func() *zap.Logger { return logger }),

		config.Module(),

		fx.Provide(func() leveldbstore.ConfigurationProvider {
			return leveldbstore.NewConfigurationProvider(dbPath, "cryptostore")
		}),
		fx.Provide(func(cfg leveldbstore.ConfigurationProvider, log *zap.Logger) (blobstore.BlobStore, error) {
			store, err := leveldbstore.Open(cfg, log)
			if err != nil {
				return nil, err
			}
			return store, nil
		}),

		fx.Provide(bucketcmd.NewBucketCmd),
		fx.Provide(root.NewRootCmd),

		fx.Populate(&a.rootCmd),
	)

	ctx := context.Background()
	if err := fxApp.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start application: %v\n", err)
		os.Exit(1)
	}

	return &a
}

// Execute runs the resolved root command.
func (a *App) Execute() {
	if err := a.rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
