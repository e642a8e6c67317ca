// Package root builds the CLI's top-level cobra command.
package root

import (
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the root command and attaches every subcommand
// group fx provides.
func NewRootCmd(bucketCmd *cobra.Command) *cobra.Command {
	root := &cobra.Command{
		Use:   "cryptostore",
		Short: "Client-side encrypted object storage demo CLI",
	}
	root.AddCommand(bucketCmd)
	return root
}
