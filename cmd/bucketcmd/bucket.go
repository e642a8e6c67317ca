// Package bucketcmd implements the `bucket` subcommand group: put, get,
// ls, rm, share, accept and rotate-kek, each opening a Bucket handle
// against the wired BlobStore and running exactly one core operation
// (spec §2).
package bucketcmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fula-go/cryptostore/internal/blobstore"
	"github.com/fula-go/cryptostore/internal/bucket"
	"github.com/fula-go/cryptostore/internal/config"
	"github.com/fula-go/cryptostore/internal/sharing"
)

const defaultIdentityDir = ".cryptostore"

// NewBucketCmd builds the `bucket` command group.
func NewBucketCmd(store blobstore.BlobStore, cfg config.Config, logger *zap.Logger) *cobra.Command {
	var bucketName string

	cmd := &cobra.Command{
		Use:   "bucket",
		Short: "Put, get, list, delete and rotate keys on an encrypted bucket",
	}
	cmd.PersistentFlags().StringVar(&bucketName, "bucket", "default", "bucket name")

	open := func(ctx context.Context) (*bucket.Bucket, error) {
		owner, err := loadOrCreateIdentity(defaultIdentityDir)
		if err != nil {
			return nil, err
		}
		return bucket.Open(ctx, bucketName, owner, owner.SecretKeyBytes(), store, cfg, logger)
	}

	cmd.AddCommand(newPutCmd(open))
	cmd.AddCommand(newGetCmd(open))
	cmd.AddCommand(newLsCmd(open))
	cmd.AddCommand(newRmCmd(open))
	cmd.AddCommand(newRotateKekCmd(open))
	cmd.AddCommand(newRotateSubtreeCmd(open))
	cmd.AddCommand(newShareCmd(open))
	cmd.AddCommand(newAcceptCmd())
	return cmd
}

type opener func(ctx context.Context) (*bucket.Bucket, error)

func newPutCmd(open opener) *cobra.Command {
	var contentType string
	cmd := &cobra.Command{
		Use:   "put <path> <file>",
		Short: "Encrypt and store a local file under a logical path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := open(cmd.Context())
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			return b.Put(cmd.Context(), args[0], data, contentType, nil)
		},
	}
	cmd.Flags().StringVar(&contentType, "content-type", "", "MIME content type to record in private metadata")
	return cmd
}

func newGetCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "Decrypt and print an object to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := open(cmd.Context())
			if err != nil {
				return err
			}
			data, _, err := b.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}
}

func newLsCmd(open opener) *cobra.Command {
	var delimiter string
	cmd := &cobra.Command{
		Use:   "ls <prefix>",
		Short: "List files and common prefixes under a logical prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			b, err := open(cmd.Context())
			if err != nil {
				return err
			}
			result := b.List(prefix, delimiter, "", 0)
			for _, cp := range result.CommonPrefixes {
				fmt.Fprintln(cmd.OutOrStdout(), cp)
			}
			for _, f := range result.Files {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\n", f.OriginalPath, f.Size, f.ContentType)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&delimiter, "delimiter", "/", "grouping delimiter")
	return cmd
}

func newRmCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := open(cmd.Context())
			if err != nil {
				return err
			}
			return b.Delete(cmd.Context(), args[0])
		},
	}
}

func newRotateKekCmd(open opener) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "rotate-kek",
		Short: "Rotate the bucket owner's root keypair and re-wrap every object's DEK",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := open(cmd.Context())
			if err != nil {
				return err
			}
			report, err := b.RotateKek(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "attempted=%d rewrapped=%d skipped=%d errors=%d\n",
				report.Attempted, report.Rewrapped, report.Skipped, report.Errors)
			if verbose {
				for _, e := range b.AuditLog().Recent(0) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s %s\n", e.At.Format("15:04:05"), e.Operation, e.Subject, e.Detail)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&verbose, "verbose", false, "print the key audit log after rotating")
	return cmd
}

func newRotateSubtreeCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "rotate-subtree <prefix>",
		Short: "Replace the subtree DEK that new share tokens under a path prefix wrap",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := open(cmd.Context())
			if err != nil {
				return err
			}
			result, err := b.RotateSubtree(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rotated subtree %q, %d path(s) affected\n", args[0], len(result.AffectedPaths))
			return nil
		},
	}
}

func newShareCmd(open opener) *cobra.Command {
	var (
		gateway   string
		ttl       time.Duration
		canWrite  bool
		canDelete bool
	)
	cmd := &cobra.Command{
		Use:   "share <prefix> <recipient-pubkey-hex>",
		Short: "Mint a secret-link share token granting access to a path prefix",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix, recipientHex := args[0], args[1]
			recipientPub, err := hex.DecodeString(recipientHex)
			if err != nil {
				return fmt.Errorf("bucketcmd: recipient public key must be hex: %w", err)
			}

			b, err := open(cmd.Context())
			if err != nil {
				return err
			}
			subtreeDEK, err := b.Subtrees().GenerateSubtree(prefix)
			if err != nil {
				return err
			}

			token, err := sharing.NewShareBuilder(b.Owner().SecretKeyBytes(), recipientPub, subtreeDEK).
				PathScope(prefix).
				WithPermissions(sharing.Permissions{CanRead: true, CanWrite: canWrite, CanDelete: canDelete}).
				ExpiresIn(ttl).
				Build()
			if err != nil {
				return err
			}

			link, err := sharing.BuildSecretLink(token, gateway)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		},
	}
	cmd.Flags().StringVar(&gateway, "gateway", "https://gateway.invalid", "base URL the secret link is rendered against")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "how long the share token remains valid")
	cmd.Flags().BoolVar(&canWrite, "write", false, "grant write access in addition to read")
	cmd.Flags().BoolVar(&canDelete, "delete", false, "grant delete access in addition to read")
	return cmd
}

func newAcceptCmd() *cobra.Command {
	var (
		op          string
		contentHash string
		size        int64
		modifiedAt  string
	)
	cmd := &cobra.Command{
		Use:   "accept <secret-link>",
		Short: "Verify a secret link and reveal the DEK it carries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recipient, err := loadOrCreateIdentity(defaultIdentityDir)
			if err != nil {
				return err
			}
			token, err := sharing.ParseSecretLink(args[0])
			if err != nil {
				return err
			}

			var current *sharing.CurrentContentState
			if token.Mode == sharing.ModeSnapshot {
				current = &sharing.CurrentContentState{ContentHash: contentHash, Size: size}
				if modifiedAt != "" {
					t, err := time.Parse(time.RFC3339Nano, modifiedAt)
					if err != nil {
						return fmt.Errorf("bucketcmd: --modified-at must be RFC 3339: %w", err)
					}
					current.ModifiedAt = t
				}
			}
			accepted, err := sharing.Accept(token, recipient.SecretKeyBytes(), recipient.PublicKey(), token.PathScope, sharing.Operation(op), current)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "path_scope=%s mode=%s permissions=%+v dek=%s\n",
				accepted.PathScope, accepted.Mode, accepted.Permissions, hex.EncodeToString(accepted.Dek))
			return nil
		},
	}
	cmd.Flags().StringVar(&op, "op", string(sharing.OpRead), "operation to verify against the token's permissions (read|write|delete)")
	cmd.Flags().StringVar(&contentHash, "content-hash", "", "current content hash, required to accept a snapshot share")
	cmd.Flags().Int64Var(&size, "size", 0, "current object size, required to accept a snapshot share")
	cmd.Flags().StringVar(&modifiedAt, "modified-at", "", "current object modification time (RFC 3339), required to accept a snapshot share")
	return cmd
}
