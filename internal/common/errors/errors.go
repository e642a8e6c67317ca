// Package errors defines the error taxonomy surfaced by the storage core:
// Crypto, Integrity, Storage, Policy and Forest families (spec §6.7/§7),
// each wrapping an underlying cause the way the teacher's single AppError
// did, generalized into one type with a Kind so callers can switch on it.
package errors

import "fmt"

// Kind categorizes an error for retry/propagation policy (spec §7).
type Kind string

const (
	// KindCrypto covers InvalidKey, InvalidNonce, AuthenticationFailed,
	// Aad and UnsupportedVersion. Always fatal, never retried.
	KindCrypto Kind = "crypto"
	// KindIntegrity covers Bao mismatches and missing chunks. Fatal,
	// surfaces as corruption.
	KindIntegrity Kind = "integrity"
	// KindStorage covers NotFound, Unavailable, Conflict from the
	// BlobStore. Idempotent reads may be retried by the caller.
	KindStorage Kind = "storage"
	// KindPolicy covers expired/wrong-scope shares and snapshot mismatches.
	// Reported verbatim, never retried.
	KindPolicy Kind = "policy"
	// KindForest covers a missing or corrupt PrivateForest blob.
	KindForest Kind = "forest"
)

// CoreError is the single error type returned across package boundaries in
// this module. Code is a stable machine-readable string (e.g.
// "authentication_failed", "share_expired") matching spec §6.7's names.
type CoreError struct {
	Kind  Kind
	Code  string
	Msg   string
	Cause error
}

func (e *CoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *CoreError) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, Sentinel) to match on Code rather than identity,
// so callers can compare against the New* constructors below without
// holding a reference to the exact instance.
func (e *CoreError) Is(target error) bool {
	t, ok := target.(*CoreError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newErr(kind Kind, code, msg string, cause error) *CoreError {
	return &CoreError{Kind: kind, Code: code, Msg: msg, Cause: cause}
}

// Crypto error constructors (spec §6.7 CryptoError variants).
func NewInvalidKey(msg string, cause error) *CoreError {
	return newErr(KindCrypto, "invalid_key", msg, cause)
}
func NewInvalidNonce(msg string, cause error) *CoreError {
	return newErr(KindCrypto, "invalid_nonce", msg, cause)
}
func NewAuthenticationFailed(cause error) *CoreError {
	return newErr(KindCrypto, "authentication_failed", "authentication failed", cause)
}
func NewAad(msg string) *CoreError {
	return newErr(KindCrypto, "aad_mismatch", msg, nil)
}
func NewUnsupportedVersion(version int) *CoreError {
	return newErr(KindCrypto, "unsupported_version", fmt.Sprintf("unsupported envelope version %d", version), nil)
}

// Integrity error constructors.
func NewIntegrity(msg string, cause error) *CoreError {
	return newErr(KindIntegrity, "integrity", msg, cause)
}

// NewEmptyChunkedUpload reports that chunked mode was asked to encrypt zero
// bytes of plaintext. Chunked mode exists to split large objects into
// fixed-size pieces; an empty input has nothing to split, and whole-object
// mode already handles zero-length content, so this is rejected rather than
// silently producing one empty chunk.
func NewEmptyChunkedUpload() *CoreError {
	return newErr(KindIntegrity, "empty_chunked_upload", "chunked upload requires at least one byte of plaintext", nil)
}

// Storage error constructors (BlobStore contract, spec §4.9).
func NewNotFound(key string) *CoreError {
	return newErr(KindStorage, "not_found", fmt.Sprintf("key %q not found", key), nil)
}
func NewUnavailable(msg string, cause error) *CoreError {
	return newErr(KindStorage, "unavailable", msg, cause)
}
func NewConflict(msg string) *CoreError {
	return newErr(KindStorage, "conflict", msg, nil)
}

// Policy error constructors (sharing).
func NewShareExpired() *CoreError {
	return newErr(KindPolicy, "share_expired", "share token has expired", nil)
}
func NewShareScopeMismatch(path, scope string) *CoreError {
	return newErr(KindPolicy, "share_scope_mismatch", fmt.Sprintf("path %q is outside scope %q", path, scope), nil)
}
func NewSnapshotMismatch(msg string) *CoreError {
	return newErr(KindPolicy, "snapshot_mismatch", msg, nil)
}
func NewPermissionDenied(msg string) *CoreError {
	return newErr(KindPolicy, "permission_denied", msg, nil)
}

// Forest error constructors.
func NewForestNotFound(bucket string) *CoreError {
	return newErr(KindForest, "not_found", fmt.Sprintf("no forest for bucket %q", bucket), nil)
}
func NewForestCorrupt(msg string, cause error) *CoreError {
	return newErr(KindForest, "corrupt", msg, cause)
}
func NewForestMigrationInProgress() *CoreError {
	return newErr(KindForest, "migration_in_progress", "forest migration in progress", nil)
}

// New wraps an arbitrary message/cause without a specific family, for glue
// code that has not yet been categorized.
func New(msg string, cause error) *CoreError {
	return &CoreError{Msg: msg, Cause: cause}
}
