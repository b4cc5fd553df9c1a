// Package common defines the sentinel errors and typed error wrappers shared
// by every layer of gposync. Callers should use errors.Is / errors.As to match
// these values; the concrete types carry the context a caller needs to decide
// whether to retry.
package common

import "errors"

var (
	// Transport-level errors (network failure, timeout, 5xx). Retryable.
	ErrTransport = errors.New("transport error")

	// Credentials rejected by the server (401/403).
	ErrAuth = errors.New("authentication failed")

	// The stored checkpoint is stale: either the server refused it or another
	// writer advanced it first. Re-read the checkpoint and retry the cycle.
	ErrCheckpointConflict = errors.New("checkpoint conflict")

	// Server payload did not match the wire schema.
	ErrDecode = errors.New("decode error")

	// Caller-supplied data violates a domain invariant.
	ErrValidation = errors.New("validation error")

	// repository / server lookups
	ErrNotFound = errors.New("not found")
)

// IsRetryable reports whether err is worth retrying as-is. Conflicts are
// retryable too, but only after the caller has re-read its checkpoint.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrCheckpointConflict)
}
