package gposync

import "github.com/dmitrijs2005/gposync/internal/common"

// Error kinds, matched with errors.Is.
var (
	ErrTransport          = common.ErrTransport
	ErrAuth               = common.ErrAuth
	ErrCheckpointConflict = common.ErrCheckpointConflict
	ErrDecode             = common.ErrDecode
	ErrValidation         = common.ErrValidation
	ErrNotFound           = common.ErrNotFound
)

// Typed errors, matched with errors.As.
type (
	SyncError       = common.SyncError
	DecodeError     = common.DecodeError
	ValidationError = common.ValidationError
	HTTPError       = common.HTTPError
)

// IsRetryable reports whether repeating the failed call may succeed.
func IsRetryable(err error) bool { return common.IsRetryable(err) }
