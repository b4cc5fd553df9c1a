package common

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// SyncError wraps a failure of a synchronization cycle with the identity of
// the stream that failed and the checkpoint the cycle started from. The
// checkpoint is left untouched whenever a SyncError is returned.
type SyncError struct {
	Op         string
	Resource   string
	Account    string
	Device     string
	Checkpoint int64
	Err        error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("%s %s sync (account=%s device=%s since=%d): %v",
		e.Op, e.Resource, e.Account, e.Device, e.Checkpoint, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// DecodeError reports where in a server payload decoding failed.
type DecodeError struct {
	Path   string
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return "decode: " + e.Reason
	}
	return fmt.Sprintf("decode %s: %s", e.Path, e.Reason)
}

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// NewDecodeError builds a DecodeError for the given path segments.
func NewDecodeError(reason string, path ...string) *DecodeError {
	return &DecodeError{Path: strings.Join(path, "."), Reason: reason}
}

// ValidationError reports a caller-supplied value that violates an invariant.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

const maxErrorBody = 200

// HTTPError is a non-2xx response from the server. It unwraps to the sentinel
// matching its status class so callers only need errors.Is.
type HTTPError struct {
	StatusCode int
	Body       string
	kind       error
}

// NewHTTPError classifies status into one of the package sentinels.
func NewHTTPError(status int, body string) *HTTPError {
	return &HTTPError{StatusCode: status, Body: body, kind: classifyStatus(status)}
}

func (e *HTTPError) Error() string {
	body := e.Body
	if len(body) > maxErrorBody {
		n := maxErrorBody
		for n > 0 && !utf8.RuneStart(body[n]) {
			n--
		}
		body = body[:n] + "..."
	}
	if body == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, body)
}

func (e *HTTPError) Unwrap() error { return e.kind }

func classifyStatus(status int) error {
	switch {
	case status == 401 || status == 403:
		return ErrAuth
	case status == 404:
		return ErrNotFound
	case status == 409 || status == 412:
		return ErrCheckpointConflict
	case status == 400:
		return ErrValidation
	default:
		return ErrTransport
	}
}
