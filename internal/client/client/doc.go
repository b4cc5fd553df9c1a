// Package client talks to a gpodder.net compatible server.
//
// Client is the transport-agnostic contract with one method per API v2
// endpoint the library uses. APIClient implements it on top of a
// transport.Transport and the codec package; it validates arguments before
// any request is sent and classifies failures with the sentinel errors from
// internal/common (ErrTransport, ErrAuth, ErrDecode, ErrValidation, ...).
//
// The package also bootstraps local persistence: InitDatabase opens the
// SQLite state database, runs the embedded goose migrations and returns the
// Repositories used by the sync engines.
package client
