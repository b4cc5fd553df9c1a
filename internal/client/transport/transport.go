// Package transport issues authenticated requests against a gpodder server
// and classifies failures into the sentinels of package common.
//
// A Transport only moves bytes: it knows nothing about the JSON schema
// (see package codec) or about sync semantics. Non-2xx responses are returned
// as *common.HTTPError, network failures and timeouts wrap common.ErrTransport.
// Nothing is retried here; retry policy belongs to the caller.
package transport

import (
	"context"
	"net/http"
	"net/url"
)

// Request is a single API call. Path is relative to the server base URL,
// e.g. "api/2/devices/alice.json".
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
}

// Response carries a successful (2xx) reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport executes requests.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Authenticator decorates outgoing requests with credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, req *http.Request) error
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, req *http.Request) error

func (f AuthenticatorFunc) Authenticate(ctx context.Context, req *http.Request) error {
	return f(ctx, req)
}
