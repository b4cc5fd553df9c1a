package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
)

// BasicAuth sends HTTP basic credentials with every request.
type BasicAuth struct {
	Username string
	Password string
}

func (b BasicAuth) Authenticate(_ context.Context, req *http.Request) error {
	req.SetBasicAuth(b.Username, b.Password)
	return nil
}

// SessionAuth logs in once with basic credentials and then relies on the
// session cookie kept by the transport's cookie jar. Until Login succeeds, and
// again after Logout, it falls back to basic credentials.
type SessionAuth struct {
	basic  BasicAuth
	active atomic.Bool
}

func NewSessionAuth(username, password string) *SessionAuth {
	return &SessionAuth{basic: BasicAuth{Username: username, Password: password}}
}

func (s *SessionAuth) Authenticate(ctx context.Context, req *http.Request) error {
	if s.active.Load() {
		return nil
	}
	return s.basic.Authenticate(ctx, req)
}

// Active reports whether a session is established.
func (s *SessionAuth) Active() bool { return s.active.Load() }

// Login opens a session on the server.
func (s *SessionAuth) Login(ctx context.Context, t Transport) error {
	s.active.Store(false)
	_, err := t.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("api/2/auth/%s/login.json", url.PathEscape(s.basic.Username)),
	})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	s.active.Store(true)
	return nil
}

// Logout closes the session; later requests use basic credentials again.
func (s *SessionAuth) Logout(ctx context.Context, t Transport) error {
	_, err := t.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("api/2/auth/%s/logout.json", url.PathEscape(s.basic.Username)),
	})
	s.active.Store(false)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}
