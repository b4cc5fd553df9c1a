package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/gposync/internal/common"
	"github.com/dmitrijs2005/gposync/internal/logging"
)

const (
	// DefaultBaseURL is the public gpodder.net instance.
	DefaultBaseURL   = "https://gpodder.net/"
	DefaultUserAgent = "gposync/0.1"
	DefaultTimeout   = 30 * time.Second

	DefaultMaxBodyBytes = 32 << 20
)

// HTTPConfig configures an HTTPTransport.
type HTTPConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	Auth      Authenticator
	Logger    logging.Logger
	// MaxBodyBytes caps a response body; larger bodies fail the request.
	MaxBodyBytes int64
	// Client overrides the underlying http.Client (tests, custom TLS).
	Client *http.Client
}

// HTTPTransport is the net/http implementation of Transport.
type HTTPTransport struct {
	base      *url.URL
	client    *http.Client
	userAgent string
	auth      Authenticator
	logger    logging.Logger
	maxBody   int64
}

// NewHTTPTransport validates cfg and builds a transport with a cookie jar so
// that session authentication works.
func NewHTTPTransport(cfg HTTPConfig) (*HTTPTransport, error) {
	raw := cfg.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", raw, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", raw)
	}

	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	if client.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		client.Jar = jar
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	return &HTTPTransport{base: base, client: client, userAgent: ua, auth: cfg.Auth, logger: logger, maxBody: maxBody}, nil
}

// BaseURL returns the server root all paths are resolved against.
func (t *HTTPTransport) BaseURL() string { return t.base.String() }

func (t *HTTPTransport) Do(ctx context.Context, r *Request) (*Response, error) {
	ref, err := url.Parse(strings.TrimPrefix(r.Path, "/"))
	if err != nil {
		return nil, &common.ValidationError{Field: "path", Value: r.Path, Reason: err.Error()}
	}
	u := t.base.ResolveReference(ref)
	if len(r.Query) > 0 {
		u.RawQuery = r.Query.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Accept", "application/json")
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.auth != nil {
		if err := t.auth.Authenticate(ctx, req); err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrAuth, err)
		}
	}

	started := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, t.mapError(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBody+1))
	if err != nil {
		return nil, t.mapError(ctx, err)
	}
	tooLarge := int64(len(data)) > t.maxBody
	if tooLarge {
		data = data[:t.maxBody]
	}

	t.logger.Debug(ctx, "gpodder request",
		"method", r.Method, "path", u.Path, "status", resp.StatusCode, "elapsed", time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, common.NewHTTPError(resp.StatusCode, string(data))
	}
	if tooLarge {
		return nil, common.NewDecodeError(fmt.Sprintf("response too large: over %d bytes", t.maxBody))
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// mapError classifies client errors. Caller cancellation is returned as is;
// timeouts and network failures wrap ErrTransport.
func (t *HTTPTransport) mapError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %w", common.ErrTransport, err)
}
