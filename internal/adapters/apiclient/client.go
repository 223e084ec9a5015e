// Package apiclient is the single HTTP gateway to the remote diagnostic API.
// It attaches credentials from the credential store, classifies failures and
// tears the browser session down when the API rejects a stored token.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	domainauth "github.com/target/laptopdoc/internal/domain/auth"
	"github.com/target/laptopdoc/internal/observability/metrics"
	"github.com/target/laptopdoc/internal/ports"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// Compile-time check.
var _ ports.APIClient = (*Client)(nil)

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Store   ports.CredentialStore
	// Breaker is optional; a nil value sends requests directly.
	Breaker    *BreakerSettings
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	HTTPClient *http.Client
}

// Client implements ports.APIClient over net/http.
type Client struct {
	baseURL string
	timeout time.Duration
	store   ports.CredentialStore
	http    *http.Client
	breaker *breaker
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu        sync.RWMutex
	teardowns []ports.TeardownFunc
}

// New creates a Client. An empty BaseURL yields a client whose every call
// returns ports.ErrAPIUnavailable.
func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		timeout: timeout,
		store:   opts.Store,
		http:    hc,
		metrics: opts.Metrics,
		logger:  logger.With("component", "apiclient"),
	}
	if opts.Breaker != nil {
		c.breaker = newBreaker(*opts.Breaker, opts.Metrics, c.logger)
	}
	return c
}

// OnTeardown registers fn to run when a stored token is rejected. Registered
// hooks own clearing the record; with none the client clears it itself.
func (c *Client) OnTeardown(fn ports.TeardownFunc) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.teardowns = append(c.teardowns, fn)
	c.mu.Unlock()
}

// Do sends req and decodes a 2xx JSON body into out when out is non-nil.
func (c *Client) Do(ctx context.Context, req ports.APIRequest, out any) error {
	if c.baseURL == "" {
		return ports.ErrAPIUnavailable
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	route := req.Route
	if route == "" {
		route = req.Path
	}

	sid, token := c.credentials(ctx, req)
	stored := req.Credentials == ports.CredentialsStored && token != nil

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := c.newRequest(ctx, method, req, token)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.send(httpReq)
	if err != nil {
		c.metrics.ObserveAPI(method, route, 0, time.Since(start))
		return newNetworkError(method, req.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.metrics.ObserveAPI(method, route, resp.StatusCode, time.Since(start))
	if err != nil {
		return newNetworkError(method, req.Path, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		expired := stored && resp.StatusCode == http.StatusUnauthorized
		if expired {
			c.teardown(ctx, sid, token.AccessToken)
		}
		se := ports.NewStatusError(method, req.Path, resp.StatusCode, expired)
		se.Message, se.FieldErrors = ParseErrorBody(body)
		se.Body = body
		return se
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, req.Path, err)
	}
	return nil
}

// credentials resolves the token for req. The session id is returned so a
// stored-token 401 can clear the right record.
func (c *Client) credentials(ctx context.Context, req ports.APIRequest) (string, *oauth2.Token) {
	switch req.Credentials {
	case ports.CredentialsNone:
		return "", nil
	case ports.CredentialsExplicit:
		if req.Token == nil || req.Token.AccessToken == "" {
			return "", nil
		}
		return "", req.Token
	}

	sid, ok := domainauth.SessionIDFromContext(ctx)
	if !ok || c.store == nil {
		return "", nil
	}
	rec, err := c.store.Read(ctx, sid)
	if err != nil {
		// Send unauthenticated; a backend outage must not look like a rejected token.
		c.logger.WarnContext(ctx, "read credentials failed",
			"session", domainauth.ShortID(sid),
			"error", err)
		return sid, nil
	}
	if rec == nil || !rec.Valid() {
		return sid, nil
	}
	return sid, &oauth2.Token{AccessToken: rec.Token, TokenType: rec.TokenType}
}

func (c *Client) newRequest(
	ctx context.Context,
	method string,
	req ports.APIRequest,
	token *oauth2.Token,
) (*http.Request, error) {
	target := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader = http.NoBody
	if req.Body != nil {
		buf, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, req.Path, err)
		}
		body = bytes.NewReader(buf)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, req.Path, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != nil {
		token.SetAuthHeader(httpReq)
	}
	return httpReq, nil
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.http.Do(req)
	}
	return c.breaker.do(c.http, req)
}

// teardown handles a 401 on the stored token for sid. A record that no longer
// holds the rejected token was written by a later login and is left alone. It
// runs detached from the request deadline so a timed-out caller still leaves
// the store clean.
func (c *Client) teardown(ctx context.Context, sid, token string) {
	ctx = context.WithoutCancel(ctx)
	if rec, err := c.store.Read(ctx, sid); err == nil && rec != nil && rec.Token != token {
		c.logger.DebugContext(ctx, "ignoring 401 for replaced credentials", "session", domainauth.ShortID(sid))
		return
	}
	c.metrics.IncTeardown()

	c.mu.RLock()
	hooks := append([]ports.TeardownFunc(nil), c.teardowns...)
	c.mu.RUnlock()
	if len(hooks) == 0 {
		if err := c.store.Clear(ctx, sid); err != nil {
			c.logger.ErrorContext(ctx, "clear credentials after 401 failed",
				"session", domainauth.ShortID(sid),
				"error", err)
		}
	}
	for _, fn := range hooks {
		fn(ctx, sid, token)
	}
	c.logger.InfoContext(ctx, "session torn down after 401", "session", domainauth.ShortID(sid))
}

// IsTransient reports whether err is worth one retry: a transport failure or a 5xx.
func IsTransient(err error) bool {
	if ports.IsNetwork(err) {
		return true
	}
	var se *ports.StatusError
	return errors.As(err, &se) && se.Status >= http.StatusInternalServerError
}
