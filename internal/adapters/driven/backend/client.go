package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
	"github.com/custodia-labs/ragdesk/internal/logger"
)

// Ensure Client implements the backend ports.
var _ driven.Backend = (*Client)(nil)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxRetries is the maximum number of attempts for retryable failures.
	MaxRetries = 3

	// RetryDelay is the initial delay between retries. It doubles per attempt.
	RetryDelay = 500 * time.Millisecond

	// maxErrorBody bounds how much of a failed response is read.
	maxErrorBody = 64 * 1024
)

// Config configures a Client.
type Config struct {
	// BaseURL is the backend root, e.g. http://localhost:8000.
	BaseURL string

	// Token is an optional bearer token.
	Token string

	// Timeout bounds a single attempt. Zero uses DefaultTimeout.
	Timeout time.Duration

	// MaxRetries is the attempt limit. Zero uses MaxRetries.
	MaxRetries int

	// RetryDelay is the first backoff step. Zero uses RetryDelay.
	RetryDelay time.Duration

	// RateLimit is the request ceiling per second. Zero disables throttling.
	RateLimit float64

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client

	// Metrics records each attempt. Optional.
	Metrics driven.Metrics
}

// Client talks to the RAG backend.
type Client struct {
	baseURL     *url.URL
	http        *http.Client
	rateLimiter *RateLimiter
	maxRetries  int
	retryDelay  time.Duration
	metrics     driven.Metrics

	token *bearerSource

	mu             sync.RWMutex
	onUnauthorized func()
}

// NewClient creates a backend client. The bearer token, while set, is
// attached to every request through an oauth2 transport.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q must be http or https", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	token := &bearerSource{token: cfg.Token}
	httpClient = &http.Client{
		Transport: &bearerTransport{source: token, base: httpClient.Transport},
		Timeout:   httpClient.Timeout,
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = MaxRetries
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = RetryDelay
	}

	return &Client{
		baseURL:     base,
		http:        httpClient,
		rateLimiter: NewRateLimiter(cfg.RateLimit),
		maxRetries:  maxRetries,
		retryDelay:  retryDelay,
		metrics:     cfg.Metrics,
		token:       token,
	}, nil
}

// SetToken replaces the bearer token used by later requests. An empty
// token sends requests without an Authorization header.
func (c *Client) SetToken(token string) {
	c.token.set(token)
}

// ClearToken drops the bearer token for the rest of the process.
func (c *Client) ClearToken() {
	c.token.set("")
}

// bearerSource is an oauth2.TokenSource whose token can be swapped.
type bearerSource struct {
	mu    sync.RWMutex
	token string
}

func (s *bearerSource) set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *bearerSource) current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Token implements oauth2.TokenSource.
func (s *bearerSource) Token() (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: s.current()}, nil
}

// bearerTransport authorizes requests while a token is set and passes
// them through untouched otherwise.
type bearerTransport struct {
	source *bearerSource
	base   http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.source.current() == "" {
		base := t.base
		if base == nil {
			base = http.DefaultTransport
		}
		return base.RoundTrip(req)
	}
	return (&oauth2.Transport{Source: t.source, Base: t.base}).RoundTrip(req)
}

// SetUnauthorizedHook registers fn to run whenever the backend answers 401.
func (c *Client) SetUnauthorizedHook(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

// BaseURL returns the backend root URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// RateLimiter returns the rate limiter for external access.
func (c *Client) RateLimiter() *RateLimiter {
	return c.rateLimiter
}

// request describes one logical backend call.
type request struct {
	method      string
	route       string
	path        string
	query       url.Values
	body        []byte
	contentType string
}

func jsonRequest(method, route, path string, payload any) (request, error) {
	req := request{method: method, route: route, path: path}
	if payload == nil {
		return req, nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return req, fmt.Errorf("encode %s %s: %w", method, path, err)
	}
	req.body = body
	req.contentType = "application/json"
	return req, nil
}

// call sends req and returns the decoded envelope payload.
func (c *Client) call(ctx context.Context, req request) (json.RawMessage, error) {
	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: req.method, Path: req.path, Err: err}
	}
	return unwrap(body, resp.StatusCode, req.method, req.path)
}

// callInto sends req and decodes the payload into out.
func (c *Client) callInto(ctx context.Context, req request, out any, keys ...string) error {
	data, err := c.call(ctx, req)
	if err != nil {
		return err
	}
	if err := decodeInto(data, out, keys...); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.method, req.path, err)
	}
	return nil
}

// send runs the retry loop and returns a 2xx response with its body unread.
func (c *Client) send(ctx context.Context, req request) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay << (attempt - 1)
			logger.Debug("retrying %s %s in %s (attempt %d/%d): %v",
				req.method, req.path, delay, attempt+1, c.maxRetries, lastErr)
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		resp, err := c.attempt(ctx, req)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if !IsRetryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, req request) (*http.Response, error) {
	u, err := url.Parse(c.baseURL.String() + req.path)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", req.method, req.path, err)
	}
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", req.method, req.path, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.observe(req, 0, start)
		return nil, &TransportError{Method: req.method, Path: req.path, Err: err}
	}
	c.observe(req, resp.StatusCode, start)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	if rlErr := c.rateLimiter.CheckRateLimit(resp, req.path); rlErr != nil {
		return nil, rlErr
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    errorMessage(raw),
		Method:     req.method,
		Path:       req.path,
	}
	if resp.StatusCode == http.StatusUnauthorized {
		c.unauthorized()
	}
	if resp.StatusCode >= 500 {
		logger.Warn("backend %s %s answered %d: %s", req.method, req.path, resp.StatusCode, apiErr.Message)
	}
	return nil, apiErr
}

func (c *Client) observe(req request, status int, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.ObserveRequest(req.method, req.route, status, time.Since(start))
}

func (c *Client) unauthorized() {
	c.mu.RLock()
	fn := c.onUnauthorized
	c.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// escape encodes a path segment.
func escape(id string) string {
	return url.PathEscape(id)
}
