package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultRefreshPath    = "/api/auth/refresh/"
	proactiveRefreshSlack = 30 * time.Second
)

// Option customises the client configuration.
type Option func(*Client)

// WithHTTPClient injects a custom transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTokenStore injects the session token store shared with the rest of the
// application.
func WithTokenStore(store TokenStore) Option {
	return func(c *Client) {
		if store != nil {
			c.tokens = store
		}
	}
}

// WithLogger injects a structured logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSignOutHandler registers the callback invoked when the session expires
// beyond recovery. The handler owns the redirect to the login entry point.
func WithSignOutHandler(fn func()) Option {
	return func(c *Client) {
		c.onSignOut = fn
	}
}

// WithRefreshPath overrides the token refresh endpoint path.
func WithRefreshPath(path string) Option {
	return func(c *Client) {
		if strings.TrimSpace(path) != "" {
			c.refreshPath = path
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// Client wraps every outbound call to the backend API: it attaches bearer
// credentials when a session is present, coordinates token refresh on 401,
// retries the failed request exactly once, and converts non-2xx responses
// into typed errors.
type Client struct {
	baseURL     string
	refreshPath string
	http        *http.Client
	tokens      TokenStore
	refresher   *refreshCoordinator
	logger      *zap.Logger
	onSignOut   func()
	now         func() time.Time
}

// New constructs a client for the given backend base URL.
func New(baseURL string, options ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		refreshPath: defaultRefreshPath,
		http:        &http.Client{Timeout: defaultTimeout},
		tokens:      NewMemoryTokenStore("", ""),
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(c)
	}
	c.refresher = newRefreshCoordinator(c.callRefreshEndpoint, c.tokens, c.onSignOut, c.logger, c.now)
	return c
}

// Close stops the refresh coordinator goroutine. The client must not be used
// afterwards; in-flight refresh waiters get ErrClientClosed.
func (c *Client) Close() {
	c.refresher.Close()
}

// Request performs a JSON API call. body may be nil; non-nil bodies are JSON
// encoded. The returned payload is the raw response body (nil for 204s).
func (c *Client) Request(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("client: encode request body: %w", err)
		}
		payload = encoded
	}
	makeReq := func() (*http.Request, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	}
	return c.do(ctx, makeReq)
}

// BuildForm is the callback signature for multipart submissions.
type BuildForm func(w *multipart.Writer) error

// Upload performs a multipart API call. The body is built by the callback and
// the Content-Type header (with boundary) comes from the multipart writer,
// the one place the client does not JSON-stringify.
func (c *Client) Upload(ctx context.Context, method, path string, build BuildForm) (json.RawMessage, error) {
	if build == nil {
		return nil, errors.New("client: multipart build function is required")
	}

	// The form is materialised once so the refresh retry can replay it.
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := build(writer); err != nil {
		return nil, fmt.Errorf("client: build multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("client: finalize multipart body: %w", err)
	}
	contentType := writer.FormDataContentType()
	payload := buf.Bytes()

	makeReq := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.url(path), bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	}
	return c.do(ctx, makeReq)
}

// Get is shorthand for Request with GET and no body.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.Request(ctx, http.MethodGet, path, nil)
}

// do runs the request, handling auth and the single retry after a refresh.
func (c *Client) do(ctx context.Context, makeReq func() (*http.Request, error)) (json.RawMessage, error) {
	c.maybeProactiveRefresh(ctx)

	body, status, err := c.once(makeReq)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		access, _ := c.tokens.Tokens()
		if access == "" {
			// Unauthenticated call to a protected endpoint; nothing to refresh.
			return nil, &APIError{Status: status, Message: extractMessage(body, status), Body: body}
		}
		if err := c.refresher.Refresh(ctx); err != nil {
			return nil, err
		}
		body, status, err = c.once(makeReq)
		if err != nil {
			return nil, err
		}
	}
	if status < 200 || status >= 300 {
		return nil, &APIError{Status: status, Message: extractMessage(body, status), Body: body}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	return body, nil
}

func (c *Client) once(makeReq func() (*http.Request, error)) ([]byte, int, error) {
	req, err := makeReq()
	if err != nil {
		return nil, 0, fmt.Errorf("client: build request: %w", err)
	}
	if access, _ := c.tokens.Tokens(); access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("client: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("client: read response: %w", err)
	}
	c.logger.Debug("api call",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
	)
	return body, resp.StatusCode, nil
}

// maybeProactiveRefresh refreshes ahead of a guaranteed 401 when the access
// token is about to lapse. Failures here are ignored: the reactive 401 path
// remains authoritative.
func (c *Client) maybeProactiveRefresh(ctx context.Context) {
	access, refresh := c.tokens.Tokens()
	if access == "" || refresh == "" {
		return
	}
	if !tokenExpiresWithin(access, proactiveRefreshSlack, c.now()) {
		return
	}
	_ = c.refresher.Refresh(ctx)
}

// callRefreshEndpoint exchanges the refresh token with the auth provider.
func (c *Client) callRefreshEndpoint(ctx context.Context, refreshToken string) (string, string, error) {
	payload, err := json.Marshal(map[string]string{"refresh": refreshToken})
	if err != nil {
		return "", "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(c.refreshPath), bytes.NewReader(payload))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", &APIError{Status: resp.StatusCode, Message: extractMessage(body, resp.StatusCode), Body: body}
	}

	var tokens struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	if err := json.Unmarshal(body, &tokens); err != nil {
		return "", "", fmt.Errorf("decode refresh response: %w", err)
	}
	if tokens.Access == "" {
		return "", "", errors.New("refresh response carries no access token")
	}
	return tokens.Access, tokens.Refresh, nil
}

func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}
