// Package remote holds the HTTP JSON loaders fed into the query cache:
// GitHub users, the JSONPlaceholder post feed and static recipe catalogs.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "larder/1.0"
	maxErrorBody   = 64 << 10
)

// Client performs rate-limited JSON GET requests against one base URL.
type Client struct {
	baseURL    string
	token      string
	header     http.Header
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client (30s timeout).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sends "Authorization: Bearer <token>" on every request.
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// WithRateLimit allows at most rps requests per second with a burst of one.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithHeader adds a header sent on every request.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) { c.header.Set(key, value) }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a Client for baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		header:     make(http.Header),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the base URL requests are resolved against.
func (c *Client) BaseURL() string { return c.baseURL }

// resolve turns a path (or absolute URL) plus query into a full URL.
func (c *Client) resolve(path string, query url.Values) string {
	u := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		u = c.baseURL + "/" + strings.TrimLeft(path, "/")
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// getJSON fetches path and decodes the JSON body into v.
func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, v any) error {
	return c.getJSONURL(ctx, op, c.resolve(path, query), v)
}

func (c *Client) getJSONURL(ctx context.Context, op, u string, v any) error {
	resp, err := c.do(ctx, op, u, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &FetchError{Op: op, URL: u, Kind: KindDecode, StatusCode: resp.StatusCode, Err: err}
	}
	return nil
}

// Get fetches u (a path or absolute URL) and returns at most limit bytes of
// the body together with its Content-Type.
func (c *Client) Get(ctx context.Context, op, u string, limit int64) ([]byte, string, error) {
	u = c.resolve(u, nil)
	resp, err := c.do(ctx, op, u, "*/*")
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, "", &FetchError{Op: op, URL: u, Kind: KindUnreachable, StatusCode: resp.StatusCode, Err: err}
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// do sends a GET and returns the response if its status is 2xx. The caller
// closes the body.
func (c *Client) do(ctx context.Context, op, u, accept string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &FetchError{Op: op, URL: u, Kind: KindUnreachable, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: creating request: %w", op, err)
	}
	for k, vals := range c.header {
		for _, val := range vals {
			req.Header.Add(k, val)
		}
	}
	req.Header.Set("User-Agent", userAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", accept)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	reqID := uuid.NewString()
	c.logger.Debug("remote request", "op", op, "url", u, "request_id", reqID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("remote request failed", "op", op, "url", u, "request_id", reqID, "error", err)
		return nil, &FetchError{Op: op, URL: u, Kind: KindUnreachable, Err: err}
	}

	c.logger.Debug("remote response",
		"op", op,
		"request_id", reqID,
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"ratelimit_remaining", resp.Header.Get("X-RateLimit-Remaining"),
		"ratelimit_reset", resp.Header.Get("X-RateLimit-Reset"),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, classify(op, u, resp)
	}
	return resp, nil
}

// classify maps a non-2xx response to a FetchError. GitHub reports an
// exhausted quota as 403 with X-RateLimit-Remaining: 0.
func classify(op, u string, resp *http.Response) *FetchError {
	fe := &FetchError{Op: op, URL: u, Kind: KindStatus, StatusCode: resp.StatusCode}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var apiErr struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &apiErr) == nil {
		fe.Message = apiErr.Message
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		fe.Kind = KindNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		fe.Kind = KindRateLimited
	case resp.StatusCode == http.StatusForbidden &&
		(resp.Header.Get("X-RateLimit-Remaining") == "0" || strings.Contains(strings.ToLower(fe.Message), "rate limit")):
		fe.Kind = KindRateLimited
	}
	return fe
}
