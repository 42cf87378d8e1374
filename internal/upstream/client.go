// Package upstream wraps the registration/payment backend API behind a typed
// HTTP client. It owns deadlines, bearer-token injection, and the translation
// of transport failures into stable domain error codes so callers never see a
// raw *url.Error.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"regpay/internal/platform/metrics"
	dErrors "regpay/pkg/domain-errors"
	"regpay/pkg/requestcontext"
)

// PlaceholderToken is the historical bug value that must never be sent as a
// bearer token. Early admin builds stored a literal boolean in place of the
// JWT; any token equal to it is treated as absent.
const PlaceholderToken = "true"

// TokenSource supplies the current admin bearer token, or "" when no valid
// session exists.
type TokenSource interface {
	Token() string
}

// Envelope is the backend's response wrapper. Endpoints are inconsistent
// about nesting, so Data is kept raw and Payload falls back to the whole
// body when the data field is absent.
type Envelope struct {
	Success *bool           `json:"success,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`

	raw json.RawMessage
}

// Payload returns the data field when present, otherwise the full body.
func (e *Envelope) Payload() json.RawMessage {
	if len(e.Data) > 0 && string(e.Data) != "null" {
		return e.Data
	}
	return e.raw
}

// RequestOptions tune a single call. The zero value uses the client defaults.
type RequestOptions struct {
	// Timeout overrides the client default for this call. Admin operations
	// pass longer deadlines to absorb backend cold starts.
	Timeout time.Duration
	// Params is serialized into the query string for GET requests.
	Params map[string]string
	// Body is JSON-encoded for non-GET requests when non-nil.
	Body any
	// Headers are added verbatim after the defaults.
	Headers map[string]string
}

// Client is the transport client for the backend API.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	defaultTimeout time.Duration
	tokens         TokenSource
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient injects a custom *http.Client (tests use httptest clients).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithDefaultTimeout sets the per-request deadline applied when a call does
// not override it.
func WithDefaultTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.defaultTimeout = d
		}
	}
}

// WithTokenSource wires the admin session as the bearer token supplier.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithMetrics enables upstream latency and error counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New creates a backend API client rooted at baseURL (including any path
// prefix, e.g. https://api.example.com/api).
func New(baseURL string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{},
		defaultTimeout: 30 * time.Second,
		logger:         logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Get issues a GET with params serialized into the query string.
func (c *Client) Get(ctx context.Context, path string, opts RequestOptions) (*Envelope, error) {
	return c.Do(ctx, http.MethodGet, path, opts)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, opts RequestOptions) (*Envelope, error) {
	return c.Do(ctx, http.MethodPost, path, opts)
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, opts RequestOptions) (*Envelope, error) {
	return c.Do(ctx, http.MethodPut, path, opts)
}

// Do performs a request and decodes the response envelope. Errors carry a
// stable domain code: timeout when the deadline fired, network_error when no
// response was obtained, http_error (or unauthenticated for 401) when the
// backend answered with a failure status.
func (c *Client) Do(ctx context.Context, method, path string, opts RequestOptions) (*Envelope, error) {
	body, status, err := c.roundTrip(ctx, method, path, opts)
	if err != nil {
		return nil, err
	}

	env := &Envelope{raw: body}
	if len(body) > 0 {
		if err := json.Unmarshal(body, env); err != nil {
			c.countError(dErrors.CodeHTTP)
			return nil, &dErrors.Error{
				Code:       dErrors.CodeHTTP,
				Message:    "malformed response body",
				HTTPStatus: status,
				Body:       body,
				Err:        err,
			}
		}
		env.raw = body
	}
	return env, nil
}

// GetRaw performs a GET and returns the raw body and content type without
// envelope decoding. Used for the CSV export passthrough.
func (c *Client) GetRaw(ctx context.Context, path string, opts RequestOptions) ([]byte, string, error) {
	deadline := c.deadlineFor(opts)
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	req, err := c.buildRequest(ctx, http.MethodGet, path, opts)
	if err != nil {
		return nil, "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", c.classifyTransport(ctx, err, path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", c.classifyTransport(ctx, err, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", c.statusError(resp.StatusCode, resp.Status, body)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// Health probes the backend health endpoint, which lives outside the API
// path prefix.
func (c *Client) Health(ctx context.Context) error {
	root := strings.TrimSuffix(c.baseURL, "/api")
	ctx, cancel := context.WithTimeout(ctx, c.defaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, root+"/health", nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "build health request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.classifyTransport(ctx, err, "/health")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return c.statusError(resp.StatusCode, resp.Status, body)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, opts RequestOptions) ([]byte, int, error) {
	deadline := c.deadlineFor(opts)
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	req, err := c.buildRequest(ctx, method, path, opts)
	if err != nil {
		return nil, 0, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.UpstreamLatency.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, 0, c.classifyTransport(ctx, err, path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, c.classifyTransport(ctx, err, path)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, 0, c.statusError(resp.StatusCode, resp.Status, body)
	}
	return body, resp.StatusCode, nil
}

func (c *Client) deadlineFor(opts RequestOptions) time.Duration {
	if opts.Timeout > 0 {
		return opts.Timeout
	}
	return c.defaultTimeout
}

func (c *Client) buildRequest(ctx context.Context, method, path string, opts RequestOptions) (*http.Request, error) {
	target := c.baseURL + path
	if method == http.MethodGet && len(opts.Params) > 0 {
		q := url.Values{}
		for k, v := range opts.Params {
			q.Set(k, v)
		}
		target += "?" + q.Encode()
	}

	var reader io.Reader
	if method != http.MethodGet && opts.Body != nil {
		encoded, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode request body")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "build request")
	}

	req.Header.Set("Content-Type", "application/json")
	if token := c.bearerToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// bearerToken returns the session token, rejecting the placeholder value.
func (c *Client) bearerToken() string {
	if c.tokens == nil {
		return ""
	}
	token := c.tokens.Token()
	if token == "" || token == PlaceholderToken {
		return ""
	}
	return token
}

// classifyTransport separates deadline aborts from network-level failures.
func (c *Client) classifyTransport(ctx context.Context, err error, path string) error {
	code := dErrors.CodeNetwork
	msg := "network error, no response from backend"

	var urlErr *url.Error
	timedOut := errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &urlErr) && urlErr.Timeout())
	if timedOut {
		code = dErrors.CodeTimeout
		msg = "request timed out"
	}

	c.countError(code)
	c.logger.WarnContext(ctx, "upstream request failed",
		"path", path,
		"code", string(code),
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	return &dErrors.Error{Code: code, Message: msg, Err: err}
}

// statusError converts a non-2xx response into a structured error, extracting
// the human message from the common body spellings.
func (c *Client) statusError(status int, statusText string, body []byte) error {
	message := extractMessage(body)
	if message == "" {
		message = statusText
	}
	if message == "" {
		message = fmt.Sprintf("request failed with status %d", status)
	}

	code := dErrors.CodeHTTP
	if status == http.StatusUnauthorized {
		code = dErrors.CodeUnauthenticated
	}
	c.countError(code)
	return &dErrors.Error{
		Code:       code,
		Message:    message,
		HTTPStatus: status,
		Body:       body,
	}
}

func (c *Client) countError(code dErrors.Code) {
	if c.metrics != nil {
		c.metrics.UpstreamErrors.WithLabelValues(string(code)).Inc()
	}
}

// extractMessage pulls a human-readable message out of an error body, trying
// the field spellings the backend has used over time.
func extractMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return ""
	}
	for _, key := range []string{"message", "error", "msg"} {
		if v, ok := m[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
