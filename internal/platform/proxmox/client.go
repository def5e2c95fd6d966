package proxmox

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/imamik/proxmate/internal/config"
)

// PasswordSource supplies the password for a fresh login. It is only called
// when neither in-memory nor cached credentials are usable.
type PasswordSource func(ctx context.Context) (string, error)

// StaticPassword returns a PasswordSource for a fixed password.
func StaticPassword(password string) PasswordSource {
	return func(context.Context) (string, error) {
		return password, nil
	}
}

// Reporter receives user-facing progress: task log lines and warnings.
type Reporter interface {
	Detail(format string, args ...any)
	Warn(format string, args ...any)
}

type nopReporter struct{}

func (nopReporter) Detail(string, ...any) {}
func (nopReporter) Warn(string, ...any)   {}

// Client talks to one Proxmox VE cluster. It is safe for concurrent use;
// parallel machine pipelines share a single client.
type Client struct {
	baseURL    string
	username   string
	httpClient *http.Client
	password   PasswordSource
	tokens     TokenCache
	timeouts   config.Timeouts
	logger     logr.Logger
	reporter   Reporter
	metrics    *metrics

	now func() time.Time

	mu          sync.Mutex
	creds       *Credentials
	skipCache   bool
	insecureTLS bool
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithInsecureTLS disables certificate verification, matching verify_ssl: false.
func WithInsecureTLS(insecure bool) ClientOption {
	return func(c *Client) {
		c.insecureTLS = insecure
	}
}

// WithPasswordSource sets where the password comes from on a fresh login.
func WithPasswordSource(ps PasswordSource) ClientOption {
	return func(c *Client) {
		c.password = ps
	}
}

// WithTokenCache sets the cache used to persist credentials between runs.
func WithTokenCache(tc TokenCache) ClientOption {
	return func(c *Client) {
		c.tokens = tc
	}
}

// WithTimeouts sets task budgets and poll intervals.
func WithTimeouts(t *config.Timeouts) ClientOption {
	return func(c *Client) {
		c.timeouts = *t
	}
}

// WithLogger sets the logger for request-level debug output.
func WithLogger(l logr.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithReporter sets the sink for task log lines and warnings.
func WithReporter(r Reporter) ClientOption {
	return func(c *Client) {
		c.reporter = r
	}
}

// WithMetrics registers request and task collectors with reg.
func WithMetrics(reg prometheus.Registerer) ClientOption {
	return func(c *Client) {
		c.metrics = newMetrics(reg)
	}
}

// WithClock overrides the time source. Used by tests to age credentials.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a client for the API rooted at apiURL, for example
// https://pve.example.com:8006/api2/json.
func NewClient(apiURL, username string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(apiURL, "/"),
		username: username,
		timeouts: *config.LoadTimeouts(),
		logger:   logr.Discard(),
		reporter: nopReporter{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = newMetrics(nil)
	}
	if c.httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if c.insecureTLS {
			// #nosec G402 -- explicitly requested with verify_ssl: false
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		c.httpClient = &http.Client{Transport: transport, Timeout: 60 * time.Second}
	}
	return c
}

type ticketResponse struct {
	Ticket    string `json:"ticket"`
	CSRFToken string `json:"CSRFPreventionToken"`
}

// Login makes sure the client holds usable credentials. It prefers the
// credentials already held, then the token cache, then a fresh login.
func (c *Client) Login(ctx context.Context) error {
	_, err := c.session(ctx)
	return err
}

// session returns the credentials for the next request. They are checked and
// handed out under one lock, so a concurrent invalidate cannot leave the
// request without a ticket.
func (c *Client) session(ctx context.Context) (*Credentials, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.creds.valid(now) {
		return c.creds, nil
	}

	if c.tokens != nil && !c.skipCache {
		cached, err := c.tokens.Load()
		switch {
		case err != nil:
			c.reporter.Warn("Ignoring token cache: %v", err)
		case cached == nil:
		case cached.Expired(now):
			c.reporter.Warn("Token expired")
		case cached.valid(now):
			c.logger.V(1).Info("using cached ticket", "issued", cached.IssuedAt)
			c.creds = cached
			return cached, nil
		}
	}

	if err := c.freshLogin(ctx); err != nil {
		return nil, err
	}
	return c.creds, nil
}

// freshLogin requests a new ticket. Caller holds c.mu.
func (c *Client) freshLogin(ctx context.Context) error {
	if c.password == nil {
		return &APIError{Kind: ErrInvalidCredentials, Message: "no password available"}
	}
	password, err := c.password(ctx)
	if err != nil {
		return fmt.Errorf("failed to obtain password: %w", err)
	}

	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", password)

	var resp ticketResponse
	if err := c.send(ctx, nil, http.MethodPost, "/access/ticket", form, nil, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Kind == ErrServer || apiErr.Kind == ErrUnauthorized) {
			return &APIError{Kind: ErrInvalidCredentials, Method: apiErr.Method, Path: apiErr.Path,
				StatusCode: apiErr.StatusCode, Message: apiErr.Message}
		}
		return err
	}
	if resp.Ticket == "" {
		return &APIError{Kind: ErrInvalidCredentials, Path: "/access/ticket", Message: "empty ticket"}
	}

	c.creds = &Credentials{Ticket: resp.Ticket, CSRFToken: resp.CSRFToken, IssuedAt: c.now()}
	c.skipCache = false
	c.logger.V(1).Info("logged in", "user", c.username)

	if c.tokens != nil {
		if err := c.tokens.Save(c.creds); err != nil {
			c.reporter.Warn("Could not save token cache: %v", err)
		}
	}
	return nil
}

// invalidate drops the credentials after a 401. The cache is skipped on the
// next login because it holds the same ticket.
func (c *Client) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = nil
	c.skipCache = true
}

// formBody is an encoded request body and its content type.
type formBody struct {
	reader      io.Reader
	contentType string
}

// do issues an authenticated request. Parameters go to the query string for
// GET and DELETE and to a form-encoded body otherwise.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, out any) error {
	creds, err := c.session(ctx)
	if err != nil {
		return err
	}
	return c.send(ctx, creds, method, path, params, nil, out)
}

// send performs the request and decodes the "data" member of the response
// into out. A non-nil body replaces params as the request body. creds may be
// nil for the login request itself.
func (c *Client) send(ctx context.Context, creds *Credentials, method, path string, params url.Values, body *formBody, out any) error {
	endpoint := c.baseURL + path
	var reader io.Reader
	contentType := ""

	switch {
	case body != nil:
		reader = body.reader
		contentType = body.contentType
	case method == http.MethodGet || method == http.MethodDelete:
		if len(params) > 0 {
			endpoint += "?" + params.Encode()
		}
	default:
		reader = strings.NewReader(params.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if creds != nil {
		req.AddCookie(&http.Cookie{Name: "PVEAuthCookie", Value: creds.Ticket})
		if method != http.MethodGet {
			req.Header.Set("CSRFPreventionToken", creds.CSRFToken)
		}
	}

	start := c.now()
	c.logger.V(2).Info("request", "method", method, "path", path, "params", redact(params))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.observeRequest(method, "error", c.now().Sub(start))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return connectionError(method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.observeRequest(method, "error", c.now().Sub(start))
		return connectionError(method, path, err)
	}
	c.metrics.observeRequest(method, fmt.Sprintf("%d", resp.StatusCode), c.now().Sub(start))
	c.logger.V(2).Info("response", "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusUnauthorized && path != "/access/ticket" {
			c.invalidate()
		}
		return classifyStatus(method, path, resp, data)
	}

	if out == nil {
		return nil
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return &APIError{Kind: ErrConnection, Method: method, Path: path, StatusCode: resp.StatusCode,
			Message: "malformed response body", Err: err}
	}
	if len(envelope.Data) == 0 || bytes.Equal(envelope.Data, []byte("null")) {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = envelope.Data
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return &APIError{Kind: ErrConnection, Method: method, Path: path, StatusCode: resp.StatusCode,
			Message: "unexpected response data", Err: err}
	}
	return nil
}

// errorDetails renders the "errors" object Proxmox returns for rejected
// parameters as "key: reason" pairs.
func errorDetails(body []byte) string {
	var payload struct {
		Errors map[string]string `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Errors) == 0 {
		return ""
	}
	keys := make([]string, 0, len(payload.Errors))
	for k := range payload.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.TrimSpace(payload.Errors[k]))
	}
	return strings.Join(parts, "; ")
}

func redact(params url.Values) url.Values {
	if params.Get("password") == "" {
		return params
	}
	out := url.Values{}
	for k, v := range params {
		out[k] = v
	}
	out.Set("password", "<redacted>")
	return out
}
