// Package rest implements the gateway contract against a hosted
// Supabase-compatible backend: PostgREST for collections and GoTrue for auth.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/starford/studytrack/internal/apperr"
	"github.com/starford/studytrack/internal/gateway"
	"github.com/starford/studytrack/internal/models"
)

const singleObject = "application/vnd.pgrst.object+json"

// Client is a gateway.Gateway talking HTTP to the backend project.
type Client struct {
	baseURL *url.URL
	anonKey string
	http    *http.Client
	hub     *gateway.SessionHub
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	session *models.Session
}

var _ gateway.Gateway = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for the project at projectURL authenticated with the
// project's anonymous key.
func New(projectURL, anonKey string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(projectURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("rest: parse project url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("rest: project url must be absolute: %q", projectURL)
	}
	c := &Client{
		baseURL: u,
		anonKey: anonKey,
		http:    &http.Client{Timeout: 15 * time.Second},
		hub:     gateway.NewSessionHub(),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close stops session subscriptions.
func (c *Client) Close() error {
	c.hub.Close()
	return nil
}

type request struct {
	method  string
	path    string
	query   url.Values
	body    any
	headers map[string]string
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (c *Client) do(ctx context.Context, r request) (*response, error) {
	u := *c.baseURL
	u.Path += r.path
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.bearer())
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("backend call",
		slog.String("method", r.method),
		slog.String("path", r.path),
		slog.Int("status", resp.StatusCode))
	return &response{status: resp.StatusCode, header: resp.Header, body: data}, nil
}

func (c *Client) bearer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil && c.session.AccessToken != "" {
		return c.session.AccessToken
	}
	return c.anonKey
}

// backendError is the union of PostgREST and GoTrue error bodies.
type backendError struct {
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	ErrorDescription string `json:"error_description"`
	Error            string `json:"error"`
	Code             any    `json:"code"`
}

func (e backendError) text() string {
	for _, s := range []string{e.Message, e.Msg, e.ErrorDescription, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// remoteError converts a non-2xx response into an apperr.RemoteError carrying
// the backend's message verbatim.
func remoteError(op, table string, resp *response) error {
	var be backendError
	_ = json.Unmarshal(resp.body, &be)
	msg := be.text()
	if msg == "" {
		msg = http.StatusText(resp.status)
	}

	var cause error
	switch resp.status {
	case http.StatusNotAcceptable:
		cause = apperr.ErrNoSingleRow
	case http.StatusUnauthorized, http.StatusForbidden:
		cause = apperr.ErrUnauthorized
	case http.StatusUnprocessableEntity:
		cause = apperr.ErrInvalidInput
	case http.StatusBadRequest:
		if be.ErrorDescription != "" || be.Error == "invalid_grant" {
			cause = apperr.ErrInvalidCredentials
		} else {
			cause = apperr.ErrInvalidInput
		}
	}
	return &apperr.RemoteError{Op: op, Table: table, Message: msg, Err: cause}
}

func ok(resp *response) bool {
	return resp.status >= 200 && resp.status < 300
}
