// Package client talks to the remote sync server over HTTP/JSON.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/utils"
)

// DefaultTimeout bounds one request round trip.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// ErrUnauthorized matches, via errors.Is, an HTTP 401 on any call.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// Credentials is the body of register and login requests.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

// SyncRequest is the body of a sync upload.
type SyncRequest struct {
	Bookmarks []domain.Bookmark `json:"bookmarks"`
}

// SyncResponse carries the canonical list and the counts reported by the server.
type SyncResponse struct {
	Bookmarks  []domain.Bookmark `json:"bookmarks"`
	LastSyncAt string            `json:"last_sync_at"`
	Added      int               `json:"added"`
	Updated    int               `json:"updated"`
	Deleted    int               `json:"deleted"`
}

// StatusResponse is returned by the status endpoint.
type StatusResponse struct {
	LastSyncAt    string `json:"last_sync_at"`
	BookmarkCount int    `json:"bookmark_count"`
	SyncCount     int    `json:"sync_count"`
}

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New returns a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    NormalizeBaseURL(baseURL),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		userAgent:  "marksync",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalized server URL.
func (c *Client) BaseURL() string { return c.baseURL }

// NormalizeBaseURL trims surrounding spaces, trailing slashes and a trailing
// "/api" segment, since every endpoint path already starts with /api.
// Example: "https://sync.example.com/api/" -> "https://sync.example.com"
func NormalizeBaseURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	u = strings.TrimSuffix(u, "/api")
	return strings.TrimRight(u, "/")
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, creds Credentials) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/register", "", creds, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/login", "", creds, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Sync uploads the local snapshot and returns the canonical list.
func (c *Client) Sync(ctx context.Context, token string, bookmarks []domain.Bookmark) (*SyncResponse, error) {
	if bookmarks == nil {
		bookmarks = []domain.Bookmark{}
	}
	var out SyncResponse
	if err := c.do(ctx, http.MethodPost, "/api/sync", token, SyncRequest{Bookmarks: bookmarks}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status returns server-side sync statistics for the account.
func (c *Client) Status(ctx context.Context, token string) (*StatusResponse, error) {
	var out StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/status", token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Detail: readDetail(resp.Body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("invalid response from %s: %w", path, err)
	}
	return nil
}

// readDetail extracts the "detail" field of an error body. A non-string
// detail (e.g. a validation error list) is returned as raw JSON.
func readDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s
	}
	return string(payload.Detail)
}
