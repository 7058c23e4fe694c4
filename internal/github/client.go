// Package github implements the remote file gateway on top of the GitHub
// REST contents API.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"ghedit-go/internal/ws"
)

const (
	mediaType  = "application/vnd.github+json"
	apiVersion = "2022-11-28"
)

// Config holds configuration for creating a Client.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.github.com".
	BaseURL string
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// Token returns the bearer token for each request. An empty token sends
	// the request unauthenticated.
	Token func() string
	// Logger receives one debug line per request. If nil, nothing is logged.
	Logger ws.Logger
}

// Client talks to the GitHub REST API. It never retries and sets no timeout
// of its own; the caller's context bounds every request.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      func() string
	logger     ws.Logger

	mu       sync.Mutex
	rate     ws.RateLimit
	haveRate bool
}

var _ ws.Gateway = (*Client)(nil)

// NewClient creates a Client. BaseURL must use https unless it points at a
// loopback address.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("github: BaseURL is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("github: invalid BaseURL %q: %w", cfg.BaseURL, err)
	}
	switch u.Scheme {
	case "https":
	case "http":
		if !isLoopback(u.Hostname()) {
			return nil, fmt.Errorf("github: refusing plain http BaseURL %q", cfg.BaseURL)
		}
	default:
		return nil, fmt.Errorf("github: unsupported BaseURL scheme %q", u.Scheme)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	token := cfg.Token
	if token == nil {
		token = func() string { return "" }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = ws.NewNopLogger()
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		token:      token,
		logger:     logger,
	}, nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// LastRateLimit returns the quota reported by the most recent response.
func (c *Client) LastRateLimit() (ws.RateLimit, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate, c.haveRate
}

// do sends a request and returns the response body for 2xx statuses. Other
// statuses are returned as *APIError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, requestBody any) ([]byte, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("github: failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("github: failed to create request: %w", err)
	}
	request.Header.Set("Accept", mediaType)
	request.Header.Set("X-GitHub-Api-Version", apiVersion)
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token := c.token(); token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("github: request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	c.recordRateLimit(response.Header)
	c.logger.Debug("github request", "method", method, "path", path, "status", response.StatusCode)

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("github: failed to read response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	apiErr := &APIError{StatusCode: response.StatusCode, Method: method, Path: path}
	if err := json.Unmarshal(responseBody, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(responseBody))
	}
	return nil, apiErr
}

func (c *Client) recordRateLimit(h http.Header) {
	limit, err := strconv.Atoi(h.Get("X-RateLimit-Limit"))
	if err != nil {
		return
	}
	remaining, _ := strconv.Atoi(h.Get("X-RateLimit-Remaining"))
	reset, _ := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.rate = ws.RateLimit{Limit: limit, Remaining: remaining, Reset: time.Unix(reset, 0).UTC()}
	c.haveRate = true
}

// contentsPath builds /repos/{owner}/{repo}/contents/{path} with every
// segment escaped.
func contentsPath(ref ws.Ref) string {
	segments := strings.Split(ref.Path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return "/repos/" + url.PathEscape(ref.Owner) + "/" + url.PathEscape(ref.Repo) +
		"/contents/" + strings.Join(segments, "/")
}
