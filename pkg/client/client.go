// Package client is a typed HTTP client for the KhoshGolpo API.
//
// Requests carry the stored access token. When the API answers 401 the
// client refreshes the session once and replays the request once; concurrent
// requests that hit 401 together share that single refresh.
package client

import (
	"context"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/singleflight"
)

// BaseURLEnv names the environment variable holding the default API base URL
const BaseURLEnv = "NEXT_PUBLIC_API_URL"

const (
	defaultBaseURL   = "http://localhost:8787"
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "KhoshGolpo-Client/1.0"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config configures a Client. Zero values fall back to defaults.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// Tokens persists the session; defaults to an in-memory store
	Tokens TokenStore
	// Cache enables read caching for thread and notification reads
	Cache *Cache
	// OnSessionExpired runs after a failed refresh cleared the session
	OnSessionExpired func()
	Logger           *log.Logger
	// Transport replaces the HTTP transport, used by tests
	Transport http.RoundTripper
}

// TokenStore keeps the current session between requests
type TokenStore interface {
	Load() (*Session, bool)
	Save(*Session) error
	Clear() error
}

// MemoryStore is a TokenStore that lives as long as the process
type MemoryStore struct {
	mu      sync.RWMutex
	session *Session
}

func (m *MemoryStore) Load() (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil, false
	}
	s := *m.session
	return &s, true
}

func (m *MemoryStore) Save(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.session = &cp
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

// Client talks to the API
type Client struct {
	http      *resty.Client
	tokens    TokenStore
	cache     *Cache
	logger    *log.Logger
	onExpired func()

	refreshes singleflight.Group
}

// New creates a client from cfg
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv(BaseURLEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Tokens == nil {
		cfg.Tokens = &MemoryStore{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr)
		cfg.Logger.SetLevel(log.WarnLevel)
	}

	httpClient := resty.New()
	if cfg.Transport != nil {
		httpClient.SetTransport(cfg.Transport)
	}
	httpClient.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	httpClient.SetTimeout(cfg.Timeout)
	httpClient.SetHeader("User-Agent", cfg.UserAgent)
	httpClient.SetHeader("Accept", "application/json")
	httpClient.JSONMarshal = json.Marshal
	httpClient.JSONUnmarshal = json.Unmarshal

	logger := cfg.Logger
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		logger.Debug("HTTP Request", "method", req.Method, "url", req.URL)
		return nil
	})
	httpClient.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		logger.Debug("HTTP Response", "status", resp.StatusCode(), "url", resp.Request.URL, "took", resp.Time())
		return nil
	})

	return &Client{
		http:      httpClient,
		tokens:    cfg.Tokens,
		cache:     cfg.Cache,
		logger:    logger,
		onExpired: cfg.OnSessionExpired,
	}
}

// BaseURL returns the API root the client talks to
func (c *Client) BaseURL() string {
	return c.http.BaseURL
}

// Session returns the stored session, if any
func (c *Client) Session() (*Session, bool) {
	return c.tokens.Load()
}

// SetSession stores s as the current session
func (c *Client) SetSession(s *Session) error {
	return c.tokens.Save(s)
}

// Cache returns the read cache, nil when caching is off
func (c *Client) Cache() *Cache {
	return c.cache
}

type requestOption func(*resty.Request)

func withQuery(params map[string]string) requestOption {
	return func(r *resty.Request) {
		for k, v := range params {
			if v != "" {
				r.SetQueryParam(k, v)
			}
		}
	}
}

// do sends one API request. out receives the decoded 2xx body.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, opts ...requestOption) error {
	resp, sentToken, err := c.send(ctx, method, path, body, out, opts)
	if err != nil {
		return err
	}

	if resp.StatusCode() == http.StatusUnauthorized && sentToken != "" && !isAuthPath(path) {
		if rerr := c.refreshSession(ctx, sentToken); rerr != nil {
			c.logger.Debug("Session refresh failed", "err", rerr)
			return ParseError(resp)
		}
		resp, _, err = c.send(ctx, method, path, body, out, opts)
		if err != nil {
			return err
		}
	}

	if resp.IsError() {
		return ParseError(resp)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body, out interface{}, opts []requestOption) (*resty.Response, string, error) {
	req := c.http.R().SetContext(ctx)

	var token string
	if s, ok := c.tokens.Load(); ok && s.AccessToken != "" {
		token = s.AccessToken
		req.SetAuthToken(token)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	for _, opt := range opts {
		opt(req)
	}

	resp, err := req.Execute(method, path)
	return resp, token, err
}

// refreshSession trades the refresh token for a new pair. staleToken is the
// access token the failed request carried; if the store already holds a
// different one another request refreshed first and there is nothing to do.
func (c *Client) refreshSession(ctx context.Context, staleToken string) error {
	current, ok := c.tokens.Load()
	if !ok || current.RefreshToken == "" {
		return errNoSession
	}
	if current.AccessToken != staleToken {
		return nil
	}

	_, err, _ := c.refreshes.Do(current.RefreshToken, func() (interface{}, error) {
		// a refresh for this token may have finished since the check above
		latest, ok := c.tokens.Load()
		if !ok {
			return nil, errNoSession
		}
		if latest.AccessToken != staleToken {
			return nil, nil
		}

		var next Session
		resp, err := c.http.R().
			SetContext(context.WithoutCancel(ctx)).
			SetHeader("Content-Type", "application/json").
			SetBody(map[string]string{"refresh_token": current.RefreshToken}).
			SetResult(&next).
			Post("/auth/refresh")
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			c.expire()
			return nil, ParseError(resp)
		}
		if err := c.tokens.Save(&next); err != nil {
			return nil, err
		}
		c.logger.Debug("Session refreshed")
		return nil, nil
	})
	return err
}

func (c *Client) expire() {
	if err := c.tokens.Clear(); err != nil {
		c.logger.Warn("Failed to clear session", "err", err)
	}
	if c.cache != nil {
		c.cache.Purge()
	}
	if c.onExpired != nil {
		c.onExpired()
	}
}

// auth endpoints answer 401 for bad credentials, never for a stale token
func isAuthPath(path string) bool {
	return strings.HasPrefix(path, "/auth/") && path != "/auth/me"
}

type sessionError string

func (e sessionError) Error() string { return string(e) }

const errNoSession = sessionError("no session to refresh")
