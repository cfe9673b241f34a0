package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/matzehuels/poissonfields/pkg/buildinfo"
	"github.com/matzehuels/poissonfields/pkg/cache"
	"github.com/matzehuels/poissonfields/pkg/httputil"
	"github.com/matzehuels/poissonfields/pkg/observability"
)

// Client provides shared HTTP functionality for providers and the fetcher.
// It handles caching, retry logic, and common request headers.
//
// All methods are safe for concurrent use.
type Client struct {
	http     *http.Client
	fetch    *http.Client // http with the SSRF guard applied, for FetchBytes
	cache    cache.Cache
	keyer    cache.Keyer
	headers  map[string]string
	resolver httputil.Resolver

	maxBytes     int64
	allowPrivate bool
	attempts     int
	delay        time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithKeyer replaces the cache keyer.
func WithKeyer(k cache.Keyer) Option {
	return func(c *Client) { c.keyer = k }
}

// WithMaxBytes sets the largest body FetchBytes accepts.
func WithMaxBytes(n int64) Option {
	return func(c *Client) { c.maxBytes = n }
}

// WithResolver sets the resolver used by the SSRF guard.
func WithResolver(r httputil.Resolver) Option {
	return func(c *Client) { c.resolver = r }
}

// WithRetry sets the attempt count and initial backoff delay.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Client) { c.attempts, c.delay = attempts, delay }
}

// AllowPrivateHosts disables the SSRF guard. Only for tests against
// httptest servers and for trusted static URL lists.
func AllowPrivateHosts() Option {
	return func(c *Client) { c.allowPrivate = true }
}

// NewClient creates a Client with the given cache and default headers.
// A nil cache disables caching. Headers are applied to all requests made
// through this client; pass nil if none are needed.
func NewClient(c cache.Cache, headers map[string]string, opts ...Option) *Client {
	if c == nil {
		c = cache.NewNullCache()
	}
	defaultHTTP := NewHTTPClient()
	client := &Client{
		http:     defaultHTTP,
		cache:    c,
		keyer:    cache.NewDefaultKeyer(),
		headers:  headers,
		maxBytes: DefaultMaxBytes,
		attempts: 3,
		delay:    time.Second,
	}
	for _, opt := range opts {
		opt(client)
	}
	client.fetch = client.guarded(client.http == defaultHTTP)
	return client
}

// guarded derives the download client. Unless private hosts are allowed,
// every redirect target is checked again, and the default transport also
// refuses to dial restricted addresses.
func (c *Client) guarded(ownTransport bool) *http.Client {
	if c.allowPrivate {
		return c.http
	}
	hc := *c.http
	if ownTransport {
		hc.Transport = newGuardedTransport()
	}
	hc.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		if err := httputil.IsSafeURL(req.Context(), c.resolver, req.URL.String()); err != nil {
			return fmt.Errorf("%w: %v", ErrUnsafeRedirect, err)
		}
		return nil
	}
	return &hc
}

// Keyer returns the keyer providers should use for their cache entries.
func (c *Client) Keyer() cache.Keyer { return c.keyer }

// Cached retrieves a JSON value from cache or executes fetch and caches the result.
// If refresh is true, the cache is bypassed and fetch is always called.
// The fetch function should populate v; on success, v is stored in the cache.
func (c *Client) Cached(ctx context.Context, key string, ttl time.Duration, refresh bool, v any, fetch func() error) error {
	if !refresh {
		if data, ok, _ := c.cache.Get(ctx, key); ok {
			if json.Unmarshal(data, v) == nil {
				return nil
			}
		}
	}
	if err := httputil.Retry(ctx, c.attempts, c.delay, fetch); err != nil {
		return err
	}
	if data, err := json.Marshal(v); err == nil {
		_ = c.cache.Set(ctx, key, data, ttl)
	}
	return nil
}

// Get performs an HTTP GET request and JSON-decodes the response into v.
func (c *Client) Get(ctx context.Context, url string, v any) error {
	return c.GetWithHeaders(ctx, url, nil, v)
}

// GetWithHeaders performs an HTTP GET with additional headers merged with defaults.
// Request-specific headers override client defaults for the same key.
func (c *Client) GetWithHeaders(ctx context.Context, url string, headers map[string]string, v any) error {
	body, err := c.doRequest(ctx, c.http, url, headers)
	if err != nil {
		return err
	}
	defer body.Close()
	return json.NewDecoder(body).Decode(v)
}

// FetchBytes downloads the raw bytes behind url.
//
// The URL must pass the SSRF guard, the body may not exceed the size limit
// and must not sniff as text. Transient failures are retried; successful
// downloads are cached under the keyer's asset key.
func (c *Client) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	if !c.allowPrivate {
		if err := httputil.IsSafeURL(ctx, c.resolver, url); err != nil {
			return nil, fmt.Errorf("unsafe url: %w", err)
		}
	}

	key := c.keyer.AssetKey(url)
	if data, ok, _ := c.cache.Get(ctx, key); ok {
		return data, nil
	}

	var data []byte
	err := httputil.Retry(ctx, c.attempts, c.delay, func() error {
		body, err := c.doRequest(ctx, c.fetch, url, nil)
		if err != nil {
			return err
		}
		defer body.Close()

		data, err = io.ReadAll(io.LimitReader(body, c.maxBytes+1))
		if err != nil {
			return httputil.Retryable(fmt.Errorf("%w: read body: %v", httputil.ErrNetwork, err))
		}
		if int64(len(data)) > c.maxBytes {
			return fmt.Errorf("%w: limit %d bytes", ErrTooLarge, c.maxBytes)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if ct := http.DetectContentType(data); strings.HasPrefix(ct, "text/") {
		return nil, fmt.Errorf("%w: sniffed %s", ErrNotImage, ct)
	}

	_ = c.cache.Set(ctx, key, data, cache.TTLAsset)
	return data, nil
}

func (c *Client) doRequest(ctx context.Context, hc *http.Client, rawURL string, headers map[string]string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent())
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	host, path := req.URL.Host, req.URL.Path
	observability.HTTP().OnRequest(ctx, req.Method, host, path)
	start := time.Now()

	resp, err := hc.Do(req)
	if err != nil {
		observability.HTTP().OnError(ctx, req.Method, host, path, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, ErrUnsafeRedirect) {
			return nil, err
		}
		return nil, httputil.Retryable(fmt.Errorf("%w: %v", httputil.ErrNetwork, err))
	}
	observability.HTTP().OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))

	if err := httputil.CheckStatus(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}
