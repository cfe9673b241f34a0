// Package bing searches images through the Bing Image Search v7 API.
package bing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/matzehuels/poissonfields/pkg/cache"
	"github.com/matzehuels/poissonfields/pkg/httputil"
	"github.com/matzehuels/poissonfields/pkg/integrations"
)

const (
	defaultBaseURL = "https://api.bing.microsoft.com"
	defaultCount   = 50

	// HeaderKey carries the subscription key.
	HeaderKey = "Ocp-Apim-Subscription-Key"
)

// ErrNoKey is returned when the provider is built without a subscription key.
var ErrNoKey = errors.New("bing: subscription key not set (BING_KEY)")

// Provider searches Bing for image URLs.
//
// Results whose encoding format is JPEG are dropped: JPEG cannot carry an
// alpha channel, so those images would always fail the transparency check.
type Provider struct {
	*integrations.Client
	baseURL string
	count   int
}

// Option configures a Provider.
type Option func(*Provider)

// WithBaseURL points the provider at a different endpoint.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimSuffix(u, "/") }
}

// WithCount sets how many results are requested per query (Bing caps at 150).
func WithCount(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.count = n
		}
	}
}

// NewProvider creates a Bing provider. The client's cache backs search results.
func NewProvider(key string, backend cache.Cache, clientOpts []integrations.Option, opts ...Option) (*Provider, error) {
	if key == "" {
		return nil, ErrNoKey
	}
	p := &Provider{
		Client:  integrations.NewClient(backend, map[string]string{HeaderKey: key}, clientOpts...),
		baseURL: defaultBaseURL,
		count:   defaultCount,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name identifies the provider in cache keys and logs.
func (p *Provider) Name() string { return "bing" }

// Search returns the content URLs of non-JPEG results for query, in the
// order Bing ranked them.
func (p *Provider) Search(ctx context.Context, query string) ([]string, error) {
	key := p.Keyer().SearchKey(p.Name(), query)

	var urls []string
	err := p.Cached(ctx, key, cache.TTLSearch, false, &urls, func() error {
		return p.fetch(ctx, query, &urls)
	})
	if err != nil {
		return nil, err
	}
	return urls, nil
}

func (p *Provider) fetch(ctx context.Context, query string, out *[]string) error {
	q := url.Values{}
	q.Set("q", query)
	q.Set("count", strconv.Itoa(p.count))
	q.Set("safeSearch", "Strict")

	var resp apiResponse
	if err := p.Get(ctx, p.baseURL+"/v7.0/images/search?"+q.Encode(), &resp); err != nil {
		if errors.Is(err, httputil.ErrNotFound) {
			return fmt.Errorf("%w: bing endpoint", err)
		}
		return err
	}
	*out = filterResults(resp.Value)
	return nil
}

func filterResults(values []apiImage) []string {
	seen := make(map[string]bool, len(values))
	urls := make([]string, 0, len(values))
	for _, v := range values {
		if v.ContentURL == "" || isJPEG(v.EncodingFormat) || seen[v.ContentURL] {
			continue
		}
		seen[v.ContentURL] = true
		urls = append(urls, v.ContentURL)
	}
	return urls
}

func isJPEG(format string) bool {
	switch strings.ToLower(format) {
	case "jpeg", "jpg", "image/jpeg", "image/jpg":
		return true
	}
	return false
}

type apiResponse struct {
	Value []apiImage `json:"value"`
}

type apiImage struct {
	ContentURL     string `json:"contentUrl"`
	EncodingFormat string `json:"encodingFormat"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
}
