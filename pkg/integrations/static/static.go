// Package static provides a search provider backed by a fixed URL list.
//
// It lets the collage pipeline run without a search API: pass URLs on the
// command line or point it at a text file with one URL per line.
package static

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// Provider returns the same URL list for every query.
type Provider struct {
	urls []string
}

// New creates a provider for the given URLs. Blank entries are dropped.
func New(urls []string) *Provider {
	p := &Provider{}
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			p.urls = append(p.urls, u)
		}
	}
	return p
}

// FromFile reads one URL per line. Lines starting with # are comments.
func FromFile(path string) (*Provider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return FromReader(f)
}

// FromReader is FromFile for an open reader.
func FromReader(r io.Reader) (*Provider, error) {
	var urls []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read url list: %w", err)
	}
	return New(urls), nil
}

// Name identifies the provider in cache keys and logs.
func (p *Provider) Name() string { return "static" }

// Search ignores the query and returns a copy of the URL list.
func (p *Provider) Search(ctx context.Context, query string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]string(nil), p.urls...), nil
}
