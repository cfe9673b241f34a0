package bing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/matzehuels/poissonfields/pkg/cache"
	"github.com/matzehuels/poissonfields/pkg/integrations"
)

func testProvider(t *testing.T, serverURL string, client *http.Client) *Provider {
	t.Helper()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })

	p, err := NewProvider("secret", c, []integrations.Option{
		integrations.WithHTTPClient(client),
		integrations.WithRetry(2, time.Millisecond),
	}, WithBaseURL(serverURL))
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestProvider_Search(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/v7.0/images/search" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get(HeaderKey); got != "secret" {
			t.Errorf("subscription header = %q", got)
		}
		if got := r.URL.Query().Get("q"); got != "transparent teapot" {
			t.Errorf("q = %q", got)
		}
		json.NewEncoder(w).Encode(apiResponse{Value: []apiImage{
			{ContentURL: "https://a.example/1.png", EncodingFormat: "png"},
			{ContentURL: "https://a.example/2.jpg", EncodingFormat: "jpeg"},
			{ContentURL: "https://a.example/3.gif", EncodingFormat: "gif"},
			{ContentURL: "https://a.example/1.png", EncodingFormat: "png"},
			{ContentURL: "", EncodingFormat: "png"},
		}})
	}))
	defer server.Close()

	p := testProvider(t, server.URL, server.Client())

	urls, err := p.Search(context.Background(), "transparent teapot")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	want := []string{"https://a.example/1.png", "https://a.example/3.gif"}
	if !reflect.DeepEqual(urls, want) {
		t.Errorf("Search = %v, want %v", urls, want)
	}

	// Second search is served from cache
	if _, err := p.Search(context.Background(), "Transparent Teapot"); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("server calls = %d, want 1", calls)
	}
}

func TestProvider_SearchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	p := testProvider(t, server.URL, server.Client())
	if _, err := p.Search(context.Background(), "teapot"); err == nil {
		t.Error("expected error for 401")
	}
}

func TestNewProviderRequiresKey(t *testing.T) {
	if _, err := NewProvider("", nil, nil); !errors.Is(err, ErrNoKey) {
		t.Errorf("NewProvider(\"\") error = %v, want ErrNoKey", err)
	}
}

func TestIsJPEG(t *testing.T) {
	tests := map[string]bool{
		"jpeg":       true,
		"JPEG":       true,
		"jpg":        true,
		"image/jpeg": true,
		"png":        false,
		"gif":        false,
		"webp":       false,
		"":           false,
	}
	for in, want := range tests {
		if got := isJPEG(in); got != want {
			t.Errorf("isJPEG(%q) = %v, want %v", in, got, want)
		}
	}
}
