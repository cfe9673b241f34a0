package cli

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

// cutoutPNG draws an opaque block in the middle of a transparent canvas.
// With opaqueCorner the bottom-right pixel is opaque, so the image is
// rejected by the transparency check.
func cutoutPNG(t *testing.T, w, h int, opaqueCorner bool) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := h / 4; y < 3*h/4; y++ {
		for x := w / 4; x < 3*w/4; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 220, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	if opaqueCorner {
		img.SetNRGBA(w-1, h-1, color.NRGBA{A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// imageServer serves n PNGs and returns their URLs.
func imageServer(t *testing.T, n int, opaqueCorner bool) []string {
	t.Helper()
	images := map[string][]byte{}
	mux := http.NewServeMux()
	for i := range n {
		path := fmt.Sprintf("/img/%d.png", i)
		images[path] = cutoutPNG(t, 80+i*12, 60+i*9, opaqueCorner)
	}
	mux.HandleFunc("/img/", func(w http.ResponseWriter, r *http.Request) {
		data, ok := images[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	urls := make([]string, 0, n)
	for i := range n {
		urls = append(urls, fmt.Sprintf("%s/img/%d.png", srv.URL, i))
	}
	return urls
}

// staticConfig writes a config file that serves urls through the static
// provider with a temporary file cache.
func staticConfig(t *testing.T, urls []string, extra string) string {
	t.Helper()
	t.Setenv(envRedisURL, "")
	quoted := make([]string, len(urls))
	for i, u := range urls {
		quoted[i] = fmt.Sprintf("%q", u)
	}
	cacheDir := filepath.ToSlash(filepath.Join(t.TempDir(), "cache"))
	return writeConfig(t, fmt.Sprintf(`
[provider]
urls = [%s]
allow_private_hosts = true

[cache]
dir = %q
%s`, strings.Join(quoted, ", "), cacheDir, extra))
}
