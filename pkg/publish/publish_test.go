package publish

import (
	"bytes"
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	perrors "github.com/matzehuels/poissonfields/pkg/errors"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func TestFilePublish(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	f := NewFile(dir)

	err := f.Publish(context.Background(), Post{ID: "run1", Caption: "teapot", Image: pngMagic})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	img, err := os.ReadFile(f.Path("run1"))
	if err != nil || !bytes.Equal(img, pngMagic) {
		t.Errorf("image = %q, %v", img, err)
	}
	caption, _ := os.ReadFile(filepath.Join(dir, "run1.txt"))
	if strings.TrimSpace(string(caption)) != "teapot" {
		t.Errorf("caption = %q", caption)
	}
}

func TestFilePublishGeneratesID(t *testing.T) {
	dir := t.TempDir()
	if err := NewFile(dir).Publish(context.Background(), Post{Image: pngMagic}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.png"))
	if len(matches) != 1 {
		t.Errorf("files = %v", matches)
	}
}

func TestFilePublishEmptyImage(t *testing.T) {
	err := NewFile(t.TempDir()).Publish(context.Background(), Post{ID: "x"})
	if !perrors.Is(err, perrors.ErrCodePublish) {
		t.Errorf("err = %v, want PUBLISH_FAILED", err)
	}
}

func TestWebhookPublish(t *testing.T) {
	var status, auth string
	var media []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		auth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		status = r.FormValue("status")
		f, _, err := r.FormFile("media")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer f.Close()
		media, _ = io.ReadAll(f)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	wh := NewWebhook(server.URL, "tok")
	wh.Client = server.Client()
	err := wh.Publish(context.Background(), Post{ID: "r", Caption: "lamp", Image: pngMagic})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if status != "lamp" || !bytes.Equal(media, pngMagic) || auth != "Bearer tok" {
		t.Errorf("status = %q, media = %q, auth = %q", status, media, auth)
	}
}

func TestWebhookPublishRejected(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	wh := NewWebhook(server.URL, "")
	wh.Client = server.Client()
	err := wh.Publish(context.Background(), Post{Caption: "x", Image: pngMagic})
	if !perrors.Is(err, perrors.ErrCodePublish) {
		t.Errorf("err = %v, want PUBLISH_FAILED", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, publishing must not be retried", calls)
	}
}

func TestCaption(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	if got := Caption(rng, " teapot ", CaptionConfig{}); got != "teapot" {
		t.Errorf("Caption = %q", got)
	}
	cfg := CaptionConfig{Suffixes: []string{"#collage"}, SuffixChance: 100}
	if got := Caption(rng, "teapot", cfg); got != "teapot #collage" {
		t.Errorf("Caption = %q", got)
	}
	cfg.SuffixChance = 0
	if got := Caption(rng, "teapot", cfg); got != "teapot" {
		t.Errorf("Caption = %q", got)
	}
}

func TestPercentChance(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	hits := 0
	for range 10000 {
		if PercentChance(rng, 25) {
			hits++
		}
	}
	if hits < 2200 || hits > 2800 {
		t.Errorf("25%% chance hit %d/10000", hits)
	}
}
