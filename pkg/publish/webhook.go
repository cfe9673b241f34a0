package publish

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/matzehuels/poissonfields/pkg/buildinfo"
	perrors "github.com/matzehuels/poissonfields/pkg/errors"
	"github.com/matzehuels/poissonfields/pkg/httputil"
)

// Webhook posts the collage as multipart/form-data with a "status" text
// field and a "media" file field, the shape most status-update APIs and
// bot bridges accept.
type Webhook struct {
	URL     string
	Token   string // Sent as a bearer token when set
	Client  *http.Client
	Timeout time.Duration
}

// NewWebhook creates a webhook publisher.
func NewWebhook(url, token string) *Webhook {
	return &Webhook{URL: url, Token: token, Client: &http.Client{}, Timeout: 30 * time.Second}
}

// Publish sends one request. Any non-2xx response is a failure.
func (w *Webhook) Publish(ctx context.Context, post Post) error {
	body, contentType, err := multipartBody(post)
	if err != nil {
		return perrors.Wrap(perrors.ErrCodePublish, err, "build request body")
	}

	if w.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, body)
	if err != nil {
		return perrors.Wrap(perrors.ErrCodePublish, err, "build request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", buildinfo.UserAgent())
	if w.Token != "" {
		req.Header.Set("Authorization", "Bearer "+w.Token)
	}

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return perrors.Wrap(perrors.ErrCodePublish, err, "post to webhook")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if err := httputil.CheckStatus(resp.StatusCode); err != nil {
		return perrors.Wrap(perrors.ErrCodePublish, err, "webhook rejected post")
	}
	return nil
}

func multipartBody(post Post) (*bytes.Buffer, string, error) {
	if len(post.Image) == 0 {
		return nil, "", fmt.Errorf("post has no image")
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("status", post.Caption); err != nil {
		return nil, "", err
	}
	name := "collage.png"
	if post.ID != "" {
		name = post.ID + ".png"
	}
	fw, err := mw.CreateFormFile("media", name)
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(post.Image); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
