package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/bundle-admin/internal/obs"
	"github.com/noah-isme/bundle-admin/internal/shopify"
)

// Doer sends a prepared request; resilience.HTTPClient satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Uploader posts files to staged upload targets.
type Uploader struct {
	HTTP   Doer
	Logger zerolog.Logger
}

// UploadAll transfers uploads[i] to targets[i] sequentially. The first failure
// aborts the remaining transfers; files already sent stay on the remote side.
func (u Uploader) UploadAll(ctx context.Context, targets []shopify.StagedTarget, uploads []Item) error {
	if len(targets) != len(uploads) {
		return fmt.Errorf("media: %d targets for %d files", len(targets), len(uploads))
	}
	for i := range uploads {
		if err := u.Upload(ctx, targets[i], uploads[i]); err != nil {
			return err
		}
	}
	return nil
}

// Upload sends a multipart POST with the target parameters in order followed
// by the file part. Any non-2xx status is an error.
func (u Uploader) Upload(ctx context.Context, target shopify.StagedTarget, item Item) error {
	if u.HTTP == nil {
		return errors.New("media: http client not configured")
	}
	body, contentType, err := encodeForm(target.Parameters, item)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("media: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := u.HTTP.Do(ctx, req)
	if err != nil {
		observe("error")
		return fmt.Errorf("media: upload %s: %w", item.Name, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observe("rejected")
		return fmt.Errorf("media: upload %s: HTTP error! status: %d", item.Name, resp.StatusCode)
	}
	observe("ok")
	u.Logger.Debug().Str("file", item.Name).Str("resource_url", target.ResourceURL).Msg("media_uploaded")
	return nil
}

func encodeForm(params []shopify.StagedUploadParameter, item Item) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range params {
		if err := w.WriteField(p.Name, p.Value); err != nil {
			return nil, "", fmt.Errorf("media: write field %s: %w", p.Name, err)
		}
	}
	part, err := w.CreateFormFile("file", item.Name)
	if err != nil {
		return nil, "", fmt.Errorf("media: create file part: %w", err)
	}
	if _, err := part.Write(item.Data); err != nil {
		return nil, "", fmt.Errorf("media: write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("media: close form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func observe(result string) {
	if obs.MediaUploadTotal != nil {
		obs.MediaUploadTotal.WithLabelValues(result).Inc()
	}
}
