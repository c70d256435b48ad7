package media_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bundle-admin/internal/media"
	"github.com/noah-isme/bundle-admin/internal/shopify"
)

type plainDoer struct{ client *http.Client }

func (d plainDoer) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return d.client.Do(req.WithContext(ctx))
}

func TestContentType(t *testing.T) {
	require.Equal(t, media.ContentImage, media.ContentType("image/png"))
	require.Equal(t, media.ContentVideo, media.ContentType("video/mp4"))
	require.Equal(t, media.ContentModel3D, media.ContentType("model/gltf-binary"))
	require.Equal(t, media.ContentImage, media.ContentType("application/pdf"))
}

func TestStagedAndCreateInputs(t *testing.T) {
	items := []media.Item{
		{Name: "a.png", MimeType: "image/png", Data: []byte("png"), AltText: "front"},
		{IsProductImage: true, Src: "https://cdn.example/existing.jpg", AltText: "old"},
		{Name: "b.mp4", MimeType: "video/mp4", Size: 42},
	}
	uploads, images := media.Split(items)
	require.Len(t, uploads, 2)
	require.Len(t, images, 1)

	staged := media.StagedInputs(uploads)
	require.Equal(t, "3", staged[0].FileSize)
	require.Equal(t, "42", staged[1].FileSize)
	require.Equal(t, "VIDEO", staged[1].Resource)
	require.Equal(t, "POST", staged[0].HTTPMethod)

	targets := []shopify.StagedTarget{{ResourceURL: "r1"}, {ResourceURL: "r2"}}
	inputs := media.CreateInputs(targets, uploads, images)
	require.Equal(t, []shopify.CreateMediaInput{
		{MediaContentType: "IMAGE", OriginalSource: "r1", Alt: "front"},
		{MediaContentType: "VIDEO", OriginalSource: "r2"},
		{MediaContentType: "IMAGE", OriginalSource: "https://cdn.example/existing.jpg", Alt: "old"},
	}, inputs)
}

func TestUploadSendsParametersThenFile(t *testing.T) {
	var (
		mu     sync.Mutex
		fields []string
		file   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mr, err := r.MultipartReader()
		require.NoError(t, err)
		mu.Lock()
		defer mu.Unlock()
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			raw, _ := io.ReadAll(part)
			if part.FormName() == "file" {
				file = string(raw)
			}
			fields = append(fields, part.FormName())
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	up := media.Uploader{HTTP: plainDoer{client: srv.Client()}}
	target := shopify.StagedTarget{URL: srv.URL, Parameters: []shopify.StagedUploadParameter{
		{Name: "key", Value: "k"}, {Name: "policy", Value: "p"},
	}}
	err := up.Upload(context.Background(), target, media.Item{Name: "a.png", MimeType: "image/png", Data: []byte("bytes")})
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"key", "policy", "file"}, fields)
	require.Equal(t, "bytes", file)
}

func TestUploadAllStopsOnFailure(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 2 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	up := media.Uploader{HTTP: plainDoer{client: srv.Client()}}
	targets := []shopify.StagedTarget{{URL: srv.URL}, {URL: srv.URL}, {URL: srv.URL}}
	items := []media.Item{{Name: "1"}, {Name: "2"}, {Name: "3"}}
	err := up.UploadAll(context.Background(), targets, items)
	require.Error(t, err)
	require.Contains(t, err.Error(), "status: 403")
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 2, calls)
}
