package storage

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/teazle/autosocialai/internal/config"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestGCSImageStoreResizesAndUploads(t *testing.T) {
	t.Parallel()

	src := pngBytes(t, 40, 20)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(src)
	}))
	defer srv.Close()

	store := NewGCSImageStore(nil, config.StorageConfig{Bucket: "b", Folder: "/posts/", MaxDimension: 10}, nil)
	store.now = func() time.Time { return time.Unix(1700000000, 0) }

	var gotObject, gotType string
	var gotData []byte
	store.upload = func(_ context.Context, object string, data []byte, contentType string) error {
		gotObject, gotType, gotData = object, contentType, data
		return nil
	}

	url, err := store.Store(context.Background(), srv.URL+"/out.png", "item-7")
	require.NoError(t, err)
	require.Equal(t, "posts/item-7-1700000000.png", gotObject)
	require.Equal(t, "image/png", gotType)
	require.Equal(t, "https://storage.googleapis.com/b/posts/item-7-1700000000.png", url)

	cfg, err := png.DecodeConfig(bytes.NewReader(gotData))
	require.NoError(t, err)
	require.Equal(t, 10, cfg.Width)
	require.Equal(t, 5, cfg.Height)
}

func TestGCSImageStorePassesThroughWithoutBucket(t *testing.T) {
	t.Parallel()

	store := NewGCSImageStore(nil, config.StorageConfig{}, nil)
	url, err := store.Store(context.Background(), "https://replicate.delivery/x.png", "item")
	require.NoError(t, err)
	require.Equal(t, "https://replicate.delivery/x.png", url)
}

func TestGCSImageStoreDownloadFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	store := NewGCSImageStore(nil, config.StorageConfig{Bucket: "b", PublicBaseURL: "https://cdn.example.com/"}, nil)
	store.upload = func(context.Context, string, []byte, string) error {
		t.Fatal("upload must not be called")
		return nil
	}
	_, err := store.Store(context.Background(), srv.URL, "item")
	require.Error(t, err)
	require.Equal(t, "https://cdn.example.com/o.png", store.objectURL("o.png"))
}

func TestPrepareKeepsUnknownFormats(t *testing.T) {
	t.Parallel()

	store := NewGCSImageStore(nil, config.StorageConfig{MaxDimension: 10}, nil)
	raw := []byte("RIFF\x00\x00\x00\x00WEBPVP8 not really")
	data, contentType, ext := store.prepare(raw)
	require.Equal(t, raw, data)
	require.Equal(t, "image/webp", contentType)
	require.Equal(t, ".webp", ext)
}
