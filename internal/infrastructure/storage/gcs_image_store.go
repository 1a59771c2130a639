package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/disintegration/imaging"
	"google.golang.org/api/option"

	"github.com/teazle/autosocialai/internal/config"
	"github.com/teazle/autosocialai/internal/ports"
)

const maxImageBytes = 20 << 20

type uploadFunc func(ctx context.Context, object string, data []byte, contentType string) error

// GCSImageStore copies generated images into a Cloud Storage bucket so that
// publish-time URLs do not expire with the generator's CDN links.
type GCSImageStore struct {
	bucket     string
	folder     string
	publicBase string
	maxDim     int
	http       *http.Client
	upload     uploadFunc
	now        func() time.Time
	logger     *slog.Logger
}

var _ ports.ImageStore = (*GCSImageStore)(nil)

// NewGCSClient prefers explicit credentials JSON and falls back to ADC.
func NewGCSClient(ctx context.Context, credentialsJSON string) (*gcs.Client, error) {
	if strings.TrimSpace(credentialsJSON) != "" {
		client, err := gcs.NewClient(ctx, option.WithCredentialsJSON([]byte(credentialsJSON)))
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		return client, nil
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return client, nil
}

// NewGCSImageStore builds a store. A nil client or empty bucket keeps the
// generator's URL as is.
func NewGCSImageStore(client *gcs.Client, cfg config.StorageConfig, logger *slog.Logger) *GCSImageStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &GCSImageStore{
		bucket:     cfg.Bucket,
		folder:     strings.Trim(cfg.Folder, "/"),
		publicBase: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		maxDim:     cfg.MaxDimension,
		http:       &http.Client{Timeout: 60 * time.Second},
		now:        time.Now,
		logger:     logger.With("component", "image_store"),
	}
	if client != nil && cfg.Bucket != "" {
		s.upload = func(ctx context.Context, object string, data []byte, contentType string) error {
			wc := client.Bucket(cfg.Bucket).Object(object).NewWriter(ctx)
			wc.ContentType = contentType
			wc.CacheControl = "public, max-age=31536000"
			if _, err := wc.Write(data); err != nil {
				_ = wc.Close()
				return fmt.Errorf("write object: %w", err)
			}
			if err := wc.Close(); err != nil {
				return fmt.Errorf("close writer: %w", err)
			}
			return nil
		}
	}
	return s
}

// Store downloads sourceURL, normalises it and uploads it under the item id.
func (s *GCSImageStore) Store(ctx context.Context, sourceURL, itemID string) (string, error) {
	if s.upload == nil {
		return sourceURL, nil
	}

	raw, err := s.download(ctx, sourceURL)
	if err != nil {
		return "", err
	}
	data, contentType, ext := s.prepare(raw)

	object := fmt.Sprintf("%s-%d%s", itemID, s.now().Unix(), ext)
	if s.folder != "" {
		object = path.Join(s.folder, object)
	}
	if err := s.upload(ctx, object, data, contentType); err != nil {
		return "", fmt.Errorf("upload %s: %w", object, err)
	}

	url := s.objectURL(object)
	s.logger.Info("image stored", "item_id", itemID, "object", object, "bytes", len(data))
	return url, nil
}

func (s *GCSImageStore) download(ctx context.Context, sourceURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download image: %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("download image: empty body")
	}
	return data, nil
}

// prepare shrinks oversized images to fit maxDim. Formats the decoder does
// not know are uploaded unchanged.
func (s *GCSImageStore) prepare(raw []byte) ([]byte, string, string) {
	contentType := http.DetectContentType(raw)
	ext := extensionFor(contentType)

	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		s.logger.Debug("image kept as is", "content_type", contentType, "error", err)
		return raw, contentType, ext
	}
	bounds := img.Bounds()
	if s.maxDim <= 0 || (bounds.Dx() <= s.maxDim && bounds.Dy() <= s.maxDim) {
		return raw, contentType, ext
	}

	resized := imaging.Fit(img, s.maxDim, s.maxDim, imaging.Lanczos)
	format, outType, outExt := imaging.PNG, "image/png", ".png"
	if contentType == "image/jpeg" {
		format, outType, outExt = imaging.JPEG, "image/jpeg", ".jpg"
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format); err != nil {
		s.logger.Warn("resize failed, uploading original", "error", err)
		return raw, contentType, ext
	}
	return buf.Bytes(), outType, outExt
}

func (s *GCSImageStore) objectURL(object string) string {
	if s.publicBase != "" {
		return s.publicBase + "/" + object
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, object)
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	return ""
}
