package social

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/teazle/autosocialai/internal/domain"
	"github.com/teazle/autosocialai/internal/ports"
)

const metaService = "meta"

// MetaPublisher posts to a Facebook page or an Instagram business account
// through the Graph API.
type MetaPublisher struct {
	platform domain.Platform
	baseURL  string
	client   *http.Client
}

var _ ports.Publisher = (*MetaPublisher)(nil)

// NewFacebookPublisher posts photos to account.PageID.
func NewFacebookPublisher(baseURL string) *MetaPublisher {
	return newMetaPublisher(domain.PlatformFacebook, baseURL)
}

// NewInstagramPublisher posts media to account.BusinessID.
func NewInstagramPublisher(baseURL string) *MetaPublisher {
	return newMetaPublisher(domain.PlatformInstagram, baseURL)
}

func newMetaPublisher(p domain.Platform, baseURL string) *MetaPublisher {
	return &MetaPublisher{
		platform: p,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Platform reports the destination.
func (m *MetaPublisher) Platform() domain.Platform {
	return m.platform
}

// Publish posts the caption and image and returns the platform post id.
func (m *MetaPublisher) Publish(ctx context.Context, account domain.SocialAccount, caption, imageURL string) (string, error) {
	if m.platform == domain.PlatformInstagram {
		return m.publishInstagram(ctx, account, caption, imageURL)
	}
	return m.publishFacebook(ctx, account, caption, imageURL)
}

func (m *MetaPublisher) publishFacebook(ctx context.Context, account domain.SocialAccount, caption, imageURL string) (string, error) {
	if account.PageID == "" {
		return "", fmt.Errorf("facebook account %s has no page id", account.ID)
	}
	form := url.Values{}
	form.Set("access_token", account.AccessToken)
	endpoint := fmt.Sprintf("%s/%s/feed", m.baseURL, account.PageID)
	if imageURL != "" {
		endpoint = fmt.Sprintf("%s/%s/photos", m.baseURL, account.PageID)
		form.Set("url", imageURL)
		form.Set("published", "true")
	}
	form.Set("message", caption)

	var out struct {
		ID     string `json:"id"`
		PostID string `json:"post_id"`
	}
	if err := m.postForm(ctx, endpoint, form, &out); err != nil {
		return "", fmt.Errorf("facebook publish: %w", err)
	}
	if out.PostID != "" {
		return out.PostID, nil
	}
	return out.ID, nil
}

func (m *MetaPublisher) publishInstagram(ctx context.Context, account domain.SocialAccount, caption, imageURL string) (string, error) {
	if imageURL == "" {
		return "", fmt.Errorf("instagram publish: %w", ErrImageRequired)
	}
	if account.BusinessID == "" {
		return "", fmt.Errorf("instagram account %s has no business id", account.ID)
	}

	container := url.Values{}
	container.Set("image_url", imageURL)
	container.Set("caption", caption)
	container.Set("access_token", account.AccessToken)
	var created struct {
		ID string `json:"id"`
	}
	if err := m.postForm(ctx, fmt.Sprintf("%s/%s/media", m.baseURL, account.BusinessID), container, &created); err != nil {
		return "", fmt.Errorf("instagram container: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("instagram container: empty creation id")
	}

	publish := url.Values{}
	publish.Set("creation_id", created.ID)
	publish.Set("access_token", account.AccessToken)
	var published struct {
		ID string `json:"id"`
	}
	if err := m.postForm(ctx, fmt.Sprintf("%s/%s/media_publish", m.baseURL, account.BusinessID), publish, &published); err != nil {
		return "", fmt.Errorf("instagram publish: %w", err)
	}
	return published.ID, nil
}

func (m *MetaPublisher) postForm(ctx context.Context, endpoint string, form url.Values, v any) error {
	req, err := newRequest(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return err
	}
	return send(m.client, req, metaService, v)
}
