package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/teazle/autosocialai/internal/domain"
	"github.com/teazle/autosocialai/internal/ports"
)

const (
	tiktokService  = "tiktok"
	tiktokTitleMax = 90
)

// TikTokPublisher creates photo posts that TikTok pulls from the image URL.
type TikTokPublisher struct {
	baseURL string
	base    *http.Client
}

var _ ports.Publisher = (*TikTokPublisher)(nil)

// NewTikTokPublisher builds a publisher for the content posting API.
func NewTikTokPublisher(baseURL string) *TikTokPublisher {
	return &TikTokPublisher{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		base:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Platform reports the destination.
func (t *TikTokPublisher) Platform() domain.Platform {
	return domain.PlatformTikTok
}

type tiktokInit struct {
	PostInfo   tiktokPostInfo   `json:"post_info"`
	SourceInfo tiktokSourceInfo `json:"source_info"`
	PostMode   string           `json:"post_mode"`
	MediaType  string           `json:"media_type"`
}

type tiktokPostInfo struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	PrivacyLevel   string `json:"privacy_level"`
	DisableComment bool   `json:"disable_comment"`
	AutoAddMusic   bool   `json:"auto_add_music"`
}

type tiktokSourceInfo struct {
	Source          string   `json:"source"`
	PhotoCoverIndex int      `json:"photo_cover_index"`
	PhotoImages     []string `json:"photo_images"`
}

// Publish starts a direct photo post and returns TikTok's publish id.
func (t *TikTokPublisher) Publish(ctx context.Context, account domain.SocialAccount, caption, imageURL string) (string, error) {
	if imageURL == "" {
		return "", fmt.Errorf("tiktok publish: %w", ErrImageRequired)
	}

	payload, err := json.Marshal(tiktokInit{
		PostInfo: tiktokPostInfo{
			Title:        truncate(caption, tiktokTitleMax),
			Description:  caption,
			PrivacyLevel: "PUBLIC_TO_EVERYONE",
			AutoAddMusic: true,
		},
		SourceInfo: tiktokSourceInfo{
			Source:      "PULL_FROM_URL",
			PhotoImages: []string{imageURL},
		},
		PostMode:  "DIRECT_POST",
		MediaType: "PHOTO",
	})
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := newRequest(ctx, http.MethodPost, t.baseURL+"/post/publish/content/init/", bytes.NewReader(payload), "application/json; charset=UTF-8")
	if err != nil {
		return "", err
	}

	var out struct {
		Data struct {
			PublishID string `json:"publish_id"`
		} `json:"data"`
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := send(t.client(ctx, account.AccessToken), req, tiktokService, &out); err != nil {
		return "", fmt.Errorf("tiktok publish: %w", err)
	}
	if out.Error.Code != "" && out.Error.Code != "ok" {
		return "", fmt.Errorf("tiktok publish: %s: %s", out.Error.Code, out.Error.Message)
	}
	if out.Data.PublishID == "" {
		return "", fmt.Errorf("tiktok publish: empty publish id")
	}
	return out.Data.PublishID, nil
}

// client attaches the account's bearer token to every request.
func (t *TikTokPublisher) client(ctx context.Context, token string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, t.base)
	c := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
	c.Timeout = t.base.Timeout
	return c
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
