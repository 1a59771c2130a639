package social

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teazle/autosocialai/internal/domain"
	"github.com/teazle/autosocialai/internal/upstream"
)

type recorded struct {
	path string
	form map[string]string
	auth string
	body []byte
}

type recorder struct {
	mu   sync.Mutex
	reqs []recorded
}

func (r *recorder) add(req *http.Request) {
	rec := recorded{path: req.URL.Path, auth: req.Header.Get("Authorization"), form: map[string]string{}}
	if req.Header.Get("Content-Type") == "application/x-www-form-urlencoded" {
		_ = req.ParseForm()
		for k := range req.PostForm {
			rec.form[k] = req.PostForm.Get(k)
		}
	} else {
		var raw json.RawMessage
		_ = json.NewDecoder(req.Body).Decode(&raw)
		rec.body = raw
	}
	r.mu.Lock()
	r.reqs = append(r.reqs, rec)
	r.mu.Unlock()
}

func (r *recorder) all() []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recorded(nil), r.reqs...)
}

func TestFacebookPostsPhoto(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		_, _ = w.Write([]byte(`{"id":"photo_1","post_id":"page_1_post_9"}`))
	}))
	defer srv.Close()

	id, err := NewFacebookPublisher(srv.URL).Publish(context.Background(),
		domain.SocialAccount{ID: "a", PageID: "page_1", AccessToken: "tok"}, "Hello", "https://img/1.png")
	require.NoError(t, err)
	require.Equal(t, "page_1_post_9", id)

	reqs := rec.all()
	require.Len(t, reqs, 1)
	require.Equal(t, "/page_1/photos", reqs[0].path)
	require.Equal(t, "https://img/1.png", reqs[0].form["url"])
	require.Equal(t, "Hello", reqs[0].form["message"])
	require.Equal(t, "tok", reqs[0].form["access_token"])
}

func TestInstagramCreatesAndPublishesContainer(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		switch r.URL.Path {
		case "/ig_1/media":
			_, _ = w.Write([]byte(`{"id":"container_5"}`))
		case "/ig_1/media_publish":
			_, _ = w.Write([]byte(`{"id":"media_77"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := NewInstagramPublisher(srv.URL)
	require.Equal(t, domain.PlatformInstagram, p.Platform())

	id, err := p.Publish(context.Background(),
		domain.SocialAccount{ID: "a", BusinessID: "ig_1", AccessToken: "tok"}, "Caption", "https://img/2.png")
	require.NoError(t, err)
	require.Equal(t, "media_77", id)

	reqs := rec.all()
	require.Len(t, reqs, 2)
	require.Equal(t, "Caption", reqs[0].form["caption"])
	require.Equal(t, "container_5", reqs[1].form["creation_id"])

	_, err = p.Publish(context.Background(), domain.SocialAccount{BusinessID: "ig_1"}, "c", "")
	require.ErrorIs(t, err, ErrImageRequired)
}

func TestMetaErrorsKeepStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Error validating access token","code":190}}`))
	}))
	defer srv.Close()

	_, err := NewFacebookPublisher(srv.URL).Publish(context.Background(),
		domain.SocialAccount{PageID: "p", AccessToken: "expired"}, "x", "https://img")
	require.Error(t, err)
	require.True(t, upstream.IsUnauthorized(err))
	require.Contains(t, err.Error(), "Error validating access token")
}

func TestTikTokPullsPhotoFromURL(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		_, _ = w.Write([]byte(`{"data":{"publish_id":"v_pub_1"},"error":{"code":"ok","message":""}}`))
	}))
	defer srv.Close()

	id, err := NewTikTokPublisher(srv.URL).Publish(context.Background(),
		domain.SocialAccount{AccessToken: "tt-token"}, "Short and fun", "https://img/3.png")
	require.NoError(t, err)
	require.Equal(t, "v_pub_1", id)

	reqs := rec.all()
	require.Len(t, reqs, 1)
	require.Equal(t, "/post/publish/content/init/", reqs[0].path)
	require.Equal(t, "Bearer tt-token", reqs[0].auth)

	var body tiktokInit
	require.NoError(t, json.Unmarshal(reqs[0].body, &body))
	require.Equal(t, "PULL_FROM_URL", body.SourceInfo.Source)
	require.Equal(t, []string{"https://img/3.png"}, body.SourceInfo.PhotoImages)
	require.Equal(t, "PHOTO", body.MediaType)
}

func TestTikTokReportsEnvelopeErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{},"error":{"code":"spam_risk_too_many_posts","message":"daily cap"}}`))
	}))
	defer srv.Close()

	_, err := NewTikTokPublisher(srv.URL).Publish(context.Background(), domain.SocialAccount{AccessToken: "t"}, "c", "https://img")
	require.ErrorContains(t, err, "spam_risk_too_many_posts")
}

func TestTruncateCountsRunes(t *testing.T) {
	t.Parallel()

	require.Equal(t, "héllo", truncate("héllo wörld", 5))
	require.Equal(t, "short", truncate("short", 90))
}
