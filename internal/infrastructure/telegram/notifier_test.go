package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNotifySendsMessage(t *testing.T) {
	t.Parallel()

	got := make(chan [3]string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		got <- [3]string{r.URL.Path, r.PostForm.Get("chat_id"), r.PostForm.Get("text")}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier("123:abc", "-100")
	n.apiBase = srv.URL
	if err := n.Notify(context.Background(), "item 42 needs manual review"); err != nil {
		t.Fatalf("notify: %v", err)
	}

	req := <-got
	if req[0] != "/bot123:abc/sendMessage" {
		t.Fatalf("path = %q", req[0])
	}
	if req[1] != "-100" || req[2] != "item 42 needs manual review" {
		t.Fatalf("unexpected form: %v", req)
	}
}

func TestNotifyTruncatesLongMessages(t *testing.T) {
	t.Parallel()

	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		got <- r.PostForm.Get("text")
	}))
	defer srv.Close()

	n := NewNotifier("t", "c")
	n.apiBase = srv.URL
	if err := n.Notify(context.Background(), strings.Repeat("x", 5000)); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if l := len([]rune(<-got)); l != maxMessageLen {
		t.Fatalf("length = %d, want %d", l, maxMessageLen)
	}
}

func TestNotifyErrors(t *testing.T) {
	t.Parallel()

	if err := NewNotifier("", "").Notify(context.Background(), "x"); !errors.Is(err, ErrMisconfigured) {
		t.Fatalf("got %v, want ErrMisconfigured", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()
	n := NewNotifier("t", "c")
	n.apiBase = srv.URL
	if err := n.Notify(context.Background(), "x"); err == nil {
		t.Fatal("expected error on 400")
	}
}
