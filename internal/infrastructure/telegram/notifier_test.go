package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	xerrors "BoardWriter/internal/errors"
)

func TestPublishSummary(t *testing.T) {
	t.Parallel()

	var gotPath, gotChat, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotChat = r.PostForm.Get("chat_id")
		gotText = r.PostForm.Get("text")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier("bot-token", "42").WithAPIBase(srv.URL)
	if err := n.PublishSummary(context.Background(), Summary("run-1", 2, nil)); err != nil {
		t.Fatalf("PublishSummary: %v", err)
	}
	if gotPath != "/botbot-token/sendMessage" || gotChat != "42" {
		t.Fatalf("unexpected request path=%s chat=%s", gotPath, gotChat)
	}
	if gotText != "BoardWriter run run-1: 2 card(s) published" {
		t.Fatalf("unexpected text %q", gotText)
	}
}

func TestPublishSummaryErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false}`))
	}))
	defer srv.Close()

	err := NewNotifier("t", "c").WithAPIBase(srv.URL).PublishSummary(context.Background(), "x")
	remote, ok := xerrors.RemoteOf(err)
	if !ok || remote.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected remote 400, got %v", err)
	}

	err = NewNotifier("", "").PublishSummary(context.Background(), "x")
	if !errors.Is(err, xerrors.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestPublishSummaryTransportErrorHidesToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	err := NewNotifier("secret-token", "42").WithAPIBase(base).PublishSummary(context.Background(), "x")
	if !errors.Is(err, xerrors.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		t.Fatalf("cause lost: %v", err)
	}
	if urlErr.URL != base+"/sendMessage" {
		t.Fatalf("unexpected url in error: %s", urlErr.URL)
	}
	if strings.Contains(err.Error(), "secret-token") {
		t.Fatalf("bot token leaked: %v", err)
	}
}

func TestSummaryOnFailure(t *testing.T) {
	t.Parallel()

	got := Summary("r", 1, errors.New("boom"))
	if got != "BoardWriter run r failed after 1 card(s) published: boom" {
		t.Fatalf("unexpected summary %q", got)
	}
}
