package pages

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	xerrors "BoardWriter/internal/errors"
)

const samplePage = `<html><head><title>  Agents   in production </title></head>
<body>
  <nav><p>Menu entry</p></nav>
  <article>
    <h1>Agents</h1>
    <p>Teams   ship small
       tool-using agents.</p>
    <p></p>
    <p>Evaluation comes first.</p>
  </article>
</body></html>`

func TestExcerpt(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "BoardWriter/1.0" {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		_, _ = io.WriteString(w, samplePage)
	}))
	defer srv.Close()

	ex, err := NewExtractor(srv.Client(), 0).Excerpt(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Excerpt: %v", err)
	}
	if ex.Title != "Agents in production" {
		t.Fatalf("unexpected title %q", ex.Title)
	}
	if ex.Text != "Teams ship small tool-using agents. Evaluation comes first." {
		t.Fatalf("unexpected text %q", ex.Text)
	}
	if ex.URL != srv.URL {
		t.Fatalf("unexpected url %q", ex.URL)
	}
}

func TestExcerptTruncates(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<p>"+strings.Repeat("word ", 100)+"</p>")
	}))
	defer srv.Close()

	ex, err := NewExtractor(srv.Client(), 20).Excerpt(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Excerpt: %v", err)
	}
	if ex.Text != "word word word word..." {
		t.Fatalf("unexpected text %q", ex.Text)
	}
}

func TestExcerptHTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewExtractor(srv.Client(), 0).Excerpt(context.Background(), srv.URL)
	remote, ok := xerrors.RemoteOf(err)
	if !ok || remote.StatusCode != http.StatusForbidden {
		t.Fatalf("expected remote 403, got %v", err)
	}
	if !errors.Is(err, xerrors.ErrRemote) {
		t.Fatalf("expected ErrRemote match")
	}
}
