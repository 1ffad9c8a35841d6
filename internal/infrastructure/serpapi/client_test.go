package serpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"BoardWriter/internal/config"
	"BoardWriter/internal/domain"
)

type memoryCache struct {
	data   map[string][]domain.SearchResult
	getErr error
	sets   int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string][]domain.SearchResult{}}
}

func (m *memoryCache) Get(_ context.Context, key string) ([]domain.SearchResult, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	r, ok := m.data[key]
	return r, ok, nil
}

func (m *memoryCache) Set(_ context.Context, key string, results []domain.SearchResult, _ time.Duration) error {
	m.sets++
	m.data[key] = results
	return nil
}

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

const threeResults = `{"organic_results":[
	{"title":"Agents in production","link":"https://a.example/1","snippet":"What teams ship"},
	{"title":"Tool use patterns","link":"https://a.example/2","snippet":"Planning loops"},
	{"title":"Evaluating agents","link":"https://a.example/3","snippet":"Benchmarks"},
	{"title":"Extra","link":"https://a.example/4","snippet":"Should be cut"}]}`

func TestSearchWithoutKeyReturnsPlaceholder(t *testing.T) {
	t.Parallel()

	client := NewClient(config.SearchConfig{}, nil)
	got := client.Search(context.Background(), "AI agents in 2025", 3)
	if !strings.HasPrefix(got, "[Placeholder] Research results for query: AI agents in 2025\n\n1. ") {
		t.Fatalf("unexpected placeholder: %q", got)
	}
	if !strings.Contains(got, "\n2. ") || !strings.Contains(got, "\n3. ") {
		t.Fatalf("placeholder should have three lines: %q", got)
	}
}

func TestSearchFormatsResults(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("engine") != "google" || q.Get("api_key") != "key" || q.Get("num") != "3" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if q.Get("q") != "AI agents in 2025" {
			t.Errorf("unexpected q: %s", q.Get("q"))
		}
		_, _ = io.WriteString(w, threeResults)
	})

	client := NewClient(config.SearchConfig{Endpoint: srv.URL, APIKey: "key"}, nil)
	report := client.Research(context.Background(), "AI agents in 2025", 0)

	want := "1. Agents in production\n   Link: https://a.example/1\n   Snippet: What teams ship\n\n" +
		"2. Tool use patterns\n   Link: https://a.example/2\n   Snippet: Planning loops\n\n" +
		"3. Evaluating agents\n   Link: https://a.example/3\n   Snippet: Benchmarks"
	if report.Text != want {
		t.Fatalf("unexpected text:\n%s", report.Text)
	}
	if report.Placeholder || len(report.Results) != 3 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestSearchNoResults(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"organic_results":[]}`)
	})

	client := NewClient(config.SearchConfig{Endpoint: srv.URL, APIKey: "key"}, nil)
	if got := client.Search(context.Background(), "nothing", 3); got != "No results found." {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestSearchFailuresFallBackToPlaceholder(t *testing.T) {
	t.Parallel()

	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"bad json": func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "<html>")
		},
		"api error": func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"error":"Invalid API key."}`)
		},
	}

	for name, handler := range cases {
		handler := handler
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			srv := newServer(t, handler)
			client := NewClient(config.SearchConfig{Endpoint: srv.URL, APIKey: "key"}, nil)
			report := client.Research(context.Background(), "q", 3)
			if !report.Placeholder || report.Text != Placeholder("q") {
				t.Fatalf("expected placeholder, got %+v", report)
			}
		})
	}
}

func TestSearchSiteFilter(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "rag site:reddit.com" {
			t.Errorf("unexpected q: %s", got)
		}
		_, _ = io.WriteString(w, threeResults)
	})

	client := NewClient(config.SearchConfig{Endpoint: srv.URL, APIKey: "key", Site: "reddit.com"}, nil)
	report := client.Research(context.Background(), "rag", 2)
	if report.Query != "rag" || len(report.Results) != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestSearchUsesCache(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = io.WriteString(w, threeResults)
	})

	cache := newMemoryCache()
	client := NewClient(config.SearchConfig{Endpoint: srv.URL, APIKey: "key"}, nil, WithCache(cache, time.Minute))

	first := client.Search(context.Background(), "agents", 3)
	second := client.Search(context.Background(), "agents", 3)
	if first != second {
		t.Fatalf("cached text differs:\n%s\n---\n%s", first, second)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected one upstream call, got %d", hits)
	}
	if cache.sets != 1 {
		t.Fatalf("expected one cache write, got %d", cache.sets)
	}
	if _, ok := cache.data[CacheKey("agents", 3)]; !ok {
		t.Fatalf("cache key missing")
	}
}

func TestSearchIgnoresCacheErrors(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, threeResults)
	})

	cache := newMemoryCache()
	cache.getErr = errors.New("redis down")
	client := NewClient(config.SearchConfig{Endpoint: srv.URL, APIKey: "key"}, nil, WithCache(cache, time.Minute))

	report := client.Research(context.Background(), "agents", 3)
	if report.Placeholder || len(report.Results) != 3 {
		t.Fatalf("cache error should not affect search: %+v", report)
	}
}

func TestCacheKey(t *testing.T) {
	t.Parallel()

	a := CacheKey("agents", 3)
	if !strings.HasPrefix(a, "boardwriter:search:") || len(a) != len("boardwriter:search:")+40 {
		t.Fatalf("unexpected key %s", a)
	}
	if a == CacheKey("agents", 5) {
		t.Fatalf("limit should change the key")
	}
}
