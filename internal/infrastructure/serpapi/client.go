package serpapi

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"BoardWriter/internal/config"
	"BoardWriter/internal/domain"
	xerrors "BoardWriter/internal/errors"
	"BoardWriter/internal/logging"
	"BoardWriter/internal/ports"
)

const (
	defaultEndpoint   = "https://serpapi.com/search.json"
	defaultEngine     = "google"
	defaultMaxResults = 3
	cacheKeyPrefix    = "boardwriter:search:"

	// NoResults is returned verbatim when the engine finds nothing.
	NoResults = "No results found."
)

// Client implements ports.Searcher against SerpApi.
type Client struct {
	endpoint   string
	engine     string
	apiKey     string
	site       string
	httpClient *http.Client
	cache      ports.SearchCache
	cacheTTL   time.Duration
	logger     *slog.Logger
}

var _ ports.Searcher = (*Client)(nil)

// Option tweaks a Client.
type Option func(*Client)

// WithCache enables result caching.
func WithCache(cache ports.SearchCache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cache
		c.cacheTTL = ttl
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient builds a client from configuration. A missing API key is not an
// error: every search then returns placeholder text.
func NewClient(cfg config.SearchConfig, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.Discard()
	}
	c := &Client{
		endpoint:   strings.TrimSpace(cfg.Endpoint),
		engine:     strings.TrimSpace(cfg.Engine),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		site:       strings.TrimSpace(cfg.Site),
		httpClient: &http.Client{Timeout: 20 * time.Second},
		logger:     logger,
	}
	if c.endpoint == "" {
		c.endpoint = defaultEndpoint
	}
	if c.engine == "" {
		c.engine = defaultEngine
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search returns formatted search results, or placeholder text on any failure.
func (c *Client) Search(ctx context.Context, query string, maxResults int) string {
	return c.Research(ctx, query, maxResults).Text
}

// Research is Search plus the structured results behind the text.
func (c *Client) Research(ctx context.Context, query string, maxResults int) domain.SearchReport {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	if c.apiKey == "" {
		c.logger.Warn("search api key not set, using placeholder results", "query", query)
		return placeholder(query)
	}

	q := query
	if c.site != "" {
		q = strings.TrimSpace(query + " site:" + c.site)
	}
	key := CacheKey(q, maxResults)

	if results, ok := c.cached(ctx, key); ok {
		c.logger.Debug("search cache hit", "query", q)
		return report(query, results)
	}

	results, err := c.fetch(ctx, q, maxResults)
	if err != nil {
		c.logger.Warn("search failed, using placeholder results", "query", q, "error", err)
		return placeholder(query)
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, results, c.cacheTTL); err != nil {
			c.logger.Warn("search cache write failed", "error", err)
		}
	}
	return report(query, results)
}

func (c *Client) cached(ctx context.Context, key string) ([]domain.SearchResult, bool) {
	if c.cache == nil {
		return nil, false
	}
	results, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("search cache read failed", "error", err)
		return nil, false
	}
	return results, ok
}

type searchResponse struct {
	Error          string `json:"error"`
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
}

func (c *Client) fetch(ctx context.Context, query string, maxResults int) ([]domain.SearchResult, error) {
	params := url.Values{}
	params.Set("engine", c.engine)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(maxResults))
	params.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var urlErr *url.Error
		if stdErrors.As(err, &urlErr) {
			urlErr.URL = c.endpoint
		}
		return nil, xerrors.Wrap(xerrors.CodeTransport, err, "search request")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &xerrors.RemoteError{Method: http.MethodGet, URL: c.endpoint, StatusCode: resp.StatusCode, Body: string(payload)}
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if decoded.Error != "" && len(decoded.OrganicResults) == 0 && !strings.Contains(decoded.Error, "hasn't returned any results") {
		return nil, fmt.Errorf("search api: %s", decoded.Error)
	}

	results := make([]domain.SearchResult, 0, len(decoded.OrganicResults))
	for i, r := range decoded.OrganicResults {
		if i >= maxResults {
			break
		}
		results = append(results, domain.SearchResult{Title: r.Title, Link: r.Link, Snippet: r.Snippet})
	}
	return results, nil
}

// Format renders results the way the writer receives them.
func Format(results []domain.SearchResult) string {
	if len(results) == 0 {
		return NoResults
	}
	parts := make([]string, 0, len(results))
	for i, r := range results {
		parts = append(parts, fmt.Sprintf("%d. %s\n   Link: %s\n   Snippet: %s", i+1, r.Title, r.Link, r.Snippet))
	}
	return strings.Join(parts, "\n\n")
}

// Placeholder is the text used when real search is unavailable.
func Placeholder(query string) string {
	return fmt.Sprintf("[Placeholder] Research results for query: %s\n\n"+
		"1. This is a placeholder result while the search integration is unavailable.\n"+
		"2. The core board functionality remains operational.\n"+
		"3. For actual research results, please configure a valid SerpApi API key.", query)
}

// CacheKey derives the cache key for a query and result limit.
func CacheKey(query string, maxResults int) string {
	sum := sha1.Sum([]byte(query + "|" + strconv.Itoa(maxResults)))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

func placeholder(query string) domain.SearchReport {
	return domain.SearchReport{Query: query, Text: Placeholder(query), Placeholder: true}
}

func report(query string, results []domain.SearchResult) domain.SearchReport {
	return domain.SearchReport{Query: query, Text: Format(results), Results: results}
}
