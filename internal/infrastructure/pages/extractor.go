package pages

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"BoardWriter/internal/domain"
	xerrors "BoardWriter/internal/errors"
	"BoardWriter/internal/ports"
)

const (
	userAgent       = "BoardWriter/1.0"
	defaultMaxChars = 1200
)

// Extractor downloads result pages and keeps their readable paragraph text.
type Extractor struct {
	client   *http.Client
	maxChars int
}

var _ ports.PageFetcher = (*Extractor)(nil)

// NewExtractor wires an HTTP client; maxChars defaults to 1200.
func NewExtractor(client *http.Client, maxChars int) *Extractor {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	return &Extractor{client: client, maxChars: maxChars}
}

// Excerpt returns the page title and the first maxChars characters of its paragraphs.
func (e *Extractor) Excerpt(ctx context.Context, pageURL string) (domain.PageExcerpt, error) {
	doc, err := e.fetchDocument(ctx, pageURL)
	if err != nil {
		return domain.PageExcerpt{}, err
	}

	title := collapse(doc.Find("title").First().Text())

	root := doc.Find("article")
	if root.Length() == 0 {
		root = doc.Find("main")
	}
	if root.Length() == 0 {
		root = doc.Selection
	}

	var parts []string
	root.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := collapse(p.Text()); text != "" {
			parts = append(parts, text)
		}
	})

	return domain.PageExcerpt{
		URL:   pageURL,
		Title: title,
		Text:  truncate(strings.Join(parts, " "), e.maxChars),
	}, nil
}

func (e *Extractor) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeTransport, err, "request page")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &xerrors.RemoteError{Method: http.MethodGet, URL: pageURL, StatusCode: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return strings.TrimSpace(string(runes[:maxChars])) + "..."
}
