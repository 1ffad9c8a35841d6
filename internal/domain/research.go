package domain

import (
	"fmt"
	"strings"
)

// SearchResult is one organic result of the web search.
type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// SearchReport is the outcome of a search: the formatted text handed to the
// writer plus the structured results behind it.
type SearchReport struct {
	Query       string
	Text        string
	Results     []SearchResult
	Placeholder bool
}

// PageExcerpt holds readable text pulled from a result page.
type PageExcerpt struct {
	URL   string
	Title string
	Text  string
}

// ResearchFindings is the output of the research stage for one card.
type ResearchFindings struct {
	Item        WorkItem
	Query       string
	Summary     string
	Sources     []SearchResult
	Excerpts    []PageExcerpt
	Placeholder bool
}

// Text renders the findings as plain text for prompts and artifact files.
func (f ResearchFindings) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", f.Item.Title)
	fmt.Fprintf(&b, "Query: %s\n\n", f.Query)
	b.WriteString(strings.TrimSpace(f.Summary))
	b.WriteString("\n")
	if len(f.Excerpts) > 0 {
		b.WriteString("\nPage excerpts:\n")
		for i, ex := range f.Excerpts {
			title := ex.Title
			if title == "" {
				title = ex.URL
			}
			fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n", i+1, title, ex.URL, ex.Text)
		}
	}
	return b.String()
}
