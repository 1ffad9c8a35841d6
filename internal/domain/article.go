package domain

import "strings"

// Article is the write-up produced by the writer for one card.
type Article struct {
	Title string
	Body  string
}

// Markdown renders the article as posted to the board.
func (a Article) Markdown() string {
	title := strings.TrimSpace(a.Title)
	body := strings.TrimSpace(a.Body)
	if title == "" {
		return body
	}
	return "# " + title + "\n\n" + body
}
