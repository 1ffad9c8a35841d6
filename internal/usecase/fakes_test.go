package usecase

import (
	"context"
	"fmt"
	"time"

	"BoardWriter/internal/config"
	"BoardWriter/internal/domain"
	"BoardWriter/internal/ports"
)

type call struct {
	op   string
	card string
	arg  string
}

type fakeBoard struct {
	board    domain.BoardDetails
	boardErr error
	listErr  error
	cards    []domain.WorkItem
	cardsErr error
	moveErr  error
	calls    []call
}

func (b *fakeBoard) VerifyAccess(context.Context) (domain.AccountIdentity, error) {
	return domain.AccountIdentity{Username: "writer"}, nil
}

func (b *fakeBoard) ListBoards(context.Context) ([]domain.BoardSummary, error) {
	return []domain.BoardSummary{{ID: b.board.ID, Name: b.board.Name}}, nil
}

func (b *fakeBoard) VerifyBoardAccess(_ context.Context, boardID string) (domain.BoardDetails, error) {
	b.calls = append(b.calls, call{op: "VerifyBoardAccess", arg: boardID})
	return b.board, b.boardErr
}

func (b *fakeBoard) VerifyList(_ context.Context, listID string) (domain.ListDetails, error) {
	b.calls = append(b.calls, call{op: "VerifyList", arg: listID})
	if b.listErr != nil {
		return domain.ListDetails{}, b.listErr
	}
	return domain.ListDetails{ID: listID, Name: "To Do"}, nil
}

func (b *fakeBoard) ListCards(_ context.Context, listID string) ([]domain.WorkItem, error) {
	b.calls = append(b.calls, call{op: "ListCards", arg: listID})
	return b.cards, b.cardsErr
}

func (b *fakeBoard) AddComment(_ context.Context, cardID, text string) error {
	b.calls = append(b.calls, call{op: "AddComment", card: cardID, arg: text})
	return nil
}

func (b *fakeBoard) MoveCard(_ context.Context, cardID, listID string) error {
	b.calls = append(b.calls, call{op: "MoveCard", card: cardID, arg: listID})
	return b.moveErr
}

func (b *fakeBoard) ops() []string {
	out := make([]string, 0, len(b.calls))
	for _, c := range b.calls {
		out = append(out, c.op)
	}
	return out
}

type fakeSearcher struct {
	queries []string
}

func (s *fakeSearcher) Research(_ context.Context, query string, maxResults int) domain.SearchReport {
	s.queries = append(s.queries, query)
	results := []domain.SearchResult{{Title: "Result for " + query, Link: "https://example.org/" + fmt.Sprint(len(s.queries)), Snippet: "snippet"}}
	return domain.SearchReport{Query: query, Text: "1. Result for " + query, Results: results}
}

type fakePages struct {
	urls []string
	err  error
}

func (f *fakePages) Excerpt(_ context.Context, url string) (domain.PageExcerpt, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return domain.PageExcerpt{}, f.err
	}
	return domain.PageExcerpt{URL: url, Title: "Page", Text: "excerpt text"}, nil
}

type fakeWriter struct {
	requests []ports.WriteRequest
	failOn   string
	err      error
}

func (w *fakeWriter) Write(_ context.Context, req ports.WriteRequest) (domain.Article, error) {
	w.requests = append(w.requests, req)
	if w.err != nil && req.Findings.Item.ID == w.failOn {
		return domain.Article{}, w.err
	}
	return domain.Article{Title: "On " + req.Findings.Item.Title, Body: "Body for " + req.Findings.Item.ID}, nil
}

type fakeLedger struct {
	started  []domain.Run
	items    []domain.RunItem
	finished map[string]domain.RunStatus
	errors   map[string]string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{finished: map[string]domain.RunStatus{}, errors: map[string]string{}}
}

func (l *fakeLedger) StartRun(_ context.Context, run domain.Run) error {
	l.started = append(l.started, run)
	return nil
}

func (l *fakeLedger) RecordItem(_ context.Context, item domain.RunItem) error {
	l.items = append(l.items, item)
	return nil
}

func (l *fakeLedger) FinishRun(_ context.Context, runID string, status domain.RunStatus, runErr string) error {
	l.finished[runID] = status
	l.errors[runID] = runErr
	return nil
}

func (l *fakeLedger) LoadRun(context.Context, string) (domain.RunRecord, error) {
	return domain.RunRecord{}, nil
}

func (l *fakeLedger) states(cardID string) []domain.ItemState {
	var out []domain.ItemState
	for _, it := range l.items {
		if it.Item.ID == cardID {
			out = append(out, it.State)
		}
	}
	return out
}

type fakeArtifacts struct {
	resets  int
	reset   []string
	entries map[string][]string
}

func (a *fakeArtifacts) Reset(files ...string) error {
	a.resets++
	a.reset = files
	a.entries = map[string][]string{}
	return nil
}

func (a *fakeArtifacts) Append(file string, item domain.WorkItem, text string) error {
	if a.entries == nil {
		a.entries = map[string][]string{}
	}
	a.entries[file] = append(a.entries[file], item.ID)
	return nil
}

func testOptions() PipelineOptions {
	return PipelineOptions{
		DoneListID: "done",
		MaxResults: 3,
		Agents: map[string]config.AgentConfig{
			"researcher":    {Role: "Research Analyst", Goal: "Research {{.Item.Title}}"},
			"writer":        {Role: "Technical Writer", Goal: "Write clearly"},
			"board_updater": {Role: "Board Manager"},
		},
		Tasks: map[string]config.TaskConfig{
			"research": {Agent: "researcher", Description: "{{.Item.Title}}", OutputFile: "research.txt"},
			"article":  {Agent: "writer", Description: "Write about {{.Item.Title}}", ExpectedOutput: "A short article", OutputFile: "article.txt"},
			"publish":  {Agent: "board_updater", Description: "{{.Article.Markdown}}"},
		},
	}
}

var fixedTime = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
