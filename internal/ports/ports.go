package ports

import (
	"context"
	"time"

	"BoardWriter/internal/domain"
)

// Board reads cards from and writes results back to the task board.
type Board interface {
	VerifyAccess(ctx context.Context) (domain.AccountIdentity, error)
	ListBoards(ctx context.Context) ([]domain.BoardSummary, error)
	VerifyBoardAccess(ctx context.Context, boardID string) (domain.BoardDetails, error)
	VerifyList(ctx context.Context, listID string) (domain.ListDetails, error)
	ListCards(ctx context.Context, listID string) ([]domain.WorkItem, error)
	AddComment(ctx context.Context, cardID, text string) error
	MoveCard(ctx context.Context, cardID, listID string) error
}

// Searcher runs web searches for the research stage. It never fails: outages
// degrade to placeholder text.
type Searcher interface {
	Research(ctx context.Context, query string, maxResults int) domain.SearchReport
}

// SearchCache stores raw search results between runs.
type SearchCache interface {
	Get(ctx context.Context, key string) ([]domain.SearchResult, bool, error)
	Set(ctx context.Context, key string, results []domain.SearchResult, ttl time.Duration) error
}

// PageFetcher pulls readable text from result pages.
type PageFetcher interface {
	Excerpt(ctx context.Context, url string) (domain.PageExcerpt, error)
}

// WriteRequest is everything the writer needs to draft one article.
type WriteRequest struct {
	SystemPrompt string
	Instruction  string
	Findings     domain.ResearchFindings
	Model        string
}

// Writer turns research findings into an article.
type Writer interface {
	Write(ctx context.Context, req WriteRequest) (domain.Article, error)
}

// RunLedger persists run progress so failed runs can be replayed.
type RunLedger interface {
	StartRun(ctx context.Context, run domain.Run) error
	RecordItem(ctx context.Context, item domain.RunItem) error
	FinishRun(ctx context.Context, runID string, status domain.RunStatus, runErr string) error
	LoadRun(ctx context.Context, runID string) (domain.RunRecord, error)
}

// ArtifactSink keeps the last run's research and article text for debugging.
// Reset truncates the named files.
type ArtifactSink interface {
	Reset(files ...string) error
	Append(file string, item domain.WorkItem, text string) error
}

// Notifier reports the outcome of a run to a chat channel.
type Notifier interface {
	PublishSummary(ctx context.Context, summary string) error
}
