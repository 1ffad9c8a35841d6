package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"BoardWriter/internal/config"
	"BoardWriter/internal/crew"
	"BoardWriter/internal/domain"
	xerrors "BoardWriter/internal/errors"
	"BoardWriter/internal/logging"
	"BoardWriter/internal/ports"
)

// PipelineDeps wires all driven adapters into the pipeline. Ledger, Artifacts
// and Pages are optional.
type PipelineDeps struct {
	Board     ports.Board
	Searcher  ports.Searcher
	Pages     ports.PageFetcher
	Writer    ports.Writer
	Ledger    ports.RunLedger
	Artifacts ports.ArtifactSink
	Logger    *slog.Logger
}

// PipelineOptions carries the settings the stages need.
type PipelineOptions struct {
	DoneListID   string
	MaxResults   int
	PageExcerpts int
	Agents       map[string]config.AgentConfig
	Tasks        map[string]config.TaskConfig
}

// Report summarises one run.
type Report struct {
	RunID     string
	Published int
	Skipped   int
}

// Pipeline drives every card through research, draft and publish, one card at
// a time. The first failing stage aborts the run.
type Pipeline struct {
	board     ports.Board
	searcher  ports.Searcher
	pages     ports.PageFetcher
	writer    ports.Writer
	ledger    ports.RunLedger
	artifacts ports.ArtifactSink
	logger    *slog.Logger
	opts      PipelineOptions
	crew      *crew.Crew
	now       func() time.Time
}

// NewPipeline registers the stages and validates the crew roster against them.
func NewPipeline(deps PipelineDeps, opts PipelineOptions) (*Pipeline, error) {
	if deps.Board == nil || deps.Searcher == nil || deps.Writer == nil {
		return nil, xerrors.New(xerrors.CodeConfig, "pipeline requires board, searcher and writer")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	p := &Pipeline{
		board:     deps.Board,
		searcher:  deps.Searcher,
		pages:     deps.Pages,
		writer:    deps.Writer,
		ledger:    deps.Ledger,
		artifacts: deps.Artifacts,
		logger:    logger,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
	}

	registry := crew.NewRegistry()
	registry.Register(researchStage{p})
	registry.Register(draftStage{p})
	registry.Register(publishStage{p})

	c, err := crew.Build(opts.Agents, opts.Tasks, registry)
	if err != nil {
		return nil, err
	}
	p.crew = c
	return p, nil
}

// Process runs every item to the published state.
func (p *Pipeline) Process(ctx context.Context, run domain.Run, items []domain.WorkItem) (Report, error) {
	if strings.TrimSpace(p.opts.DoneListID) == "" {
		return Report{}, xerrors.New(xerrors.CodeConfig, "environment variable TRELLO_DONE_LIST_ID is not set")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = p.now()
	}
	if err := p.resetArtifacts(); err != nil {
		return Report{}, err
	}
	if p.ledger != nil {
		if err := p.ledger.StartRun(ctx, run); err != nil {
			return Report{}, fmt.Errorf("start run: %w", err)
		}
	}

	works := make([]*crew.Work, len(items))
	for i, item := range items {
		works[i] = &crew.Work{Item: item, State: domain.StatePending}
		if err := p.record(ctx, run.ID, i, works[i]); err != nil {
			return Report{}, p.finish(ctx, run.ID, err)
		}
	}

	report := Report{RunID: run.ID}
	for i, work := range works {
		if err := p.advance(ctx, run.ID, i, work, domain.StatePublished); err != nil {
			return report, p.finish(ctx, run.ID, err)
		}
		report.Published++
	}
	return report, p.finish(ctx, run.ID, nil)
}

// Resume continues a stored run from each card's last recorded state.
func (p *Pipeline) Resume(ctx context.Context, record domain.RunRecord) (Report, error) {
	if strings.TrimSpace(p.opts.DoneListID) == "" {
		return Report{}, xerrors.New(xerrors.CodeConfig, "environment variable TRELLO_DONE_LIST_ID is not set")
	}
	report := Report{RunID: record.Run.ID}
	for _, stored := range record.Items {
		work := &crew.Work{
			Item:     stored.Item,
			State:    stored.State,
			Findings: stored.Findings,
			Article:  stored.Article,
		}
		if work.State == "" {
			work.State = domain.StatePending
		}
		if work.State.Reached(domain.StatePublished) {
			report.Skipped++
			continue
		}
		p.logger.Info("resuming card", "card_id", work.Item.ID, "state", work.State)
		if err := p.advance(ctx, record.Run.ID, stored.Position, work, domain.StatePublished); err != nil {
			return report, p.finish(ctx, record.Run.ID, err)
		}
		report.Published++
	}
	return report, p.finish(ctx, record.Run.ID, nil)
}

// Draft researches and writes an article for one item without touching the
// board or the ledger. model overrides the configured writer model.
func (p *Pipeline) Draft(ctx context.Context, item domain.WorkItem, model string) (domain.Article, error) {
	work := &crew.Work{Item: item, State: domain.StatePending, Model: model}
	if err := p.advance(ctx, "", 0, work, domain.StateDrafted); err != nil {
		return domain.Article{}, err
	}
	return work.Article, nil
}

func (p *Pipeline) advance(ctx context.Context, runID string, pos int, work *crew.Work, target domain.ItemState) error {
	for _, task := range p.crew.Tasks() {
		completes := task.Stage.Completes()
		if work.State.Reached(completes) {
			continue
		}
		if !target.Reached(completes) {
			break
		}
		p.logger.Info("stage started", "stage", task.Name, "card_id", work.Item.ID, "title", work.Item.Title)
		if err := task.Stage.Run(ctx, task, work); err != nil {
			return fmt.Errorf("%s stage for card %s: %w", task.Name, work.Item.ID, err)
		}
		work.State = completes
		if err := p.record(ctx, runID, pos, work); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) record(ctx context.Context, runID string, pos int, work *crew.Work) error {
	if p.ledger == nil || runID == "" {
		return nil
	}
	err := p.ledger.RecordItem(ctx, domain.RunItem{
		RunID:     runID,
		Position:  pos,
		Item:      work.Item,
		State:     work.State,
		Findings:  work.Findings,
		Article:   work.Article,
		UpdatedAt: p.now(),
	})
	if err != nil {
		return fmt.Errorf("record card %s: %w", work.Item.ID, err)
	}
	return nil
}

func (p *Pipeline) finish(ctx context.Context, runID string, runErr error) error {
	if p.ledger == nil {
		return runErr
	}
	status, message := domain.RunSucceeded, ""
	if runErr != nil {
		status, message = domain.RunFailed, runErr.Error()
	}
	if err := p.ledger.FinishRun(ctx, runID, status, message); err != nil {
		p.logger.Error("cannot finish run", "run_id", runID, "error", err)
		if runErr == nil {
			return fmt.Errorf("finish run: %w", err)
		}
	}
	return runErr
}

func (p *Pipeline) resetArtifacts() error {
	if p.artifacts == nil {
		return nil
	}
	if err := p.artifacts.Reset(p.crew.OutputFiles()...); err != nil {
		return fmt.Errorf("reset artifacts: %w", err)
	}
	return nil
}

// ResetArtifacts truncates the artifact files; used by commands that only draft.
func (p *Pipeline) ResetArtifacts() error {
	return p.resetArtifacts()
}

func (p *Pipeline) appendArtifact(task *crew.Task, item domain.WorkItem, text string) {
	if p.artifacts == nil || task.OutputFile == "" {
		return
	}
	if err := p.artifacts.Append(task.OutputFile, item, text); err != nil {
		p.logger.Warn("cannot write artifact", "file", task.OutputFile, "error", err)
	}
}
