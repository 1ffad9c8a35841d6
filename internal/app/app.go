package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"BoardWriter/internal/config"
	"BoardWriter/internal/domain"
	xerrors "BoardWriter/internal/errors"
	"BoardWriter/internal/infrastructure/artifacts"
	"BoardWriter/internal/infrastructure/cache"
	"BoardWriter/internal/infrastructure/llm"
	"BoardWriter/internal/infrastructure/pages"
	"BoardWriter/internal/infrastructure/serpapi"
	"BoardWriter/internal/infrastructure/storage"
	"BoardWriter/internal/infrastructure/telegram"
	"BoardWriter/internal/infrastructure/trello"
	"BoardWriter/internal/logging"
	"BoardWriter/internal/ports"
	"BoardWriter/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	board    ports.Board
	preparer *usecase.Preparer
	pipeline *usecase.Pipeline
	ledger   *storage.Ledger
	cache    *cache.RedisCache
	notifier ports.Notifier
	now      func() time.Time
}

var errNoBoard = xerrors.New(xerrors.CodeConfig, "environment variables TRELLO_API_KEY and TRELLO_API_TOKEN are not set")

// Deps lets callers replace the remote adapters; nil fields are built from config.
type Deps struct {
	Board    ports.Board
	Searcher ports.Searcher
	Writer   ports.Writer
	Notifier ports.Notifier
}

// New validates the settings the command needs and builds every component.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, deps Deps, reqs ...config.Requirement) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	if err := cfg.Validate(reqs...); err != nil {
		return nil, err
	}
	baseLogger.Debug("configuration loaded", "config", cfg.String())

	a := &Application{
		cfg:      cfg,
		logger:   baseLogger,
		notifier: deps.Notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}

	a.board = deps.Board
	credential := domain.BoardCredential{Key: cfg.Trello.APIKey, Token: cfg.Trello.APIToken}
	if a.board == nil && credential.Valid() {
		client, err := trello.NewClient(cfg.Trello.BaseURL, credential, nil, baseLogger.With("component", "trello"))
		if err != nil {
			return nil, err
		}
		a.board = client
	}

	if cfg.Storage.Driver != "" {
		l, err := storage.Open(ctx, cfg.Storage)
		if err != nil {
			return nil, err
		}
		a.ledger = l
		if err := l.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	if a.notifier == nil && cfg.Notifications.Telegram.BotToken != "" && cfg.Notifications.Telegram.ChatID != "" {
		a.notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	// commands that only read the ledger run without board credentials
	if a.board == nil {
		return a, nil
	}
	if err := a.buildPipeline(ctx, deps); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *Application) buildPipeline(ctx context.Context, deps Deps) error {
	cfg := a.cfg
	searcher := deps.Searcher
	if searcher == nil {
		var opts []serpapi.Option
		if cfg.Cache.Redis.Addr != "" {
			rc, err := cache.NewRedisCache(ctx, cfg.Cache.Redis)
			if err != nil {
				a.logger.Warn("search cache disabled", "error", err)
			} else {
				a.cache = rc
				opts = append(opts, serpapi.WithCache(rc, time.Duration(cfg.Cache.Redis.TTLMinutes)*time.Minute))
			}
		}
		searcher = serpapi.NewClient(cfg.Search, a.logger.With("component", "search"), opts...)
	}

	writer := deps.Writer
	if writer == nil {
		writer = llm.NewChatGPTClient(cfg.ChatGPT)
	}

	var fetcher ports.PageFetcher
	if cfg.Research.PageExcerpts > 0 {
		fetcher = pages.NewExtractor(nil, cfg.Research.ExcerptChars)
	}

	var ledger ports.RunLedger
	if a.ledger != nil {
		ledger = a.ledger
	}

	pipeline, err := usecase.NewPipeline(usecase.PipelineDeps{
		Board:     a.board,
		Searcher:  searcher,
		Pages:     fetcher,
		Writer:    writer,
		Ledger:    ledger,
		Artifacts: artifacts.NewFiles(cfg.Artifacts.Dir),
		Logger:    a.logger.With("component", "pipeline"),
	}, usecase.PipelineOptions{
		DoneListID:   cfg.Trello.DoneListID,
		MaxResults:   cfg.Search.MaxResults,
		PageExcerpts: cfg.Research.PageExcerpts,
		Agents:       cfg.Agents,
		Tasks:        cfg.Tasks,
	})
	if err != nil {
		return err
	}
	a.pipeline = pipeline
	a.preparer = usecase.NewPreparer(a.board, a.logger.With("component", "prepare"))
	return nil
}

// Close releases database and cache connections.
func (a *Application) Close() {
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			a.logger.Warn("close ledger", "error", err)
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("close cache", "error", err)
		}
	}
}

// Run prepares the queue and publishes every card once.
func (a *Application) Run(ctx context.Context) (usecase.Report, error) {
	inputs, err := a.prepare(ctx, true)
	if err != nil {
		return usecase.Report{}, err
	}

	run := domain.Run{ID: uuid.NewString(), Command: "run", StartedAt: a.now()}
	a.logger.Info("run started", "run_id", run.ID, "cards", len(inputs.Items))

	report, err := a.pipeline.Process(ctx, run, inputs.Items)
	a.notify(ctx, run.ID, report.Published, err)
	if err != nil {
		return report, err
	}
	a.logger.Info("run finished", "run_id", run.ID, "published", report.Published)
	return report, nil
}

// Replay resumes a stored run.
func (a *Application) Replay(ctx context.Context, runID string) (usecase.Report, error) {
	if a.ledger == nil {
		return usecase.Report{}, xerrors.New(xerrors.CodeConfig, "replay requires a run ledger (DATABASE_DRIVER, DATABASE_DSN)")
	}
	if a.pipeline == nil {
		return usecase.Report{}, errNoBoard
	}
	record, err := a.ledger.LoadRun(ctx, runID)
	if err != nil {
		return usecase.Report{}, err
	}
	if record.Status == domain.RunSucceeded {
		a.logger.Info("run already succeeded, nothing to replay", "run_id", runID)
		return usecase.Report{RunID: runID, Skipped: len(record.Items)}, nil
	}

	a.logger.Info("replaying run", "run_id", runID, "status", record.Status, "cards", len(record.Items))
	report, err := a.pipeline.Resume(ctx, record)
	a.notify(ctx, runID, report.Published, err)
	return report, err
}

// Runs lists the latest runs from the ledger.
func (a *Application) Runs(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if a.ledger == nil {
		return nil, xerrors.New(xerrors.CodeConfig, "listing runs requires a run ledger (DATABASE_DRIVER, DATABASE_DSN)")
	}
	return a.ledger.LatestRuns(ctx, limit)
}

// TrainingDraft is one generated article kept for review.
type TrainingDraft struct {
	Iteration int    `yaml:"iteration"`
	CardID    string `yaml:"cardId"`
	Card      string `yaml:"card"`
	Title     string `yaml:"title"`
	Body      string `yaml:"body"`
}

// Train drafts every card iterations times and writes the drafts to file as
// YAML. The board is only read.
func (a *Application) Train(ctx context.Context, iterations int, file string) ([]TrainingDraft, error) {
	if iterations <= 0 {
		return nil, xerrors.New(xerrors.CodeConfig, "iterations must be positive")
	}
	inputs, err := a.prepare(ctx, false)
	if err != nil {
		return nil, err
	}
	if err := a.pipeline.ResetArtifacts(); err != nil {
		return nil, err
	}

	var drafts []TrainingDraft
	for i := 1; i <= iterations; i++ {
		for _, item := range inputs.Items {
			article, err := a.pipeline.Draft(ctx, item, "")
			if err != nil {
				return drafts, err
			}
			drafts = append(drafts, TrainingDraft{Iteration: i, CardID: item.ID, Card: item.Title, Title: article.Title, Body: article.Body})
		}
		a.logger.Info("training iteration finished", "iteration", i, "drafts", len(drafts))
	}

	raw, err := yaml.Marshal(drafts)
	if err != nil {
		return drafts, fmt.Errorf("encode drafts: %w", err)
	}
	if err := os.WriteFile(file, raw, 0o644); err != nil {
		return drafts, fmt.Errorf("write %s: %w", file, err)
	}
	return drafts, nil
}

// Test drafts every card iterations times with the given model and prints
// timing and article size per draft.
func (a *Application) Test(ctx context.Context, iterations int, model string, out io.Writer) error {
	if iterations <= 0 {
		return xerrors.New(xerrors.CodeConfig, "iterations must be positive")
	}
	inputs, err := a.prepare(ctx, false)
	if err != nil {
		return err
	}
	if err := a.pipeline.ResetArtifacts(); err != nil {
		return err
	}

	var total time.Duration
	for i := 1; i <= iterations; i++ {
		for _, item := range inputs.Items {
			start := time.Now()
			article, err := a.pipeline.Draft(ctx, item, model)
			if err != nil {
				return err
			}
			elapsed := time.Since(start)
			total += elapsed
			fmt.Fprintf(out, "iteration %d  card %s  %s  %d chars\n", i, item.ID, elapsed.Round(time.Millisecond), len(article.Markdown()))
		}
	}
	drafts := iterations * len(inputs.Items)
	fmt.Fprintf(out, "model %s: %d draft(s), average %s\n", model, drafts, (total / time.Duration(drafts)).Round(time.Millisecond))
	return nil
}

func (a *Application) prepare(ctx context.Context, withDone bool) (usecase.Inputs, error) {
	if a.pipeline == nil {
		return usecase.Inputs{}, errNoBoard
	}
	who, err := a.board.VerifyAccess(ctx)
	if err != nil {
		return usecase.Inputs{}, err
	}
	a.logger.Info("authenticated", "username", who.Username)

	boards, err := a.board.ListBoards(ctx)
	if err != nil {
		return usecase.Inputs{}, fmt.Errorf("list boards: %w", err)
	}
	names := make([]string, 0, len(boards))
	for _, b := range boards {
		names = append(names, b.Name)
	}
	a.logger.Debug("accessible boards", "count", len(boards), "names", names)

	target := usecase.Target{BoardID: a.cfg.Trello.BoardID, TodoListID: a.cfg.Trello.TodoListID}
	if withDone {
		target.DoneListID = a.cfg.Trello.DoneListID
	}
	return a.preparer.Prepare(ctx, target)
}

func (a *Application) notify(ctx context.Context, runID string, published int, runErr error) {
	if a.notifier == nil {
		return
	}
	if err := a.notifier.PublishSummary(ctx, telegram.Summary(runID, published, runErr)); err != nil {
		a.logger.Warn("run summary not sent", "error", err)
	}
}
