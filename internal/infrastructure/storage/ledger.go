package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"BoardWriter/internal/config"
	"BoardWriter/internal/domain"
	xerrors "BoardWriter/internal/errors"
	"BoardWriter/internal/ports"
)

const (
	runsTable  = "runs"
	itemsTable = "run_items"
)

type dialect struct {
	driver      string
	placeholder sq.PlaceholderFormat
	schema      []string
	itemUpsert  string
}

var dialects = map[string]dialect{
	"sqlite": {
		driver:      "sqlite",
		placeholder: sq.Question,
		schema:      []string{sqliteRuns, sqliteItems},
		itemUpsert:  conflictUpsert,
	},
	"postgres": {
		driver:      "postgres",
		placeholder: sq.Dollar,
		schema:      []string{postgresRuns, postgresItems},
		itemUpsert:  conflictUpsert,
	},
	"mysql": {
		driver:      "mysql",
		placeholder: sq.Question,
		schema:      []string{mysqlRuns, mysqlItems},
		itemUpsert: `ON DUPLICATE KEY UPDATE title = VALUES(title), state = VALUES(state),
			findings = VALUES(findings), article = VALUES(article), updated_at = VALUES(updated_at)`,
	},
}

const conflictUpsert = `ON CONFLICT (run_id, card_id) DO UPDATE SET title = excluded.title, state = excluded.state,
	findings = excluded.findings, article = excluded.article, updated_at = excluded.updated_at`

const (
	sqliteRuns = `CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	command TEXT NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	started_at INTEGER NOT NULL,
	finished_at INTEGER NOT NULL DEFAULT 0
)`
	sqliteItems = `CREATE TABLE IF NOT EXISTS run_items (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	card_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	title TEXT NOT NULL,
	state TEXT NOT NULL,
	findings TEXT NOT NULL DEFAULT '',
	article TEXT NOT NULL DEFAULT '',
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (run_id, card_id)
)`
	postgresRuns = `CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	command TEXT NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	started_at BIGINT NOT NULL,
	finished_at BIGINT NOT NULL DEFAULT 0
)`
	postgresItems = `CREATE TABLE IF NOT EXISTS run_items (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	card_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	title TEXT NOT NULL,
	state TEXT NOT NULL,
	findings TEXT NOT NULL DEFAULT '',
	article TEXT NOT NULL DEFAULT '',
	updated_at BIGINT NOT NULL,
	PRIMARY KEY (run_id, card_id)
)`
	mysqlRuns = `CREATE TABLE IF NOT EXISTS runs (
	id VARCHAR(64) PRIMARY KEY,
	command VARCHAR(32) NOT NULL,
	status VARCHAR(16) NOT NULL,
	error TEXT NOT NULL,
	started_at BIGINT NOT NULL,
	finished_at BIGINT NOT NULL DEFAULT 0
)`
	mysqlItems = `CREATE TABLE IF NOT EXISTS run_items (
	run_id VARCHAR(64) NOT NULL,
	card_id VARCHAR(64) NOT NULL,
	position INT NOT NULL,
	title TEXT NOT NULL,
	state VARCHAR(16) NOT NULL,
	findings MEDIUMTEXT NOT NULL,
	article MEDIUMTEXT NOT NULL,
	updated_at BIGINT NOT NULL,
	PRIMARY KEY (run_id, card_id),
	FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
)`
)

// Ledger persists runs and per-card progress in a SQL database.
type Ledger struct {
	db      *sql.DB
	dialect dialect
	sb      sq.StatementBuilderType
	now     func() time.Time
}

var _ ports.RunLedger = (*Ledger)(nil)

// Open connects to the configured database. Supported drivers: sqlite, postgres, mysql.
func Open(ctx context.Context, cfg config.StorageConfig) (*Ledger, error) {
	d, ok := dialects[strings.ToLower(strings.TrimSpace(cfg.Driver))]
	if !ok {
		return nil, xerrors.Newf(xerrors.CodeConfig, "unsupported database driver %q", cfg.Driver)
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, xerrors.New(xerrors.CodeConfig, "database dsn must not be empty")
	}

	db, err := sql.Open(d.driver, cfg.DSN)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeConfig, err, "open "+d.driver)
	}
	if d.driver == "sqlite" {
		// pragmas are per connection
		db.SetMaxOpenConns(1)
		for _, stmt := range []string{"PRAGMA foreign_keys=ON;", "PRAGMA busy_timeout=5000;"} {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("set sqlite pragma %q: %w", stmt, err)
			}
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, xerrors.Wrap(xerrors.CodeTransport, err, "connect to "+d.driver)
	}
	return NewLedger(db, d.driver)
}

// NewLedger wraps an open database handle.
func NewLedger(db *sql.DB, driver string) (*Ledger, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, xerrors.Newf(xerrors.CodeConfig, "unsupported database driver %q", driver)
	}
	return &Ledger{
		db:      db,
		dialect: d,
		sb:      sq.StatementBuilder.PlaceholderFormat(d.placeholder),
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close releases the database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Migrate creates the ledger tables when missing.
func (l *Ledger) Migrate(ctx context.Context) error {
	for _, stmt := range l.dialect.schema {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}
	return nil
}

// StartRun records a new run in the running state.
func (l *Ledger) StartRun(ctx context.Context, run domain.Run) error {
	started := run.StartedAt
	if started.IsZero() {
		started = l.now()
	}
	_, err := l.sb.Insert(runsTable).
		Columns("id", "command", "status", "error", "started_at", "finished_at").
		Values(run.ID, run.Command, string(domain.RunRunning), "", started.UnixMilli(), 0).
		RunWith(l.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("start run %s: %w", run.ID, err)
	}
	return nil
}

// RecordItem upserts the progress of one card.
func (l *Ledger) RecordItem(ctx context.Context, item domain.RunItem) error {
	findings, err := encodeFindings(item.Findings)
	if err != nil {
		return err
	}
	article, err := encodeArticle(item.Article)
	if err != nil {
		return err
	}
	updated := item.UpdatedAt
	if updated.IsZero() {
		updated = l.now()
	}
	_, err = l.sb.Insert(itemsTable).
		Columns("run_id", "card_id", "position", "title", "state", "findings", "article", "updated_at").
		Values(item.RunID, item.Item.ID, item.Position, item.Item.Title, string(item.State), findings, article, updated.UnixMilli()).
		Suffix(l.dialect.itemUpsert).
		RunWith(l.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("record item %s/%s: %w", item.RunID, item.Item.ID, err)
	}
	return nil
}

// FinishRun stores the final status of a run.
func (l *Ledger) FinishRun(ctx context.Context, runID string, status domain.RunStatus, runErr string) error {
	res, err := l.sb.Update(runsTable).
		Set("status", string(status)).
		Set("error", runErr).
		Set("finished_at", l.now().UnixMilli()).
		Where(sq.Eq{"id": runID}).
		RunWith(l.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return xerrors.Newf(xerrors.CodeNotFound, "run %s not found", runID)
	}
	return nil
}

// LoadRun returns a run with its items in card order.
func (l *Ledger) LoadRun(ctx context.Context, runID string) (domain.RunRecord, error) {
	row := l.sb.Select("id", "command", "status", "error", "started_at", "finished_at").
		From(runsTable).
		Where(sq.Eq{"id": runID}).
		RunWith(l.db).
		QueryRowContext(ctx)

	record, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RunRecord{}, xerrors.Newf(xerrors.CodeNotFound, "run %s not found", runID)
	}
	if err != nil {
		return domain.RunRecord{}, fmt.Errorf("load run %s: %w", runID, err)
	}

	rows, err := l.sb.Select("card_id", "position", "title", "state", "findings", "article", "updated_at").
		From(itemsTable).
		Where(sq.Eq{"run_id": runID}).
		OrderBy("position ASC").
		RunWith(l.db).
		QueryContext(ctx)
	if err != nil {
		return domain.RunRecord{}, fmt.Errorf("load items of %s: %w", runID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item     domain.RunItem
			state    string
			findings string
			article  string
			updated  int64
		)
		if err := rows.Scan(&item.Item.ID, &item.Position, &item.Item.Title, &state, &findings, &article, &updated); err != nil {
			return domain.RunRecord{}, fmt.Errorf("scan item: %w", err)
		}
		item.RunID = runID
		item.State = domain.ItemState(state)
		item.UpdatedAt = time.UnixMilli(updated).UTC()
		if item.Findings, err = decodeFindings(findings); err != nil {
			return domain.RunRecord{}, err
		}
		if item.Article, err = decodeArticle(article); err != nil {
			return domain.RunRecord{}, err
		}
		record.Items = append(record.Items, item)
	}
	if err := rows.Err(); err != nil {
		return domain.RunRecord{}, fmt.Errorf("rows iteration: %w", err)
	}
	return record, nil
}

// LatestRuns lists the most recent runs without their items.
func (l *Ledger) LatestRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := l.sb.Select("id", "command", "status", "error", "started_at", "finished_at").
		From(runsTable).
		OrderBy("started_at DESC").
		Limit(uint64(limit)).
		RunWith(l.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []domain.RunRecord
	for rows.Next() {
		record, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (domain.RunRecord, error) {
	var (
		record   domain.RunRecord
		status   string
		started  int64
		finished int64
	)
	if err := s.Scan(&record.Run.ID, &record.Run.Command, &status, &record.Error, &started, &finished); err != nil {
		return domain.RunRecord{}, err
	}
	record.Status = domain.RunStatus(status)
	record.Run.StartedAt = time.UnixMilli(started).UTC()
	if finished > 0 {
		record.FinishedAt = time.UnixMilli(finished).UTC()
	}
	return record, nil
}

type storedArticle struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func encodeArticle(a domain.Article) (string, error) {
	if a.Title == "" && a.Body == "" {
		return "", nil
	}
	raw, err := json.Marshal(storedArticle{Title: a.Title, Body: a.Body})
	if err != nil {
		return "", fmt.Errorf("encode article: %w", err)
	}
	return string(raw), nil
}

func decodeArticle(raw string) (domain.Article, error) {
	if raw == "" {
		return domain.Article{}, nil
	}
	var stored storedArticle
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return domain.Article{}, fmt.Errorf("decode article: %w", err)
	}
	return domain.Article{Title: stored.Title, Body: stored.Body}, nil
}

func encodeFindings(f domain.ResearchFindings) (string, error) {
	if f.Query == "" && f.Summary == "" {
		return "", nil
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("encode findings: %w", err)
	}
	return string(raw), nil
}

func decodeFindings(raw string) (domain.ResearchFindings, error) {
	if raw == "" {
		return domain.ResearchFindings{}, nil
	}
	var f domain.ResearchFindings
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return domain.ResearchFindings{}, fmt.Errorf("decode findings: %w", err)
	}
	return f, nil
}
