package usecase

import (
	"context"
	"fmt"
	"strings"

	"BoardWriter/internal/crew"
	"BoardWriter/internal/domain"
	xerrors "BoardWriter/internal/errors"
	"BoardWriter/internal/ports"
)

type researchStage struct{ p *Pipeline }

func (s researchStage) Name() string                { return crew.TaskResearch }
func (s researchStage) Completes() domain.ItemState { return domain.StateResearched }

// Run searches for the rendered query and optionally pulls page excerpts.
// Search never fails; page failures are skipped.
func (s researchStage) Run(ctx context.Context, task *crew.Task, work *crew.Work) error {
	query, err := task.Description(work)
	if err != nil {
		return err
	}
	if query == "" {
		query = work.Item.Title
	}

	report := s.p.searcher.Research(ctx, query, s.p.opts.MaxResults)
	findings := domain.ResearchFindings{
		Item:        work.Item,
		Query:       query,
		Summary:     report.Text,
		Sources:     report.Results,
		Placeholder: report.Placeholder,
	}

	if s.p.pages != nil {
		for i, src := range report.Results {
			if i >= s.p.opts.PageExcerpts {
				break
			}
			excerpt, err := s.p.pages.Excerpt(ctx, src.Link)
			if err != nil {
				s.p.logger.Warn("page excerpt skipped", "url", src.Link, "error", err)
				continue
			}
			if excerpt.Text != "" {
				findings.Excerpts = append(findings.Excerpts, excerpt)
			}
		}
	}

	work.Findings = findings
	s.p.logger.Info("research done", "card_id", work.Item.ID, "sources", len(findings.Sources),
		"excerpts", len(findings.Excerpts), "placeholder", findings.Placeholder)
	s.p.appendArtifact(task, work.Item, findings.Text())
	return nil
}

type draftStage struct{ p *Pipeline }

func (s draftStage) Name() string                { return crew.TaskArticle }
func (s draftStage) Completes() domain.ItemState { return domain.StateDrafted }

// Run asks the writer for an article built from the findings.
func (s draftStage) Run(ctx context.Context, task *crew.Task, work *crew.Work) error {
	system, err := task.SystemPrompt(work)
	if err != nil {
		return err
	}
	instruction, err := task.Description(work)
	if err != nil {
		return err
	}
	expected, err := task.ExpectedOutput(work)
	if err != nil {
		return err
	}
	if expected != "" {
		instruction += "\n\nExpected output: " + expected
	}

	article, err := s.p.writer.Write(ctx, ports.WriteRequest{
		SystemPrompt: system,
		Instruction:  instruction,
		Findings:     work.Findings,
		Model:        work.Model,
	})
	if err != nil {
		if xerrors.CodeOf(err) != xerrors.CodeGeneration {
			return xerrors.Wrap(xerrors.CodeGeneration, err, "draft article")
		}
		return err
	}
	if strings.TrimSpace(article.Body) == "" {
		return xerrors.Newf(xerrors.CodeGeneration, "writer returned an empty article for card %s", work.Item.ID)
	}

	work.Article = article
	s.p.logger.Info("article drafted", "card_id", work.Item.ID, "title", article.Title, "chars", len(article.Body))
	s.p.appendArtifact(task, work.Item, article.Markdown())
	return nil
}

type publishStage struct{ p *Pipeline }

func (s publishStage) Name() string                { return crew.TaskPublish }
func (s publishStage) Completes() domain.ItemState { return domain.StatePublished }

// Run comments the article on the card, then moves the card to the done list.
func (s publishStage) Run(ctx context.Context, task *crew.Task, work *crew.Work) error {
	comment, err := task.Description(work)
	if err != nil {
		return err
	}
	if comment == "" {
		comment = work.Article.Markdown()
	}

	if err := s.p.board.AddComment(ctx, work.Item.ID, comment); err != nil {
		return err
	}
	if err := s.p.board.MoveCard(ctx, work.Item.ID, s.p.opts.DoneListID); err != nil {
		return fmt.Errorf("comment saved but move failed: %w", err)
	}
	s.p.logger.Info("card published", "card_id", work.Item.ID, "done_list", s.p.opts.DoneListID)
	return nil
}
