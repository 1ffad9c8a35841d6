package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"BoardWriter/internal/domain"
	xerrors "BoardWriter/internal/errors"
	"BoardWriter/internal/logging"
	"BoardWriter/internal/ports"
)

// EmptyQueueMessage is reported when the todo list has no cards.
const EmptyQueueMessage = "No cards found in the TODO list. Nothing to process."

// Target names the board and lists a run works on.
type Target struct {
	BoardID    string
	TodoListID string
	DoneListID string
}

// Inputs is everything a run needs before the first stage starts.
type Inputs struct {
	Board domain.BoardDetails
	List  domain.ListDetails
	Items []domain.WorkItem
}

// Preparer validates the board setup and fetches the queue.
type Preparer struct {
	board  ports.Board
	logger *slog.Logger
}

// NewPreparer wires the board client.
func NewPreparer(board ports.Board, logger *slog.Logger) *Preparer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Preparer{board: board, logger: logger}
}

// Prepare checks board and lists, then fetches the cards of the todo list.
// Nothing is fetched once a check fails.
func (p *Preparer) Prepare(ctx context.Context, target Target) (Inputs, error) {
	if strings.TrimSpace(target.BoardID) == "" {
		return Inputs{}, xerrors.New(xerrors.CodeConfig, "environment variable TRELLO_BOARD_ID is not set")
	}
	if strings.TrimSpace(target.TodoListID) == "" {
		return Inputs{}, xerrors.New(xerrors.CodeConfig, "environment variable TRELLO_TODO_LIST_ID is not set")
	}

	board, err := p.board.VerifyBoardAccess(ctx, target.BoardID)
	if err != nil {
		return Inputs{}, fmt.Errorf("verify board: %w", err)
	}
	p.logger.Info("board verified", "board", board.Name, "lists", len(board.Lists))

	for _, listID := range []string{target.TodoListID, target.DoneListID} {
		if listID == "" {
			continue
		}
		if !board.HasList(listID) {
			return Inputs{}, xerrors.Newf(xerrors.CodeConfig, "list %s not found in board %s", listID, target.BoardID)
		}
	}

	list, err := p.board.VerifyList(ctx, target.TodoListID)
	if err != nil {
		return Inputs{}, xerrors.Wrap(xerrors.CodeConfig, err, "cannot access list "+target.TodoListID)
	}

	items, err := p.board.ListCards(ctx, target.TodoListID)
	if err != nil {
		return Inputs{}, fmt.Errorf("fetch cards: %w", err)
	}
	if len(items) == 0 {
		return Inputs{}, xerrors.New(xerrors.CodeEmptyQueue, EmptyQueueMessage)
	}

	p.logger.Info("cards fetched", "list", list.Name, "count", len(items))
	return Inputs{Board: board, List: list, Items: items}, nil
}
