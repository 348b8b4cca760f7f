package kanban

import (
	"context"

	"github.com/google/uuid"

	"github.com/Matteo-Daniele/useTeam-PT/domain"
	"github.com/Matteo-Daniele/useTeam-PT/realtime"
)

type boardPayload struct {
	Board *domain.Board `json:"board"`
}

type boardDeletedPayload struct {
	BoardID string `json:"boardId"`
}

func (s *Service) CreateBoard(ctx context.Context, name, description string) (*domain.Board, error) {
	if err := domain.ValidateBoardName(name); err != nil {
		return nil, err
	}
	if err := domain.ValidateBoardDescription(description); err != nil {
		return nil, err
	}
	boards, err := s.store.Boards(ctx)
	if err != nil {
		return nil, err
	}
	if len(boards) >= s.limits.Boards {
		return nil, domain.LimitExceededf("maximum %d boards allowed", s.limits.Boards)
	}
	for _, b := range boards {
		if domain.SameName(b.Name, name) {
			return nil, domain.DuplicateNamef("board name already exists")
		}
	}

	board := &domain.Board{ID: uuid.NewString(), Name: name, Description: description}
	if err := s.store.InsertBoard(ctx, board); err != nil {
		return nil, err
	}
	s.hub.Broadcast(board.ID, realtime.EventBoardCreated, boardPayload{Board: board})
	return board, nil
}

func (s *Service) BoardByID(ctx context.Context, id string) (*domain.Board, error) {
	board, err := s.store.Board(ctx, id)
	if err != nil {
		return nil, err
	}
	if board == nil {
		return nil, domain.NotFoundf("board %s not found", id)
	}
	return board, nil
}

func (s *Service) Boards(ctx context.Context) ([]domain.Board, error) {
	return s.store.Boards(ctx)
}

// BoardPatch carries the updatable board fields; nil means unchanged.
type BoardPatch struct {
	Name        *string
	Description *string
}

func (s *Service) UpdateBoard(ctx context.Context, id string, patch BoardPatch) (*domain.Board, error) {
	board, err := s.BoardByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		if err := domain.ValidateBoardName(*patch.Name); err != nil {
			return nil, err
		}
		boards, err := s.store.Boards(ctx)
		if err != nil {
			return nil, err
		}
		for _, other := range boards {
			if other.ID != id && domain.SameName(other.Name, *patch.Name) {
				return nil, domain.DuplicateNamef("board name already exists")
			}
		}
		board.Name = *patch.Name
	}
	if patch.Description != nil {
		if err := domain.ValidateBoardDescription(*patch.Description); err != nil {
			return nil, err
		}
		board.Description = *patch.Description
	}
	if err := s.store.UpdateBoard(ctx, board); err != nil {
		return nil, err
	}
	s.hub.Broadcast(board.ID, realtime.EventBoardUpdated, boardPayload{Board: board})
	return board, nil
}

// DeleteBoard removes the board and everything on it. Cards go first,
// then columns, then the board itself, so no orphan ever references a
// missing parent.
func (s *Service) DeleteBoard(ctx context.Context, id string) error {
	if _, err := s.BoardByID(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteCardsByBoard(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteColumnsByBoard(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteBoard(ctx, id); err != nil {
		return err
	}
	s.hub.Broadcast(id, realtime.EventBoardDeleted, boardDeletedPayload{BoardID: id})
	return nil
}

// BoardStats summarizes card distribution for one board.
type BoardStats struct {
	TotalCards    int            `json:"totalCards"`
	CardsByColumn map[string]int `json:"cardsByColumn"`
}

// Stats resolves the board itself before counting, so asking for stats
// of a column id (or any other foreign id) fails with NotFound instead
// of returning an empty summary.
func (s *Service) Stats(ctx context.Context, boardID string) (*BoardStats, error) {
	if _, err := s.BoardByID(ctx, boardID); err != nil {
		return nil, err
	}
	cards, err := s.store.CardsByBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	stats := &BoardStats{TotalCards: len(cards), CardsByColumn: make(map[string]int)}
	for _, c := range cards {
		stats.CardsByColumn[c.ColumnID]++
	}
	return stats, nil
}
