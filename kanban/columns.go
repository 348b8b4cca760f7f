package kanban

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/Matteo-Daniele/useTeam-PT/domain"
	"github.com/Matteo-Daniele/useTeam-PT/realtime"
)

type columnPayload struct {
	Column *domain.Column `json:"column"`
}

type columnDeletedPayload struct {
	ColumnID string `json:"columnId"`
}

type columnsReorderedPayload struct {
	BoardID      string                   `json:"boardId"`
	ColumnOrders []domain.OrderAssignment `json:"columnOrders"`
}

func (s *Service) CreateColumn(ctx context.Context, boardID, name string) (*domain.Column, error) {
	if err := domain.ValidateColumnName(name); err != nil {
		return nil, err
	}
	if _, err := s.BoardByID(ctx, boardID); err != nil {
		return nil, err
	}
	cols, err := s.store.ColumnsByBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if len(cols) >= s.limits.ColumnsPerBoard {
		return nil, domain.LimitExceededf("maximum %d columns allowed per board", s.limits.ColumnsPerBoard)
	}
	for _, c := range cols {
		if domain.SameName(c.Name, name) {
			return nil, domain.DuplicateNamef("column name already exists in this board")
		}
	}

	col := &domain.Column{
		ID:      uuid.NewString(),
		BoardID: boardID,
		Name:    name,
		Order:   domain.NextOrder(columnItems(cols)),
	}
	if err := s.store.InsertColumn(ctx, col); err != nil {
		return nil, err
	}
	s.hub.Broadcast(boardID, realtime.EventColumnCreated, columnPayload{Column: col})
	return col, nil
}

func (s *Service) ColumnByID(ctx context.Context, id string) (*domain.Column, error) {
	col, err := s.store.Column(ctx, id)
	if err != nil {
		return nil, err
	}
	if col == nil {
		return nil, domain.NotFoundf("column %s not found", id)
	}
	return col, nil
}

func (s *Service) BoardColumns(ctx context.Context, boardID string) ([]domain.Column, error) {
	if _, err := s.BoardByID(ctx, boardID); err != nil {
		return nil, err
	}
	cols, err := s.store.ColumnsByBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].Order < cols[j].Order })
	return cols, nil
}

func (s *Service) RenameColumn(ctx context.Context, id, name string) (*domain.Column, error) {
	if err := domain.ValidateColumnName(name); err != nil {
		return nil, err
	}
	col, err := s.ColumnByID(ctx, id)
	if err != nil {
		return nil, err
	}
	siblings, err := s.store.ColumnsByBoard(ctx, col.BoardID)
	if err != nil {
		return nil, err
	}
	for _, other := range siblings {
		if other.ID != id && domain.SameName(other.Name, name) {
			return nil, domain.DuplicateNamef("column name already exists in this board")
		}
	}
	col.Name = name
	if err := s.store.UpdateColumn(ctx, col); err != nil {
		return nil, err
	}
	s.hub.Broadcast(col.BoardID, realtime.EventColumnUpdated, columnPayload{Column: col})
	return col, nil
}

// DeleteColumn removes the column and its cards, then closes the order
// gap among the remaining columns so the board stays dense.
func (s *Service) DeleteColumn(ctx context.Context, id string) error {
	col, err := s.ColumnByID(ctx, id)
	if err != nil {
		return err
	}
	siblings, err := s.store.ColumnsByBoard(ctx, col.BoardID)
	if err != nil {
		return err
	}
	reindex := domain.PlanRemove(columnItems(siblings), id)

	if err := s.store.DeleteCardsByColumn(ctx, col.BoardID, id); err != nil {
		return err
	}
	if err := s.store.DeleteColumn(ctx, col.BoardID, id); err != nil {
		return err
	}
	if len(reindex) > 0 {
		if err := s.store.UpdateColumnOrders(ctx, col.BoardID, reindex); err != nil {
			return err
		}
	}
	s.hub.Broadcast(col.BoardID, realtime.EventColumnDeleted, columnDeletedPayload{ColumnID: id})
	return nil
}

// ReorderColumns applies a full-board column ordering. The payload must
// reference every column of the board exactly once with orders forming
// 0..N-1; it is then applied as an unconditional overwrite and
// broadcast as a single columns:reordered event.
func (s *Service) ReorderColumns(ctx context.Context, boardID string, orders []domain.OrderAssignment) error {
	if _, err := s.BoardByID(ctx, boardID); err != nil {
		return err
	}
	cols, err := s.store.ColumnsByBoard(ctx, boardID)
	if err != nil {
		return err
	}
	if err := domain.ValidateReorder(columnItems(cols), orders); err != nil {
		return err
	}
	if err := s.store.UpdateColumnOrders(ctx, boardID, orders); err != nil {
		return err
	}
	s.hub.Broadcast(boardID, realtime.EventColumnsReordered, columnsReorderedPayload{BoardID: boardID, ColumnOrders: orders})
	return nil
}
