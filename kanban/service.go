// Package kanban owns the board → column → card containment rules:
// policy limits, duplicate-name checks, cross-board move validation and
// the order bookkeeping on every structural mutation. Persistence and
// fan-out are collaborators behind interfaces.
package kanban

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/Matteo-Daniele/useTeam-PT/domain"
)

// Storage is the persistence collaborator. Implementations return
// (nil, nil) for lookups that do not resolve; multi-assignment order
// rewrites and card moves are committed as one atomic unit.
type Storage interface {
	InsertBoard(ctx context.Context, b *domain.Board) error
	Board(ctx context.Context, id string) (*domain.Board, error)
	Boards(ctx context.Context) ([]domain.Board, error)
	UpdateBoard(ctx context.Context, b *domain.Board) error
	DeleteBoard(ctx context.Context, id string) error

	InsertColumn(ctx context.Context, col *domain.Column) error
	Column(ctx context.Context, id string) (*domain.Column, error)
	ColumnsByBoard(ctx context.Context, boardID string) ([]domain.Column, error)
	UpdateColumn(ctx context.Context, col *domain.Column) error
	DeleteColumn(ctx context.Context, boardID, id string) error
	DeleteColumnsByBoard(ctx context.Context, boardID string) error
	UpdateColumnOrders(ctx context.Context, boardID string, orders []domain.OrderAssignment) error

	InsertCard(ctx context.Context, c *domain.Card) error
	Card(ctx context.Context, id string) (*domain.Card, error)
	CardsByBoard(ctx context.Context, boardID string) ([]domain.Card, error)
	CardsByColumn(ctx context.Context, columnID string) ([]domain.Card, error)
	UpdateCard(ctx context.Context, c *domain.Card) error
	DeleteCard(ctx context.Context, boardID, id string) error
	DeleteCardsByColumn(ctx context.Context, boardID, columnID string) error
	DeleteCardsByBoard(ctx context.Context, boardID string) error
	UpdateCardOrders(ctx context.Context, boardID string, orders []domain.OrderAssignment) error
	MoveCard(ctx context.Context, c *domain.Card, shifts []domain.OrderAssignment) error

	Snapshot(ctx context.Context, boardID string) (*domain.Snapshot, error)
}

// Broadcaster fans a mutation event out to every viewer of a board.
type Broadcaster interface {
	Broadcast(boardID, event string, payload any)
}

// Limits are the policy caps. They are business rules, not
// architectural constants.
type Limits struct {
	Boards          int
	ColumnsPerBoard int
	CardsPerColumn  int
}

func DefaultLimits() Limits {
	return Limits{Boards: 10, ColumnsPerBoard: 10, CardsPerColumn: 50}
}

type Service struct {
	store  Storage
	hub    Broadcaster
	limits Limits
	log    *log.Logger
}

func New(store Storage, hub Broadcaster, limits Limits, logger *log.Logger) *Service {
	return &Service{store: store, hub: hub, limits: limits, log: logger}
}

// Snapshot returns the full state of one board: the unit the client
// reconciler refetches on every signal.
func (s *Service) Snapshot(ctx context.Context, boardID string) (*domain.Snapshot, error) {
	snap, err := s.store.Snapshot(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, domain.NotFoundf("board %s not found", boardID)
	}
	return snap, nil
}

func columnItems(cols []domain.Column) []domain.OrderedItem {
	items := make([]domain.OrderedItem, len(cols))
	for i, c := range cols {
		items[i] = domain.OrderedItem{ID: c.ID, Order: c.Order}
	}
	return items
}

func cardItems(cards []domain.Card) []domain.OrderedItem {
	items := make([]domain.OrderedItem, len(cards))
	for i, c := range cards {
		items[i] = domain.OrderedItem{ID: c.ID, Order: c.Order}
	}
	return items
}
