package api

import (
	"context"

	"github.com/Matteo-Daniele/useTeam-PT/domain"
	"github.com/Matteo-Daniele/useTeam-PT/kanban"
)

// Boards abstracts the board service for handlers.
type Boards interface {
	CreateBoard(ctx context.Context, name, description string) (*domain.Board, error)
	Boards(ctx context.Context) ([]domain.Board, error)
	BoardByID(ctx context.Context, id string) (*domain.Board, error)
	UpdateBoard(ctx context.Context, id string, patch kanban.BoardPatch) (*domain.Board, error)
	DeleteBoard(ctx context.Context, id string) error
	Snapshot(ctx context.Context, boardID string) (*domain.Snapshot, error)
	Stats(ctx context.Context, boardID string) (*kanban.BoardStats, error)

	CreateColumn(ctx context.Context, boardID, name string) (*domain.Column, error)
	BoardColumns(ctx context.Context, boardID string) ([]domain.Column, error)
	RenameColumn(ctx context.Context, id, name string) (*domain.Column, error)
	DeleteColumn(ctx context.Context, id string) error
	ReorderColumns(ctx context.Context, boardID string, orders []domain.OrderAssignment) error

	CreateCard(ctx context.Context, columnID, title, description string) (*domain.Card, error)
	BoardCards(ctx context.Context, boardID string) ([]domain.Card, error)
	ColumnCards(ctx context.Context, columnID string) ([]domain.Card, error)
	UpdateCard(ctx context.Context, id string, patch kanban.CardPatch) (*domain.Card, error)
	DeleteCard(ctx context.Context, id string) error
	MoveCard(ctx context.Context, cardID, toColumnID string, newOrder int) (*domain.Card, error)
	ReorderCards(ctx context.Context, columnID string, orders []domain.OrderAssignment) error
}

// Exporter accepts backlog export requests for asynchronous delivery.
type Exporter interface {
	Enqueue(ctx context.Context, boardID, boardName, email string, fields []string) (string, error)
}
