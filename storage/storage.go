// Package storage persists boards, columns and cards in Azure Table
// Storage. Columns and cards are partitioned by board id so that the
// multi-entity order rewrites a move produces commit as a single
// transaction: readers never observe a half-applied shift.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"github.com/Matteo-Daniele/useTeam-PT/domain"
)

// boards live in a single well-known partition; there are few of them.
const boardPartition = "board"

// Store provides access to the underlying table storage.
type Store struct {
	boards  *aztables.Client
	columns *aztables.Client
	cards   *aztables.Client
}

// New creates a Store from the given connection string.
func New(connStr, boardsTable, columnsTable, cardsTable string) (*Store, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &Store{
		boards:  svc.NewClient(boardsTable),
		columns: svc.NewClient(columnsTable),
		cards:   svc.NewClient(cardsTable),
	}, nil
}

// EnsureTables creates the given tables if they do not exist yet.
func EnsureTables(ctx context.Context, connStr string, names ...string) error {
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, nil)
	if err != nil {
		return err
	}
	for _, name := range names {
		if name == "" {
			continue
		}
		c := svc.NewClient(name)
		_, err := c.CreateTable(ctx, nil)
		if err != nil {
			var respErr *azcore.ResponseError
			if !(errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists)) {
				return err
			}
		}
	}
	return nil
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == 404
}

type boardEntity struct {
	aztables.Entity
	Name        string `json:"Name"`
	Description string `json:"Description"`
	CreatedAt   int64  `json:"CreatedAt"`
	UpdatedAt   int64  `json:"UpdatedAt"`
}

type columnEntity struct {
	aztables.Entity
	Name      string `json:"Name"`
	Order     int    `json:"Order"`
	CreatedAt int64  `json:"CreatedAt"`
	UpdatedAt int64  `json:"UpdatedAt"`
}

type cardEntity struct {
	aztables.Entity
	ColumnID    string `json:"ColumnId"`
	Title       string `json:"Title"`
	Description string `json:"Description"`
	Order       int    `json:"Order"`
	CreatedAt   int64  `json:"CreatedAt"`
	UpdatedAt   int64  `json:"UpdatedAt"`
}

func boardFromEntity(ent boardEntity) domain.Board {
	return domain.Board{
		ID:          ent.RowKey,
		Name:        ent.Name,
		Description: ent.Description,
		CreatedAt:   time.UnixMilli(ent.CreatedAt).UTC(),
		UpdatedAt:   time.UnixMilli(ent.UpdatedAt).UTC(),
	}
}

func columnFromEntity(ent columnEntity) domain.Column {
	return domain.Column{
		ID:        ent.RowKey,
		BoardID:   ent.PartitionKey,
		Name:      ent.Name,
		Order:     ent.Order,
		CreatedAt: time.UnixMilli(ent.CreatedAt).UTC(),
		UpdatedAt: time.UnixMilli(ent.UpdatedAt).UTC(),
	}
}

func cardFromEntity(ent cardEntity) domain.Card {
	return domain.Card{
		ID:          ent.RowKey,
		BoardID:     ent.PartitionKey,
		ColumnID:    ent.ColumnID,
		Title:       ent.Title,
		Description: ent.Description,
		Order:       ent.Order,
		CreatedAt:   time.UnixMilli(ent.CreatedAt).UTC(),
		UpdatedAt:   time.UnixMilli(ent.UpdatedAt).UTC(),
	}
}

func (s *Store) InsertBoard(ctx context.Context, b *domain.Board) error {
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	data, err := json.Marshal(boardEntity{
		Entity:      aztables.Entity{PartitionKey: boardPartition, RowKey: b.ID},
		Name:        b.Name,
		Description: b.Description,
		CreatedAt:   b.CreatedAt.UnixMilli(),
		UpdatedAt:   b.UpdatedAt.UnixMilli(),
	})
	if err != nil {
		return err
	}
	_, err = s.boards.AddEntity(ctx, data, nil)
	return err
}

func (s *Store) Board(ctx context.Context, id string) (*domain.Board, error) {
	resp, err := s.boards.GetEntity(ctx, boardPartition, id, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var ent boardEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return nil, err
	}
	b := boardFromEntity(ent)
	return &b, nil
}

func (s *Store) Boards(ctx context.Context) ([]domain.Board, error) {
	filter := "PartitionKey eq '" + boardPartition + "'"
	pager := s.boards.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	boards := []domain.Board{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent boardEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			boards = append(boards, boardFromEntity(ent))
		}
	}
	return boards, nil
}

func (s *Store) UpdateBoard(ctx context.Context, b *domain.Board) error {
	b.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(boardEntity{
		Entity:      aztables.Entity{PartitionKey: boardPartition, RowKey: b.ID},
		Name:        b.Name,
		Description: b.Description,
		CreatedAt:   b.CreatedAt.UnixMilli(),
		UpdatedAt:   b.UpdatedAt.UnixMilli(),
	})
	if err != nil {
		return err
	}
	_, err = s.boards.UpsertEntity(ctx, data, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

func (s *Store) DeleteBoard(ctx context.Context, id string) error {
	_, err := s.boards.DeleteEntity(ctx, boardPartition, id, nil)
	if isNotFound(err) {
		return nil
	}
	return err
}

func (s *Store) InsertColumn(ctx context.Context, col *domain.Column) error {
	now := time.Now().UTC()
	col.CreatedAt, col.UpdatedAt = now, now
	data, err := json.Marshal(columnEntity{
		Entity:    aztables.Entity{PartitionKey: col.BoardID, RowKey: col.ID},
		Name:      col.Name,
		Order:     col.Order,
		CreatedAt: col.CreatedAt.UnixMilli(),
		UpdatedAt: col.UpdatedAt.UnixMilli(),
	})
	if err != nil {
		return err
	}
	_, err = s.columns.AddEntity(ctx, data, nil)
	return err
}

// Column resolves a column by id alone. The partition key is the board
// id, which callers do not have at this point, so this is a cross
// partition query on RowKey.
func (s *Store) Column(ctx context.Context, id string) (*domain.Column, error) {
	filter := "RowKey eq '" + id + "'"
	pager := s.columns.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent columnEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			col := columnFromEntity(ent)
			return &col, nil
		}
	}
	return nil, nil
}

func (s *Store) ColumnsByBoard(ctx context.Context, boardID string) ([]domain.Column, error) {
	filter := "PartitionKey eq '" + boardID + "'"
	pager := s.columns.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	cols := []domain.Column{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent columnEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			cols = append(cols, columnFromEntity(ent))
		}
	}
	return cols, nil
}

func (s *Store) UpdateColumn(ctx context.Context, col *domain.Column) error {
	col.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(columnEntity{
		Entity:    aztables.Entity{PartitionKey: col.BoardID, RowKey: col.ID},
		Name:      col.Name,
		Order:     col.Order,
		CreatedAt: col.CreatedAt.UnixMilli(),
		UpdatedAt: col.UpdatedAt.UnixMilli(),
	})
	if err != nil {
		return err
	}
	_, err = s.columns.UpsertEntity(ctx, data, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

func (s *Store) DeleteColumn(ctx context.Context, boardID, id string) error {
	_, err := s.columns.DeleteEntity(ctx, boardID, id, nil)
	if isNotFound(err) {
		return nil
	}
	return err
}

func (s *Store) DeleteColumnsByBoard(ctx context.Context, boardID string) error {
	cols, err := s.ColumnsByBoard(ctx, boardID)
	if err != nil {
		return err
	}
	var actions []aztables.TransactionAction
	for _, c := range cols {
		data, err := json.Marshal(aztables.Entity{PartitionKey: boardID, RowKey: c.ID})
		if err != nil {
			return err
		}
		actions = append(actions, aztables.TransactionAction{ActionType: aztables.TransactionTypeDelete, Entity: data})
	}
	return submitBatched(ctx, s.columns, actions)
}

// UpdateColumnOrders rewrites the order of several columns of one board
// as a single transaction.
func (s *Store) UpdateColumnOrders(ctx context.Context, boardID string, orders []domain.OrderAssignment) error {
	actions, err := orderMergeActions(boardID, orders)
	if err != nil {
		return err
	}
	return submitBatched(ctx, s.columns, actions)
}

func (s *Store) InsertCard(ctx context.Context, c *domain.Card) error {
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	data, err := json.Marshal(cardEntity{
		Entity:      aztables.Entity{PartitionKey: c.BoardID, RowKey: c.ID},
		ColumnID:    c.ColumnID,
		Title:       c.Title,
		Description: c.Description,
		Order:       c.Order,
		CreatedAt:   c.CreatedAt.UnixMilli(),
		UpdatedAt:   c.UpdatedAt.UnixMilli(),
	})
	if err != nil {
		return err
	}
	_, err = s.cards.AddEntity(ctx, data, nil)
	return err
}

func (s *Store) Card(ctx context.Context, id string) (*domain.Card, error) {
	filter := "RowKey eq '" + id + "'"
	pager := s.cards.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent cardEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			card := cardFromEntity(ent)
			return &card, nil
		}
	}
	return nil, nil
}

func (s *Store) CardsByBoard(ctx context.Context, boardID string) ([]domain.Card, error) {
	filter := "PartitionKey eq '" + boardID + "'"
	return s.queryCards(ctx, filter)
}

func (s *Store) CardsByColumn(ctx context.Context, columnID string) ([]domain.Card, error) {
	filter := "ColumnId eq '" + columnID + "'"
	return s.queryCards(ctx, filter)
}

func (s *Store) queryCards(ctx context.Context, filter string) ([]domain.Card, error) {
	pager := s.cards.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	cards := []domain.Card{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent cardEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			cards = append(cards, cardFromEntity(ent))
		}
	}
	return cards, nil
}

func (s *Store) UpdateCard(ctx context.Context, c *domain.Card) error {
	c.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(cardEntity{
		Entity:      aztables.Entity{PartitionKey: c.BoardID, RowKey: c.ID},
		ColumnID:    c.ColumnID,
		Title:       c.Title,
		Description: c.Description,
		Order:       c.Order,
		CreatedAt:   c.CreatedAt.UnixMilli(),
		UpdatedAt:   c.UpdatedAt.UnixMilli(),
	})
	if err != nil {
		return err
	}
	_, err = s.cards.UpsertEntity(ctx, data, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

func (s *Store) DeleteCard(ctx context.Context, boardID, id string) error {
	_, err := s.cards.DeleteEntity(ctx, boardID, id, nil)
	if isNotFound(err) {
		return nil
	}
	return err
}

func (s *Store) DeleteCardsByColumn(ctx context.Context, boardID, columnID string) error {
	cards, err := s.CardsByColumn(ctx, columnID)
	if err != nil {
		return err
	}
	var actions []aztables.TransactionAction
	for _, c := range cards {
		data, err := json.Marshal(aztables.Entity{PartitionKey: boardID, RowKey: c.ID})
		if err != nil {
			return err
		}
		actions = append(actions, aztables.TransactionAction{ActionType: aztables.TransactionTypeDelete, Entity: data})
	}
	return submitBatched(ctx, s.cards, actions)
}

func (s *Store) DeleteCardsByBoard(ctx context.Context, boardID string) error {
	cards, err := s.CardsByBoard(ctx, boardID)
	if err != nil {
		return err
	}
	var actions []aztables.TransactionAction
	for _, c := range cards {
		data, err := json.Marshal(aztables.Entity{PartitionKey: boardID, RowKey: c.ID})
		if err != nil {
			return err
		}
		actions = append(actions, aztables.TransactionAction{ActionType: aztables.TransactionTypeDelete, Entity: data})
	}
	return submitBatched(ctx, s.cards, actions)
}

// UpdateCardOrders rewrites the order of several cards of one board as
// a single transaction.
func (s *Store) UpdateCardOrders(ctx context.Context, boardID string, orders []domain.OrderAssignment) error {
	actions, err := orderMergeActions(boardID, orders)
	if err != nil {
		return err
	}
	return submitBatched(ctx, s.cards, actions)
}

// MoveCard commits the moved card together with the order shifts of its
// neighbours in one transaction. Both columns of a cross-column move
// share the board partition, so the whole rewrite is atomic.
func (s *Store) MoveCard(ctx context.Context, c *domain.Card, shifts []domain.OrderAssignment) error {
	c.UpdatedAt = time.Now().UTC()
	cardData, err := json.Marshal(cardEntity{
		Entity:      aztables.Entity{PartitionKey: c.BoardID, RowKey: c.ID},
		ColumnID:    c.ColumnID,
		Title:       c.Title,
		Description: c.Description,
		Order:       c.Order,
		CreatedAt:   c.CreatedAt.UnixMilli(),
		UpdatedAt:   c.UpdatedAt.UnixMilli(),
	})
	if err != nil {
		return err
	}
	actions := []aztables.TransactionAction{
		{ActionType: aztables.TransactionTypeUpdateReplace, Entity: cardData},
	}
	shiftActions, err := orderMergeActions(c.BoardID, shifts)
	if err != nil {
		return err
	}
	actions = append(actions, shiftActions...)
	return submitBatched(ctx, s.cards, actions)
}

func (s *Store) Snapshot(ctx context.Context, boardID string) (*domain.Snapshot, error) {
	board, err := s.Board(ctx, boardID)
	if err != nil || board == nil {
		return nil, err
	}
	cols, err := s.ColumnsByBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	cards, err := s.CardsByBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	return &domain.Snapshot{Board: *board, Columns: cols, Cards: cards}, nil
}

func orderMergeActions(boardID string, orders []domain.OrderAssignment) ([]aztables.TransactionAction, error) {
	now := time.Now().UnixMilli()
	actions := make([]aztables.TransactionAction, 0, len(orders))
	for _, o := range orders {
		data, err := json.Marshal(map[string]any{
			"PartitionKey": boardID,
			"RowKey":       o.ID,
			"Order":        o.Order,
			"UpdatedAt":    now,
		})
		if err != nil {
			return nil, err
		}
		actions = append(actions, aztables.TransactionAction{ActionType: aztables.TransactionTypeUpdateMerge, Entity: data})
	}
	return actions, nil
}

// transactionLimit is the Azure Tables cap on actions per batch. Order
// rewrite scopes stay far below it; only whole-board deletes can
// exceed it, and those do not need cross-batch atomicity.
const transactionLimit = 100

func submitBatched(ctx context.Context, client *aztables.Client, actions []aztables.TransactionAction) error {
	for len(actions) > 0 {
		n := len(actions)
		if n > transactionLimit {
			n = transactionLimit
		}
		if _, err := client.SubmitTransaction(ctx, actions[:n], nil); err != nil {
			return err
		}
		actions = actions[n:]
	}
	return nil
}
