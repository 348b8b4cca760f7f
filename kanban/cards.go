package kanban

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/Matteo-Daniele/useTeam-PT/domain"
	"github.com/Matteo-Daniele/useTeam-PT/realtime"
)

type cardPayload struct {
	Card *domain.Card `json:"card"`
}

type cardMovedPayload struct {
	Card         *domain.Card `json:"card"`
	FromColumnID string       `json:"fromColumnId"`
	ToColumnID   string       `json:"toColumnId"`
}

type cardDeletedPayload struct {
	CardID string `json:"cardId"`
}

type cardsReorderedPayload struct {
	BoardID    string                   `json:"boardId"`
	ColumnID   string                   `json:"columnId"`
	CardOrders []domain.OrderAssignment `json:"cardOrders"`
}

// CreateCard places a new card at the end of the column. The card's
// boardId is frozen from the column at creation time.
func (s *Service) CreateCard(ctx context.Context, columnID, title, description string) (*domain.Card, error) {
	if err := domain.ValidateCardTitle(title); err != nil {
		return nil, err
	}
	if err := domain.ValidateCardDescription(description); err != nil {
		return nil, err
	}
	col, err := s.ColumnByID(ctx, columnID)
	if err != nil {
		return nil, err
	}
	cards, err := s.store.CardsByColumn(ctx, columnID)
	if err != nil {
		return nil, err
	}
	if len(cards) >= s.limits.CardsPerColumn {
		return nil, domain.LimitExceededf("maximum %d cards allowed per column", s.limits.CardsPerColumn)
	}
	for _, c := range cards {
		if domain.SameName(c.Title, title) {
			return nil, domain.DuplicateNamef("card title already exists in this column")
		}
	}

	card := &domain.Card{
		ID:          uuid.NewString(),
		BoardID:     col.BoardID,
		ColumnID:    columnID,
		Title:       title,
		Description: description,
		Order:       domain.NextOrder(cardItems(cards)),
	}
	if err := s.store.InsertCard(ctx, card); err != nil {
		return nil, err
	}
	s.hub.Broadcast(card.BoardID, realtime.EventCardCreated, cardPayload{Card: card})
	return card, nil
}

func (s *Service) CardByID(ctx context.Context, id string) (*domain.Card, error) {
	card, err := s.store.Card(ctx, id)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, domain.NotFoundf("card %s not found", id)
	}
	return card, nil
}

func (s *Service) BoardCards(ctx context.Context, boardID string) ([]domain.Card, error) {
	if _, err := s.BoardByID(ctx, boardID); err != nil {
		return nil, err
	}
	cards, err := s.store.CardsByBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].Order < cards[j].Order })
	return cards, nil
}

func (s *Service) ColumnCards(ctx context.Context, columnID string) ([]domain.Card, error) {
	if _, err := s.ColumnByID(ctx, columnID); err != nil {
		return nil, err
	}
	cards, err := s.store.CardsByColumn(ctx, columnID)
	if err != nil {
		return nil, err
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].Order < cards[j].Order })
	return cards, nil
}

// CardPatch carries the updatable card fields; nil means unchanged.
type CardPatch struct {
	Title       *string
	Description *string
}

func (s *Service) UpdateCard(ctx context.Context, id string, patch CardPatch) (*domain.Card, error) {
	card, err := s.CardByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		if err := domain.ValidateCardTitle(*patch.Title); err != nil {
			return nil, err
		}
		siblings, err := s.store.CardsByColumn(ctx, card.ColumnID)
		if err != nil {
			return nil, err
		}
		for _, other := range siblings {
			if other.ID != id && domain.SameName(other.Title, *patch.Title) {
				return nil, domain.DuplicateNamef("card title already exists in this column")
			}
		}
		card.Title = *patch.Title
	}
	if patch.Description != nil {
		if err := domain.ValidateCardDescription(*patch.Description); err != nil {
			return nil, err
		}
		card.Description = *patch.Description
	}
	if err := s.store.UpdateCard(ctx, card); err != nil {
		return nil, err
	}
	s.hub.Broadcast(card.BoardID, realtime.EventCardUpdated, cardPayload{Card: card})
	return card, nil
}

// MoveCard relocates a card within its column or across columns of the
// same board. columnId and boardId change together; a move across
// boards is rejected before anything mutates. The shift plan for both
// affected columns is committed as one atomic unit.
func (s *Service) MoveCard(ctx context.Context, cardID, toColumnID string, newOrder int) (*domain.Card, error) {
	if newOrder < 0 {
		return nil, domain.Validationf("order must not be negative")
	}
	card, err := s.CardByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	target, err := s.ColumnByID(ctx, toColumnID)
	if err != nil {
		return nil, err
	}
	if target.BoardID != card.BoardID {
		return nil, domain.CrossBoardMovef("cannot move card to a different board")
	}

	fromColumnID := card.ColumnID
	if toColumnID == fromColumnID {
		siblings, err := s.store.CardsByColumn(ctx, fromColumnID)
		if err != nil {
			return nil, err
		}
		plan, err := domain.PlanMove(cardItems(siblings), cardID, newOrder)
		if err != nil {
			return nil, err
		}
		if len(plan) == 0 {
			return card, nil
		}
		var shifts []domain.OrderAssignment
		for _, a := range plan {
			if a.ID == cardID {
				card.Order = a.Order
			} else {
				shifts = append(shifts, a)
			}
		}
		if err := s.store.MoveCard(ctx, card, shifts); err != nil {
			return nil, err
		}
	} else {
		source, err := s.store.CardsByColumn(ctx, fromColumnID)
		if err != nil {
			return nil, err
		}
		dest, err := s.store.CardsByColumn(ctx, toColumnID)
		if err != nil {
			return nil, err
		}
		if len(dest) >= s.limits.CardsPerColumn {
			return nil, domain.LimitExceededf("maximum %d cards allowed per column", s.limits.CardsPerColumn)
		}
		for _, other := range dest {
			if domain.SameName(other.Title, card.Title) {
				return nil, domain.DuplicateNamef("card title already exists in this column")
			}
		}
		closeGap := domain.PlanRemove(cardItems(source), cardID)
		slot, openSlot, err := domain.PlanInsert(cardItems(dest), newOrder)
		if err != nil {
			return nil, err
		}
		card.ColumnID = toColumnID
		card.Order = slot
		if err := s.store.MoveCard(ctx, card, append(closeGap, openSlot...)); err != nil {
			return nil, err
		}
	}

	s.hub.Broadcast(card.BoardID, realtime.EventCardMoved, cardMovedPayload{
		Card:         card,
		FromColumnID: fromColumnID,
		ToColumnID:   toColumnID,
	})
	return card, nil
}

// DeleteCard removes the card and closes the order gap in its column.
func (s *Service) DeleteCard(ctx context.Context, id string) error {
	card, err := s.CardByID(ctx, id)
	if err != nil {
		return err
	}
	siblings, err := s.store.CardsByColumn(ctx, card.ColumnID)
	if err != nil {
		return err
	}
	reindex := domain.PlanRemove(cardItems(siblings), id)

	if err := s.store.DeleteCard(ctx, card.BoardID, id); err != nil {
		return err
	}
	if len(reindex) > 0 {
		if err := s.store.UpdateCardOrders(ctx, card.BoardID, reindex); err != nil {
			return err
		}
	}
	s.hub.Broadcast(card.BoardID, realtime.EventCardDeleted, cardDeletedPayload{CardID: id})
	return nil
}

// ReorderCards applies a full-column card ordering, validated against
// the column's current membership, and broadcasts one cards:reordered
// event carrying the complete new ordering.
func (s *Service) ReorderCards(ctx context.Context, columnID string, orders []domain.OrderAssignment) error {
	col, err := s.ColumnByID(ctx, columnID)
	if err != nil {
		return err
	}
	cards, err := s.store.CardsByColumn(ctx, columnID)
	if err != nil {
		return err
	}
	if err := domain.ValidateReorder(cardItems(cards), orders); err != nil {
		return err
	}
	if err := s.store.UpdateCardOrders(ctx, col.BoardID, orders); err != nil {
		return err
	}
	s.hub.Broadcast(col.BoardID, realtime.EventCardsReordered, cardsReorderedPayload{
		BoardID:    col.BoardID,
		ColumnID:   columnID,
		CardOrders: orders,
	})
	return nil
}
