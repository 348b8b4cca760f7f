// Package client implements the reconciliation strategy a board viewer
// follows: apply every local action optimistically, then replace local
// state with a full server refetch on success, on failure and on every
// broadcast for the viewed board. Refetch-and-replace is unconditional,
// so a stale or conflicting optimistic render can survive at most one
// round trip.
package client

import (
	"context"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/Matteo-Daniele/useTeam-PT/domain"
	"github.com/Matteo-Daniele/useTeam-PT/realtime"
)

// Fetcher retrieves the authoritative board state.
type Fetcher interface {
	BoardSnapshot(ctx context.Context, boardID string) (*domain.Snapshot, error)
}

// Reconciler holds the confirmed snapshot of one board plus at most one
// optimistic overlay. There are no per-action rollback journals: the
// confirmed snapshot is the rollback, and the server is the authority.
type Reconciler struct {
	mu      sync.Mutex
	fetcher Fetcher
	boardID string

	confirmed *domain.Snapshot
	view      *domain.Snapshot
	pending   bool

	log *log.Logger
}

func NewReconciler(fetcher Fetcher, boardID string, logger *log.Logger) *Reconciler {
	return &Reconciler{fetcher: fetcher, boardID: boardID, log: logger}
}

// Sync refetches the board and replaces both the confirmed snapshot and
// the rendered view, dropping any optimistic overlay.
func (r *Reconciler) Sync(ctx context.Context) error {
	snap, err := r.fetcher.BoardSnapshot(ctx, r.boardID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.confirmed = snap
	r.view = cloneSnapshot(snap)
	r.pending = false
	r.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the rendered state, optimistic overlay
// included.
func (r *Reconciler) Snapshot() *domain.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneSnapshot(r.view)
}

// Columns returns the rendered columns in order.
func (r *Reconciler) Columns() []domain.Column {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.view == nil {
		return nil
	}
	cols := make([]domain.Column, len(r.view.Columns))
	copy(cols, r.view.Columns)
	sort.Slice(cols, func(i, j int) bool { return cols[i].Order < cols[j].Order })
	return cols
}

// Cards returns the rendered cards of one column in order.
func (r *Reconciler) Cards(columnID string) []domain.Card {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cardsOf(r.view, columnID)
}

// Pending reports whether an optimistic action awaits its ack.
func (r *Reconciler) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending
}

// MoveCard renders a card move immediately, using the same shift plans
// the server computes. The caller sends the actual request and reports
// the outcome through AckSuccess / AckFailure.
func (r *Reconciler) MoveCard(cardID, toColumnID string, newOrder int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.view == nil {
		return domain.NotFoundf("no board loaded")
	}

	var card *domain.Card
	for i := range r.view.Cards {
		if r.view.Cards[i].ID == cardID {
			card = &r.view.Cards[i]
			break
		}
	}
	if card == nil {
		return domain.NotFoundf("card %s not found", cardID)
	}
	var target *domain.Column
	for i := range r.view.Columns {
		if r.view.Columns[i].ID == toColumnID {
			target = &r.view.Columns[i]
			break
		}
	}
	if target == nil {
		return domain.NotFoundf("column %s not found", toColumnID)
	}
	if target.BoardID != card.BoardID {
		return domain.CrossBoardMovef("cannot move card to a different board")
	}

	if card.ColumnID == toColumnID {
		plan, err := domain.PlanMove(cardItemsOf(r.view, toColumnID), cardID, newOrder)
		if err != nil {
			return err
		}
		if plan == nil {
			return nil
		}
		applyCardOrders(r.view, plan)
	} else {
		closeGap := domain.PlanRemove(cardItemsOf(r.view, card.ColumnID), cardID)
		slot, openSlot, err := domain.PlanInsert(cardItemsOf(r.view, toColumnID), newOrder)
		if err != nil {
			return err
		}
		applyCardOrders(r.view, closeGap)
		applyCardOrders(r.view, openSlot)
		card.ColumnID = toColumnID
		card.Order = slot
	}
	r.pending = true
	return nil
}

// ReorderColumns renders a full-board column reorder immediately.
func (r *Reconciler) ReorderColumns(orders []domain.OrderAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.view == nil {
		return domain.NotFoundf("no board loaded")
	}
	items := make([]domain.OrderedItem, len(r.view.Columns))
	for i, c := range r.view.Columns {
		items[i] = domain.OrderedItem{ID: c.ID, Order: c.Order}
	}
	if err := domain.ValidateReorder(items, orders); err != nil {
		return err
	}
	byID := make(map[string]int, len(orders))
	for _, o := range orders {
		byID[o.ID] = o.Order
	}
	for i := range r.view.Columns {
		if o, ok := byID[r.view.Columns[i].ID]; ok {
			r.view.Columns[i].Order = o
		}
	}
	r.pending = true
	return nil
}

// ReorderCards renders a full-column card reorder immediately.
func (r *Reconciler) ReorderCards(columnID string, orders []domain.OrderAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.view == nil {
		return domain.NotFoundf("no board loaded")
	}
	if err := domain.ValidateReorder(cardItemsOf(r.view, columnID), orders); err != nil {
		return err
	}
	applyCardOrders(r.view, orders)
	r.pending = true
	return nil
}

// AckSuccess reconciles after the server accepted the action. The
// optimistic render is replaced, not trusted: the refetched snapshot
// wins even when they agree.
func (r *Reconciler) AckSuccess(ctx context.Context) error {
	return r.Sync(ctx)
}

// AckFailure drops the optimistic overlay, restoring the confirmed
// snapshot, then refetches. The restore makes the rollback visible even
// if the refetch fails; the caller surfaces the rejection itself.
func (r *Reconciler) AckFailure(ctx context.Context) error {
	r.mu.Lock()
	r.view = cloneSnapshot(r.confirmed)
	r.pending = false
	r.mu.Unlock()
	return r.Sync(ctx)
}

// OnBroadcast handles a hub envelope. Any event for the viewed board,
// the echo of this client's own action included, triggers a full
// resync; a pending optimistic action is superseded by it. Events for
// other boards are ignored.
func (r *Reconciler) OnBroadcast(ctx context.Context, env realtime.Envelope) error {
	if env.BoardID != r.boardID {
		return nil
	}
	if r.log != nil {
		r.log.WithFields(log.Fields{"event": env.Event, "board": env.BoardID}).Debug("resync on broadcast")
	}
	return r.Sync(ctx)
}

func cloneSnapshot(snap *domain.Snapshot) *domain.Snapshot {
	if snap == nil {
		return nil
	}
	out := &domain.Snapshot{Board: snap.Board}
	out.Columns = make([]domain.Column, len(snap.Columns))
	copy(out.Columns, snap.Columns)
	out.Cards = make([]domain.Card, len(snap.Cards))
	copy(out.Cards, snap.Cards)
	return out
}

func cardsOf(snap *domain.Snapshot, columnID string) []domain.Card {
	if snap == nil {
		return nil
	}
	var cards []domain.Card
	for _, c := range snap.Cards {
		if c.ColumnID == columnID {
			cards = append(cards, c)
		}
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].Order < cards[j].Order })
	return cards
}

func cardItemsOf(snap *domain.Snapshot, columnID string) []domain.OrderedItem {
	var items []domain.OrderedItem
	for _, c := range snap.Cards {
		if c.ColumnID == columnID {
			items = append(items, domain.OrderedItem{ID: c.ID, Order: c.Order})
		}
	}
	return items
}

func applyCardOrders(snap *domain.Snapshot, orders []domain.OrderAssignment) {
	byID := make(map[string]int, len(orders))
	for _, o := range orders {
		byID[o.ID] = o.Order
	}
	for i := range snap.Cards {
		if o, ok := byID[snap.Cards[i].ID]; ok {
			snap.Cards[i].Order = o
		}
	}
}
