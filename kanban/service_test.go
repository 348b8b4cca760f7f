package kanban

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/Matteo-Daniele/useTeam-PT/domain"
)

type memStore struct {
	boards  map[string]domain.Board
	columns map[string]domain.Column
	cards   map[string]domain.Card
}

func newMemStore() *memStore {
	return &memStore{
		boards:  make(map[string]domain.Board),
		columns: make(map[string]domain.Column),
		cards:   make(map[string]domain.Card),
	}
}

func (m *memStore) InsertBoard(_ context.Context, b *domain.Board) error {
	m.boards[b.ID] = *b
	return nil
}

func (m *memStore) Board(_ context.Context, id string) (*domain.Board, error) {
	if b, ok := m.boards[id]; ok {
		return &b, nil
	}
	return nil, nil
}

func (m *memStore) Boards(_ context.Context) ([]domain.Board, error) {
	var out []domain.Board
	for _, b := range m.boards {
		out = append(out, b)
	}
	return out, nil
}

func (m *memStore) UpdateBoard(_ context.Context, b *domain.Board) error {
	m.boards[b.ID] = *b
	return nil
}

func (m *memStore) DeleteBoard(_ context.Context, id string) error {
	delete(m.boards, id)
	return nil
}

func (m *memStore) InsertColumn(_ context.Context, col *domain.Column) error {
	m.columns[col.ID] = *col
	return nil
}

func (m *memStore) Column(_ context.Context, id string) (*domain.Column, error) {
	if c, ok := m.columns[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (m *memStore) ColumnsByBoard(_ context.Context, boardID string) ([]domain.Column, error) {
	var out []domain.Column
	for _, c := range m.columns {
		if c.BoardID == boardID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) UpdateColumn(_ context.Context, col *domain.Column) error {
	m.columns[col.ID] = *col
	return nil
}

func (m *memStore) DeleteColumn(_ context.Context, _, id string) error {
	delete(m.columns, id)
	return nil
}

func (m *memStore) DeleteColumnsByBoard(_ context.Context, boardID string) error {
	for id, c := range m.columns {
		if c.BoardID == boardID {
			delete(m.columns, id)
		}
	}
	return nil
}

func (m *memStore) UpdateColumnOrders(_ context.Context, _ string, orders []domain.OrderAssignment) error {
	for _, o := range orders {
		c := m.columns[o.ID]
		c.Order = o.Order
		m.columns[o.ID] = c
	}
	return nil
}

func (m *memStore) InsertCard(_ context.Context, c *domain.Card) error {
	m.cards[c.ID] = *c
	return nil
}

func (m *memStore) Card(_ context.Context, id string) (*domain.Card, error) {
	if c, ok := m.cards[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (m *memStore) CardsByBoard(_ context.Context, boardID string) ([]domain.Card, error) {
	var out []domain.Card
	for _, c := range m.cards {
		if c.BoardID == boardID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) CardsByColumn(_ context.Context, columnID string) ([]domain.Card, error) {
	var out []domain.Card
	for _, c := range m.cards {
		if c.ColumnID == columnID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) UpdateCard(_ context.Context, c *domain.Card) error {
	m.cards[c.ID] = *c
	return nil
}

func (m *memStore) DeleteCard(_ context.Context, _, id string) error {
	delete(m.cards, id)
	return nil
}

func (m *memStore) DeleteCardsByColumn(_ context.Context, _, columnID string) error {
	for id, c := range m.cards {
		if c.ColumnID == columnID {
			delete(m.cards, id)
		}
	}
	return nil
}

func (m *memStore) DeleteCardsByBoard(_ context.Context, boardID string) error {
	for id, c := range m.cards {
		if c.BoardID == boardID {
			delete(m.cards, id)
		}
	}
	return nil
}

func (m *memStore) UpdateCardOrders(_ context.Context, _ string, orders []domain.OrderAssignment) error {
	for _, o := range orders {
		c := m.cards[o.ID]
		c.Order = o.Order
		m.cards[o.ID] = c
	}
	return nil
}

func (m *memStore) MoveCard(_ context.Context, c *domain.Card, shifts []domain.OrderAssignment) error {
	for _, o := range shifts {
		s := m.cards[o.ID]
		s.Order = o.Order
		m.cards[o.ID] = s
	}
	m.cards[c.ID] = *c
	return nil
}

func (m *memStore) Snapshot(ctx context.Context, boardID string) (*domain.Snapshot, error) {
	board, _ := m.Board(ctx, boardID)
	if board == nil {
		return nil, nil
	}
	cols, _ := m.ColumnsByBoard(ctx, boardID)
	cards, _ := m.CardsByBoard(ctx, boardID)
	return &domain.Snapshot{Board: *board, Columns: cols, Cards: cards}, nil
}

type recordedEvent struct {
	boardID string
	event   string
	payload any
}

type recordingHub struct {
	events []recordedEvent
}

func (r *recordingHub) Broadcast(boardID, event string, payload any) {
	r.events = append(r.events, recordedEvent{boardID: boardID, event: event, payload: payload})
}

func (r *recordingHub) named(event string) []recordedEvent {
	var out []recordedEvent
	for _, e := range r.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	store *memStore
	hub   *recordingHub
	svc   *Service
}

func newFixture() *fixture {
	logger, _ := test.NewNullLogger()
	store := newMemStore()
	hub := &recordingHub{}
	return &fixture{store: store, hub: hub, svc: New(store, hub, DefaultLimits(), logger)}
}

func (f *fixture) seedBoard(id string) {
	f.store.boards[id] = domain.Board{ID: id, Name: "Board " + id}
}

func (f *fixture) seedColumn(id, boardID string, order int) {
	f.store.columns[id] = domain.Column{ID: id, BoardID: boardID, Name: "Column " + id, Order: order}
}

func (f *fixture) seedCard(id, boardID, columnID string, order int) {
	f.store.cards[id] = domain.Card{ID: id, BoardID: boardID, ColumnID: columnID, Title: "Card " + id, Order: order}
}

func (f *fixture) columnCardOrder(t *testing.T, columnID string) []string {
	t.Helper()
	cards, err := f.store.CardsByColumn(context.Background(), columnID)
	if err != nil {
		t.Fatalf("CardsByColumn: %v", err)
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].Order < cards[j].Order })
	ids := make([]string, len(cards))
	for i, c := range cards {
		if c.Order != i {
			t.Fatalf("column %s orders are not dense: %s has order %d at position %d", columnID, c.ID, c.Order, i)
		}
		ids[i] = c.ID
	}
	return ids
}

func assertKind(t *testing.T, err error, want domain.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := domain.KindOf(err); got != want {
		t.Fatalf("expected %s error, got %s: %v", want, got, err)
	}
}

func TestCreateColumnEnforcesLimit(t *testing.T) {
	f := newFixture()
	f.seedBoard("b1")
	for i := 0; i < DefaultLimits().ColumnsPerBoard; i++ {
		if _, err := f.svc.CreateColumn(context.Background(), "b1", fmt.Sprintf("Column %d", i)); err != nil {
			t.Fatalf("column %d: %v", i, err)
		}
	}
	_, err := f.svc.CreateColumn(context.Background(), "b1", "One Too Many")
	assertKind(t, err, domain.KindLimitExceeded)
}

func TestCreateColumnRejectsDuplicateName(t *testing.T) {
	f := newFixture()
	f.seedBoard("b1")
	if _, err := f.svc.CreateColumn(context.Background(), "b1", "Doing"); err != nil {
		t.Fatalf("CreateColumn: %v", err)
	}
	_, err := f.svc.CreateColumn(context.Background(), "b1", "  doing ")
	assertKind(t, err, domain.KindDuplicateName)
}

func TestCreateCardFreezesBoardFromColumn(t *testing.T) {
	f := newFixture()
	f.seedBoard("b1")
	f.seedColumn("c1", "b1", 0)

	card, err := f.svc.CreateCard(context.Background(), "c1", "Write tests", "")
	if err != nil {
		t.Fatalf("CreateCard: %v", err)
	}
	if card.BoardID != "b1" {
		t.Fatalf("expected boardId b1, got %s", card.BoardID)
	}
	if card.Order != 0 {
		t.Fatalf("expected first card at order 0, got %d", card.Order)
	}
}

func TestCardTitleUniquePerColumn(t *testing.T) {
	f := newFixture()
	f.seedBoard("b1")
	f.seedColumn("c1", "b1", 0)
	f.seedColumn("c2", "b1", 1)

	if _, err := f.svc.CreateCard(context.Background(), "c1", "Deploy", ""); err != nil {
		t.Fatalf("CreateCard: %v", err)
	}
	_, err := f.svc.CreateCard(context.Background(), "c1", "DEPLOY", "")
	assertKind(t, err, domain.KindDuplicateName)

	// Same title in a sibling column is fine.
	if _, err := f.svc.CreateCard(context.Background(), "c2", "Deploy", ""); err != nil {
		t.Fatalf("expected duplicate title across columns to be allowed: %v", err)
	}
}

func TestMoveCardWithinColumn(t *testing.T) {
	f := newFixture()
	f.seedBoard("b1")
	f.seedColumn("c1", "b1", 0)
	for i, id := range []string{"a", "b", "c", "d"} {
		f.seedCard(id, "b1", "c1", i)
	}

	moved, err := f.svc.MoveCard(context.Background(), "d", "c1", 0)
	if err != nil {
		t.Fatalf("MoveCard: %v", err)
	}
	if moved.Order != 0 {
		t.Fatalf("expected moved card at order 0, got %d", moved.Order)
	}
	got := f.columnCardOrder(t, "c1")
	want := []string{"d", "a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
	if n := len(f.hub.named("card:moved")); n != 1 {
		t.Fatalf("expected exactly one card:moved broadcast, got %d", n)
	}
}

func TestMoveCardAcrossColumns(t *testing.T) {
	f := newFixture()
	f.seedBoard("b1")
	f.seedColumn("c1", "b1", 0)
	f.seedColumn("c2", "b1", 1)
	for i, id := range []string{"a", "b", "c"} {
		f.seedCard(id, "b1", "c1", i)
	}
	for i, id := range []string{"x", "y"} {
		f.seedCard(id, "b1", "c2", i)
	}

	moved, err := f.svc.MoveCard(context.Background(), "b", "c2", 1)
	if err != nil {
		t.Fatalf("MoveCard: %v", err)
	}
	if moved.ColumnID != "c2" || moved.BoardID != "b1" {
		t.Fatalf("expected card in c2 on b1, got column %s board %s", moved.ColumnID, moved.BoardID)
	}

	source := f.columnCardOrder(t, "c1")
	if len(source) != 2 || source[0] != "a" || source[1] != "c" {
		t.Fatalf("expected source column [a c], got %v", source)
	}
	dest := f.columnCardOrder(t, "c2")
	want := []string{"x", "b", "y"}
	for i := range want {
		if dest[i] != want[i] {
			t.Fatalf("expected destination %v, got %v", want, dest)
		}
	}

	events := f.hub.named("card:moved")
	if len(events) != 1 {
		t.Fatalf("expected exactly one card:moved broadcast, got %d", len(events))
	}
	payload := events[0].payload.(cardMovedPayload)
	if payload.FromColumnID != "c1" || payload.ToColumnID != "c2" {
		t.Fatalf("expected from c1 to c2, got from %s to %s", payload.FromColumnID, payload.ToColumnID)
	}
}

func TestMoveCardClampsOrder(t *testing.T) {
	f := newFixture()
	f.seedBoard("b1")
	f.seedColumn("c1", "b1", 0)
	f.seedColumn("c2", "b1", 1)
	for i, id := range []string{"a", "b", "c"} {
		f.seedCard(id, "b1", "c1", i)
	}
	f.seedCard("x", "b1", "c2", 0)

	// Within a column the clamp target is the last position.
	moved, err := f.svc.MoveCard(context.Background(), "a", "c1", 99)
	if err != nil {
		t.Fatalf("MoveCard: %v", err)
	}
	if moved.Order != 2 {
		t.Fatalf("expected clamp to order 2, got %d", moved.Order)
	}

	// Into another column the clamp target is the append position.
	moved, err = f.svc.MoveCard(context.Background(), "a", "c2", 99)
	if err != nil {
		t.Fatalf("MoveCard: %v", err)
	}
	if moved.Order != 1 {
		t.Fatalf("expected clamp to append slot 1, got %d", moved.Order)
	}
}

func TestMoveCardAcrossBoardsRejected(t *testing.T) {
	f := newFixture()
	f.seedBoard("b1")
	f.seedBoard("b2")
	f.seedColumn("c1", "b1", 0)
	f.seedColumn("other", "b2", 0)
	f.seedCard("a", "b1", "c1", 0)

	_, err := f.svc.MoveCard(context.Background(), "a", "other", 0)
	assertKind(t, err, domain.KindCrossBoardMove)

	// Nothing moved and nothing was announced.
	card, _ := f.store.Card(context.Background(), "a")
	if card.ColumnID != "c1" || card.BoardID != "b1" || card.Order != 0 {
		t.Fatalf("card mutated by rejected move: %+v", card)
	}
	if len(f.hub.events) != 0 {
		t.Fatalf("expected no broadcasts, got %d", len(f.hub.events))
	}
}

func TestMoveCardToSamePositionIsNoop(t *testing.T) {
	f := newFixture()
	f.seedBoard("b1")
	f.seedColumn("c1", "b1", 0)
	f.seedCard("a", "b1", "c1", 0)
	f.seedCard("b", "b1", "c1", 1)

	if _, err := f.svc.MoveCard(context.Background(), "b", "c1", 1); err != nil {
		t.Fatalf("MoveCard: %v", err)
	}
	if len(f.hub.events) != 0 {
		t.Fatalf("expected no broadcast for a same-position move, got %d", len(f.hub.events))
	}
}

func TestDeleteCardClosesGap(t *testing.T) {
	f := newFixture()
	f.seedBoard("b1")
	f.seedColumn("c1", "b1", 0)
	for i, id := range []string{"a", "b", "c"} {
		f.seedCard(id, "b1", "c1", i)
	}

	if err := f.svc.DeleteCard(context.Background(), "b"); err != nil {
		t.Fatalf("DeleteCard: %v", err)
	}
	got := f.columnCardOrder(t, "c1")
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("expected [a c] after delete, got %v", got)
	}
}

func TestDeleteColumnCascadesAndReindexes(t *testing.T) {
	f := newFixture()
	f.seedBoard("b1")
	for i, id := range []string{"c1", "c2", "c3"} {
		f.seedColumn(id, "b1", i)
	}
	f.seedCard("a", "b1", "c2", 0)
	f.seedCard("b", "b1", "c2", 1)

	if err := f.svc.DeleteColumn(context.Background(), "c2"); err != nil {
		t.Fatalf("DeleteColumn: %v", err)
	}
	if cards, _ := f.store.CardsByColumn(context.Background(), "c2"); len(cards) != 0 {
		t.Fatalf("expected cards of deleted column gone, found %d", len(cards))
	}
	cols, err := f.svc.BoardColumns(context.Background(), "b1")
	if err != nil {
		t.Fatalf("BoardColumns: %v", err)
	}
	if len(cols) != 2 || cols[0].ID != "c1" || cols[0].Order != 0 || cols[1].ID != "c3" || cols[1].Order != 1 {
		t.Fatalf("expected dense [c1 c3] after delete, got %+v", cols)
	}
	if n := len(f.hub.named("column:deleted")); n != 1 {
		t.Fatalf("expected one column:deleted broadcast, got %d", n)
	}
}

func TestDeleteBoardCascades(t *testing.T) {
	f := newFixture()
	f.seedBoard("b1")
	f.seedColumn("c1", "b1", 0)
	f.seedCard("a", "b1", "c1", 0)

	if err := f.svc.DeleteBoard(context.Background(), "b1"); err != nil {
		t.Fatalf("DeleteBoard: %v", err)
	}
	if len(f.store.boards) != 0 || len(f.store.columns) != 0 || len(f.store.cards) != 0 {
		t.Fatalf("expected board, columns and cards gone; have %d/%d/%d",
			len(f.store.boards), len(f.store.columns), len(f.store.cards))
	}
	if n := len(f.hub.named("board:deleted")); n != 1 {
		t.Fatalf("expected one board:deleted broadcast, got %d", n)
	}
}

func TestReorderColumns(t *testing.T) {
	f := newFixture()
	f.seedBoard("b1")
	for i, id := range []string{"c1", "c2", "c3"} {
		f.seedColumn(id, "b1", i)
	}

	orders := []domain.OrderAssignment{
		{ID: "c3", Order: 0},
		{ID: "c1", Order: 1},
		{ID: "c2", Order: 2},
	}
	if err := f.svc.ReorderColumns(context.Background(), "b1", orders); err != nil {
		t.Fatalf("ReorderColumns: %v", err)
	}
	cols, _ := f.svc.BoardColumns(context.Background(), "b1")
	want := []string{"c3", "c1", "c2"}
	for i := range want {
		if cols[i].ID != want[i] {
			t.Fatalf("expected columns %v, got %+v", want, cols)
		}
	}
	if n := len(f.hub.named("columns:reordered")); n != 1 {
		t.Fatalf("expected one columns:reordered broadcast, got %d", n)
	}
}

func TestReorderCardsRejectsPartialPayload(t *testing.T) {
	f := newFixture()
	f.seedBoard("b1")
	f.seedColumn("c1", "b1", 0)
	for i, id := range []string{"a", "b", "c"} {
		f.seedCard(id, "b1", "c1", i)
	}

	err := f.svc.ReorderCards(context.Background(), "c1", []domain.OrderAssignment{
		{ID: "a", Order: 1},
		{ID: "b", Order: 0},
	})
	assertKind(t, err, domain.KindValidation)

	// The stored ordering is untouched.
	got := f.columnCardOrder(t, "c1")
	if got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("rejected reorder mutated the column: %v", got)
	}
	if len(f.hub.events) != 0 {
		t.Fatalf("expected no broadcast on rejected reorder, got %d", len(f.hub.events))
	}
}

func TestReorderCardsForeignCardRejected(t *testing.T) {
	f := newFixture()
	f.seedBoard("b1")
	f.seedColumn("c1", "b1", 0)
	f.seedColumn("c2", "b1", 1)
	f.seedCard("a", "b1", "c1", 0)
	f.seedCard("x", "b1", "c2", 0)

	err := f.svc.ReorderCards(context.Background(), "c1", []domain.OrderAssignment{
		{ID: "x", Order: 0},
	})
	assertKind(t, err, domain.KindNotFound)
}

func TestStatsResolvesBoardFirst(t *testing.T) {
	f := newFixture()
	f.seedBoard("b1")
	f.seedColumn("c1", "b1", 0)
	f.seedCard("a", "b1", "c1", 0)
	f.seedCard("b", "b1", "c1", 1)

	stats, err := f.svc.Stats(context.Background(), "b1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalCards != 2 || stats.CardsByColumn["c1"] != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	// A column id is not a board id.
	_, err = f.svc.Stats(context.Background(), "c1")
	assertKind(t, err, domain.KindNotFound)
}

func TestUpdateBoardRejectsDuplicateName(t *testing.T) {
	f := newFixture()
	f.seedBoard("b1")
	f.store.boards["b2"] = domain.Board{ID: "b2", Name: "Roadmap"}

	name := "roadmap"
	_, err := f.svc.UpdateBoard(context.Background(), "b1", BoardPatch{Name: &name})
	assertKind(t, err, domain.KindDuplicateName)

	// Renaming to its own name is not a collision.
	own := "Board b1"
	if _, err := f.svc.UpdateBoard(context.Background(), "b1", BoardPatch{Name: &own}); err != nil {
		t.Fatalf("UpdateBoard with own name: %v", err)
	}
}

func TestSnapshotUnknownBoard(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Snapshot(context.Background(), "nope")
	assertKind(t, err, domain.KindNotFound)
}
