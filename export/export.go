// Package export delivers board backlogs to an external webhook (an
// n8n flow in the reference deployment) that renders CSV and mails it.
// Requests are accepted immediately and processed asynchronously; the
// outcome reaches the requesting board room as an export:success or
// export:error broadcast.
package export

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/Matteo-Daniele/useTeam-PT/domain"
	"github.com/Matteo-Daniele/useTeam-PT/realtime"
)

// SnapshotSource yields the board state an export renders.
type SnapshotSource interface {
	Snapshot(ctx context.Context, boardID string) (*domain.Snapshot, error)
}

// Broadcaster fans the export outcome out to the board room.
type Broadcaster interface {
	Broadcast(boardID, event string, payload any)
}

// Deduper guards against concurrent exports of the same board.
type Deduper interface {
	// Add records the board and returns true if no export was in flight.
	Add(ctx context.Context, boardID string) (bool, error)
	// Remove clears the in-flight marker once processing finishes.
	Remove(ctx context.Context, boardID string) error
}

// Fields a backlog row can carry. An empty request exports all of them.
var exportableFields = map[string]bool{
	"id":          true,
	"title":       true,
	"description": true,
	"column":      true,
	"createdAt":   true,
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// BacklogCard is one row of the exported backlog, in column order.
type BacklogCard struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Column      string    `json:"column"`
	CreatedAt   time.Time `json:"createdAt"`
}

type webhookPayload struct {
	RequestID   string        `json:"requestId"`
	BoardID     string        `json:"boardId"`
	BoardName   string        `json:"boardName"`
	Email       string        `json:"email"`
	Fields      []string      `json:"fields"`
	GeneratedAt time.Time     `json:"generatedAt"`
	TotalCards  int           `json:"totalCards"`
	Cards       []BacklogCard `json:"cards"`
}

type resultPayload struct {
	RequestID  string `json:"requestId"`
	Email      string `json:"email,omitempty"`
	TotalCards int    `json:"totalCards,omitempty"`
	Message    string `json:"message,omitempty"`
}

type job struct {
	requestID string
	boardID   string
	boardName string
	email     string
	fields    []string
}

// Options tune the delivery workers. Zero values fall back to defaults.
type Options struct {
	Workers int
	Buffer  int
	Timeout time.Duration
}

// Service accepts export requests and delivers them to the webhook.
type Service struct {
	snapshots  SnapshotSource
	hub        Broadcaster
	deduper    Deduper
	webhookURL string
	client     *http.Client
	timeout    time.Duration
	log        *log.Logger

	jobs chan job
	wg   sync.WaitGroup
}

func NewService(snapshots SnapshotSource, hub Broadcaster, deduper Deduper, webhookURL string, opts Options, logger *log.Logger) *Service {
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 64
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s := &Service{
		snapshots:  snapshots,
		hub:        hub,
		deduper:    deduper,
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
		timeout:    timeout,
		log:        logger,
		jobs:       make(chan job, buffer),
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

// Close stops the workers after draining queued jobs.
func (s *Service) Close() {
	close(s.jobs)
	s.wg.Wait()
}

// Enqueue validates and accepts an export request. The returned request
// id correlates the eventual export:success / export:error broadcast
// with this call.
func (s *Service) Enqueue(ctx context.Context, boardID, boardName, email string, fields []string) (string, error) {
	if !emailPattern.MatchString(email) {
		return "", domain.Validationf("a valid recipient email is required")
	}
	if len(fields) == 0 {
		fields = []string{"id", "title", "description", "column", "createdAt"}
	}
	for _, f := range fields {
		if !exportableFields[f] {
			return "", domain.Validationf("unknown export field %q", f)
		}
	}

	fresh, err := s.deduper.Add(ctx, boardID)
	if err != nil {
		return "", domain.CollaboratorErr("export deduplication unavailable", err)
	}
	if !fresh {
		return "", domain.Validationf("an export for this board is already in progress")
	}

	j := job{
		requestID: "export_" + uuid.NewString(),
		boardID:   boardID,
		boardName: boardName,
		email:     email,
		fields:    fields,
	}

	select {
	case s.jobs <- j:
	default:
		s.log.Warn("export buffer saturated; processing inline")
		go s.process(j)
	}
	return j.requestID, nil
}

func (s *Service) worker() {
	defer s.wg.Done()
	for j := range s.jobs {
		s.process(j)
	}
}

func (s *Service) process(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	defer func() {
		if err := s.deduper.Remove(context.Background(), j.boardID); err != nil {
			s.log.Errorf("export dedupe cleanup failed, board: %s, err: %v", j.boardID, err)
		}
	}()

	snap, err := s.snapshots.Snapshot(ctx, j.boardID)
	if err != nil {
		s.fail(j, fmt.Sprintf("could not load board: %v", err))
		return
	}
	if snap == nil {
		s.fail(j, "board no longer exists")
		return
	}

	cards := buildBacklog(snap)
	payload := webhookPayload{
		RequestID:   j.requestID,
		BoardID:     j.boardID,
		BoardName:   j.boardName,
		Email:       j.email,
		Fields:      j.fields,
		GeneratedAt: time.Now().UTC(),
		TotalCards:  len(cards),
		Cards:       cards,
	}

	if err := s.deliver(ctx, payload); err != nil {
		s.log.WithFields(log.Fields{"request": j.requestID, "board": j.boardID}).Errorf("export delivery failed: %v", err)
		s.fail(j, "export delivery failed")
		return
	}

	s.log.WithFields(log.Fields{"request": j.requestID, "board": j.boardID, "cards": len(cards)}).Info("export delivered")
	s.hub.Broadcast(j.boardID, realtime.EventExportSuccess, resultPayload{
		RequestID:  j.requestID,
		Email:      j.email,
		TotalCards: len(cards),
	})
}

func (s *Service) fail(j job, message string) {
	s.hub.Broadcast(j.boardID, realtime.EventExportError, resultPayload{
		RequestID: j.requestID,
		Message:   message,
	})
}

func (s *Service) deliver(ctx context.Context, payload webhookPayload) error {
	body, err := sonic.ConfigStd.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.CollaboratorErr(fmt.Sprintf("webhook returned %d", resp.StatusCode), nil)
	}
	return nil
}

// buildBacklog flattens the snapshot into rows ordered by column
// position, then card position within the column.
func buildBacklog(snap *domain.Snapshot) []BacklogCard {
	cols := make([]domain.Column, len(snap.Columns))
	copy(cols, snap.Columns)
	sort.Slice(cols, func(i, j int) bool { return cols[i].Order < cols[j].Order })

	byColumn := make(map[string][]domain.Card, len(cols))
	for _, c := range snap.Cards {
		byColumn[c.ColumnID] = append(byColumn[c.ColumnID], c)
	}

	rows := make([]BacklogCard, 0, len(snap.Cards))
	for _, col := range cols {
		cards := byColumn[col.ID]
		sort.Slice(cards, func(i, j int) bool { return cards[i].Order < cards[j].Order })
		for _, c := range cards {
			rows = append(rows, BacklogCard{
				ID:          c.ID,
				Title:       c.Title,
				Description: c.Description,
				Column:      col.Name,
				CreatedAt:   c.CreatedAt,
			})
		}
	}
	return rows
}
