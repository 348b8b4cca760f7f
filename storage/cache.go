package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Matteo-Daniele/useTeam-PT/domain"
)

type backend interface {
	InsertBoard(ctx context.Context, b *domain.Board) error
	UpdateBoard(ctx context.Context, b *domain.Board) error
	DeleteBoard(ctx context.Context, id string) error

	InsertColumn(ctx context.Context, col *domain.Column) error
	UpdateColumn(ctx context.Context, col *domain.Column) error
	DeleteColumn(ctx context.Context, boardID, id string) error
	DeleteColumnsByBoard(ctx context.Context, boardID string) error
	UpdateColumnOrders(ctx context.Context, boardID string, orders []domain.OrderAssignment) error

	InsertCard(ctx context.Context, c *domain.Card) error
	UpdateCard(ctx context.Context, c *domain.Card) error
	DeleteCard(ctx context.Context, boardID, id string) error
	DeleteCardsByColumn(ctx context.Context, boardID, columnID string) error
	DeleteCardsByBoard(ctx context.Context, boardID string) error
	UpdateCardOrders(ctx context.Context, boardID string, orders []domain.OrderAssignment) error
	MoveCard(ctx context.Context, c *domain.Card, shifts []domain.OrderAssignment) error

	Snapshot(ctx context.Context, boardID string) (*domain.Snapshot, error)
}

// Cache wraps a Store with Redis-backed caching of board snapshots.
// Every mutation of a board evicts that board's snapshot key, so a
// refetch triggered by a broadcast never reads a stale snapshot of its
// own mutation.
type Cache struct {
	*Store
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Store wrapper using the provided Redis
// client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}

	c := &Cache{
		base:  base,
		redis: client,
		ttl:   ttl,
	}
	if s, ok := base.(*Store); ok {
		c.Store = s
	}
	return c
}

func (c *Cache) Snapshot(ctx context.Context, boardID string) (*domain.Snapshot, error) {
	if snap, ok := c.loadSnapshot(ctx, boardID); ok {
		return snap, nil
	}

	snap, err := c.base.Snapshot(ctx, boardID)
	if err != nil || snap == nil {
		return nil, err
	}

	c.storeSnapshot(ctx, boardID, snap)
	return snap, nil
}

func (c *Cache) InsertBoard(ctx context.Context, b *domain.Board) error {
	if err := c.base.InsertBoard(ctx, b); err != nil {
		return err
	}
	c.evict(ctx, b.ID)
	return nil
}

func (c *Cache) UpdateBoard(ctx context.Context, b *domain.Board) error {
	if err := c.base.UpdateBoard(ctx, b); err != nil {
		return err
	}
	c.evict(ctx, b.ID)
	return nil
}

func (c *Cache) DeleteBoard(ctx context.Context, id string) error {
	if err := c.base.DeleteBoard(ctx, id); err != nil {
		return err
	}
	c.evict(ctx, id)
	return nil
}

func (c *Cache) InsertColumn(ctx context.Context, col *domain.Column) error {
	if err := c.base.InsertColumn(ctx, col); err != nil {
		return err
	}
	c.evict(ctx, col.BoardID)
	return nil
}

func (c *Cache) UpdateColumn(ctx context.Context, col *domain.Column) error {
	if err := c.base.UpdateColumn(ctx, col); err != nil {
		return err
	}
	c.evict(ctx, col.BoardID)
	return nil
}

func (c *Cache) DeleteColumn(ctx context.Context, boardID, id string) error {
	if err := c.base.DeleteColumn(ctx, boardID, id); err != nil {
		return err
	}
	c.evict(ctx, boardID)
	return nil
}

func (c *Cache) DeleteColumnsByBoard(ctx context.Context, boardID string) error {
	if err := c.base.DeleteColumnsByBoard(ctx, boardID); err != nil {
		return err
	}
	c.evict(ctx, boardID)
	return nil
}

func (c *Cache) UpdateColumnOrders(ctx context.Context, boardID string, orders []domain.OrderAssignment) error {
	if err := c.base.UpdateColumnOrders(ctx, boardID, orders); err != nil {
		return err
	}
	c.evict(ctx, boardID)
	return nil
}

func (c *Cache) InsertCard(ctx context.Context, card *domain.Card) error {
	if err := c.base.InsertCard(ctx, card); err != nil {
		return err
	}
	c.evict(ctx, card.BoardID)
	return nil
}

func (c *Cache) UpdateCard(ctx context.Context, card *domain.Card) error {
	if err := c.base.UpdateCard(ctx, card); err != nil {
		return err
	}
	c.evict(ctx, card.BoardID)
	return nil
}

func (c *Cache) DeleteCard(ctx context.Context, boardID, id string) error {
	if err := c.base.DeleteCard(ctx, boardID, id); err != nil {
		return err
	}
	c.evict(ctx, boardID)
	return nil
}

func (c *Cache) DeleteCardsByColumn(ctx context.Context, boardID, columnID string) error {
	if err := c.base.DeleteCardsByColumn(ctx, boardID, columnID); err != nil {
		return err
	}
	c.evict(ctx, boardID)
	return nil
}

func (c *Cache) DeleteCardsByBoard(ctx context.Context, boardID string) error {
	if err := c.base.DeleteCardsByBoard(ctx, boardID); err != nil {
		return err
	}
	c.evict(ctx, boardID)
	return nil
}

func (c *Cache) UpdateCardOrders(ctx context.Context, boardID string, orders []domain.OrderAssignment) error {
	if err := c.base.UpdateCardOrders(ctx, boardID, orders); err != nil {
		return err
	}
	c.evict(ctx, boardID)
	return nil
}

func (c *Cache) MoveCard(ctx context.Context, card *domain.Card, shifts []domain.OrderAssignment) error {
	if err := c.base.MoveCard(ctx, card, shifts); err != nil {
		return err
	}
	c.evict(ctx, card.BoardID)
	return nil
}

func (c *Cache) loadSnapshot(ctx context.Context, boardID string) (*domain.Snapshot, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, snapshotCacheKey(boardID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, snapshotCacheKey(boardID)).Err()
		}
		return nil, false
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		_ = c.redis.Del(ctx, snapshotCacheKey(boardID)).Err()
		return nil, false
	}
	return &snap, true
}

func (c *Cache) storeSnapshot(ctx context.Context, boardID string, snap *domain.Snapshot) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, snapshotCacheKey(boardID), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, boardID string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, snapshotCacheKey(boardID)).Result()
}

func snapshotCacheKey(boardID string) string {
	return "snapshot:" + boardID
}
