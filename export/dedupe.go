package export

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDeduper marks boards with an export in flight so all instances
// reject duplicate requests.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper using the provided Redis client and
// TTL. The TTL is a safety valve: a crashed worker must not block a
// board's exports forever.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) key(boardID string) string {
	return "export:" + boardID
}

// Add records the board if no export is in flight. It returns true when
// the marker was newly added.
func (r *RedisDeduper) Add(ctx context.Context, boardID string) (bool, error) {
	return r.client.SetNX(ctx, r.key(boardID), 1, r.ttl).Result()
}

// Remove clears the marker once processing completes, successfully or
// not.
func (r *RedisDeduper) Remove(ctx context.Context, boardID string) error {
	return r.client.Del(ctx, r.key(boardID)).Err()
}
