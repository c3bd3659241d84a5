package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SnapshotRepo implements storage.SnapshotStore using Redis. Snapshots carry
// a TTL so stale broken-state records from long-dead boundaries expire.
type SnapshotRepo struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSnapshotRepo creates a Redis-backed snapshot store. A zero TTL defaults
// to 7 days.
func NewSnapshotRepo(client *Client, ttl time.Duration) *SnapshotRepo {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &SnapshotRepo{rdb: client.rdb, ttl: ttl}
}

func snapshotKey(key string) string {
	return fmt.Sprintf("sentinel:snapshot:%s", key)
}

func (r *SnapshotRepo) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.rdb.Get(ctx, snapshotKey(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return data, nil
}

func (r *SnapshotRepo) Set(ctx context.Context, key string, value []byte) error {
	if err := r.rdb.Set(ctx, snapshotKey(key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set snapshot: %w", err)
	}
	return nil
}

func (r *SnapshotRepo) Remove(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, snapshotKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to remove snapshot: %w", err)
	}
	return nil
}
