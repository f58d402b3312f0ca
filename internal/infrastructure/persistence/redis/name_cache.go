package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// NAME CACHE
// ══════════════════════════════════════════════════════════════════════════════

// TTLDisplayName bounds how stale a cached display name may get.
const TTLDisplayName = 6 * time.Hour

// NameCache caches member display names so leaderboard replies do not need
// one user lookup per line.
type NameCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewNameCache creates a cache. A non-positive ttl falls back to TTLDisplayName.
func NewNameCache(client *redis.Client, ttl time.Duration) *NameCache {
	if ttl <= 0 {
		ttl = TTLDisplayName
	}
	return &NameCache{client: client, ttl: ttl}
}

// NameKey returns the key of a member's cached display name.
func NameKey(memberID string) string {
	return "member:" + memberID + ":name"
}

// GetNames returns the cached names of memberIDs. Misses are absent from
// the map.
func (c *NameCache) GetNames(ctx context.Context, memberIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(memberIDs))
	if len(memberIDs) == 0 {
		return names, nil
	}

	keys := make([]string, len(memberIDs))
	for i, id := range memberIDs {
		keys[i] = NameKey(id)
	}

	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read names: %w", err)
	}
	for i, v := range vals {
		if s, ok := v.(string); ok && s != "" {
			names[memberIDs[i]] = s
		}
	}
	return names, nil
}

// SetNames stores names with the cache TTL.
func (c *NameCache) SetNames(ctx context.Context, names map[string]string) error {
	if len(names) == 0 {
		return nil
	}
	_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for id, name := range names {
			if id == "" {
				return ErrMemberIDEmpty
			}
			pipe.Set(ctx, NameKey(id), name, c.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write names: %w", err)
	}
	return nil
}
