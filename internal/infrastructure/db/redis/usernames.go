package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const usernameTTL = time.Hour

// UsernameCache caches canonical-username → profile-id resolutions so that
// friend lookups skip a Mongo query on the hot path. Entries expire after
// usernameTTL and are invalidated eagerly on username change.
// Key format: uname:<username_lower>
type UsernameCache struct {
	client *redis.Client
}

// NewUsernameCache creates a UsernameCache wrapping the given Redis client.
func NewUsernameCache(client *redis.Client) *UsernameCache {
	return &UsernameCache{client: client}
}

// Lookup returns the cached profile id for a canonical username, if any.
func (c *UsernameCache) Lookup(ctx context.Context, usernameLower string) (string, bool, error) {
	id, err := c.client.Get(ctx, c.key(usernameLower)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("username cache get: %w", err)
	}
	return id, true, nil
}

// Store records a resolution (expires after usernameTTL).
func (c *UsernameCache) Store(ctx context.Context, usernameLower, id string) error {
	return c.client.Set(ctx, c.key(usernameLower), id, usernameTTL).Err()
}

// Invalidate drops a cached resolution, e.g. after a username change.
func (c *UsernameCache) Invalidate(ctx context.Context, usernameLower string) error {
	return c.client.Del(ctx, c.key(usernameLower)).Err()
}

func (c *UsernameCache) key(usernameLower string) string {
	return "uname:" + usernameLower
}
