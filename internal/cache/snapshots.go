package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SnapshotCache is a read-through JSON cache for derived views (calendar
// summaries, availability ranges). Derived views are re-derivable at any
// time, so cache failures are silent and callers fall back to computing.
type SnapshotCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewSnapshotCache constructs a cache. rdb may be nil to disable caching.
func NewSnapshotCache(rdb *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{redis: rdb, ttl: ttl}
}

// CalendarKey builds the cache key for an org's calendar range.
func CalendarKey(orgID, from, to string) string {
	return fmt.Sprintf("calendar:%s:%s:%s", orgID, from, to)
}

// AvailabilityKey builds the cache key for one asset/date resolution.
func AvailabilityKey(orgID, assetID, date string) string {
	return fmt.Sprintf("availability:%s:%s:%s", orgID, assetID, date)
}

// Read loads a cached value into out, reporting whether it was present.
func (c *SnapshotCache) Read(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.ttl <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(val), out) == nil
}

// Write stores a value under key with the configured TTL.
func (c *SnapshotCache) Write(ctx context.Context, key string, value any) {
	if c.redis == nil || c.ttl <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

// InvalidateOrg drops every cached view for an organization. Called on each
// snapshot push so stale derived views never outlive a mutation.
func (c *SnapshotCache) InvalidateOrg(ctx context.Context, orgID string) {
	if c.redis == nil {
		return
	}
	for _, pattern := range []string{
		fmt.Sprintf("calendar:%s:*", orgID),
		fmt.Sprintf("availability:%s:*", orgID),
	} {
		iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()
		for iter.Next(ctx) {
			_ = c.redis.Del(ctx, iter.Val()).Err()
		}
	}
}
