// Package savedhint remembers which job ids this client has saved to the
// library. The record is advisory: it only fills in the saved state while
// library data cannot be fetched and is never authoritative.
package savedhint

import (
	"context"
	"sync"
	"time"
)

const (
	keyPrefix  = "studio:saved:"
	defaultTTL = 30 * 24 * time.Hour
)

// Cache records saved job ids per user.
type Cache interface {
	Mark(ctx context.Context, userID string, jobIDs ...string) error
	All(ctx context.Context, userID string) (map[string]bool, error)
}

// SetStore is the set subset of the Redis wrapper.
type SetStore interface {
	SAdd(ctx context.Context, key string, ttl time.Duration, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
}

// RedisCache keeps one set per user.
type RedisCache struct {
	store SetStore
	ttl   time.Duration
}

// NewRedisCache returns a cache whose sets expire ttl after the last write;
// ttl <= 0 selects thirty days.
func NewRedisCache(store SetStore, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisCache{store: store, ttl: ttl}
}

func Key(userID string) string { return keyPrefix + userID }

func (c *RedisCache) Mark(ctx context.Context, userID string, jobIDs ...string) error {
	if userID == "" {
		return nil
	}
	return c.store.SAdd(ctx, Key(userID), c.ttl, jobIDs...)
}

func (c *RedisCache) All(ctx context.Context, userID string) (map[string]bool, error) {
	out := map[string]bool{}
	if userID == "" {
		return out, nil
	}
	members, err := c.store.SMembers(ctx, Key(userID))
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		out[m] = true
	}
	return out, nil
}

// MemoryCache lives as long as the process.
type MemoryCache struct {
	mu  sync.RWMutex
	ids map[string]map[string]bool
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{ids: make(map[string]map[string]bool)}
}

func (c *MemoryCache) Mark(_ context.Context, userID string, jobIDs ...string) error {
	if userID == "" || len(jobIDs) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	set := c.ids[userID]
	if set == nil {
		set = make(map[string]bool, len(jobIDs))
		c.ids[userID] = set
	}
	for _, id := range jobIDs {
		set[id] = true
	}
	return nil
}

func (c *MemoryCache) All(_ context.Context, userID string) (map[string]bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]bool, len(c.ids[userID]))
	for id := range c.ids[userID] {
		out[id] = true
	}
	return out, nil
}
