package session

import (
	"context"
	"sync"
	"time"
)

const keyPrefix = "studio:session:"

// TokenStore persists the bearer token per profile.
type TokenStore interface {
	Save(ctx context.Context, profile, token string, ttl time.Duration) error
	Load(ctx context.Context, profile string) (string, error)
	Clear(ctx context.Context, profile string) error
}

// KV is the string subset of the Redis wrapper.
type KV interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisStore keeps the token under studio:session:<profile>, expiring with it.
type RedisStore struct {
	kv KV
}

func NewRedisStore(kv KV) *RedisStore { return &RedisStore{kv: kv} }

func (s *RedisStore) Save(ctx context.Context, profile, token string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return s.kv.Set(ctx, keyPrefix+profile, token, ttl)
}

func (s *RedisStore) Load(ctx context.Context, profile string) (string, error) {
	return s.kv.Get(ctx, keyPrefix+profile)
}

func (s *RedisStore) Clear(ctx context.Context, profile string) error {
	return s.kv.Del(ctx, keyPrefix+profile)
}

// MemoryStore forgets everything when the process exits.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]string)}
}

func (s *MemoryStore) Save(_ context.Context, profile, token string, _ time.Duration) error {
	s.mu.Lock()
	s.tokens[profile] = token
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Load(_ context.Context, profile string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[profile], nil
}

func (s *MemoryStore) Clear(_ context.Context, profile string) error {
	s.mu.Lock()
	delete(s.tokens, profile)
	s.mu.Unlock()
	return nil
}
