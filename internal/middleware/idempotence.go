package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	idempotenceHeader = "x-idempotence"
	idempotenceTTL    = 60 * time.Second
	idempotencePrefix = "studio:idempotence:"
)

// IdempotenceStore is the key-value subset used to claim request keys.
// The Redis wrapper satisfies it.
type IdempotenceStore interface {
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Idempotence rejects a repeated mutation (same method, URL, body and
// session) while the first one is in flight or for a minute after it
// succeeded. A request can name its own key with the x-idempotence header.
func Idempotence(store IdempotenceStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut && c.Request.Method != http.MethodDelete {
			c.Next()
			return
		}

		key, err := resolveIdempotenceKey(c)
		if err != nil || key == "" {
			c.Next()
			return
		}
		storeKey := idempotencePrefix + key
		ctx := c.Request.Context()

		claimed, err := store.SetNX(ctx, storeKey, "0", idempotenceTTL)
		if err != nil {
			c.Next()
			return
		}
		if !claimed {
			msg := "the same request already succeeded; wait a minute before repeating it"
			if val, _ := store.Get(ctx, storeKey); val == "0" {
				msg = "the same request is still being processed"
			}
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"ok":      0,
				"code":    http.StatusConflict,
				"message": msg,
			})
			return
		}

		c.Next()

		// the request context may be done by now
		bg := context.Background()
		status := c.Writer.Status()
		if status >= 200 && status < 300 {
			_ = store.Set(bg, storeKey, "1", idempotenceTTL)
		} else {
			_ = store.Del(bg, storeKey)
		}
	}
}

func resolveIdempotenceKey(c *gin.Context) (string, error) {
	if hdr := c.GetHeader(idempotenceHeader); hdr != "" {
		return hdr, nil
	}

	var body []byte
	if c.Request.Body != nil {
		var err error
		body, err = io.ReadAll(c.Request.Body)
		if err != nil {
			return "", err
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
	}

	raw := c.Request.Method + "|" + c.Request.URL.String() + "|" + string(body) + "|" + NormalizeToken(c.GetHeader("Authorization"))
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:]), nil
}

// MemoryIdempotenceStore is used when Redis is disabled.
type MemoryIdempotenceStore struct {
	mu      sync.Mutex
	values  map[string]string
	expires map[string]time.Time
	now     func() time.Time
}

func NewMemoryIdempotenceStore() *MemoryIdempotenceStore {
	return &MemoryIdempotenceStore{
		values:  make(map[string]string),
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (s *MemoryIdempotenceStore) SetNX(_ context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.getLocked(key); ok {
		return false, nil
	}
	s.setLocked(key, value, ttl)
	return true, nil
}

func (s *MemoryIdempotenceStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, _ := s.getLocked(key)
	return v, nil
}

func (s *MemoryIdempotenceStore) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	s.mu.Lock()
	s.setLocked(key, value, ttl)
	s.mu.Unlock()
	return nil
}

func (s *MemoryIdempotenceStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	for _, k := range keys {
		delete(s.values, k)
		delete(s.expires, k)
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryIdempotenceStore) getLocked(key string) (string, bool) {
	v, ok := s.values[key]
	if !ok {
		return "", false
	}
	if exp, has := s.expires[key]; has && !s.now().Before(exp) {
		delete(s.values, key)
		delete(s.expires, key)
		return "", false
	}
	return v, true
}

func (s *MemoryIdempotenceStore) setLocked(key string, value interface{}, ttl time.Duration) {
	str, _ := value.(string)
	s.values[key] = str
	if ttl > 0 {
		s.expires[key] = s.now().Add(ttl)
	} else {
		delete(s.expires, key)
	}
}
