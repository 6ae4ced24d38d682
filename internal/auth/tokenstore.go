package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"
	goredis "github.com/redis/go-redis/v9"
)

// ErrTokenNotFound is returned when a key is absent or expired.
var ErrTokenNotFound = errors.New("token not found")

// TokenStore is a key/value store with per-key expiry for ephemeral
// credentials such as OAuth state values and access tokens.
type TokenStore interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// ============================================================================
// In-Memory Token Store (for development/testing)
// ============================================================================

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero = never
}

// MemoryStore keeps tokens in process memory. A background janitor evicts
// expired entries; Close stops it.
type MemoryStore struct {
	cache *ttlcache.Cache[string, memoryEntry]
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory store and starts its janitor.
func NewMemoryStore() *MemoryStore {
	cache := ttlcache.New[string, memoryEntry](
		ttlcache.WithDisableTouchOnHit[string, memoryEntry](),
	)
	go cache.Start()
	return &MemoryStore{cache: cache, now: time.Now}
}

// Set stores value under key. A ttl <= 0 never expires.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	expiry := ttlcache.NoTTL
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
		expiry = ttl
	}
	s.cache.Set(key, entry, expiry)
	return nil
}

// Get returns the value under key.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	item := s.cache.Get(key)
	if item == nil {
		return nil, ErrTokenNotFound
	}
	entry := item.Value()
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		s.cache.Delete(key)
		return nil, ErrTokenNotFound
	}
	return append([]byte(nil), entry.value...), nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

// Len returns the number of stored entries, including expired ones the
// janitor has not evicted yet.
func (s *MemoryStore) Len() int {
	return s.cache.Len()
}

// Close stops the janitor. It must be called at most once.
func (s *MemoryStore) Close() error {
	s.cache.Stop()
	return nil
}

// ============================================================================
// Redis Token Store
// ============================================================================

// RedisConfig configures the Redis connection.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // prepended to every key
}

// RedisStore keeps tokens in Redis using native key expiry.
type RedisStore struct {
	rdb    *goredis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("missing redis address")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewRedisStoreFromClient(rdb, cfg.Prefix), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(rdb *goredis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

// Set stores value under key. A ttl <= 0 never expires.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.rdb.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("storing token: %w", err)
	}
	return nil
}

// Get returns the value under key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading token: %w", err)
	}
	return value, nil
}

// Delete removes key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	return nil
}

// Ping verifies Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
