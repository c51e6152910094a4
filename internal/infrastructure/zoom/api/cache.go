// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/pkg/clock"
)

// CachedResponse is a successful Zoom API response kept for a short TTL.
type CachedResponse struct {
	StatusCode int       `msgpack:"status"`
	Body       []byte    `msgpack:"body"`
	StoredAt   time.Time `msgpack:"stored_at"`
}

// ResponseCache stores API responses by caller supplied key. Implementations
// treat every failure as a miss; the cache is never a source of errors.
type ResponseCache interface {
	Get(ctx context.Context, key string) (*CachedResponse, bool)
	Set(ctx context.Context, key string, value *CachedResponse, ttl time.Duration)
}

type memoryCacheEntry struct {
	value     *CachedResponse
	expiresAt time.Time
}

// MemoryCache is a process-local ResponseCache.
type MemoryCache struct {
	mu         sync.Mutex
	clock      clock.Clock
	entries    map[string]memoryCacheEntry
	maxEntries int
}

// DefaultMemoryCacheEntries bounds the memory cache size.
const DefaultMemoryCacheEntries = 1024

// NewMemoryCache creates a memory cache holding at most maxEntries responses.
func NewMemoryCache(clk clock.Clock, maxEntries int) *MemoryCache {
	if clk == nil {
		clk = clock.Real()
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMemoryCacheEntries
	}
	return &MemoryCache{
		clock:      clk,
		entries:    make(map[string]memoryCacheEntry),
		maxEntries: maxEntries,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*CachedResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.clock.Now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.value, true
}

func (c *MemoryCache) Set(_ context.Context, key string, value *CachedResponse, ttl time.Duration) {
	if ttl <= 0 || value == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if len(c.entries) >= c.maxEntries {
		c.evict(now)
	}
	c.entries[key] = memoryCacheEntry{value: value, expiresAt: now.Add(ttl)}
}

// evict drops expired entries, then the entry closest to expiry until there
// is room. Must be called with mu held.
func (c *MemoryCache) evict(now time.Time) {
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
	for len(c.entries) >= c.maxEntries {
		var oldestKey string
		var oldest time.Time
		for key, entry := range c.entries {
			if oldestKey == "" || entry.expiresAt.Before(oldest) {
				oldestKey, oldest = key, entry.expiresAt
			}
		}
		delete(c.entries, oldestKey)
	}
}

// Len returns the number of cached responses.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RedisCmdable is the subset of the go-redis client used by RedisCache.
type RedisCmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisCache shares cached responses between service instances. Entries are
// msgpack encoded under a key prefix.
type RedisCache struct {
	client RedisCmdable
	prefix string
}

// DefaultRedisKeyPrefix namespaces gateway entries in a shared Redis.
const DefaultRedisKeyPrefix = "lfx-attendance:zoom:"

// NewRedisCache creates a Redis backed response cache.
func NewRedisCache(client RedisCmdable, prefix string) *RedisCache {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*CachedResponse, bool) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.WarnContext(ctx, "redis cache read failed", logging.ErrKey, err, "key", key)
		}
		return nil, false
	}

	var value CachedResponse
	if err := msgpack.Unmarshal(raw, &value); err != nil {
		slog.WarnContext(ctx, "redis cache entry is corrupt", logging.ErrKey, err, "key", key)
		return nil, false
	}
	return &value, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value *CachedResponse, ttl time.Duration) {
	if ttl <= 0 || value == nil {
		return
	}
	raw, err := msgpack.Marshal(value)
	if err != nil {
		slog.WarnContext(ctx, "failed to encode cache entry", logging.ErrKey, err, "key", key)
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, raw, ttl).Err(); err != nil {
		slog.WarnContext(ctx, "redis cache write failed", logging.ErrKey, err, "key", key)
	}
}

// TieredCache reads the local cache first and falls back to the shared one,
// populating the local cache on a shared hit.
type TieredCache struct {
	local    ResponseCache
	shared   ResponseCache
	localTTL time.Duration
}

// NewTieredCache combines a local and a shared cache. Shared hits are kept
// locally for localTTL.
func NewTieredCache(local, shared ResponseCache, localTTL time.Duration) *TieredCache {
	return &TieredCache{local: local, shared: shared, localTTL: localTTL}
}

func (c *TieredCache) Get(ctx context.Context, key string) (*CachedResponse, bool) {
	if value, ok := c.local.Get(ctx, key); ok {
		return value, true
	}
	value, ok := c.shared.Get(ctx, key)
	if ok {
		c.local.Set(ctx, key, value, c.localTTL)
	}
	return value, ok
}

func (c *TieredCache) Set(ctx context.Context, key string, value *CachedResponse, ttl time.Duration) {
	localTTL := ttl
	if c.localTTL > 0 && c.localTTL < ttl {
		localTTL = c.localTTL
	}
	c.local.Set(ctx, key, value, localTTL)
	c.shared.Set(ctx, key, value, ttl)
}
