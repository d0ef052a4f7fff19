package utils

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Reference data rarely changes; an hour keeps the section list fresh enough.
	defaultCacheTTL = time.Hour
)

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// Cache stores JSON documents in Redis, or in memory when no Redis client is configured.
type Cache struct {
	rdb    *redis.Client
	prefix string

	mu  sync.Mutex
	mem map[string]cacheEntry
	now func() time.Time
}

// NewCache returns a cache whose keys are namespaced under prefix.
func NewCache(rdb *redis.Client, prefix string) *Cache {
	return &Cache{rdb: rdb, prefix: prefix, mem: map[string]cacheEntry{}, now: time.Now}
}

// GetBytes returns cached bytes for a key.
func (c *Cache) GetBytes(ctx context.Context, key string) ([]byte, bool) {
	key = c.prefix + key
	if c.rdb != nil {
		b, err := c.rdb.Get(ctx, key).Bytes()
		if err != nil {
			if err != redis.Nil {
				Sugar.Debugf("cache get miss key=%s err=%v", key, err)
			}
			return nil, false
		}
		return b, true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.mem[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.mem, key)
		return nil, false
	}
	return e.value, true
}

// SetBytes stores bytes; a non-positive ttl uses the default of one hour.
func (c *Cache) SetBytes(ctx context.Context, key string, b []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	key = c.prefix + key
	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, b, ttl).Err(); err != nil {
			Sugar.Warnf("cache set failed key=%s err=%v", key, err)
		}
		return
	}
	c.mu.Lock()
	c.mem[key] = cacheEntry{value: b, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// GetJSON decodes the cached document into out.
func (c *Cache) GetJSON(ctx context.Context, key string, out any) bool {
	b, ok := c.GetBytes(ctx, key)
	if !ok {
		return false
	}
	return json.Unmarshal(b, out) == nil
}

// SetJSON marshals v and stores JSON bytes.
func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.SetBytes(ctx, key, b, ttl)
}

// InvalidateByPrefix deletes keys that match the given prefix using SCAN.
func (c *Cache) InvalidateByPrefix(ctx context.Context, prefix string) {
	prefix = c.prefix + prefix
	if c.rdb == nil {
		c.mu.Lock()
		for k := range c.mem {
			if strings.HasPrefix(k, prefix) {
				delete(c.mem, k)
			}
		}
		c.mu.Unlock()
		return
	}
	var cursor uint64
	for i := 0; i < 10; i++ { // limit rounds to avoid long loops
		keys, cur, err := c.rdb.Scan(ctx, cursor, prefix+"*", 1000).Result()
		if err != nil {
			break
		}
		cursor = cur
		if len(keys) > 0 {
			pipe := c.rdb.Pipeline()
			for _, k := range keys {
				pipe.Del(ctx, k)
			}
			_, _ = pipe.Exec(ctx)
		}
		if cursor == 0 {
			break
		}
	}
}
