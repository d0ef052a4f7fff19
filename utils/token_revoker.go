package utils

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

const revokedKeyPrefix = "jwt:revoked:"

// TokenRevoker remembers backend tokens that were logged out before they expired.
// With a nil Redis client it keeps the set in memory, which only works for a single instance.
type TokenRevoker struct {
	rdb *redis.Client

	mu  sync.RWMutex
	mem map[string]time.Time
	now func() time.Time
}

// NewTokenRevoker returns a revoker backed by rdb, or by memory when rdb is nil.
func NewTokenRevoker(rdb *redis.Client) *TokenRevoker {
	return &TokenRevoker{rdb: rdb, mem: map[string]time.Time{}, now: time.Now}
}

// Tokens are stored by digest so raw credentials never land in Redis.
func tokenKey(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Revoke marks token as revoked until the given time.
func (r *TokenRevoker) Revoke(ctx context.Context, token string, until time.Time) error {
	ttl := until.Sub(r.now())
	if token == "" || ttl <= 0 {
		return nil
	}
	if r.rdb != nil {
		return r.rdb.Set(ctx, revokedKeyPrefix+tokenKey(token), "1", ttl).Err()
	}
	r.mu.Lock()
	r.mem[tokenKey(token)] = until
	r.mu.Unlock()
	return nil
}

// Revoked checks if a token was revoked before natural expiration.
func (r *TokenRevoker) Revoked(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	key := tokenKey(token)
	if r.rdb != nil {
		n, err := r.rdb.Exists(ctx, revokedKeyPrefix+key).Result()
		if err != nil {
			// fail-open to avoid locking everybody out when Redis blips
			Sugar.Warnf("revoked token lookup failed: %v", err)
			return false
		}
		return n > 0
	}

	r.mu.RLock()
	until, ok := r.mem[key]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if r.now().After(until) {
		r.mu.Lock()
		delete(r.mem, key)
		r.mu.Unlock()
		return false
	}
	return true
}
