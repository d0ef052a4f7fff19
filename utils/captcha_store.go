package utils

import (
	"context"
	"time"

	"github.com/mojocn/base64Captcha"
	"github.com/redis/go-redis/v9"
)

// redisCaptchaStore implements base64Captcha.Store backed by Redis.
// It avoids per-instance memory state so captcha works behind load balancers.
type redisCaptchaStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCaptchaStore returns a Redis store, or the library's memory store when rdb is nil.
func NewRedisCaptchaStore(rdb *redis.Client, ttl time.Duration) base64Captcha.Store {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if rdb == nil {
		return base64Captcha.NewMemoryStore(base64Captcha.GCLimitNumber, ttl)
	}
	return &redisCaptchaStore{rdb: rdb, ttl: ttl}
}

func (s *redisCaptchaStore) key(id string) string {
	return "captcha:" + id
}

// Set stores the captcha value with TTL.
func (s *redisCaptchaStore) Set(id string, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.rdb.Set(ctx, s.key(id), value, s.ttl).Err()
}

// Get retrieves the value and optionally clears it.
func (s *redisCaptchaStore) Get(id string, clear bool) string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	key := s.key(id)
	if clear {
		// Prefer GETDEL (Redis >= 6.2)
		if v, err := s.rdb.GetDel(ctx, key).Result(); err == nil {
			return v
		}
		if res, err := s.rdb.Eval(ctx, consumeScript, []string{key}).Result(); err == nil {
			if v, ok := res.(string); ok {
				return v
			}
		}
		return ""
	}
	v, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		return ""
	}
	return v
}

// Verify compares answer and optionally clears it.
func (s *redisCaptchaStore) Verify(id, answer string, clear bool) bool {
	v := s.Get(id, clear)
	return v != "" && v == answer
}
