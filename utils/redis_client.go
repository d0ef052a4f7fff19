package utils

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rchan/rchan-web/config"
)

var (
	redisClient *redis.Client
	redisOnce   sync.Once
)

// NewRedisClient builds a client from cfg without checking connectivity.
func NewRedisClient(cfg config.AppConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.RedisHost, strconv.Itoa(cfg.RedisPort)),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// GetRedis returns a singleton Redis client based on loaded config, or nil when Redis
// cannot be reached. Callers fall back to in-process state on nil.
func GetRedis() *redis.Client {
	redisOnce.Do(func() {
		cfg := config.Get()
		rc := NewRedisClient(cfg)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rc.Ping(ctx).Err(); err != nil {
			Sugar.Warnf("redis unavailable at %s:%d, using in-process state: %v", cfg.RedisHost, cfg.RedisPort, err)
			_ = rc.Close()
			return
		}
		redisClient = rc
	})
	return redisClient
}
