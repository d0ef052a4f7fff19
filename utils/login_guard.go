package utils

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

func guardKey(parts ...string) string {
	return "login:" + strings.Join(parts, ":")
}

type failWindow struct {
	count     int
	expiresAt time.Time
}

// LoginGuard counts failed administrator logins per client IP. After MaxFailures within
// Window the IP must solve a captcha, when captcha is enabled, before trying again.
type LoginGuard struct {
	rdb         *redis.Client
	MaxFailures int
	Window      time.Duration

	mu  sync.Mutex
	mem map[string]failWindow
	now func() time.Time
}

// NewLoginGuard returns a guard allowing maxFailures attempts per window.
func NewLoginGuard(rdb *redis.Client, maxFailures int, window time.Duration) *LoginGuard {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &LoginGuard{rdb: rdb, MaxFailures: maxFailures, Window: window, mem: map[string]failWindow{}, now: time.Now}
}

// RecordFailure increments the failure count for ip and returns the current count.
func (g *LoginGuard) RecordFailure(ctx context.Context, ip string) int {
	if g.rdb != nil {
		key := guardKey("fail", ip)
		n, err := g.rdb.Incr(ctx, key).Result()
		if err != nil {
			return 0
		}
		if n == 1 {
			_ = g.rdb.Expire(ctx, key, g.Window).Err()
		}
		return int(n)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	w := g.mem[ip]
	if now.After(w.expiresAt) {
		w = failWindow{expiresAt: now.Add(g.Window)}
	}
	w.count++
	g.mem[ip] = w
	return w.count
}

// Failures returns the failure count for ip in the current window.
func (g *LoginGuard) Failures(ctx context.Context, ip string) int {
	if g.rdb != nil {
		n, err := g.rdb.Get(ctx, guardKey("fail", ip)).Int()
		if err != nil {
			// redis.Nil or a transient error: fail-open
			return 0
		}
		return n
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	w, ok := g.mem[ip]
	if !ok || g.now().After(w.expiresAt) {
		delete(g.mem, ip)
		return 0
	}
	return w.count
}

// Suspicious reports whether ip reached MaxFailures.
func (g *LoginGuard) Suspicious(ctx context.Context, ip string) bool {
	return g.Failures(ctx, ip) >= g.MaxFailures
}

// Reset clears the failures of ip after a successful login.
func (g *LoginGuard) Reset(ctx context.Context, ip string) {
	if g.rdb != nil {
		_ = g.rdb.Del(ctx, guardKey("fail", ip)).Err()
		return
	}
	g.mu.Lock()
	delete(g.mem, ip)
	g.mu.Unlock()
}
