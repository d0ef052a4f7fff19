package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/rchan/rchan-web/session"
	"github.com/rchan/rchan-web/utils"
)

const (
	limiterIdle = 5 * time.Minute
	// limiterSweep is how often Allow walks the table for idle buckets.
	limiterSweep = time.Minute

	MsgRateLimited = "Demasiadas solicitudes. Espera un momento e inténtalo de nuevo."
)

type visitor struct {
	limiter *rate.Limiter
	expires time.Time
}

// RateLimiter is a per-IP token bucket. Idle buckets are dropped after five minutes.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu        sync.Mutex
	visitors  map[string]*visitor
	nextSweep time.Time
	now       func() time.Time
}

// NewRateLimiter allows perMinute requests per IP with a burst of half that.
func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		limit:    rate.Every(time.Minute / time.Duration(max(perMinute, 1))),
		burst:    max(perMinute/2, 1),
		visitors: map[string]*visitor{},
		now:      time.Now,
	}
}

// Allow consumes one token for key.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if !now.Before(l.nextSweep) {
		l.sweepLocked(now)
	}
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.expires = now.Add(limiterIdle)
	return v.limiter.AllowN(now, 1)
}

func (l *RateLimiter) sweepLocked(now time.Time) {
	for k, v := range l.visitors {
		if now.After(v.expires) {
			delete(l.visitors, k)
		}
	}
	l.nextSweep = now.Add(limiterSweep)
}

// Middleware answers over-limit JSON callers with a 429. Browsers go back to the previous page
// with a flash.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.Allow(c.ClientIP()) {
			c.Next()
			return
		}
		if utils.WantsJSON(c) {
			utils.Error(c, http.StatusTooManyRequests, 42901, MsgRateLimited)
			c.Abort()
			return
		}
		CurrentSession(c).AddFlash(session.FlashWarning, MsgRateLimited)
		Commit(c)
		c.Redirect(http.StatusSeeOther, Back(c))
		c.Abort()
	}
}
