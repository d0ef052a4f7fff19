package utils

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	nonceKeyPrefix = "form:nonce:"
	nonceSweep     = time.Minute
)

// consumeScript is used when GETDEL is not available (Redis < 6.2).
const consumeScript = `local v=redis.call('GET', KEYS[1]); if v then redis.call('DEL', KEYS[1]); end; return v`

// FormNonces issues single-use tokens embedded in submission forms so a double click or a
// browser resubmit does not create the same post twice.
type FormNonces struct {
	rdb *redis.Client
	ttl time.Duration

	mu        sync.Mutex
	mem       map[string]time.Time
	nextSweep time.Time
	now       func() time.Time
}

// NewFormNonces returns a nonce store; ttl defaults to one hour.
func NewFormNonces(rdb *redis.Client, ttl time.Duration) *FormNonces {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &FormNonces{rdb: rdb, ttl: ttl, mem: map[string]time.Time{}, now: time.Now}
}

// Issue creates and stores a fresh nonce.
func (n *FormNonces) Issue(ctx context.Context) string {
	nonce := uuid.NewString()
	if n.rdb != nil {
		if err := n.rdb.Set(ctx, nonceKeyPrefix+nonce, "1", n.ttl).Err(); err == nil {
			return nonce
		}
		// fall through to memory so the form still works on this instance
	}
	n.mu.Lock()
	n.sweepLocked()
	n.mem[nonce] = n.now().Add(n.ttl)
	n.mu.Unlock()
	return nonce
}

// Consume validates and removes a nonce. It returns false for unknown, reused or expired nonces.
func (n *FormNonces) Consume(ctx context.Context, nonce string) bool {
	if nonce == "" {
		return false
	}
	if n.rdb != nil {
		key := nonceKeyPrefix + nonce
		if v, err := n.rdb.GetDel(ctx, key).Result(); err == nil {
			return v != ""
		}
		if res, err := n.rdb.Eval(ctx, consumeScript, []string{key}).Result(); err == nil && res != nil {
			return true
		}
	}
	n.mu.Lock()
	exp, ok := n.mem[nonce]
	if ok {
		delete(n.mem, nonce)
	}
	n.mu.Unlock()
	return ok && n.now().Before(exp)
}

// sweepLocked drops expired nonces at most once per nonceSweep.
func (n *FormNonces) sweepLocked() {
	now := n.now()
	if now.Before(n.nextSweep) {
		return
	}
	for k, exp := range n.mem {
		if now.After(exp) {
			delete(n.mem, k)
		}
	}
	n.nextSweep = now.Add(nonceSweep)
}
