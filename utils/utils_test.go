package utils

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newMiniRedisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return mr, rc
}

func TestTokenRevokerRedis(t *testing.T) {
	ctx := context.Background()
	mr, rc := newMiniRedisClient(t)
	r := NewTokenRevoker(rc)

	require.False(t, r.Revoked(ctx, "tok"))
	require.NoError(t, r.Revoke(ctx, "tok", time.Now().Add(time.Minute)))
	assert.True(t, r.Revoked(ctx, "tok"))
	assert.False(t, r.Revoked(ctx, "other"))
	assert.False(t, mr.Exists(revokedKeyPrefix+"tok"), "raw token must not be used as key")

	mr.FastForward(2 * time.Minute)
	assert.False(t, r.Revoked(ctx, "tok"))
}

func TestTokenRevokerMemory(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	r := NewTokenRevoker(nil)
	r.now = func() time.Time { return now }

	require.NoError(t, r.Revoke(ctx, "tok", now.Add(time.Minute)))
	assert.True(t, r.Revoked(ctx, "tok"))

	// already expired tokens are not stored
	require.NoError(t, r.Revoke(ctx, "old", now.Add(-time.Second)))
	assert.False(t, r.Revoked(ctx, "old"))

	now = now.Add(2 * time.Minute)
	assert.False(t, r.Revoked(ctx, "tok"))
}

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	_, rc := newMiniRedisClient(t)

	for name, c := range map[string]*Cache{"redis": NewCache(rc, "t:"), "memory": NewCache(nil, "t:")} {
		t.Run(name, func(t *testing.T) {
			c.SetJSON(ctx, "sections:all", []string{"GENERAL", "NEWS"}, time.Minute)
			c.SetJSON(ctx, "replies:1", []int{1}, time.Minute)

			var got []string
			require.True(t, c.GetJSON(ctx, "sections:all", &got))
			assert.Equal(t, []string{"GENERAL", "NEWS"}, got)

			c.InvalidateByPrefix(ctx, "sections:")
			assert.False(t, c.GetJSON(ctx, "sections:all", &got))
			_, ok := c.GetBytes(ctx, "replies:1")
			assert.True(t, ok)
		})
	}
}

func TestCacheMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	c := NewCache(nil, "")
	c.now = func() time.Time { return now }

	c.SetBytes(ctx, "k", []byte("v"), time.Second)
	_, ok := c.GetBytes(ctx, "k")
	require.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok = c.GetBytes(ctx, "k")
	assert.False(t, ok)
}

func TestFormNoncesSingleUse(t *testing.T) {
	ctx := context.Background()
	_, rc := newMiniRedisClient(t)

	for name, n := range map[string]*FormNonces{"redis": NewFormNonces(rc, time.Minute), "memory": NewFormNonces(nil, time.Minute)} {
		t.Run(name, func(t *testing.T) {
			nonce := n.Issue(ctx)
			require.NotEmpty(t, nonce)
			assert.True(t, n.Consume(ctx, nonce))
			assert.False(t, n.Consume(ctx, nonce), "second use must fail")
			assert.False(t, n.Consume(ctx, ""))
			assert.False(t, n.Consume(ctx, "unknown"))
		})
	}
}

func TestSignerCSRF(t *testing.T) {
	s := NewSigner("secret")
	tok := s.CSRFToken("session-1")

	assert.NoError(t, s.CheckCSRF("session-1", tok))
	assert.ErrorIs(t, s.CheckCSRF("session-2", tok), ErrCSRF)
	assert.ErrorIs(t, s.CheckCSRF("session-1", ""), ErrCSRF)
	assert.ErrorIs(t, NewSigner("other").CheckCSRF("session-1", tok), ErrCSRF)
	assert.NotEqual(t, s.Sign("a", "x"), s.Sign("b", "x"), "purpose is part of the MAC")
}

func TestStateTokens(t *testing.T) {
	now := time.Now()
	st := NewStateTokens("secret", time.Minute)
	st.now = func() time.Time { return now }

	tok, err := st.Issue("verify", "a@b.co", "")
	require.NoError(t, err)

	claims, err := st.Parse(tok, "verify")
	require.NoError(t, err)
	assert.Equal(t, "a@b.co", claims.Email)

	_, err = st.Parse(tok, "reset")
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = st.Parse("", "verify")
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = NewStateTokens("other", time.Minute).Parse(tok, "verify")
	assert.ErrorIs(t, err, ErrInvalidState)

	now = now.Add(2 * time.Minute)
	_, err = st.Parse(tok, "verify")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestStateTokensHideClaims(t *testing.T) {
	st := NewStateTokens("secret", time.Minute)
	tok, err := st.Issue("reset", "alguien@correo.es", "424242")
	require.NoError(t, err)
	assert.NotContains(t, tok, "424242")

	raw, err := base64.RawURLEncoding.DecodeString(tok)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "alguien@correo.es")
	assert.NotContains(t, string(raw), "424242")

	claims, err := st.Parse(tok, "reset")
	require.NoError(t, err)
	assert.Equal(t, "424242", claims.Code)

	// flipping one byte of the sealed token breaks it
	raw[len(raw)-1] ^= 1
	_, err = st.Parse(base64.RawURLEncoding.EncodeToString(raw), "reset")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestGinzapMasksSecretQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(Ginzap(zap.New(core), time.RFC3339, true))
	r.GET("/forgot-password/reset", func(c *gin.Context) { c.Status(http.StatusOK) })

	q := url.Values{"state": {"eyJzdGF0ZSI6IjQyNDI0MiJ9"}, "code": {"424242"}, "page": {"2"}}
	req := httptest.NewRequest(http.MethodGet, "/forgot-password/reset?"+q.Encode(), nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 1, logs.Len())
	logged := logs.All()[0].ContextMap()["query"].(string)
	assert.NotContains(t, logged, "424242")
	assert.NotContains(t, logged, "eyJzdGF0ZSI6IjQyNDI0MiJ9")
	assert.Contains(t, logged, "page=2")

	assert.Equal(t, "page=2&sort=asc", RedactQuery("page=2&sort=asc"))
	assert.Equal(t, "", RedactQuery(""))
}

func TestLoginGuard(t *testing.T) {
	ctx := context.Background()
	mr, rc := newMiniRedisClient(t)

	g := NewLoginGuard(rc, 2, time.Minute)
	assert.False(t, g.Suspicious(ctx, "1.2.3.4"))
	assert.Equal(t, 1, g.RecordFailure(ctx, "1.2.3.4"))
	assert.Equal(t, 2, g.RecordFailure(ctx, "1.2.3.4"))
	assert.True(t, g.Suspicious(ctx, "1.2.3.4"))
	assert.False(t, g.Suspicious(ctx, "5.6.7.8"))

	mr.FastForward(2 * time.Minute)
	assert.False(t, g.Suspicious(ctx, "1.2.3.4"))

	g.RecordFailure(ctx, "1.2.3.4")
	g.Reset(ctx, "1.2.3.4")
	assert.Zero(t, g.Failures(ctx, "1.2.3.4"))
}

func TestLoginGuardMemory(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	g := NewLoginGuard(nil, 2, time.Minute)
	g.now = func() time.Time { return now }

	g.RecordFailure(ctx, "ip")
	g.RecordFailure(ctx, "ip")
	assert.True(t, g.Suspicious(ctx, "ip"))

	now = now.Add(2 * time.Minute)
	assert.False(t, g.Suspicious(ctx, "ip"))
	assert.Equal(t, 1, g.RecordFailure(ctx, "ip"), "a new window starts from one")
}

func TestCaptchaVerifyConsumes(t *testing.T) {
	_, rc := newMiniRedisClient(t)
	store := NewRedisCaptchaStore(rc, time.Minute)
	c := NewCaptcha(store)

	id, img, err := c.Generate()
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Contains(t, img, "data:image/png;base64,")

	answer := store.Get(id, false)
	require.NotEmpty(t, answer)
	assert.False(t, c.Verify(id, "wrong"))
	// a failed attempt consumes the challenge too
	assert.False(t, c.Verify(id, answer))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "hola mundo", Sanitize("  <b>hola</b> mundo <script>x()</script> "))
	assert.Equal(t, "a < b & c", Sanitize("a < b & c"))
}
