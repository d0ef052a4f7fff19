package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rchan/rchan-web/apiclient"
)

// Revoker remembers tokens that were logged out before their natural expiry.
type Revoker interface {
	Revoke(ctx context.Context, token string, until time.Time) error
	Revoked(ctx context.Context, token string) bool
}

// Manager owns the session lifecycle: hydrate once per request, save when dirty, tear down on logout.
type Manager struct {
	store   Store
	ttl     time.Duration
	revoker Revoker
	now     func() time.Time
}

// NewManager returns a Manager. revoker may be nil.
func NewManager(store Store, ttl time.Duration, revoker Revoker) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{store: store, ttl: ttl, revoker: revoker, now: time.Now}
}

// TTL is how long an idle session survives.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Load hydrates the session named by id. Unknown ids yield a fresh session. On store failures a
// fresh session is returned together with the error so the request can continue anonymously.
func (m *Manager) Load(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return m.fresh(), nil
	}
	s, err := m.store.Load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return m.fresh(), nil
	}
	if err != nil {
		return m.fresh(), err
	}
	// A concurrent logout in another tab revoked the token; do not resurrect it.
	if s.Token != "" && m.revoker != nil && m.revoker.Revoked(ctx, s.Token) {
		s.ClearAuth()
	}
	return s, nil
}

// Save persists s when it changed. Sessions with nothing left in them are removed.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	if !s.dirty {
		return nil
	}
	if s.Empty() {
		if err := m.store.Delete(ctx, s.ID); err != nil {
			return err
		}
		s.dirty = false
		return nil
	}
	s.ExpiresAt = m.now().Add(m.ttl)
	if err := m.store.Save(ctx, s, m.ttl); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// Expired reports whether the backend token in s has passed its exp claim.
func (m *Manager) Expired(s *Session) bool {
	if s.Token == "" {
		return false
	}
	return apiclient.TokenExpired(s.Token, m.now())
}

// Logout clears the persisted session and the in-memory one, and revokes the token.
// s keeps its pending flashes under a new id so the login page can still show them.
func (m *Manager) Logout(ctx context.Context, s *Session) error {
	var errs []error
	if s.Token != "" && m.revoker != nil {
		until, err := apiclient.TokenExpiry(s.Token)
		if err != nil || until.Before(m.now()) {
			until = m.now().Add(m.ttl)
		}
		if err := m.revoker.Revoke(ctx, s.Token, until); err != nil {
			errs = append(errs, fmt.Errorf("revoke token: %w", err))
		}
	}
	if err := m.store.Delete(ctx, s.ID); err != nil {
		errs = append(errs, err)
	}
	s.ID = uuid.NewString()
	s.CreatedAt = m.now()
	s.ClearAuth()
	s.dirty = true
	return errors.Join(errs...)
}

// Renew moves s to a new id, dropping the stored copy under the old one. Called on sign-in so
// a session id planted before login is useless afterwards.
func (m *Manager) Renew(ctx context.Context, s *Session) error {
	err := m.store.Delete(ctx, s.ID)
	s.ID = uuid.NewString()
	s.dirty = true
	return err
}

func (m *Manager) fresh() *Session {
	now := m.now()
	return &Session{ID: uuid.NewString(), CreatedAt: now, ExpiresAt: now.Add(m.ttl)}
}
