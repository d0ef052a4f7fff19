// Package session holds the per-browser state of the web frontend: the backend bearer token,
// the signed-in account, pending flash alerts and the theme preference.
package session

import (
	"time"

	"github.com/rchan/rchan-web/models"
)

// User is the minimal profile kept next to the token.
type User struct {
	UserID     string      `json:"userId"`
	Username   string      `json:"username"`
	Role       models.Role `json:"role"`
	FirstLogin time.Time   `json:"firstLogin"`
	LastLogin  time.Time   `json:"lastLogin"`
}

// FlashKind selects the alert style.
type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashError   FlashKind = "error"
	FlashWarning FlashKind = "warning"
)

// Title is the alert heading.
func (k FlashKind) Title() string {
	switch k {
	case FlashSuccess:
		return "¡Éxito!"
	case FlashError:
		return "Error"
	case FlashWarning:
		return "Advertencia"
	}
	return ""
}

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Kind    FlashKind `json:"kind"`
	Message string    `json:"message"`
}

// Session is the explicit replacement for ad hoc browser storage. It is hydrated once per
// request by the Manager and handed to handlers.
type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"token,omitempty"`
	User      *User     `json:"user,omitempty"`
	Flashes   []Flash   `json:"flashes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`

	// DarkMode comes from its own cookie and is never persisted with the session.
	DarkMode bool `json:"-"`

	dirty bool
}

// Authenticated reports whether the session carries a signed-in account.
func (s *Session) Authenticated() bool {
	return s != nil && s.Token != "" && s.User != nil && s.User.Username != ""
}

// IsAdmin reports whether the signed-in account has the admin role.
func (s *Session) IsAdmin() bool {
	return s.Authenticated() && s.User.Role.IsAdmin()
}

// Role returns the signed-in role or RoleUnknown.
func (s *Session) Role() models.Role {
	if !s.Authenticated() {
		return models.RoleUnknown
	}
	return s.User.Role
}

// SignIn stores the token and profile returned by the login endpoint.
func (s *Session) SignIn(token string, u User) {
	s.Token = token
	s.User = &u
	s.dirty = true
}

// ClearAuth drops the token and profile but keeps pending flashes.
func (s *Session) ClearAuth() {
	if s.Token == "" && s.User == nil {
		return
	}
	s.Token = ""
	s.User = nil
	s.dirty = true
}

// AddFlash queues an alert for the next page.
func (s *Session) AddFlash(kind FlashKind, message string) {
	s.Flashes = append(s.Flashes, Flash{Kind: kind, Message: message})
	s.dirty = true
}

// PopFlashes returns and clears the queued alerts.
func (s *Session) PopFlashes() []Flash {
	if len(s.Flashes) == 0 {
		return nil
	}
	out := s.Flashes
	s.Flashes = nil
	s.dirty = true
	return out
}

// Dirty reports whether the session changed since it was loaded.
func (s *Session) Dirty() bool { return s.dirty }

// Empty reports whether there is nothing worth persisting.
func (s *Session) Empty() bool {
	return s.Token == "" && s.User == nil && len(s.Flashes) == 0
}
