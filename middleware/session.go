package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rchan/rchan-web/session"
	"github.com/rchan/rchan-web/utils"
)

const (
	// SessionCookie names the cookie holding the session id.
	SessionCookie = "rchan_session"
	// ThemeCookie holds the dark mode preference as "true" or "false".
	ThemeCookie = "r-chan-theme"

	contextSessionKey = "session"
	contextManagerKey = "session_manager"
	contextSecureKey  = "session_secure"
)

// Session hydrates the visitor's session once per request and persists it afterwards.
// Handlers that write a body should call Commit first so the cookie goes out with the headers.
func Session(m *session.Manager, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := c.Cookie(SessionCookie)
		s, err := m.Load(c.Request.Context(), id)
		if err != nil {
			utils.Logger.Warn("session load failed", zap.Error(err), zap.String(utils.RequestIDKey, c.GetString(utils.RequestIDKey)))
		}
		s.DarkMode = DarkMode(c)

		c.Set(contextSessionKey, s)
		c.Set(contextManagerKey, m)
		c.Set(contextSecureKey, secure)

		c.Next()

		if c.Writer.Written() {
			save(c, m, s)
			return
		}
		Commit(c)
	}
}

// DarkMode reads the theme cookie. Dark is the default.
func DarkMode(c *gin.Context) bool {
	v, err := c.Cookie(ThemeCookie)
	if err != nil {
		return true
	}
	dark, err := strconv.ParseBool(v)
	if err != nil {
		return true
	}
	return dark
}

// SetDarkMode stores the theme preference for a year.
func SetDarkMode(c *gin.Context, dark bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(ThemeCookie, strconv.FormatBool(dark), 365*24*3600, "/", "", c.GetBool(contextSecureKey), false)
	if s := CurrentSession(c); s != nil {
		s.DarkMode = dark
	}
}

// CurrentSession returns the hydrated session. Outside the Session middleware it returns an
// empty, unsaved session.
func CurrentSession(c *gin.Context) *session.Session {
	if v, ok := c.Get(contextSessionKey); ok {
		if s, ok := v.(*session.Session); ok {
			return s
		}
	}
	s := &session.Session{}
	c.Set(contextSessionKey, s)
	return s
}

func manager(c *gin.Context) *session.Manager {
	if v, ok := c.Get(contextManagerKey); ok {
		if m, ok := v.(*session.Manager); ok {
			return m
		}
	}
	return nil
}

// Commit saves the session when it changed and refreshes its cookie. It is safe to call more
// than once per request.
func Commit(c *gin.Context) {
	m := manager(c)
	if m == nil {
		return
	}
	s := CurrentSession(c)
	dirty := s.Dirty()
	save(c, m, s)

	secure := c.GetBool(contextSecureKey)
	c.SetSameSite(http.SameSiteLaxMode)
	switch {
	case s.Empty():
		if _, err := c.Cookie(SessionCookie); err == nil {
			c.SetCookie(SessionCookie, "", -1, "/", "", secure, true)
		}
	case dirty || s.Authenticated():
		c.SetCookie(SessionCookie, s.ID, int(m.TTL().Seconds()), "/", "", secure, true)
	}
}

func save(c *gin.Context, m *session.Manager, s *session.Session) {
	if err := m.Save(c.Request.Context(), s); err != nil {
		utils.Logger.Error("session save failed", zap.Error(err), zap.String(utils.RequestIDKey, c.GetString(utils.RequestIDKey)))
		utils.CaptureError(c, err)
	}
}

// EndSession logs the visitor out: the token is revoked and the stored session removed.
// Pending flashes survive under a new session id.
func EndSession(c *gin.Context) {
	s := CurrentSession(c)
	if m := manager(c); m != nil {
		if err := m.Logout(c.Request.Context(), s); err != nil {
			utils.Logger.Warn("logout cleanup failed", zap.Error(err))
		}
		return
	}
	s.ClearAuth()
}

// SignIn stores the backend credentials in a session with a fresh id.
func SignIn(c *gin.Context, token string, u session.User) {
	s := CurrentSession(c)
	if m := manager(c); m != nil {
		if err := m.Renew(c.Request.Context(), s); err != nil {
			utils.Logger.Warn("session renew failed", zap.Error(err))
		}
	}
	s.SignIn(token, u)
}
