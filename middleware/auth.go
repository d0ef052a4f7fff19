package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rchan/rchan-web/session"
	"github.com/rchan/rchan-web/utils"
)

const (
	// LoginPath is where unauthenticated visitors of the admin area are sent.
	LoginPath = "/administrator/login"
	// DashboardPath is the landing page of the admin area.
	DashboardPath = "/administrator"

	MsgSessionExpired = "Sesión expirada. Por favor, inicia sesión nuevamente."
	MsgAdminOnly      = "No tienes permisos para acceder a esta sección"
)

// RequireLogin lets signed-in visitors through. Visitors whose backend token already expired
// are logged out with a flash before being sent to the login page.
func RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := CurrentSession(c)
		if !s.Authenticated() {
			deny(c, http.StatusUnauthorized, 40101, LoginPath, "")
			return
		}
		if m := manager(c); m != nil && m.Expired(s) {
			ExpireSession(c)
			return
		}
		c.Next()
	}
}

// RequireAdmin restricts a route to the ADMIN role. It must run after RequireLogin.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentSession(c).IsAdmin() {
			deny(c, http.StatusForbidden, 40301, DashboardPath, MsgAdminOnly)
			return
		}
		c.Next()
	}
}

// ExpireSession handles a backend token that is no longer accepted: logout, flash and
// redirect to the login page.
func ExpireSession(c *gin.Context) {
	EndSession(c)
	deny(c, http.StatusUnauthorized, 40102, LoginPath, MsgSessionExpired)
}

// deny answers JSON callers with the envelope and browsers with a redirect carrying a flash.
func deny(c *gin.Context, status, code int, target, message string) {
	if utils.WantsJSON(c) {
		msg := message
		if msg == "" {
			msg = http.StatusText(status)
		}
		utils.Error(c, status, code, msg)
		c.Abort()
		return
	}
	if message != "" {
		kind := session.FlashError
		if status == http.StatusUnauthorized {
			kind = session.FlashWarning
		}
		CurrentSession(c).AddFlash(kind, message)
	}
	Redirect(c, target)
	c.Abort()
}

// Redirect commits the session and sends a 303 so that form posts become GETs.
func Redirect(c *gin.Context, target string) {
	Commit(c)
	c.Redirect(http.StatusSeeOther, target)
}
