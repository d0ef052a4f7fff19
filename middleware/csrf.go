package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rchan/rchan-web/session"
	"github.com/rchan/rchan-web/utils"
)

const (
	// CSRFCookie holds the random id form tokens are bound to. It outlives logins so that
	// anonymous visitors, who have no stored session, can post too.
	CSRFCookie = "rchan_csrf"
	// CSRFField is the hidden form field carrying the token.
	CSRFField = "_csrf"
	// CSRFHeader carries the token on fetch requests.
	CSRFHeader = "X-CSRF-Token"

	contextCSRFKey = "csrf_id"

	MsgCSRF = "La sesión del formulario no es válida. Recarga la página e inténtalo de nuevo."
)

// CSRF rejects state-changing requests whose token does not match the browser's CSRF id.
func CSRF(signer *utils.Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(CSRFCookie)
		if err != nil || id == "" {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(CSRFCookie, id, 0, "/", "", c.GetBool(contextSecureKey), true)
		}
		c.Set(contextCSRFKey, id)

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		token := c.GetHeader(CSRFHeader)
		if token == "" {
			token = c.PostForm(CSRFField)
		}
		if err := signer.CheckCSRF(id, token); err != nil {
			if utils.WantsJSON(c) || c.GetHeader(CSRFHeader) != "" {
				utils.Error(c, http.StatusForbidden, 40310, MsgCSRF)
				c.Abort()
				return
			}
			CurrentSession(c).AddFlash(session.FlashError, MsgCSRF)
			Redirect(c, Back(c))
			c.Abort()
			return
		}
		c.Next()
	}
}

// CSRFToken returns the form token for the current request.
func CSRFToken(c *gin.Context, signer *utils.Signer) string {
	return signer.CSRFToken(c.GetString(contextCSRFKey))
}

// Back returns the referring path on this site, or the home page.
func Back(c *gin.Context) string {
	ref := c.Request.Referer()
	if ref == "" {
		return "/"
	}
	if u, err := c.Request.URL.Parse(ref); err == nil && (u.Host == "" || u.Host == c.Request.Host) {
		if p := u.RequestURI(); p != "" {
			return p
		}
	}
	return "/"
}
