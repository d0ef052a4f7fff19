package controllers

import (
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rchan/rchan-web/apiclient"
	"github.com/rchan/rchan-web/middleware"
	"github.com/rchan/rchan-web/session"
	"github.com/rchan/rchan-web/utils"
)

const (
	msgLoginSuccess     = "Inicio de sesión exitoso"
	msgLoginConnection  = "Error de conexión. Verifica que el servidor esté funcionando."
	msgLoginMissing     = "Usuario y contraseña son obligatorios"
	msgCaptchaIncorrect = "Código de verificación incorrecto"
	msgLoggedOut        = "Sesión cerrada"
)

// AuthController handles the administrator login, logout and the login captcha.
type AuthController struct {
	env *Env
}

// NewAuthController creates an AuthController.
func NewAuthController(env *Env) *AuthController {
	return &AuthController{env: env}
}

// needsCaptcha reports whether this visitor must solve a captcha to log in.
func (a *AuthController) needsCaptcha(ctx *gin.Context) bool {
	if a.env.Captcha == nil {
		return false
	}
	if a.env.Config.CaptchaEnabled {
		return true
	}
	return a.env.Guard != nil && a.env.Guard.Suspicious(ctx, ctx.ClientIP())
}

// LoginPage shows the login form. Signed-in visitors go straight to the dashboard.
func (a *AuthController) LoginPage(ctx *gin.Context) {
	if middleware.CurrentSession(ctx).Authenticated() {
		middleware.Redirect(ctx, middleware.DashboardPath)
		return
	}
	a.renderLogin(ctx, http.StatusOK, "")
}

func (a *AuthController) renderLogin(ctx *gin.Context, status int, username string) {
	data := gin.H{"Title": "Iniciar sesión", "Username": username}
	if a.needsCaptcha(ctx) {
		id, b64, err := a.env.Captcha.Generate()
		if err != nil {
			utils.Logger.Error("captcha generation failed", zap.Error(err))
		} else {
			data["CaptchaID"] = id
			data["CaptchaImage"] = template.URL(b64)
		}
	}
	a.env.render(ctx, status, "login.html", data)
}

// Login exchanges the form credentials for a backend token and signs the session in.
func (a *AuthController) Login(ctx *gin.Context) {
	username := strings.TrimSpace(ctx.PostForm("username"))
	password := ctx.PostForm("password")
	if username == "" || password == "" {
		flash(ctx, session.FlashError, msgLoginMissing)
		a.renderLogin(ctx, http.StatusBadRequest, username)
		return
	}
	if a.needsCaptcha(ctx) && !a.env.Captcha.Verify(ctx.PostForm("captchaId"), strings.TrimSpace(ctx.PostForm("captcha"))) {
		flash(ctx, session.FlashError, msgCaptchaIncorrect)
		a.renderLogin(ctx, http.StatusBadRequest, username)
		return
	}

	res, err := a.env.api(ctx).Login(ctx, username, password)
	if err != nil {
		a.loginFailed(ctx, username, err)
		return
	}
	if a.env.Guard != nil {
		a.env.Guard.Reset(ctx, ctx.ClientIP())
	}
	middleware.SignIn(ctx, res.Token, session.User{
		UserID:     res.UserID,
		Username:   res.Username,
		Role:       res.Role,
		FirstLogin: res.FirstLogin.Time,
		LastLogin:  res.LastLogin.Time,
	})
	utils.Logger.Info("administrator signed in",
		zap.String("username", res.Username),
		zap.String("role", string(res.Role)),
		zap.String("ip", ctx.ClientIP()),
	)
	flash(ctx, session.FlashSuccess, msgLoginSuccess)
	middleware.Redirect(ctx, middleware.DashboardPath)
}

func (a *AuthController) loginFailed(ctx *gin.Context, username string, err error) {
	var ne *apiclient.NetworkError
	msg := err.Error()
	switch {
	case errors.As(err, &ne):
		report(ctx, err)
		msg = msgLoginConnection
	case apiclient.StatusOf(err) >= 500:
		report(ctx, err)
	default:
		if a.env.Guard != nil {
			failures := a.env.Guard.RecordFailure(ctx, ctx.ClientIP())
			utils.Logger.Warn("login rejected",
				zap.String("username", username),
				zap.String("ip", ctx.ClientIP()),
				zap.Int("failures", failures),
			)
		}
	}
	if msg == "" {
		msg = msgLoginConnection
	}
	flash(ctx, session.FlashError, msg)
	a.renderLogin(ctx, http.StatusUnauthorized, username)
}

// Logout ends the session and revokes its token.
func (a *AuthController) Logout(ctx *gin.Context) {
	s := middleware.CurrentSession(ctx)
	if a.env.Boards != nil {
		a.env.Boards.Drop(s.ID)
	}
	middleware.EndSession(ctx)
	flash(ctx, session.FlashSuccess, msgLoggedOut)
	middleware.Redirect(ctx, middleware.LoginPath)
}

// Captcha returns a fresh captcha id and base64 image (data URI).
func (a *AuthController) Captcha(ctx *gin.Context) {
	if a.env.Captcha == nil {
		utils.Error(ctx, http.StatusNotFound, 40460, "captcha disabled")
		return
	}
	id, b64, err := a.env.Captcha.Generate()
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50060, "captcha generation failed")
		return
	}
	utils.Success(ctx, gin.H{"id": id, "image": b64})
}
