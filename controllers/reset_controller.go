package controllers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rchan/rchan-web/middleware"
	"github.com/rchan/rchan-web/services"
	"github.com/rchan/rchan-web/session"
)

const (
	forgotPath = "/forgot-password"
	verifyPath = "/forgot-password/verify"
	resetPath  = "/forgot-password/reset"

	msgCodeSent       = "Se ha enviado un código de verificación a tu email"
	msgCodeVerified   = "Código verificado correctamente"
	msgNewCodeSent    = "Se ha enviado un nuevo código a tu email"
	msgPasswordReset  = "Contraseña restablecida exitosamente"
	msgCodeInvalid    = "Código inválido o expirado"
	msgSendFailed     = "Error al enviar el email de recuperación"
	msgResetFailed    = "Error al restablecer la contraseña"
	msgResendCode     = "Error al reenviar el código"
	msgRestartRecover = "Inicia de nuevo la recuperación de contraseña"
)

// ResetController drives the three page password recovery: email, code, new password.
type ResetController struct {
	env *Env
}

// NewResetController creates a ResetController.
func NewResetController(env *Env) *ResetController {
	return &ResetController{env: env}
}

func (r *ResetController) flow(ctx *gin.Context) *services.PasswordReset {
	return services.NewPasswordReset(r.env.api(ctx), r.env.States)
}

func withState(path, state string) string {
	return path + "?" + url.Values{"state": {state}}.Encode()
}

// restart sends the visitor back to step one.
func (r *ResetController) restart(ctx *gin.Context) {
	flash(ctx, session.FlashWarning, msgRestartRecover)
	middleware.Redirect(ctx, forgotPath)
}

// failText prefers the backend message.
func failText(err error, fallback string) string {
	if err == nil || strings.TrimSpace(err.Error()) == "" {
		return fallback
	}
	return err.Error()
}

// ForgotPage asks for the account email.
func (r *ResetController) ForgotPage(ctx *gin.Context) {
	r.renderForgot(ctx, http.StatusOK, "", nil)
}

func (r *ResetController) renderForgot(ctx *gin.Context, status int, email string, errs services.FieldErrors) {
	if errs == nil {
		errs = services.FieldErrors{}
	}
	r.env.render(ctx, status, "forgot_password.html", gin.H{
		"Title":  "Recuperar contraseña",
		"Email":  email,
		"Errors": errs,
	})
}

// Forgot mails a reset code and moves on to the code page.
func (r *ResetController) Forgot(ctx *gin.Context) {
	email := strings.TrimSpace(ctx.PostForm("email"))
	state, err := r.flow(ctx).Request(ctx, email)
	if errs, ok := validationErrors(err); ok {
		r.renderForgot(ctx, http.StatusUnprocessableEntity, email, errs)
		return
	}
	if err != nil {
		report(ctx, err)
		flash(ctx, session.FlashError, failText(err, msgSendFailed))
		r.renderForgot(ctx, http.StatusOK, email, nil)
		return
	}
	flash(ctx, session.FlashSuccess, msgCodeSent)
	middleware.Redirect(ctx, withState(verifyPath, state))
}

// VerifyPage asks for the 6-digit code.
func (r *ResetController) VerifyPage(ctx *gin.Context) {
	state := ctx.Query("state")
	email, err := r.flow(ctx).Email(state, services.StepVerify)
	if err != nil {
		r.restart(ctx)
		return
	}
	r.renderVerify(ctx, http.StatusOK, state, email, nil)
}

func (r *ResetController) renderVerify(ctx *gin.Context, status int, state, email string, errs services.FieldErrors) {
	if errs == nil {
		errs = services.FieldErrors{}
	}
	r.env.render(ctx, status, "verify_code.html", gin.H{
		"Title":  "Verificar código",
		"State":  state,
		"Email":  email,
		"Errors": errs,
	})
}

// Verify checks the code and moves on to the new password page.
func (r *ResetController) Verify(ctx *gin.Context) {
	state := ctx.PostForm("state")
	flow := r.flow(ctx)
	email, err := flow.Email(state, services.StepVerify)
	if err != nil {
		r.restart(ctx)
		return
	}
	next, err := flow.Verify(ctx, state, ctx.PostForm("code"))
	switch {
	case err == nil:
		flash(ctx, session.FlashSuccess, msgCodeVerified)
		middleware.Redirect(ctx, withState(resetPath, next))
	case services.IsInvalidState(err):
		r.restart(ctx)
	default:
		if errs, ok := validationErrors(err); ok {
			r.renderVerify(ctx, http.StatusUnprocessableEntity, state, email, errs)
			return
		}
		report(ctx, err)
		flash(ctx, session.FlashError, failText(err, msgCodeInvalid))
		r.renderVerify(ctx, http.StatusOK, state, email, nil)
	}
}

// Resend mails a fresh code to the address in the state.
func (r *ResetController) Resend(ctx *gin.Context) {
	state := ctx.PostForm("state")
	err := r.flow(ctx).Resend(ctx, state)
	switch {
	case err == nil:
		flash(ctx, session.FlashSuccess, msgNewCodeSent)
	case services.IsInvalidState(err):
		r.restart(ctx)
		return
	default:
		report(ctx, err)
		flash(ctx, session.FlashError, msgResendCode)
	}
	middleware.Redirect(ctx, withState(verifyPath, state))
}

// ResetPage asks for the new password.
func (r *ResetController) ResetPage(ctx *gin.Context) {
	state := ctx.Query("state")
	email, err := r.flow(ctx).Email(state, services.StepReset)
	if err != nil {
		r.restart(ctx)
		return
	}
	r.renderReset(ctx, http.StatusOK, state, email, nil)
}

func (r *ResetController) renderReset(ctx *gin.Context, status int, state, email string, errs services.FieldErrors) {
	if errs == nil {
		errs = services.FieldErrors{}
	}
	r.env.render(ctx, status, "reset_password.html", gin.H{
		"Title":  "Nueva contraseña",
		"State":  state,
		"Email":  email,
		"Errors": errs,
	})
}

// Reset sets the new password and sends the visitor to the login page.
func (r *ResetController) Reset(ctx *gin.Context) {
	state := ctx.PostForm("state")
	flow := r.flow(ctx)
	email, err := flow.Email(state, services.StepReset)
	if err != nil {
		r.restart(ctx)
		return
	}
	err = flow.Reset(ctx, state, ctx.PostForm("newPassword"), ctx.PostForm("confirmPassword"))
	switch {
	case err == nil:
		flash(ctx, session.FlashSuccess, msgPasswordReset)
		middleware.Redirect(ctx, middleware.LoginPath)
	case services.IsInvalidState(err):
		r.restart(ctx)
	default:
		if errs, ok := validationErrors(err); ok {
			r.renderReset(ctx, http.StatusUnprocessableEntity, state, email, errs)
			return
		}
		report(ctx, err)
		flash(ctx, session.FlashError, failText(err, msgResetFailed))
		r.renderReset(ctx, http.StatusOK, state, email, nil)
	}
}
