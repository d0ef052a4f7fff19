package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rchan/rchan-web/middleware"
	"github.com/rchan/rchan-web/services"
	"github.com/rchan/rchan-web/session"
	"github.com/rchan/rchan-web/utils"
)

const (
	profilePath = "/administrator/profile"

	msgPasswordChanged = "Contraseña cambiada exitosamente"
	msgAccountDeleted  = "Cuenta eliminada exitosamente"
)

// ProfileController serves the signed-in account page: details, password change and
// self-deletion.
type ProfileController struct {
	env *Env
}

func NewProfileController(env *Env) *ProfileController {
	return &ProfileController{env: env}
}

// Show renders the profile page.
func (p *ProfileController) Show(ctx *gin.Context) {
	p.render(ctx, http.StatusOK, nil)
}

func (p *ProfileController) render(ctx *gin.Context, status int, errs services.FieldErrors) {
	profile, err := services.NewAudit(p.env.api(ctx)).Profile(ctx, middleware.CurrentSession(ctx).Role())
	if err != nil {
		if p.env.expired(ctx, err) {
			return
		}
		report(ctx, err)
		flash(ctx, session.FlashError, msgLoadProfile)
	}
	if errs == nil {
		errs = services.FieldErrors{}
	}
	p.env.render(ctx, status, "profile.html", gin.H{
		"Title":   "Mi perfil",
		"Profile": profile,
		"Errors":  errs,
	})
}

// ChangePassword updates the signed-in account's password.
func (p *ProfileController) ChangePassword(ctx *gin.Context) {
	err := services.NewAccounts(p.env.api(ctx)).ChangePassword(ctx, services.PasswordForm{
		CurrentPassword:    ctx.PostForm("currentPassword"),
		NewPassword:        ctx.PostForm("newPassword"),
		ConfirmNewPassword: ctx.PostForm("confirmNewPassword"),
	})
	if errs, ok := validationErrors(err); ok {
		p.render(ctx, http.StatusUnprocessableEntity, errs)
		return
	}
	if err != nil {
		if p.env.expired(ctx, err) {
			return
		}
		report(ctx, err)
		flash(ctx, session.FlashError, services.ChangePasswordFailureMessage(err))
		middleware.Redirect(ctx, profilePath)
		return
	}
	flash(ctx, session.FlashSuccess, msgPasswordChanged)
	middleware.Redirect(ctx, profilePath)
}

// DeleteAccount removes the signed-in account and logs out.
func (p *ProfileController) DeleteAccount(ctx *gin.Context) {
	s := middleware.CurrentSession(ctx)
	confirmed := ctx.PostForm("confirm") == "true"
	err := services.NewAccounts(p.env.api(ctx)).Delete(ctx, s.User.UserID, ctx.PostForm("password"), true, confirmed)
	if err != nil {
		if p.env.expired(ctx, err) {
			return
		}
		report(ctx, err)
		flash(ctx, session.FlashError, services.DeleteFailureMessage(err, true))
		middleware.Redirect(ctx, profilePath)
		return
	}
	utils.Logger.Info("account deleted by its owner", zap.String("username", s.User.Username))
	if p.env.Boards != nil {
		p.env.Boards.Drop(s.ID)
	}
	middleware.EndSession(ctx)
	flash(ctx, session.FlashSuccess, msgAccountDeleted)
	middleware.Redirect(ctx, middleware.LoginPath)
}
