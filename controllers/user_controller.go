package controllers

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rchan/rchan-web/middleware"
	"github.com/rchan/rchan-web/models"
	"github.com/rchan/rchan-web/services"
	"github.com/rchan/rchan-web/session"
	"github.com/rchan/rchan-web/utils"
)

const (
	usersPath = "/administrator/users"

	msgUserCreated  = "Usuario creado. Se envió un código de verificación a %s"
	msgUserVerified = "Usuario verificado exitosamente"
	msgUserDeleted  = "Usuario eliminado exitosamente"
	msgRoleUpdated  = "Rol de usuario actualizado exitosamente"
	msgCodeResent   = "Código de verificación reenviado a %s"
	msgResendFailed = "Error al reenviar el código de verificación"
	msgVerifyFailed = "Código de verificación inválido o expirado"
	msgRoleFailed   = "Error al cambiar rol de usuario"
	msgCreateFailed = "Error al crear usuario: "
	msgLoadUsers    = "Error al cargar usuarios"
	msgUserNotFound = "Usuario no encontrado"
	msgSelfModify   = "No puedes modificar tu propia cuenta desde esta sección"
)

// UserController is the administrator-only user management page.
type UserController struct {
	env *Env
}

// NewUserController creates a UserController.
func NewUserController(env *Env) *UserController {
	return &UserController{env: env}
}

type usersView struct {
	form    services.RegisterForm
	errs    services.FieldErrors
	pending *models.RegisterResult
	found   *models.AdminUser
}

// List shows one page of users. ?pending=&pendingUser= reopens the verification form of a
// freshly created account.
func (u *UserController) List(ctx *gin.Context) {
	v := usersView{}
	if email := strings.TrimSpace(ctx.Query("pending")); email != "" {
		v.pending = &models.RegisterResult{Email: email, Username: ctx.Query("pendingUser")}
	}
	u.render(ctx, http.StatusOK, v)
}

func (u *UserController) render(ctx *gin.Context, status int, v usersView) {
	page := pageParam(ctx)
	dir, err := services.NewAccounts(u.env.api(ctx)).Directory(ctx, page)
	if err != nil {
		if u.env.expired(ctx, err) {
			return
		}
		report(ctx, err)
		flash(ctx, session.FlashError, msgLoadUsers)
	}
	if v.errs == nil {
		v.errs = services.FieldErrors{}
	}
	v.form.Password, v.form.ConfirmPassword = "", ""
	u.env.render(ctx, status, "users.html", gin.H{
		"Title":     "Usuarios",
		"Directory": dir,
		"Pending":   v.pending,
		"Errors":    v.errs,
		"Form":      v.form,
		"Found":     v.found,
		"SelfID":    middleware.CurrentSession(ctx).User.UserID,
		"Page":      page,
		"HasNext":   dir.Users.HasNext(services.UsersPageSize),
	})
}

// Create registers a new account; the backend mails it a verification code.
func (u *UserController) Create(ctx *gin.Context) {
	form := services.RegisterForm{
		Username:        ctx.PostForm("username"),
		Email:           ctx.PostForm("email"),
		Password:        ctx.PostForm("password"),
		ConfirmPassword: ctx.PostForm("confirmPassword"),
		Role:            ctx.PostForm("role"),
	}
	res, err := services.NewAccounts(u.env.api(ctx)).Register(ctx, form)
	if errs, ok := validationErrors(err); ok {
		u.render(ctx, http.StatusUnprocessableEntity, usersView{form: form, errs: errs})
		return
	}
	if err != nil {
		if u.env.expired(ctx, err) {
			return
		}
		report(ctx, err)
		flash(ctx, session.FlashError, msgCreateFailed+err.Error())
		u.render(ctx, http.StatusOK, usersView{form: form})
		return
	}
	email, username := strings.TrimSpace(form.Email), strings.TrimSpace(form.Username)
	if res != nil && res.Email != "" {
		email = res.Email
	}
	if res != nil && res.Username != "" {
		username = res.Username
	}
	utils.Logger.Info("account created", zap.String("username", username), zap.String("by", actor(ctx)))
	flash(ctx, session.FlashSuccess, fmt.Sprintf(msgUserCreated, email))
	middleware.Redirect(ctx, usersPath+"?"+url.Values{"pending": {email}, "pendingUser": {username}}.Encode())
}

// Verify confirms a pending account with its mailed code.
func (u *UserController) Verify(ctx *gin.Context) {
	email := ctx.PostForm("email")
	err := services.NewAccounts(u.env.api(ctx)).VerifyEmail(ctx, email, ctx.PostForm("verificationCode"))
	if errs, ok := validationErrors(err); ok {
		u.render(ctx, http.StatusUnprocessableEntity, usersView{
			errs:    errs,
			pending: &models.RegisterResult{Email: strings.TrimSpace(email)},
		})
		return
	}
	if err != nil {
		if u.env.expired(ctx, err) {
			return
		}
		report(ctx, err)
		flash(ctx, session.FlashError, msgVerifyFailed)
		middleware.Redirect(ctx, usersPath+"?"+url.Values{"pending": {strings.TrimSpace(email)}}.Encode())
		return
	}
	flash(ctx, session.FlashSuccess, msgUserVerified)
	middleware.Redirect(ctx, usersPath)
}

// Resend mails a fresh verification code.
func (u *UserController) Resend(ctx *gin.Context) {
	email := strings.TrimSpace(ctx.PostForm("email"))
	if err := services.NewAccounts(u.env.api(ctx)).ResendVerification(ctx, email); err != nil {
		if u.env.expired(ctx, err) {
			return
		}
		report(ctx, err)
		flash(ctx, session.FlashError, msgResendFailed)
		middleware.Redirect(ctx, middleware.Back(ctx))
		return
	}
	flash(ctx, session.FlashSuccess, fmt.Sprintf(msgCodeResent, email))
	middleware.Redirect(ctx, middleware.Back(ctx))
}

// ToggleRole swaps a user between ADMIN and MODERATOR.
func (u *UserController) ToggleRole(ctx *gin.Context) {
	id := ctx.Param("id")
	if u.self(ctx, id) {
		return
	}
	current, err := models.ParseRole(ctx.PostForm("current"))
	if err != nil {
		flash(ctx, session.FlashError, msgRoleFailed)
		middleware.Redirect(ctx, usersPath)
		return
	}
	next, err := services.NewAccounts(u.env.api(ctx)).ToggleRole(ctx, id, current)
	if err != nil {
		if u.env.expired(ctx, err) {
			return
		}
		report(ctx, err)
		flash(ctx, session.FlashError, msgRoleFailed)
		middleware.Redirect(ctx, usersPath)
		return
	}
	utils.Logger.Info("role changed", zap.String("user_id", id), zap.String("role", string(next)), zap.String("by", actor(ctx)))
	flash(ctx, session.FlashSuccess, msgRoleUpdated)
	middleware.Redirect(ctx, usersPath)
}

// Delete removes another account after the acting admin re-entered their password.
func (u *UserController) Delete(ctx *gin.Context) {
	id := ctx.Param("id")
	if u.self(ctx, id) {
		return
	}
	err := services.NewAccounts(u.env.api(ctx)).Delete(ctx, id, ctx.PostForm("password"), false, true)
	if err != nil {
		if u.env.expired(ctx, err) {
			return
		}
		report(ctx, err)
		flash(ctx, session.FlashError, services.DeleteFailureMessage(err, false))
		middleware.Redirect(ctx, usersPath)
		return
	}
	utils.Logger.Info("account deleted", zap.String("user_id", id), zap.String("by", actor(ctx)))
	flash(ctx, session.FlashSuccess, msgUserDeleted)
	middleware.Redirect(ctx, usersPath)
}

// Lookup finds one account by id, username or email.
func (u *UserController) Lookup(ctx *gin.Context) {
	found, err := services.NewAccounts(u.env.api(ctx)).Lookup(ctx, ctx.Query("by"), ctx.Query("value"))
	if err != nil {
		if u.env.expired(ctx, err) {
			return
		}
		if _, ok := validationErrors(err); ok {
			flash(ctx, session.FlashWarning, err.Error())
		} else {
			report(ctx, err)
			flash(ctx, session.FlashError, msgUserNotFound)
		}
	}
	u.render(ctx, http.StatusOK, usersView{found: found})
}

// self rejects role and delete actions aimed at the signed-in account; those go through the
// profile page.
func (u *UserController) self(ctx *gin.Context, id string) bool {
	if id != middleware.CurrentSession(ctx).User.UserID {
		return false
	}
	flash(ctx, session.FlashWarning, msgSelfModify)
	middleware.Redirect(ctx, usersPath)
	return true
}

func actor(ctx *gin.Context) string {
	if s := middleware.CurrentSession(ctx); s.Authenticated() {
		return s.User.Username
	}
	return ""
}
