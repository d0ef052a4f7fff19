package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rchan/rchan-web/apiclient"
	"github.com/rchan/rchan-web/models"
)

// UsersPageSize is the page size of the user table.
const UsersPageSize = 10

const (
	msgUsernameRequired   = "El nombre de usuario es obligatorio"
	msgUsernameLength     = "El nombre de usuario debe tener entre 3 y 50 caracteres"
	msgRoleInvalid        = "Rol no válido"
	msgFieldsRequired     = "Todos los campos son obligatorios"
	msgNewPasswordsDiffer = "Las nuevas contraseñas no coinciden"
	msgPasswordUnchanged  = "La nueva contraseña no puede ser igual a la contraseña actual"
	msgConfirmPassword    = "Debes ingresar tu contraseña para confirmar"
	msgConfirmDeletion    = "Debes confirmar que quieres eliminar la cuenta"
	msgLookupInvalid      = "Criterio de búsqueda no válido"
)

// AccountsAPI is the slice of the backend used for user management.
type AccountsAPI interface {
	ListUsers(ctx context.Context, page, size int) (models.Page[models.AdminUser], error)
	UserStats(ctx context.Context) (*models.UserStats, error)
	GetUserByID(ctx context.Context, id string) (*models.AdminUser, error)
	GetUserByUsername(ctx context.Context, username string) (*models.AdminUser, error)
	GetUserByEmail(ctx context.Context, email string) (*models.AdminUser, error)
	RegisterUser(ctx context.Context, in apiclient.RegisterInput) (*models.RegisterResult, error)
	VerifyEmail(ctx context.Context, email, code string) error
	ResendVerification(ctx context.Context, email string) error
	ChangeRole(ctx context.Context, userID string, role models.Role) error
	DeleteUser(ctx context.Context, id, password string) error
	ChangePassword(ctx context.Context, in apiclient.ChangePasswordInput) error
}

// RegisterForm is the create-user form.
type RegisterForm struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
	Role            string
}

// PasswordForm is the change-own-password form.
type PasswordForm struct {
	CurrentPassword    string
	NewPassword        string
	ConfirmNewPassword string
}

// Accounts wraps user management calls with local validation.
type Accounts struct {
	api AccountsAPI
}

// NewAccounts returns an Accounts over api.
func NewAccounts(api AccountsAPI) *Accounts {
	return &Accounts{api: api}
}

// ValidateRegistration checks f and resolves its role, MODERATOR when omitted.
func ValidateRegistration(f RegisterForm) (models.Role, FieldErrors) {
	errs := FieldErrors{}
	username := strings.TrimSpace(f.Username)
	switch n := len([]rune(username)); {
	case n == 0:
		errs.Add("username", msgUsernameRequired)
	case n < 3 || n > 50:
		errs.Add("username", msgUsernameLength)
	}
	if msg := ValidateEmail(f.Email); msg != "" {
		errs.Add("email", msg)
	}
	switch {
	case f.Password == "":
		errs.Add("password", msgPasswordRequired)
	case len([]rune(f.Password)) < MinPasswordLength:
		errs.Add("password", msgPasswordShort)
	}
	if f.Password != f.ConfirmPassword {
		errs.Add("confirmPassword", msgPasswordMismatch)
	}

	role := models.RoleModerator
	if strings.TrimSpace(f.Role) != "" {
		r, err := models.ParseRole(f.Role)
		if err != nil {
			errs.Add("role", msgRoleInvalid)
		} else {
			role = r
		}
	}
	return role, errs
}

// Register creates an account. The backend then mails a verification code to it.
func (a *Accounts) Register(ctx context.Context, f RegisterForm) (*models.RegisterResult, error) {
	role, errs := ValidateRegistration(f)
	if err := Check(errs); err != nil {
		return nil, err
	}
	return a.api.RegisterUser(ctx, apiclient.RegisterInput{
		Username:        strings.TrimSpace(f.Username),
		Email:           strings.TrimSpace(f.Email),
		Password:        f.Password,
		ConfirmPassword: f.ConfirmPassword,
		Role:            role,
	})
}

// VerifyEmail confirms a pending account with the mailed code.
func (a *Accounts) VerifyEmail(ctx context.Context, email, code string) error {
	errs := FieldErrors{}
	if msg := ValidateEmail(email); msg != "" {
		errs.Add("email", msg)
	}
	if !codePattern.MatchString(strings.TrimSpace(code)) {
		errs.Add("verificationCode", msgCodeFormat)
	}
	if err := Check(errs); err != nil {
		return err
	}
	return a.api.VerifyEmail(ctx, strings.TrimSpace(email), strings.TrimSpace(code))
}

// ResendVerification mails a fresh code to a pending account.
func (a *Accounts) ResendVerification(ctx context.Context, email string) error {
	if msg := ValidateEmail(email); msg != "" {
		return &ValidationError{Fields: FieldErrors{"email": msg}}
	}
	return a.api.ResendVerification(ctx, strings.TrimSpace(email))
}

// ToggleRole swaps the user's role between ADMIN and MODERATOR and returns the new role.
func (a *Accounts) ToggleRole(ctx context.Context, userID string, current models.Role) (models.Role, error) {
	next := current.Toggle()
	if err := a.api.ChangeRole(ctx, userID, next); err != nil {
		return current, err
	}
	return next, nil
}

// SetRole assigns role explicitly.
func (a *Accounts) SetRole(ctx context.Context, userID, role string) (models.Role, error) {
	r, err := models.ParseRole(role)
	if err != nil {
		return models.RoleUnknown, &ValidationError{Fields: FieldErrors{"role": msgRoleInvalid}}
	}
	return r, a.api.ChangeRole(ctx, userID, r)
}

// Delete removes userID after the acting admin re-entered their password. Self-deletion
// additionally requires confirmed.
func (a *Accounts) Delete(ctx context.Context, userID, password string, self, confirmed bool) error {
	if strings.TrimSpace(password) == "" {
		return &ValidationError{Fields: FieldErrors{"password": msgConfirmPassword}}
	}
	if self && !confirmed {
		return &ValidationError{Fields: FieldErrors{"confirm": msgConfirmDeletion}}
	}
	return a.api.DeleteUser(ctx, userID, password)
}

// DeleteFailureMessage turns a failed delete into the alert text.
func DeleteFailureMessage(err error, self bool) string {
	var ve *ValidationError
	var fe *apiclient.ForbiddenError
	switch {
	case errors.As(err, &ve):
		return ve.Error()
	case errors.Is(err, apiclient.ErrUserHasRelatedData), errors.As(err, &fe):
		return err.Error()
	case mentionsPassword(err):
		if self {
			return "Contraseña incorrecta. No se pudo eliminar la cuenta."
		}
		return "Contraseña incorrecta. Inténtalo de nuevo."
	case self:
		return "Error al eliminar la cuenta"
	}
	return "Error al eliminar usuario"
}

func mentionsPassword(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "password") || strings.Contains(msg, "contraseña")
}

// ValidatePasswordChange checks that every field is present, the new passwords match and
// the new password differs from the current one.
func ValidatePasswordChange(f PasswordForm) FieldErrors {
	errs := FieldErrors{}
	if f.CurrentPassword == "" || f.NewPassword == "" || f.ConfirmNewPassword == "" {
		errs.Add("form", msgFieldsRequired)
		return errs
	}
	if f.NewPassword != f.ConfirmNewPassword {
		errs.Add("confirmNewPassword", msgNewPasswordsDiffer)
	}
	if f.CurrentPassword == f.NewPassword {
		errs.Add("newPassword", msgPasswordUnchanged)
	}
	return errs
}

// ChangePassword updates the signed-in account's password.
func (a *Accounts) ChangePassword(ctx context.Context, f PasswordForm) error {
	if err := Check(ValidatePasswordChange(f)); err != nil {
		return err
	}
	return a.api.ChangePassword(ctx, apiclient.ChangePasswordInput{
		CurrentPassword:    f.CurrentPassword,
		NewPassword:        f.NewPassword,
		ConfirmNewPassword: f.ConfirmNewPassword,
	})
}

// ChangePasswordFailureMessage turns a failed password change into the alert text.
func ChangePasswordFailureMessage(err error) string {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return ve.Error()
	case errors.Is(err, apiclient.ErrCurrentPasswordIncorrect):
		return err.Error()
	}
	return "Error al cambiar la contraseña"
}

// Lookup finds one account by id, username or email.
func (a *Accounts) Lookup(ctx context.Context, by, value string) (*models.AdminUser, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, &ValidationError{Fields: FieldErrors{"value": msgFieldsRequired}}
	}
	switch strings.ToLower(by) {
	case "id":
		return a.api.GetUserByID(ctx, value)
	case "username":
		return a.api.GetUserByUsername(ctx, value)
	case "email":
		return a.api.GetUserByEmail(ctx, value)
	}
	return nil, &ValidationError{Fields: FieldErrors{"by": msgLookupInvalid}}
}

// UserDirectory is one page of the user table plus the summary counters.
type UserDirectory struct {
	Users models.Page[models.AdminUser]
	Stats *models.UserStats
}

// Directory loads a page of users and the stats. Stats failures leave Stats nil.
func (a *Accounts) Directory(ctx context.Context, page int) (UserDirectory, error) {
	if page < 0 {
		page = 0
	}
	users, err := a.api.ListUsers(ctx, page, UsersPageSize)
	if err != nil {
		return UserDirectory{}, err
	}
	stats, err := a.api.UserStats(ctx)
	if err != nil {
		if apiclient.IsSessionExpired(err) {
			return UserDirectory{}, err
		}
		stats = nil
	}
	return UserDirectory{Users: users, Stats: stats}, nil
}
