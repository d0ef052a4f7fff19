package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/rchan/rchan-web/models"
)

const userPath = "/admin/api/user"

// RegisterInput creates an admin account. The backend emails a verification code.
type RegisterInput struct {
	Username        string      `json:"username"`
	Email           string      `json:"email"`
	Password        string      `json:"password"`
	ConfirmPassword string      `json:"confirmPassword"`
	Role            models.Role `json:"role"`
}

// ChangePasswordInput is the self-service password change payload.
type ChangePasswordInput struct {
	CurrentPassword    string `json:"currentPassword"`
	NewPassword        string `json:"newPassword"`
	ConfirmNewPassword string `json:"confirmNewPassword"`
}

var (
	// ErrUserHasRelatedData means the backend refused a delete due to foreign keys.
	ErrUserHasRelatedData = errors.New("No se puede eliminar este usuario porque tiene datos relacionados. Contacta al administrador del sistema.")
	// ErrCurrentPasswordIncorrect is returned by ChangePassword when the current password does not match.
	ErrCurrentPasswordIncorrect = errors.New("La contraseña actual es incorrecta")
)

func (c *Client) ListUsers(ctx context.Context, page, size int) (models.Page[models.AdminUser], error) {
	var out models.Page[models.AdminUser]
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     userPath,
		query:    pageQuery(page, size, "createdDate", "DESC"),
		fallback: "Error al obtener usuarios",
	}, &out)
	return out, err
}

func (c *Client) GetUserByID(ctx context.Context, id string) (*models.AdminUser, error) {
	return c.lookupUser(ctx, "/id", "id", id)
}

func (c *Client) GetUserByUsername(ctx context.Context, username string) (*models.AdminUser, error) {
	return c.lookupUser(ctx, "/username", "username", username)
}

func (c *Client) GetUserByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	return c.lookupUser(ctx, "/email", "email", email)
}

func (c *Client) lookupUser(ctx context.Context, suffix, key, value string) (*models.AdminUser, error) {
	if strings.TrimSpace(value) == "" {
		return nil, errEmptyID
	}
	var out models.AdminUser
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     userPath + suffix,
		query:    url.Values{key: []string{value}},
		fallback: "Error al obtener usuario",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RegisterUser(ctx context.Context, in RegisterInput) (*models.RegisterResult, error) {
	var out models.RegisterResult
	err := c.sendMultipart(ctx, request{
		method:   http.MethodPost,
		path:     userPath + "/register",
		fallback: "Error al registrar usuario",
	}, "sendData", in, nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) VerifyEmail(ctx context.Context, email, code string) error {
	return c.sendMultipart(ctx, request{
		method:   http.MethodPost,
		path:     userPath + "/verify-email",
		fallback: "Error al verificar email",
	}, "sendData", map[string]string{"email": email, "verificationCode": code}, nil, nil)
}

func (c *Client) ResendVerification(ctx context.Context, email string) error {
	return c.sendMultipart(ctx, request{
		method:   http.MethodPost,
		path:     userPath + "/resend-verification",
		fallback: "Error al reenviar código",
	}, "sendData", map[string]string{"email": email}, nil, nil)
}

// DeleteUser removes an account after the acting admin re-enters their password.
func (c *Client) DeleteUser(ctx context.Context, id, password string) error {
	if id == "" {
		return errEmptyID
	}
	err := c.sendMultipart(ctx, request{
		method:   http.MethodDelete,
		path:     userPath,
		fallback: "Error al eliminar usuario",
	}, "sendData", map[string]string{"id": id, "password": password}, nil, nil)
	if err == nil {
		return nil
	}
	var fe *ForbiddenError
	if errors.As(err, &fe) {
		return &ForbiddenError{Message: "No tienes permisos para eliminar usuarios. Solo los administradores pueden realizar esta acción."}
	}
	var ae *APIError
	if errors.As(err, &ae) && ae.Status == http.StatusInternalServerError && isForeignKeyViolation(ae) {
		return ErrUserHasRelatedData
	}
	return err
}

func isForeignKeyViolation(ae *APIError) bool {
	text := ae.Message + " " + ae.Raw
	return strings.Contains(text, "foreign key constraint") ||
		strings.Contains(text, "SQLIntegrityConstraintViolationException") ||
		strings.Contains(text, "Cannot delete or update a parent row")
}

func (c *Client) UserStats(ctx context.Context) (*models.UserStats, error) {
	var out models.UserStats
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     userPath + "/stats",
		fallback: "Error al obtener estadísticas de usuarios",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ChangeRole(ctx context.Context, userID string, role models.Role) error {
	if userID == "" {
		return errEmptyID
	}
	return c.do(ctx, request{
		method:   http.MethodPut,
		path:     userPath + "/" + url.PathEscape(userID) + "/role",
		query:    url.Values{"newRole": []string{string(role)}},
		fallback: "Error al cambiar rol de usuario",
	}, nil)
}

func (c *Client) ChangePassword(ctx context.Context, in ChangePasswordInput) error {
	err := c.sendMultipart(ctx, request{
		method:   http.MethodPost,
		path:     userPath + "/me/change-password",
		fallback: "Error al cambiar contraseña",
	}, "sendData", in, nil, nil)
	var ae *APIError
	if errors.As(err, &ae) && strings.Contains(strings.ToLower(ae.Message), "current password is incorrect") {
		return ErrCurrentPasswordIncorrect
	}
	return err
}
