package apiclient

import (
	"context"
	"net/http"

	"github.com/rchan/rchan-web/models"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges credentials for a bearer token. 401 here means wrong credentials.
func (c *Client) Login(ctx context.Context, username, password string) (*models.LoginResult, error) {
	var out models.LoginResult
	err := c.sendMultipart(ctx, request{
		method:      http.MethodPost,
		path:        "/api/login",
		fallback:    "Error de autenticación",
		credentials: true,
	}, "sendData", credentials{Username: username, Password: password}, nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ForgotPassword asks the backend to email a reset code.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.postCredentialJSON(ctx, "/api/forgot-password", map[string]string{"email": email},
		"Error al enviar el email de recuperación")
}

// VerifyResetCode checks the 6-digit code sent by ForgotPassword.
func (c *Client) VerifyResetCode(ctx context.Context, email, code string) error {
	return c.postCredentialJSON(ctx, "/api/verify-reset-code", map[string]string{"email": email, "code": code},
		"Código inválido o expirado")
}

// ResetPassword sets a new password using a verified code.
func (c *Client) ResetPassword(ctx context.Context, email, code, newPassword, confirmPassword string) error {
	return c.postCredentialJSON(ctx, "/api/reset-password", map[string]string{
		"email":           email,
		"code":            code,
		"newPassword":     newPassword,
		"confirmPassword": confirmPassword,
	}, "Error al restablecer la contraseña")
}

func (c *Client) postCredentialJSON(ctx context.Context, path string, payload any, fallback string) error {
	return c.sendJSON(ctx, request{method: http.MethodPost, path: path, fallback: fallback, credentials: true}, payload, nil)
}
