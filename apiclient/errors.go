package apiclient

import (
	"errors"
	"net/http"
	"strings"
)

const (
	msgServerError    = "Error del servidor"
	msgNoConnection   = "No se pudo conectar con el servidor"
	msgUnauthorized   = "No autorizado"
	msgForbidden      = "No tienes permisos para realizar esta acción"
	msgSessionExpired = "Sesión expirada"

	maxRawBytes = 2 << 10

	// TypeTokenExpired is the error type the backend attaches to expired-token 401s.
	TypeTokenExpired = "TOKEN_EXPIRED"
)

// APIError is a non-2xx response carrying an error body.
type APIError struct {
	Status  int
	Message string
	Type    string
	Code    string
	// Raw is the start of the response body, kept for diagnostics.
	Raw string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return msgServerError
	}
	return e.Message
}

// SessionExpiredError is a 401 whose body marks the bearer token as expired.
// Callers must log the user out.
type SessionExpiredError struct {
	Message string
}

func (e *SessionExpiredError) Error() string {
	if e.Message == "" {
		return msgSessionExpired
	}
	return e.Message
}

// UnauthorizedError is any other 401. It must be shown in place without logging out.
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string {
	if e.Message == "" {
		return msgUnauthorized
	}
	return e.Message
}

// ForbiddenError is a 403.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string {
	if e.Message == "" {
		return msgForbidden
	}
	return e.Message
}

// NetworkError means no HTTP response was received.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return msgNoConnection }

func (e *NetworkError) Unwrap() error { return e.Err }

// Status is always 0: there was no response.
func (e *NetworkError) Status() int { return 0 }

// Reset reports whether the connection was reset by the peer. Writes that hit a reset
// are often persisted by the backend anyway.
func (e *NetworkError) Reset() bool {
	if e.Err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(e.Err.Error()), "connection reset")
}

// IsSessionExpired reports whether err requires logging the user out.
func IsSessionExpired(err error) bool {
	var se *SessionExpiredError
	return errors.As(err, &se)
}

// StatusOf returns the HTTP status behind err, or 0 when there was none.
func StatusOf(err error) int {
	var (
		ae *APIError
		ue *UnauthorizedError
		se *SessionExpiredError
		fe *ForbiddenError
	)
	switch {
	case errors.As(err, &ae):
		return ae.Status
	case errors.As(err, &ue), errors.As(err, &se):
		return http.StatusUnauthorized
	case errors.As(err, &fe):
		return http.StatusForbidden
	}
	return 0
}

// errorBody is the backend's JSON error shape.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

func (b errorBody) text() string {
	if b.Error != "" {
		return b.Error
	}
	return b.Message
}

// classify maps a non-2xx response onto the error taxonomy.
func classify(status int, body errorBody, raw []byte, fallback string, credentials bool) error {
	msg := body.text()
	if status == http.StatusUnauthorized && !credentials {
		if isExpiry(body) {
			return &SessionExpiredError{Message: msgSessionExpired}
		}
		return &UnauthorizedError{Message: msg}
	}
	if status == http.StatusForbidden && !credentials {
		return &ForbiddenError{Message: msg}
	}
	if msg == "" {
		msg = fallback
	}
	if msg == "" {
		msg = msgServerError
	}
	if len(raw) > maxRawBytes {
		raw = raw[:maxRawBytes]
	}
	return &APIError{Status: status, Message: msg, Type: body.Type, Code: body.Code, Raw: string(raw)}
}

func isExpiry(body errorBody) bool {
	if strings.EqualFold(body.Type, TypeTokenExpired) || strings.EqualFold(body.Code, TypeTokenExpired) {
		return true
	}
	// Covers "JWT token has expired" and similar wordings.
	return strings.Contains(strings.ToLower(body.Error+" "+body.Message), "expired")
}
