package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rchan/rchan-web/utils"
)

// Steps of the password reset flow. Each step's state token names the next page it unlocks.
const (
	StepVerify = "verify"
	StepReset  = "reset"
)

const (
	MinPasswordLength = 8

	msgEmailRequired    = "El email es obligatorio"
	msgEmailInvalid     = "Email inválido"
	msgCodeRequired     = "El código es obligatorio"
	msgCodeFormat       = "El código debe tener 6 dígitos"
	msgPasswordRequired = "La contraseña es obligatoria"
	msgPasswordShort    = "La contraseña debe tener al menos 8 caracteres"
	msgPasswordWeak     = "Debe contener mayúsculas, minúsculas y números"
	msgPasswordMismatch = "Las contraseñas no coinciden"
)

var (
	emailPattern = regexp.MustCompile(`(?i)^[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}$`)
	codePattern  = regexp.MustCompile(`^\d{6}$`)
)

// ResetAPI is the slice of the backend used by the password reset flow.
type ResetAPI interface {
	ForgotPassword(ctx context.Context, email string) error
	VerifyResetCode(ctx context.Context, email, code string) error
	ResetPassword(ctx context.Context, email, code, newPassword, confirmPassword string) error
}

// PasswordReset drives the three page flow: email, 6-digit code, new password. Progress is
// carried between pages in signed state tokens, never stored server side. A page reached
// without a valid token gets utils.ErrInvalidState and sends the visitor back to step one.
type PasswordReset struct {
	api    ResetAPI
	tokens *utils.StateTokens
}

// NewPasswordReset returns the flow over api.
func NewPasswordReset(api ResetAPI, tokens *utils.StateTokens) *PasswordReset {
	return &PasswordReset{api: api, tokens: tokens}
}

// ValidateEmail checks the address format.
func ValidateEmail(email string) string {
	email = strings.TrimSpace(email)
	switch {
	case email == "":
		return msgEmailRequired
	case !emailPattern.MatchString(email):
		return msgEmailInvalid
	}
	return ""
}

// ValidateNewPassword checks length, character classes and confirmation.
func ValidateNewPassword(password, confirm string) FieldErrors {
	errs := FieldErrors{}
	switch {
	case password == "":
		errs.Add("newPassword", msgPasswordRequired)
	case utf8.RuneCountInString(password) < MinPasswordLength:
		errs.Add("newPassword", msgPasswordShort)
	case !mixedPassword(password):
		errs.Add("newPassword", msgPasswordWeak)
	}
	if password != confirm {
		errs.Add("confirmPassword", msgPasswordMismatch)
	}
	return errs
}

func mixedPassword(s string) bool {
	var upper, lower, digit bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

// Request sends the reset code to email and returns the state unlocking the code page.
func (p *PasswordReset) Request(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if msg := ValidateEmail(email); msg != "" {
		return "", &ValidationError{Fields: FieldErrors{"email": msg}}
	}
	if err := p.api.ForgotPassword(ctx, email); err != nil {
		return "", err
	}
	return p.tokens.Issue(StepVerify, email, "")
}

// Email returns the address carried by a state token issued for step.
func (p *PasswordReset) Email(state, step string) (string, error) {
	claims, err := p.tokens.Parse(state, step)
	if err != nil {
		return "", err
	}
	return claims.Email, nil
}

// Resend asks the backend for a fresh code for the address in state.
func (p *PasswordReset) Resend(ctx context.Context, state string) error {
	claims, err := p.tokens.Parse(state, StepVerify)
	if err != nil {
		return err
	}
	return p.api.ForgotPassword(ctx, claims.Email)
}

// Verify checks code with the backend and returns the state unlocking the new password page.
func (p *PasswordReset) Verify(ctx context.Context, state, code string) (string, error) {
	claims, err := p.tokens.Parse(state, StepVerify)
	if err != nil {
		return "", err
	}
	code = strings.TrimSpace(code)
	switch {
	case code == "":
		return "", &ValidationError{Fields: FieldErrors{"code": msgCodeRequired}}
	case !codePattern.MatchString(code):
		return "", &ValidationError{Fields: FieldErrors{"code": msgCodeFormat}}
	}
	if err := p.api.VerifyResetCode(ctx, claims.Email, code); err != nil {
		return "", err
	}
	return p.tokens.Issue(StepReset, claims.Email, code)
}

// Reset sets the new password using the email and code carried in state.
func (p *PasswordReset) Reset(ctx context.Context, state, password, confirm string) error {
	claims, err := p.tokens.Parse(state, StepReset)
	if err != nil {
		return err
	}
	if claims.Code == "" {
		return utils.ErrInvalidState
	}
	if err := Check(ValidateNewPassword(password, confirm)); err != nil {
		return err
	}
	return p.api.ResetPassword(ctx, claims.Email, claims.Code, password, confirm)
}

// IsInvalidState reports whether err means the flow must restart from step one.
func IsInvalidState(err error) bool {
	return errors.Is(err, utils.ErrInvalidState)
}
