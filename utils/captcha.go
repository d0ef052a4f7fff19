package utils

import (
	"github.com/mojocn/base64Captcha"
)

// Captcha guards the administrator login form when enabled.
type Captcha struct {
	store  base64Captcha.Store
	driver base64Captcha.Driver
}

// NewCaptcha builds a digit captcha (height 40, width 120, 5 digits) over store.
func NewCaptcha(store base64Captcha.Store) *Captcha {
	return &Captcha{
		store:  store,
		driver: base64Captcha.NewDriverDigit(40, 120, 5, 0.7, 80),
	}
}

// Generate creates a captcha and returns (id, dataURI) for the login page.
func (c *Captcha) Generate() (string, string, error) {
	id, b64, _, err := base64Captcha.NewCaptcha(c.driver, c.store).Generate()
	return id, b64, err
}

// Verify verifies the provided answer; it consumes the captcha either way.
func (c *Captcha) Verify(id, answer string) bool {
	if id == "" || answer == "" {
		return false
	}
	return c.store.Verify(id, answer, true)
}
