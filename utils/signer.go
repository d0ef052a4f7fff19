package utils

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/blake2b"
)

// Signer derives keyed MACs from the session secret.
type Signer struct {
	key []byte
}

// NewSigner hashes secret down to a 64 byte blake2b key.
func NewSigner(secret string) *Signer {
	sum := blake2b.Sum512([]byte(secret))
	return &Signer{key: sum[:]}
}

// Sign returns a URL-safe MAC binding purpose to value.
func (s *Signer) Sign(purpose, value string) string {
	h, err := blake2b.New256(s.key)
	if err != nil {
		// only fails for keys over 64 bytes
		panic(err)
	}
	h.Write([]byte(purpose))
	h.Write([]byte{0})
	h.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// Verify checks mac in constant time.
func (s *Signer) Verify(purpose, value, mac string) bool {
	if mac == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.Sign(purpose, value)), []byte(mac)) == 1
}

// CSRFToken binds a form token to the browser session.
func (s *Signer) CSRFToken(sessionID string) string {
	return s.Sign("csrf", sessionID)
}

// ErrCSRF is returned when a form token does not match the session.
var ErrCSRF = errors.New("invalid csrf token")

// CheckCSRF validates token against the session id.
func (s *Signer) CheckCSRF(sessionID, token string) error {
	if !s.Verify("csrf", sessionID, token) {
		return ErrCSRF
	}
	return nil
}
