package utils

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
)

// StateClaims is navigation state carried between steps of a multi-page flow.
// It travels in the URL signed and sealed with the session secret and is never persisted.
type StateClaims struct {
	Step  string `json:"stp"`
	Email string `json:"eml"`
	Code  string `json:"cod,omitempty"`
	jwt.RegisteredClaims
}

// ErrInvalidState covers missing, tampered, expired and wrong-step tokens.
var ErrInvalidState = errors.New("invalid navigation state")

// StateTokens issues and parses StateClaims. The signed JWT is encrypted with
// XChaCha20-Poly1305 so the email and code never appear in URLs or access logs.
type StateTokens struct {
	secret []byte
	aead   cipher.AEAD
	ttl    time.Duration
	now    func() time.Time
}

// NewStateTokens returns an issuer; ttl defaults to 15 minutes.
func NewStateTokens(secret string, ttl time.Duration) *StateTokens {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	key := blake2b.Sum256([]byte("rchan-state\x00" + secret))
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		// only reachable with a key of the wrong length
		panic(err)
	}
	return &StateTokens{secret: []byte(secret), aead: aead, ttl: ttl, now: time.Now}
}

// Issue signs and seals a token for step.
func (t *StateTokens) Issue(step, email, code string) (string, error) {
	now := t.now()
	claims := StateClaims{
		Step:  step,
		Email: email,
		Code:  code,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, t.aead.NonceSize(), t.aead.NonceSize()+len(signed)+t.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := t.aead.Seal(nonce, nonce, []byte(signed), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Parse opens token, validates it and checks that it was issued for step.
func (t *StateTokens) Parse(token, step string) (*StateClaims, error) {
	if token == "" {
		return nil, ErrInvalidState
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) < t.aead.NonceSize() {
		return nil, ErrInvalidState
	}
	nonce, sealed := raw[:t.aead.NonceSize()], raw[t.aead.NonceSize():]
	signed, err := t.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, errors.Join(ErrInvalidState, err)
	}
	parsed, err := jwt.ParseWithClaims(string(signed), &StateClaims{}, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, errors.Join(ErrInvalidState, err)
	}
	claims, ok := parsed.Claims.(*StateClaims)
	if !ok || !parsed.Valid || claims.Step != step || claims.Email == "" {
		return nil, ErrInvalidState
	}
	return claims, nil
}
