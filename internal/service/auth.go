package service

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrWeakToken    = errors.New("token does not meet requirements")
	ErrNoTokenHash  = errors.New("no API token hash configured")
)

const minTokenLength = 16

func validateTokenStrength(token string) error {
	if len(token) < minTokenLength {
		return fmt.Errorf("must be at least %d characters", minTokenLength)
	}
	if strings.ContainsAny(token, " \t\r\n") {
		return fmt.Errorf("must not contain whitespace")
	}
	return nil
}

// HashToken returns the bcrypt hash stored in API_TOKEN_HASH.
func HashToken(token string) (string, error) {
	if err := validateTokenStrength(token); err != nil {
		return "", fmt.Errorf("%w: %w", ErrWeakToken, err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// GenerateToken returns a random URL-safe token.
func GenerateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// TokenAuth checks API bearer tokens against a single bcrypt hash.
type TokenAuth struct {
	hash []byte
}

func NewTokenAuth(hash string) (*TokenAuth, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil, ErrNoTokenHash
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("invalid API token hash: %w", err)
	}
	return &TokenAuth{hash: []byte(hash)}, nil
}

func (a *TokenAuth) Verify(token string) error {
	if token == "" {
		return ErrInvalidToken
	}
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(token)); err != nil {
		return ErrInvalidToken
	}
	return nil
}
