package syncctl

import (
	"fmt"

	"gamehall/internal/core"

	"golang.org/x/crypto/bcrypt"
)

// Default offline operator
const (
	DefaultUsername = "admin"
	DefaultPassword = "admin123"
)

// LocalAuthenticator checks credentials against one configured operator
// whose password is stored as a bcrypt hash
type LocalAuthenticator struct {
	username     string
	passwordHash []byte
}

// NewLocalAuthenticator creates an authenticator for the given operator
func NewLocalAuthenticator(username, passwordHash string) (*LocalAuthenticator, error) {
	if username == "" {
		return nil, fmt.Errorf("operator username is required")
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, fmt.Errorf("invalid operator password hash: %w", err)
	}
	return &LocalAuthenticator{
		username:     username,
		passwordHash: []byte(passwordHash),
	}, nil
}

// Authenticate returns the operator when the credentials match
func (a *LocalAuthenticator) Authenticate(username, password string) (*core.Operator, error) {
	if username != a.username {
		return nil, core.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		return nil, core.ErrInvalidCredentials
	}
	return &core.Operator{ID: "local", Username: username}, nil
}

// HashPassword returns the bcrypt hash stored in the configuration
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
