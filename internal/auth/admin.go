package auth

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrLoginDisabled is returned when no admin password hash is configured.
var ErrLoginDisabled = errors.New("admin login is not configured")

// ErrBadCredentials is returned for a wrong username or password.
var ErrBadCredentials = errors.New("invalid username or password")

// AdminCredentials checks the single configured admin account.
type AdminCredentials struct {
	Username     string
	PasswordHash []byte
}

// NewAdminCredentials takes a bcrypt hash; an empty hash disables login.
func NewAdminCredentials(username, passwordHash string) *AdminCredentials {
	return &AdminCredentials{Username: username, PasswordHash: []byte(passwordHash)}
}

// Verify checks username and password.
func (a *AdminCredentials) Verify(username, password string) error {
	if len(a.PasswordHash) == 0 {
		return ErrLoginDisabled
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.Username)) == 1
	passErr := bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(password))
	if !userOK || passErr != nil {
		return ErrBadCredentials
	}
	return nil
}

// HashPassword is a helper for producing ADMIN_PASSWORD_HASH values.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(h), err
}
