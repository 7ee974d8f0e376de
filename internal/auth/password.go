package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Password length bounds accepted at registration. bcrypt only reads the first
// 72 bytes, so longer passwords are rejected rather than truncated.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

// HashPassword hashes a plain password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
