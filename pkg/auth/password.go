package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinBcryptCost is the weakest work factor the service accepts.
// bcrypt handles salting and constant-time comparison internally.
const MinBcryptCost = 12

// HashPassword derives a salted one-way hash of password with the given
// work factor. Costs below MinBcryptCost are raised to it.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	if cost < MinBcryptCost {
		cost = MinBcryptCost
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// ComparePassword reports whether password matches hashedPassword.
// Returns nil on match, bcrypt.ErrMismatchedHashAndPassword otherwise.
func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}
