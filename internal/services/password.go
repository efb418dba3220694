package services

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is the fixed work factor for all stored credentials.
const bcryptCost = 12

// HashPassword runs the plaintext through bcrypt. The plaintext is never
// persisted or logged anywhere.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether plaintext matches the stored hash. bcrypt's
// comparison is constant time relative to match/mismatch. Library failures
// surface as a mismatch here and as an internal error at the caller when the
// hash itself is malformed.
func VerifyPassword(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
