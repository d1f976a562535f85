package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost   = 12
	APIKeyLength = 32 // 256 bits
	MinKeyLen    = 16
)

// GenerateAPIKey produces a random administrative key. The caller stores
// only the hash; the key itself is shown once.
func GenerateAPIKey() (string, error) {
	bytes := make([]byte, APIKeyLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

// HashAPIKey returns the bcrypt hash of an administrative key
func HashAPIKey(key string) (string, error) {
	if len(key) < MinKeyLen {
		return "", fmt.Errorf("api key must be at least %d characters", MinKeyLen)
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(key), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash api key: %w", err)
	}
	return string(hashedBytes), nil
}

// CompareAPIKey checks a presented key against its stored hash
func CompareAPIKey(hashedKey, key string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedKey), []byte(key))
}
