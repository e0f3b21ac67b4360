// Package auth verifies the shared keys that guard admin and webhook routes.
package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const DefaultBcryptCost = 12

// HashKey returns a bcrypt hash suitable for ADMIN_KEY or WEBHOOK_SECRET.
func HashKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", fmt.Errorf("key is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(trimmed), DefaultBcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash key: %w", err)
	}
	return string(hash), nil
}

// IsHash reports whether configured looks like a bcrypt hash rather than a
// plain key.
func IsHash(configured string) bool {
	trimmed := strings.TrimSpace(configured)
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

// VerifyKey checks presented against configured, which may be plain text or a
// bcrypt hash. An empty configured key never matches.
func VerifyKey(presented, configured string) bool {
	trimmedPresented := strings.TrimSpace(presented)
	trimmedConfigured := strings.TrimSpace(configured)
	if trimmedPresented == "" || trimmedConfigured == "" {
		return false
	}
	if IsHash(trimmedConfigured) {
		return bcrypt.CompareHashAndPassword([]byte(trimmedConfigured), []byte(trimmedPresented)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(trimmedPresented), []byte(trimmedConfigured)) == 1
}
