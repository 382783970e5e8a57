package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// TokenSource produces random codes and tokens from crypto/rand.
type TokenSource struct{}

// NewTokenSource constructs a TokenSource.
func NewTokenSource() *TokenSource {
	return &TokenSource{}
}

// NumericCode returns a random numeric string of the given length.
func (TokenSource) NumericCode(length int) (string, error) {
	return GenerateNumericCode(length)
}

// SecureToken returns a base64 URL-safe random string using the specified number of random bytes.
func (TokenSource) SecureToken(byteLength int) (string, error) {
	return GenerateSecureToken(byteLength)
}

// GenerateNumericCode returns a random numeric string of the given length.
func GenerateNumericCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	digits := make([]byte, length)
	for i, b := range buf {
		digits[i] = '0' + (b % 10)
	}

	return string(digits), nil
}

// GenerateSecureToken returns a base64 URL-safe random string using the specified number of random bytes.
func GenerateSecureToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken calculates a SHA-256 hash of the provided value.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// IdentityHasher derives deterministic lookup keys via HMAC-SHA256 so raw
// identifiers never appear as plain digests in storage.
type IdentityHasher struct {
	key []byte
}

// NewIdentityHasher builds a hasher keyed with the supplied secret.
func NewIdentityHasher(secret string) *IdentityHasher {
	return &IdentityHasher{key: []byte(secret)}
}

// Hash returns the hex HMAC-SHA256 of the value.
func (h *IdentityHasher) Hash(value string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}
