package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// cipherVersion prefixes ciphertexts so key/algorithm upgrades can coexist
// with old rows.
const cipherVersion = "v1"

var errCiphertextFormat = errors.New("encryption: invalid ciphertext format")

// FieldCipher encrypts PII columns (phone, name, bio) with AES-256-GCM.
// Output format: v1:<base64(nonce || ciphertext)>.
type FieldCipher struct {
	aead cipher.AEAD
}

// NewFieldCipher derives a 256-bit key from the supplied secret and builds the cipher.
func NewFieldCipher(secret string) (*FieldCipher, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("encryption: secret must be at least 32 bytes")
	}

	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("encryption: init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("encryption: init gcm: %w", err)
	}

	return &FieldCipher{aead: aead}, nil
}

// Encrypt seals the plaintext with a fresh nonce.
func (c *FieldCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("encryption: generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), []byte(cipherVersion))
	return cipherVersion + ":" + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a versioned ciphertext produced by Encrypt.
func (c *FieldCipher) Decrypt(ciphertext string) (string, error) {
	version, payload, found := strings.Cut(ciphertext, ":")
	if !found {
		return "", errCiphertextFormat
	}
	if version != cipherVersion {
		return "", fmt.Errorf("encryption: unsupported version %q", version)
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("encryption: decode payload: %w", err)
	}
	if len(raw) < c.aead.NonceSize() {
		return "", errCiphertextFormat
	}

	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, []byte(version))
	if err != nil {
		return "", fmt.Errorf("encryption: open payload: %w", err)
	}

	return string(plain), nil
}
