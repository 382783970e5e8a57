package port

// PasswordHasher hashes and verifies password secrets.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, encoded string) (bool, error)
}

// PasswordPolicyValidator enforces password strength requirements before any
// hashing work happens.
type PasswordPolicyValidator interface {
	Validate(password string, userInputs ...string) error
}

// FieldCipher provides versioned, authenticated encryption for PII columns.
type FieldCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// IdentityHasher derives the deterministic one-way lookup key for a value
// such as a canonical phone number.
type IdentityHasher interface {
	Hash(value string) string
}

// TokenSource generates cryptographically random material.
type TokenSource interface {
	SecureToken(byteLength int) (string, error)
	NumericCode(length int) (string, error)
}
