package security

import (
	"fmt"
	"strings"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"

	"github.com/silver1334/lianxin/internal/core/domain"
)

const (
	defaultMinPasswordLength   = 8
	defaultMinCharacterClasses = 3
	defaultMinZxcvbnScore      = 3
)

// commonPasswordDenyList holds patterns rejected outright regardless of score.
var commonPasswordDenyList = []string{
	"password", "passw0rd", "qwerty", "letmein", "iloveyou",
	"admin", "welcome", "monkey", "dragon", "sunshine",
	"lianxin", "woaini",
}

// PasswordRule validates a password according to a specific policy rule.
type PasswordRule interface {
	Validate(password string) error
}

// PasswordRuleFunc adapts a function to be used as a PasswordRule.
type PasswordRuleFunc func(password string) error

// Validate executes the underlying rule function.
func (f PasswordRuleFunc) Validate(password string) error {
	return f(password)
}

// PasswordValidator applies a sequence of password rules. All rules run before
// any hashing work, so a weak password never reaches the hasher.
type PasswordValidator struct {
	rules      []PasswordRule
	userInputs []string
}

// NewPasswordValidator constructs a validator with the provided rules.
func NewPasswordValidator(rules ...PasswordRule) *PasswordValidator {
	copied := make([]PasswordRule, len(rules))
	copy(copied, rules)
	return &PasswordValidator{rules: copied}
}

// DefaultPasswordValidator returns the built-in validator enforcing the
// service password policy: length, character classes, deny-list, and zxcvbn
// strength.
func DefaultPasswordValidator() *PasswordValidator {
	return NewPasswordValidator(
		MinLengthRule(defaultMinPasswordLength),
		RequireCharacterClassesRule(defaultMinCharacterClasses),
		DenyCommonPatternsRule(),
		RequirePasswordStrengthRule(defaultMinZxcvbnScore),
	)
}

// Validate executes all rules and returns the first violation as a weak-password error.
func (v *PasswordValidator) Validate(password string, userInputs ...string) error {
	if v == nil {
		return fmt.Errorf("password validator not configured")
	}
	for _, rule := range v.rules {
		if err := rule.Validate(password); err != nil {
			return err
		}
	}
	if len(userInputs) > 0 {
		if err := RequirePasswordStrengthRule(defaultMinZxcvbnScore, userInputs...).Validate(password); err != nil {
			return err
		}
	}
	return nil
}

func weakPassword(message string) error {
	return domain.NewValidationError("weak_password", message)
}

// MinLengthRule ensures the password has at least min characters.
func MinLengthRule(min int) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if len([]rune(password)) < min {
			return weakPassword(fmt.Sprintf("password must be at least %d characters long", min))
		}
		return nil
	})
}

// RequireCharacterClassesRule ensures the password contains characters from at
// least min distinct classes (upper, lower, digit, symbol).
func RequireCharacterClassesRule(min int) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if min <= 0 {
			return nil
		}

		var hasUpper, hasLower, hasDigit, hasSymbol bool
		for _, r := range password {
			switch {
			case unicode.IsUpper(r):
				hasUpper = true
			case unicode.IsLower(r):
				hasLower = true
			case unicode.IsDigit(r):
				hasDigit = true
			default:
				hasSymbol = true
			}
		}

		classes := 0
		for _, present := range []bool{hasUpper, hasLower, hasDigit, hasSymbol} {
			if present {
				classes++
			}
		}
		if classes < min {
			return weakPassword(fmt.Sprintf("password must mix at least %d character classes", min))
		}
		return nil
	})
}

// DenyCommonPatternsRule rejects sequential digits, single repeated
// characters, and deny-listed dictionary words.
func DenyCommonPatternsRule() PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		lowered := strings.ToLower(password)

		for _, word := range commonPasswordDenyList {
			if strings.Contains(lowered, word) {
				return weakPassword("password contains a common word")
			}
		}
		if isSequentialDigits(password) {
			return weakPassword("password must not be sequential digits")
		}
		if isRepeatedRune(password) {
			return weakPassword("password must not repeat a single character")
		}
		return nil
	})
}

// RequirePasswordStrengthRule ensures the zxcvbn score meets the minimum,
// penalizing matches against the supplied user inputs (phone, name).
func RequirePasswordStrengthRule(minScore int, userInputs ...string) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		result := zxcvbn.PasswordStrength(password, userInputs)
		if result.Score < minScore {
			return weakPassword("password is too predictable")
		}
		return nil
	})
}

func isSequentialDigits(password string) bool {
	if len(password) < 4 {
		return false
	}
	ascending, descending := true, true
	for i := 1; i < len(password); i++ {
		prev, cur := password[i-1], password[i]
		if prev < '0' || prev > '9' || cur < '0' || cur > '9' {
			return false
		}
		if cur != prev+1 {
			ascending = false
		}
		if cur != prev-1 {
			descending = false
		}
	}
	return ascending || descending
}

func isRepeatedRune(password string) bool {
	runes := []rune(password)
	if len(runes) == 0 {
		return false
	}
	first := runes[0]
	for _, r := range runes[1:] {
		if r != first {
			return false
		}
	}
	return true
}

type passwordVerifier interface {
	Verify(password, encoded string) (bool, error)
}

// IsPasswordReused reports whether the candidate matches any hash in the
// bounded password history.
func IsPasswordReused(hasher passwordVerifier, password string, history []domain.PasswordHistoryEntry) (bool, error) {
	for _, entry := range history {
		match, err := hasher.Verify(password, entry.Hash)
		if err != nil {
			return false, fmt.Errorf("verify against history: %w", err)
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}
