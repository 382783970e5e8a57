package domain

import "time"

// OTPPurpose scopes a challenge to a single flow. Codes are never valid
// across purposes.
type OTPPurpose string

const (
	OTPPurposeRegistration  OTPPurpose = "registration"
	OTPPurposeLogin         OTPPurpose = "login"
	OTPPurposePasswordReset OTPPurpose = "password_reset"
)

const (
	// OTPCodeLength is the number of digits in a generated code.
	OTPCodeLength = 6
	// OTPMaxAttempts is the verification attempt limit before the challenge is purged.
	OTPMaxAttempts = 3
	// OTPChallengeTTL is the validity window of an issued challenge.
	OTPChallengeTTL = 5 * time.Minute
	// OTPSendLimit caps sends per phone and purpose inside OTPSendWindow.
	OTPSendLimit = 5
	// OTPSendWindow is the sliding window applied to the send limit.
	OTPSendWindow = time.Hour
)

// OTP verification failures.
var (
	ErrChallengeNotFound   = NewNotFoundError("challenge_not_found", "verification challenge not found")
	ErrChallengeExpired    = NewAuthError("challenge_expired", "verification code has expired")
	ErrMaxAttemptsExceeded = NewAuthError("max_attempts_exceeded", "too many incorrect attempts")
	ErrInvalidCode         = NewAuthError("invalid_code", "verification code is incorrect")
	ErrPhoneMismatch       = NewAuthError("phone_mismatch", "verification challenge is bound to a different phone")
	ErrOTPRateLimited      = NewRateLimitError("otp_rate_limited", "too many verification codes requested")
	ErrInvalidOTPPurpose   = NewValidationError("invalid_otp_purpose", "verification purpose is not supported")
)

// ParseOTPPurpose validates a purpose string from the outside world.
func ParseOTPPurpose(raw string) (OTPPurpose, error) {
	switch OTPPurpose(raw) {
	case OTPPurposeRegistration, OTPPurposeLogin, OTPPurposePasswordReset:
		return OTPPurpose(raw), nil
	default:
		return "", ErrInvalidOTPPurpose
	}
}

// OTPChallenge is an ephemeral one-time-code verification record. It lives in
// the expiring store keyed by VerificationID and is purged on success, expiry,
// or attempt exhaustion.
type OTPChallenge struct {
	VerificationID string
	Phone          string
	CountryCode    string
	PhoneHash      string
	Purpose        OTPPurpose
	AccountUUID    string
	Code           string
	Attempts       int
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// IsExpired reports whether the challenge window has lapsed.
func (c OTPChallenge) IsExpired(at time.Time) bool {
	return !c.ExpiresAt.After(at)
}

// AttemptsExhausted reports whether the attempt counter reached the limit.
func (c OTPChallenge) AttemptsExhausted() bool {
	return c.Attempts >= OTPMaxAttempts
}
