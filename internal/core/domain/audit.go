package domain

import "time"

// LoginAttempt records a single authentication attempt for throttling
// analysis and audit. Attempts against unknown phones carry no account id.
type LoginAttempt struct {
	ID          int64
	AccountUUID *string
	PhoneHash   string
	Succeeded   bool
	FailureCode string
	IP          string
	UserAgent   string
	CreatedAt   time.Time
}
