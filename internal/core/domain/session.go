package domain

import (
	"time"

	uuid "github.com/google/uuid"
)

// Session revocation reasons recorded on termination.
const (
	RevokeReasonUserLogout     = "user_logout"
	RevokeReasonNewDeviceLogin = "new_device_login"
	RevokeReasonPasswordChange = "password_change"
	RevokeReasonPasswordReset  = "password_reset"
	RevokeReasonAdminAction    = "admin_action"
	RevokeReasonAccountClosed  = "account_closed"
)

// ErrCannotRevoke indicates the session is already terminated.
var ErrCannotRevoke = NewStateError("cannot_revoke", "session is already revoked or inactive")

// Session is a logged-in device's authorization record. The public id is
// what tokens and transports carry; the internal id never leaves storage.
type Session struct {
	ID        int64
	PublicID  string
	AccountID int64

	RefreshTokenHash string
	RefreshIssuedAt  time.Time
	ExpiresAt        time.Time

	DeviceID   string
	DeviceName string
	IP         string
	UserAgent  string
	Location   string

	Active       bool
	LastActiveAt time.Time
	RevokedAt    *time.Time
	RevokeReason *string

	CreatedAt time.Time

	pending []Event
}

// NewSession creates an active session for the account and device.
func NewSession(accountID int64, refreshTokenHash string, deviceID, deviceName, ip, userAgent string, expiresAt, at time.Time) *Session {
	at = at.UTC()
	session := &Session{
		PublicID:         uuid.NewString(),
		AccountID:        accountID,
		RefreshTokenHash: refreshTokenHash,
		RefreshIssuedAt:  at,
		ExpiresAt:        expiresAt.UTC(),
		DeviceID:         deviceID,
		DeviceName:       deviceName,
		IP:               ip,
		UserAgent:        userAgent,
		Active:           true,
		LastActiveAt:     at,
		CreatedAt:        at,
	}
	session.appendEvent(EventSessionCreated, at, map[string]any{
		"device_id": deviceID,
		"ip":        ip,
	})
	return session
}

// IsValid reports whether the session authorizes token refresh at the supplied moment.
func (s *Session) IsValid(at time.Time) bool {
	if !s.Active || s.RevokedAt != nil {
		return false
	}
	return s.ExpiresAt.After(at)
}

// IsExpired reports whether the expiry moment has passed.
func (s *Session) IsExpired(at time.Time) bool {
	return !s.ExpiresAt.After(at)
}

// Revoke terminates the session. Revocation is terminal: a revoked session
// never becomes active again.
func (s *Session) Revoke(reason string, at time.Time) error {
	if !s.Active || s.RevokedAt != nil {
		return ErrCannotRevoke
	}
	at = at.UTC()
	s.Active = false
	s.RevokedAt = &at
	s.RevokeReason = &reason
	s.appendEvent(EventSessionRevoked, at, map[string]any{"reason": reason})
	return nil
}

// RotateRefreshToken replaces the stored refresh-token hash in place. The
// prior hash is invalid from this moment; refresh tokens are single-use.
func (s *Session) RotateRefreshToken(newHash string, newExpiry, at time.Time) {
	at = at.UTC()
	s.RefreshTokenHash = newHash
	s.RefreshIssuedAt = at
	s.ExpiresAt = newExpiry.UTC()
	s.LastActiveAt = at
	s.appendEvent(EventSessionRefreshed, at, nil)
}

// Touch records session activity without altering authorization state.
func (s *Session) Touch(at time.Time) {
	s.LastActiveAt = at.UTC()
}

// DrainEvents returns pending events in append order and clears the list.
func (s *Session) DrainEvents() []Event {
	drained := s.pending
	s.pending = nil
	return drained
}

func (s *Session) appendEvent(eventType string, at time.Time, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["session_id"] = s.PublicID
	s.pending = append(s.pending, NewEvent(eventType, s.PublicID, at, payload))
}
