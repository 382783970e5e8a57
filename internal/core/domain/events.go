package domain

import (
	"time"

	uuid "github.com/google/uuid"
)

// Event type names emitted by aggregate operations.
const (
	EventAccountRegistered       = "account.registered"
	EventAccountLoginSucceeded   = "account.login_succeeded"
	EventAccountLoginFailed      = "account.login_failed"
	EventAccountLocked           = "account.locked"
	EventAccountUnlocked         = "account.unlocked"
	EventAccountPasswordChanged  = "account.password_changed"
	EventAccountSuspended        = "account.suspended"
	EventAccountUnsuspended      = "account.unsuspended"
	EventAccountVerified         = "account.verified"
	EventAccountDeactivated      = "account.deactivated"
	EventAccountDeletionPending  = "account.deletion_scheduled"
	EventAccountReactivated      = "account.reactivated"
	EventSessionCreated          = "session.created"
	EventSessionRevoked          = "session.revoked"
	EventSessionRefreshed        = "session.refreshed"
	EventOTPChallengeIssued      = "otp.challenge_issued"
	EventPasswordResetRequested  = "account.password_reset_requested"
)

// eventVersion is the current payload schema version for all domain events.
const eventVersion = 1

// Event is an immutable record of a single aggregate state transition.
type Event struct {
	ID          string
	Type        string
	AggregateID string
	Payload     map[string]any
	OccurredAt  time.Time
	Version     int
}

// NewEvent constructs an event with a fresh identifier and the current schema version.
func NewEvent(eventType, aggregateID string, at time.Time, payload map[string]any) Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		AggregateID: aggregateID,
		Payload:     payload,
		OccurredAt:  at.UTC(),
		Version:     eventVersion,
	}
}
