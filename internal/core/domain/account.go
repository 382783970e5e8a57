package domain

import (
	"time"

	uuid "github.com/google/uuid"
)

// AccountStatus enumerates account lifecycle states.
type AccountStatus string

const (
	AccountStatusActive          AccountStatus = "active"
	AccountStatusSuspended       AccountStatus = "suspended"
	AccountStatusDeactivated     AccountStatus = "deactivated"
	AccountStatusPendingDeletion AccountStatus = "pending_deletion"
)

const (
	// LockoutThreshold is the number of consecutive failed logins before the account locks.
	LockoutThreshold = 5
	// PasswordHistorySize caps the retained prior password hashes.
	PasswordHistorySize = 5
)

// Account transition failures.
var (
	ErrAlreadySuspended   = NewConflictError("already_suspended", "account is already suspended")
	ErrNotSuspended       = NewStateError("not_suspended", "account is not suspended")
	ErrAlreadyVerified    = NewConflictError("already_verified", "account is already verified")
	ErrAlreadyDeactivated = NewConflictError("already_deactivated", "account is already deactivated")
	ErrAlreadyScheduled   = NewConflictError("already_scheduled", "account is already scheduled for deletion")
	ErrNotLocked          = NewStateError("not_locked", "account is not locked")
)

// PasswordHistoryEntry is a retired password hash with its retirement moment.
type PasswordHistoryEntry struct {
	Hash      string
	ChangedAt time.Time
}

// Account is the identity aggregate root. Mutating operations append exactly
// one pending event; the orchestration layer drains and publishes the events
// only after the state change has been durably committed.
type Account struct {
	ID   int64
	UUID string

	// Phone holds the canonical E.164 number; the persistence adapter
	// encrypts it at rest. PhoneHash is the deterministic lookup key.
	Phone     string
	PhoneHash string

	PasswordHash      string
	PasswordChangedAt time.Time
	PasswordHistory   []PasswordHistoryEntry

	IsVerified bool
	Status     AccountStatus

	SuspensionReason *string
	SuspendedUntil   *time.Time
	SuspendedBy      *string

	FailedLoginAttempts int
	LastFailedLoginAt   *time.Time
	LastLoginAt         *time.Time
	LastLoginIP         *string

	DeactivatedAt     *time.Time
	PendingDeletionAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	pending []Event
}

// NewAccount creates an active, unverified account for a verified phone identity.
func NewAccount(phone Phone, phoneHash, passwordHash string, at time.Time) *Account {
	at = at.UTC()
	account := &Account{
		UUID:              uuid.NewString(),
		Phone:             phone.E164(),
		PhoneHash:         phoneHash,
		PasswordHash:      passwordHash,
		PasswordChangedAt: at,
		Status:            AccountStatusActive,
		CreatedAt:         at,
		UpdatedAt:         at,
	}
	account.appendEvent(EventAccountRegistered, at, map[string]any{
		"country_code": phone.CountryCode(),
	})
	return account
}

// RecordFailedLogin increments the failed-login counter. Crossing the lockout
// threshold emits an account-locked event instead of the plain failure event.
// Status is never changed by lockout.
func (a *Account) RecordFailedLogin(ip string, at time.Time) {
	at = at.UTC()
	a.FailedLoginAttempts++
	a.LastFailedLoginAt = &at
	a.UpdatedAt = at

	if a.FailedLoginAttempts == LockoutThreshold {
		a.appendEvent(EventAccountLocked, at, map[string]any{
			"failed_attempts": a.FailedLoginAttempts,
			"ip":              ip,
		})
		return
	}
	a.appendEvent(EventAccountLoginFailed, at, map[string]any{
		"failed_attempts": a.FailedLoginAttempts,
		"ip":              ip,
	})
}

// RecordSuccessfulLogin resets the failed-login counter and stamps login metadata.
func (a *Account) RecordSuccessfulLogin(ip string, at time.Time) {
	at = at.UTC()
	a.FailedLoginAttempts = 0
	a.LastFailedLoginAt = nil
	a.LastLoginAt = &at
	if ip != "" {
		ipCopy := ip
		a.LastLoginIP = &ipCopy
	}
	a.UpdatedAt = at
	a.appendEvent(EventAccountLoginSucceeded, at, map[string]any{"ip": ip})
}

// IsLocked reports whether the failed-login counter has reached the lockout threshold.
func (a *Account) IsLocked() bool {
	return a.FailedLoginAttempts >= LockoutThreshold
}

// IsSuspended reports whether a suspension window is currently in force.
// The stored status stays suspended after the window lapses until an explicit
// unsuspend; only the time-boxed denial expires on its own.
func (a *Account) IsSuspended(at time.Time) bool {
	if a.Status != AccountStatusSuspended {
		return false
	}
	if a.SuspendedUntil == nil {
		return true
	}
	return a.SuspendedUntil.After(at)
}

// CanLogin reports whether credentials may even be considered for this
// account. Deactivated and pending-deletion accounts are admitted, login
// restores them. A suspended account is admitted once its window lapses
// even though the stored status stays suspended until an explicit
// unsuspend.
func (a *Account) CanLogin(at time.Time) bool {
	if a.IsLocked() {
		return false
	}
	return !a.IsSuspended(at)
}

// ChangePassword retires the current hash into bounded history and installs the
// new one. Policy and reuse checks are the caller's responsibility.
func (a *Account) ChangePassword(newHash string, at time.Time) {
	at = at.UTC()
	if a.PasswordHash != "" {
		a.PasswordHistory = append(a.PasswordHistory, PasswordHistoryEntry{
			Hash:      a.PasswordHash,
			ChangedAt: a.PasswordChangedAt,
		})
		if len(a.PasswordHistory) > PasswordHistorySize {
			a.PasswordHistory = a.PasswordHistory[len(a.PasswordHistory)-PasswordHistorySize:]
		}
	}
	a.PasswordHash = newHash
	a.PasswordChangedAt = at
	a.UpdatedAt = at
	a.appendEvent(EventAccountPasswordChanged, at, nil)
}

// Suspend places the account into a time-boxed suspension.
func (a *Account) Suspend(reason string, durationDays int, by string, at time.Time) error {
	if a.Status == AccountStatusSuspended {
		return ErrAlreadySuspended
	}
	at = at.UTC()
	until := at.Add(time.Duration(durationDays) * 24 * time.Hour)
	a.Status = AccountStatusSuspended
	a.SuspensionReason = &reason
	a.SuspendedUntil = &until
	a.SuspendedBy = &by
	a.UpdatedAt = at
	a.appendEvent(EventAccountSuspended, at, map[string]any{
		"reason":        reason,
		"duration_days": durationDays,
		"until":         until.Format(time.RFC3339),
		"by":            by,
	})
	return nil
}

// Unsuspend lifts a suspension and restores active status.
func (a *Account) Unsuspend(by string, at time.Time) error {
	if a.Status != AccountStatusSuspended {
		return ErrNotSuspended
	}
	at = at.UTC()
	a.Status = AccountStatusActive
	a.SuspensionReason = nil
	a.SuspendedUntil = nil
	a.SuspendedBy = nil
	a.UpdatedAt = at
	a.appendEvent(EventAccountUnsuspended, at, map[string]any{"by": by})
	return nil
}

// Unlock clears the failed-login counter through the administrative path.
func (a *Account) Unlock(by string, at time.Time) error {
	if !a.IsLocked() {
		return ErrNotLocked
	}
	at = at.UTC()
	a.FailedLoginAttempts = 0
	a.LastFailedLoginAt = nil
	a.UpdatedAt = at
	a.appendEvent(EventAccountUnlocked, at, map[string]any{"by": by})
	return nil
}

// Verify marks the account identity as verified.
func (a *Account) Verify(verificationType, data, by string, at time.Time) error {
	if a.IsVerified {
		return ErrAlreadyVerified
	}
	at = at.UTC()
	a.IsVerified = true
	a.UpdatedAt = at
	a.appendEvent(EventAccountVerified, at, map[string]any{
		"type": verificationType,
		"data": data,
		"by":   by,
	})
	return nil
}

// Deactivate moves the account into the user-initiated dormant state.
func (a *Account) Deactivate(reason string, at time.Time) error {
	if a.Status == AccountStatusDeactivated {
		return ErrAlreadyDeactivated
	}
	at = at.UTC()
	a.Status = AccountStatusDeactivated
	a.DeactivatedAt = &at
	a.UpdatedAt = at
	payload := map[string]any{}
	if reason != "" {
		payload["reason"] = reason
	}
	a.appendEvent(EventAccountDeactivated, at, payload)
	return nil
}

// ScheduleForDeletion marks the account for removal at purgeAt. Until then a
// successful login reactivates it.
func (a *Account) ScheduleForDeletion(purgeAt, at time.Time) error {
	if a.Status == AccountStatusPendingDeletion {
		return ErrAlreadyScheduled
	}
	at = at.UTC()
	purgeAt = purgeAt.UTC()
	a.Status = AccountStatusPendingDeletion
	a.PendingDeletionAt = &purgeAt
	a.UpdatedAt = at
	a.appendEvent(EventAccountDeletionPending, at, map[string]any{
		"purge_at": purgeAt,
	})
	return nil
}

// Reactivate restores active status from deactivated or pending-deletion.
// Suspended accounts are not eligible; only an explicit unsuspend lifts that
// state. No-op calls emit no event.
func (a *Account) Reactivate(at time.Time) {
	if a.Status != AccountStatusDeactivated && a.Status != AccountStatusPendingDeletion {
		return
	}
	at = at.UTC()
	previous := a.Status
	a.Status = AccountStatusActive
	a.DeactivatedAt = nil
	a.PendingDeletionAt = nil
	a.UpdatedAt = at
	a.appendEvent(EventAccountReactivated, at, map[string]any{
		"previous_status": string(previous),
	})
}

// PendingEvents returns the accumulated, not yet published events.
func (a *Account) PendingEvents() []Event {
	return a.pending
}

// DrainEvents returns pending events in append order and clears the list.
// Call only after the corresponding state change was committed.
func (a *Account) DrainEvents() []Event {
	drained := a.pending
	a.pending = nil
	return drained
}

func (a *Account) appendEvent(eventType string, at time.Time, payload map[string]any) {
	a.pending = append(a.pending, NewEvent(eventType, a.UUID, at, payload))
}
