package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/silver1334/lianxin/internal/core/domain"
)

const newTestPassword = "N3w!SecurePass#4561"

func TestChangePasswordRevokesOtherSessions(t *testing.T) {
	f := newFixture(t)
	first := f.register(t)
	second, err := f.login(t, "device-2")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}

	err = f.password.Change(context.Background(), ChangePasswordInput{
		AccountUUID:     first.AccountUUID,
		CurrentPassword: testPassword,
		NewPassword:     newTestPassword,
		KeepSessionID:   second.SessionID,
	})
	if err != nil {
		t.Fatalf("change password: %v", err)
	}

	// Old password is dead, new one works.
	if _, err := loginWithPassword(f, testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password rejected, got %v", err)
	}
	if _, err := loginWithPassword(f, newTestPassword); err != nil {
		t.Fatalf("expected new password accepted, got %v", err)
	}

	old, _ := f.sessions.GetByPublicID(context.Background(), first.SessionID)
	if old.Active {
		t.Fatal("expected other session revoked on password change")
	}
	kept, _ := f.sessions.GetByPublicID(context.Background(), second.SessionID)
	if !kept.Active {
		t.Fatal("calling session must survive the change")
	}

	if events := f.publisher.byType(domain.EventAccountPasswordChanged); len(events) != 1 {
		t.Fatalf("expected one password-changed event, got %d", len(events))
	}
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	f := newFixture(t)
	result := f.register(t)

	err := f.password.Change(context.Background(), ChangePasswordInput{
		AccountUUID:     result.AccountUUID,
		CurrentPassword: "Wr0ng!Current#123",
		NewPassword:     newTestPassword,
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestChangePasswordRejectsReuse(t *testing.T) {
	f := newFixture(t)
	result := f.register(t)

	// Reusing the current password fails outright.
	err := f.password.Change(context.Background(), ChangePasswordInput{
		AccountUUID:     result.AccountUUID,
		CurrentPassword: testPassword,
		NewPassword:     testPassword,
	})
	if !errors.Is(err, ErrPasswordReused) {
		t.Fatalf("expected ErrPasswordReused, got %v", err)
	}

	// After a change, the retired password lives in history and stays banned.
	if err := f.password.Change(context.Background(), ChangePasswordInput{
		AccountUUID:     result.AccountUUID,
		CurrentPassword: testPassword,
		NewPassword:     newTestPassword,
	}); err != nil {
		t.Fatalf("change password: %v", err)
	}
	err = f.password.Change(context.Background(), ChangePasswordInput{
		AccountUUID:     result.AccountUUID,
		CurrentPassword: newTestPassword,
		NewPassword:     testPassword,
	})
	if !errors.Is(err, ErrPasswordReused) {
		t.Fatalf("expected history reuse rejected, got %v", err)
	}
}

func TestPasswordHistoryEvictsBeyondCap(t *testing.T) {
	f := newFixture(t)
	result := f.register(t)

	passwords := []string{
		"R0und!One#Pass-111",
		"R0und!Two#Pass-222",
		"R0und!Three#Pass-333",
		"R0und!Four#Pass-444",
		"R0und!Five#Pass-555",
		"R0und!Six#Pass-666",
	}

	current := testPassword
	for _, next := range passwords {
		if err := f.password.Change(context.Background(), ChangePasswordInput{
			AccountUUID:     result.AccountUUID,
			CurrentPassword: current,
			NewPassword:     next,
		}); err != nil {
			t.Fatalf("change to %q: %v", next, err)
		}
		current = next
	}

	account, _ := f.accounts.GetByUUID(context.Background(), result.AccountUUID)
	if len(account.PasswordHistory) != domain.PasswordHistorySize {
		t.Fatalf("expected history capped at %d, got %d", domain.PasswordHistorySize, len(account.PasswordHistory))
	}

	// The original password fell out of the bounded history, so it may
	// return.
	if err := f.password.Change(context.Background(), ChangePasswordInput{
		AccountUUID:     result.AccountUUID,
		CurrentPassword: current,
		NewPassword:     testPassword,
	}); err != nil {
		t.Fatalf("expected evicted password reusable, got %v", err)
	}
}

func TestResetFlow(t *testing.T) {
	f := newFixture(t)
	f.register(t)
	if _, err := f.login(t, "device-2"); err != nil {
		t.Fatalf("second login: %v", err)
	}

	verificationID, code := f.issueChallenge(t, string(domain.OTPPurposePasswordReset))

	ticket, err := f.password.RequestReset(context.Background(), ResetRequestInput{
		Phone:          testPhone,
		CountryCode:    testCountryCode,
		VerificationID: verificationID,
		Code:           code,
	})
	if err != nil {
		t.Fatalf("request reset: %v", err)
	}

	if err := f.password.ConfirmReset(context.Background(), ConfirmResetInput{
		ResetToken:  ticket.ResetToken,
		NewPassword: newTestPassword,
	}); err != nil {
		t.Fatalf("confirm reset: %v", err)
	}

	if _, err := loginWithPassword(f, newTestPassword); err != nil {
		t.Fatalf("expected new password accepted, got %v", err)
	}

	// A reset leaves no session alive except the one just created by login.
	account, _ := f.accounts.GetByPhoneHash(context.Background(), f.identity.Hash("+8613800138000"))
	if active := f.sessions.activeCount(account.ID); active != 1 {
		t.Fatalf("expected only the fresh session active, got %d", active)
	}
}

func TestResetTokenSingleUse(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	verificationID, code := f.issueChallenge(t, string(domain.OTPPurposePasswordReset))
	ticket, err := f.password.RequestReset(context.Background(), ResetRequestInput{
		Phone:          testPhone,
		CountryCode:    testCountryCode,
		VerificationID: verificationID,
		Code:           code,
	})
	if err != nil {
		t.Fatalf("request reset: %v", err)
	}

	if err := f.password.ConfirmReset(context.Background(), ConfirmResetInput{
		ResetToken:  ticket.ResetToken,
		NewPassword: newTestPassword,
	}); err != nil {
		t.Fatalf("confirm reset: %v", err)
	}

	err = f.password.ConfirmReset(context.Background(), ConfirmResetInput{
		ResetToken:  ticket.ResetToken,
		NewPassword: "An0ther!Pass#7892",
	})
	if !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("expected ErrInvalidResetToken on replay, got %v", err)
	}
}

func TestRequestResetRequiresResetChallenge(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	// OTP send for registration purpose is blocked for an existing account,
	// so fabricate a login challenge and try to spend it on a reset.
	verificationID, code := f.issueChallenge(t, string(domain.OTPPurposeLogin))

	_, err := f.password.RequestReset(context.Background(), ResetRequestInput{
		Phone:          testPhone,
		CountryCode:    testCountryCode,
		VerificationID: verificationID,
		Code:           code,
	})
	if !errors.Is(err, domain.ErrInvalidOTPPurpose) {
		t.Fatalf("expected ErrInvalidOTPPurpose, got %v", err)
	}
}
