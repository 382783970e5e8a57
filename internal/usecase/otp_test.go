package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/silver1334/lianxin/internal/core/domain"
)

func TestOTPSendDeliversCode(t *testing.T) {
	f := newFixture(t)

	verificationID, code := f.issueChallenge(t, string(domain.OTPPurposeRegistration))

	if verificationID == "" {
		t.Fatal("expected verification id")
	}
	if len(code) != domain.OTPCodeLength {
		t.Fatalf("expected %d-digit code, got %q", domain.OTPCodeLength, code)
	}

	challenge, err := f.challenges.Get(context.Background(), verificationID)
	if err != nil {
		t.Fatalf("challenge not stored: %v", err)
	}
	if challenge.Phone != "+8613800138000" {
		t.Fatalf("expected canonical phone stored, got %q", challenge.Phone)
	}
	if challenge.Purpose != domain.OTPPurposeRegistration {
		t.Fatalf("unexpected purpose %q", challenge.Purpose)
	}

	if events := f.publisher.byType(domain.EventOTPChallengeIssued); len(events) != 1 {
		t.Fatalf("expected challenge event, got %d", len(events))
	}
}

func TestOTPSendRejectsUnknownPurpose(t *testing.T) {
	f := newFixture(t)

	_, err := f.otp.Send(context.Background(), SendOTPInput{
		Phone:       testPhone,
		CountryCode: testCountryCode,
		Purpose:     "payment",
	})
	if !errors.Is(err, domain.ErrInvalidOTPPurpose) {
		t.Fatalf("expected ErrInvalidOTPPurpose, got %v", err)
	}
}

func TestOTPSendRegistrationConflictsWithExistingAccount(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	_, err := f.otp.Send(context.Background(), SendOTPInput{
		Phone:       testPhone,
		CountryCode: testCountryCode,
		Purpose:     string(domain.OTPPurposeRegistration),
	})
	if !errors.Is(err, ErrPhoneAlreadyRegistered) {
		t.Fatalf("expected ErrPhoneAlreadyRegistered, got %v", err)
	}
}

func TestOTPSendResetRequiresAccount(t *testing.T) {
	f := newFixture(t)

	_, err := f.otp.Send(context.Background(), SendOTPInput{
		Phone:       testPhone,
		CountryCode: testCountryCode,
		Purpose:     string(domain.OTPPurposePasswordReset),
	})
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestOTPSendRateLimited(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < domain.OTPSendLimit; i++ {
		f.issueChallenge(t, string(domain.OTPPurposeRegistration))
	}

	_, err := f.otp.Send(context.Background(), SendOTPInput{
		Phone:       testPhone,
		CountryCode: testCountryCode,
		Purpose:     string(domain.OTPPurposeRegistration),
	})
	if !errors.Is(err, domain.ErrOTPRateLimited) {
		t.Fatalf("expected ErrOTPRateLimited, got %v", err)
	}

	// The window slides: an hour later sends work again.
	f.advance(time.Hour + time.Minute)
	if _, err := f.otp.Send(context.Background(), SendOTPInput{
		Phone:       testPhone,
		CountryCode: testCountryCode,
		Purpose:     string(domain.OTPPurposeRegistration),
	}); err != nil {
		t.Fatalf("expected send allowed after window, got %v", err)
	}
}

func TestOTPVerifyConsumesChallenge(t *testing.T) {
	f := newFixture(t)
	verificationID, code := f.issueChallenge(t, string(domain.OTPPurposeRegistration))

	input := VerifyOTPInput{
		VerificationID: verificationID,
		Phone:          testPhone,
		CountryCode:    testCountryCode,
		Code:           code,
	}

	verification, err := f.otp.Verify(context.Background(), input)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if verification.Purpose != domain.OTPPurposeRegistration {
		t.Fatalf("unexpected purpose %q", verification.Purpose)
	}

	// Single use: replaying the same proof fails.
	if _, err := f.otp.Verify(context.Background(), input); !errors.Is(err, domain.ErrChallengeNotFound) {
		t.Fatalf("expected ErrChallengeNotFound on replay, got %v", err)
	}
}

func TestOTPVerifyWrongCodeBurnsAttempts(t *testing.T) {
	f := newFixture(t)
	verificationID, code := f.issueChallenge(t, string(domain.OTPPurposeRegistration))

	wrong := VerifyOTPInput{
		VerificationID: verificationID,
		Phone:          testPhone,
		CountryCode:    testCountryCode,
		Code:           "000000",
	}
	if wrong.Code == code {
		wrong.Code = "999999"
	}

	// Every wrong code up to the limit reports InvalidCode and burns an
	// attempt; exhaustion is only announced on the next call.
	for i := 1; i <= domain.OTPMaxAttempts; i++ {
		if _, err := f.otp.Verify(context.Background(), wrong); !errors.Is(err, domain.ErrInvalidCode) {
			t.Fatalf("attempt %d: expected ErrInvalidCode, got %v", i, err)
		}
	}

	// The follow-up call fails even with the correct code and purges the
	// challenge.
	correct := wrong
	correct.Code = code
	if _, err := f.otp.Verify(context.Background(), correct); !errors.Is(err, domain.ErrMaxAttemptsExceeded) {
		t.Fatalf("expected ErrMaxAttemptsExceeded on the call after exhaustion, got %v", err)
	}
	if _, err := f.otp.Verify(context.Background(), correct); !errors.Is(err, domain.ErrChallengeNotFound) {
		t.Fatalf("expected ErrChallengeNotFound after purge, got %v", err)
	}
}

func TestOTPVerifyExpired(t *testing.T) {
	f := newFixture(t)
	verificationID, code := f.issueChallenge(t, string(domain.OTPPurposeRegistration))

	f.advance(domain.OTPChallengeTTL + time.Second)

	_, err := f.otp.Verify(context.Background(), VerifyOTPInput{
		VerificationID: verificationID,
		Phone:          testPhone,
		CountryCode:    testCountryCode,
		Code:           code,
	})
	if !errors.Is(err, domain.ErrChallengeExpired) {
		t.Fatalf("expected ErrChallengeExpired, got %v", err)
	}
}

func TestOTPVerifyPhoneMismatch(t *testing.T) {
	f := newFixture(t)
	verificationID, code := f.issueChallenge(t, string(domain.OTPPurposeRegistration))

	// A wrong code reports InvalidCode regardless of the phone; the binding
	// is only checked once the code matches.
	wrongCode := "000000"
	if wrongCode == code {
		wrongCode = "999999"
	}
	_, err := f.otp.Verify(context.Background(), VerifyOTPInput{
		VerificationID: verificationID,
		Phone:          "13900139000",
		CountryCode:    testCountryCode,
		Code:           wrongCode,
	})
	if !errors.Is(err, domain.ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode for wrong code on wrong phone, got %v", err)
	}

	_, err = f.otp.Verify(context.Background(), VerifyOTPInput{
		VerificationID: verificationID,
		Phone:          "13900139000",
		CountryCode:    testCountryCode,
		Code:           code,
	})
	if !errors.Is(err, domain.ErrPhoneMismatch) {
		t.Fatalf("expected ErrPhoneMismatch, got %v", err)
	}

	// The mismatch neither consumes the challenge nor burns the attempt
	// budget for the rightful phone.
	if _, err := f.otp.Verify(context.Background(), VerifyOTPInput{
		VerificationID: verificationID,
		Phone:          testPhone,
		CountryCode:    testCountryCode,
		Code:           code,
	}); err != nil {
		t.Fatalf("challenge must survive a phone mismatch: %v", err)
	}
}
