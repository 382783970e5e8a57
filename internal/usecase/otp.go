package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/silver1334/lianxin/internal/core/domain"
	"github.com/silver1334/lianxin/internal/core/port"
	"github.com/silver1334/lianxin/internal/infra/logger"
	"github.com/silver1334/lianxin/internal/repository"
)

// OTPService runs the phone verification protocol: issue a short-lived
// challenge, deliver the code out of band, verify with bounded attempts.
type OTPService struct {
	challenges port.OTPChallengeStore
	limiter    port.RateLimitStore
	sender     port.OTPSender
	accounts   port.AccountRepository
	identity   port.IdentityHasher
	tokens     port.TokenSource
	publisher  port.EventPublisher
	logger     *zap.Logger
	now        func() time.Time
}

// NewOTPService constructs an OTPService instance.
func NewOTPService(
	challenges port.OTPChallengeStore,
	limiter port.RateLimitStore,
	sender port.OTPSender,
	accounts port.AccountRepository,
	identity port.IdentityHasher,
	tokens port.TokenSource,
	publisher port.EventPublisher,
	log *zap.Logger,
) *OTPService {
	return &OTPService{
		challenges: challenges,
		limiter:    limiter,
		sender:     sender,
		accounts:   accounts,
		identity:   identity,
		tokens:     tokens,
		publisher:  publisher,
		logger:     log,
		now:        time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *OTPService) WithClock(clock func() time.Time) *OTPService {
	s.now = clock
	return s
}

// SendOTPInput carries a request to issue a verification challenge.
type SendOTPInput struct {
	Phone       string
	CountryCode string
	Purpose     string
}

// OTPChallengeReceipt is returned to the caller after a challenge is issued.
// The code itself travels only through the delivery channel.
type OTPChallengeReceipt struct {
	VerificationID string
	ExpiresAt      time.Time
}

// Send issues a new challenge for the phone and purpose. Sends are limited
// per phone and purpose inside a sliding window; delivery runs asynchronously
// so SMS latency never blocks the request.
func (s *OTPService) Send(ctx context.Context, input SendOTPInput) (*OTPChallengeReceipt, error) {
	purpose, err := domain.ParseOTPPurpose(input.Purpose)
	if err != nil {
		return nil, err
	}

	phone, err := domain.NewPhone(input.Phone, input.CountryCode)
	if err != nil {
		return nil, err
	}
	phoneHash := s.identity.Hash(phone.E164())

	account, err := s.accounts.GetByPhoneHash(ctx, phoneHash)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	switch purpose {
	case domain.OTPPurposeRegistration:
		if account != nil {
			return nil, ErrPhoneAlreadyRegistered
		}
	case domain.OTPPurposeLogin, domain.OTPPurposePasswordReset:
		if account == nil {
			return nil, ErrAccountNotFound
		}
	}

	now := s.now().UTC()
	limitKey := string(purpose) + ":" + phoneHash

	if err := s.limiter.TrimWindow(ctx, limitKey, domain.OTPSendWindow, now); err != nil {
		return nil, fmt.Errorf("trim send window: %w", err)
	}
	count, err := s.limiter.CountAttempts(ctx, limitKey, domain.OTPSendWindow, now)
	if err != nil {
		return nil, fmt.Errorf("count sends: %w", err)
	}
	if count >= domain.OTPSendLimit {
		if oldest, ok, err := s.limiter.OldestAttempt(ctx, limitKey, domain.OTPSendWindow, now); err == nil && ok {
			s.logger.Info("otp send limit reached",
				zap.String("phone", logger.MaskPhone(phone.E164())),
				zap.String("purpose", string(purpose)),
				zap.Duration("retry_after", oldest.Add(domain.OTPSendWindow).Sub(now)),
			)
		}
		return nil, domain.ErrOTPRateLimited
	}

	code, err := s.tokens.NumericCode(domain.OTPCodeLength)
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}

	challenge := domain.OTPChallenge{
		VerificationID: uuid.NewString(),
		Phone:          phone.E164(),
		CountryCode:    phone.CountryCode(),
		PhoneHash:      phoneHash,
		Purpose:        purpose,
		Code:           code,
		CreatedAt:      now,
		ExpiresAt:      now.Add(domain.OTPChallengeTTL),
	}
	if account != nil {
		challenge.AccountUUID = account.UUID
	}

	if err := s.challenges.Save(ctx, challenge, domain.OTPChallengeTTL); err != nil {
		return nil, fmt.Errorf("save challenge: %w", err)
	}
	if err := s.limiter.RecordAttempt(ctx, limitKey, now); err != nil {
		return nil, fmt.Errorf("record send: %w", err)
	}

	s.deliver(challenge)

	s.publisher.Publish(ctx, domain.NewEvent(domain.EventOTPChallengeIssued, phoneHash, now, map[string]any{
		"purpose": string(purpose),
	}))

	return &OTPChallengeReceipt{
		VerificationID: challenge.VerificationID,
		ExpiresAt:      challenge.ExpiresAt,
	}, nil
}

// deliver hands the code to the sender on a detached context so the issuing
// request is not held hostage by the SMS gateway.
func (s *OTPService) deliver(challenge domain.OTPChallenge) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.sender.SendOTP(ctx, challenge.Phone, challenge.CountryCode, challenge.Code, challenge.Purpose); err != nil {
			s.logger.Error("otp delivery failed",
				zap.String("phone", logger.MaskPhone(challenge.Phone)),
				zap.String("purpose", string(challenge.Purpose)),
				zap.Error(err),
			)
		}
	}()
}

// VerifyOTPInput carries a verification attempt.
type VerifyOTPInput struct {
	VerificationID string
	Phone          string
	CountryCode    string
	Code           string
}

// OTPVerification is the proof of a successful, consumed challenge.
type OTPVerification struct {
	VerificationID string
	Purpose        domain.OTPPurpose
	PhoneHash      string
	Phone          string
	AccountUUID    string
}

// Verify checks the submitted code against the stored challenge. A correct
// code consumes the challenge; wrong codes burn one of the bounded attempts.
func (s *OTPService) Verify(ctx context.Context, input VerifyOTPInput) (*OTPVerification, error) {
	if input.VerificationID == "" || input.Code == "" {
		return nil, domain.ErrInvalidCode
	}

	challenge, err := s.challenges.Get(ctx, input.VerificationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("load challenge: %w", err)
	}

	now := s.now().UTC()
	if challenge.IsExpired(now) {
		_ = s.challenges.Delete(ctx, challenge.VerificationID)
		return nil, domain.ErrChallengeExpired
	}

	phone, err := domain.NewPhone(input.Phone, input.CountryCode)
	if err != nil {
		return nil, err
	}

	// Exhaustion is decided on entry: once the counter reaches the limit the
	// challenge is gone, even for a subsequent correct code.
	if challenge.AttemptsExhausted() {
		_ = s.challenges.Delete(ctx, challenge.VerificationID)
		return nil, domain.ErrMaxAttemptsExceeded
	}

	if subtle.ConstantTimeCompare([]byte(input.Code), []byte(challenge.Code)) != 1 {
		if _, err := s.challenges.IncrementAttempts(ctx, challenge.VerificationID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("increment attempts: %w", err)
		}
		return nil, domain.ErrInvalidCode
	}

	// The code matched; the challenge must still belong to the phone that
	// asked for it. No attempt is burned and the challenge survives.
	if s.identity.Hash(phone.E164()) != challenge.PhoneHash {
		return nil, domain.ErrPhoneMismatch
	}

	// Single use: a verified challenge never survives to a second check.
	if err := s.challenges.Delete(ctx, challenge.VerificationID); err != nil {
		return nil, fmt.Errorf("consume challenge: %w", err)
	}

	return &OTPVerification{
		VerificationID: challenge.VerificationID,
		Purpose:        challenge.Purpose,
		PhoneHash:      challenge.PhoneHash,
		Phone:          challenge.Phone,
		AccountUUID:    challenge.AccountUUID,
	}, nil
}
