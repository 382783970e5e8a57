package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/silver1334/lianxin/internal/core/domain"
	"github.com/silver1334/lianxin/internal/core/port"
	"github.com/silver1334/lianxin/internal/infra/logger"
	"github.com/silver1334/lianxin/internal/infra/security"
	"github.com/silver1334/lianxin/internal/repository"
)

// resetTokenConsumedPrefix marks reset tokens that already changed a password.
const resetTokenConsumedPrefix = "reset:consumed"

// PasswordService handles authenticated password changes and the
// OTP-verified reset flow.
type PasswordService struct {
	txm         port.TxManager
	accounts    port.AccountRepository
	sessions    port.SessionRepository
	otp         *OTPService
	hasher      port.PasswordHasher
	policy      port.PasswordPolicyValidator
	identity    port.IdentityHasher
	issuer      *security.TokenIssuer
	revocations port.SessionRevocationStore
	cache       port.Cache
	publisher   port.EventPublisher
	logger      *zap.Logger
	now         func() time.Time
}

// NewPasswordService constructs a PasswordService instance.
func NewPasswordService(
	txm port.TxManager,
	accounts port.AccountRepository,
	sessions port.SessionRepository,
	otp *OTPService,
	hasher port.PasswordHasher,
	policy port.PasswordPolicyValidator,
	identity port.IdentityHasher,
	issuer *security.TokenIssuer,
	revocations port.SessionRevocationStore,
	cache port.Cache,
	publisher port.EventPublisher,
	log *zap.Logger,
) *PasswordService {
	return &PasswordService{
		txm:         txm,
		accounts:    accounts,
		sessions:    sessions,
		otp:         otp,
		hasher:      hasher,
		policy:      policy,
		identity:    identity,
		issuer:      issuer,
		revocations: revocations,
		cache:       cache,
		publisher:   publisher,
		logger:      log,
		now:         time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *PasswordService) WithClock(clock func() time.Time) *PasswordService {
	s.now = clock
	return s
}

// ChangePasswordInput carries an authenticated password change.
type ChangePasswordInput struct {
	AccountUUID     string
	CurrentPassword string
	NewPassword     string
	// KeepSessionID spares the calling session from the revocation sweep.
	KeepSessionID string
}

// Change verifies the current password, applies policy and history checks to
// the new one and revokes every other session.
func (s *PasswordService) Change(ctx context.Context, input ChangePasswordInput) error {
	account, err := s.accounts.GetByUUID(ctx, input.AccountUUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	match, err := s.hasher.Verify(input.CurrentPassword, account.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !match {
		return ErrInvalidCredentials
	}

	newHash, err := s.prepareNewPassword(account, input.NewPassword)
	if err != nil {
		return err
	}

	return s.applyPasswordChange(ctx, account, newHash, input.KeepSessionID, domain.RevokeReasonPasswordChange)
}

// ResetRequestInput exchanges a verified OTP challenge for a reset token.
type ResetRequestInput struct {
	Phone          string
	CountryCode    string
	VerificationID string
	Code           string
}

// ResetTicket carries the short-lived token bridging OTP verification to the
// actual password change.
type ResetTicket struct {
	ResetToken string
	ExpiresAt  time.Time
}

// RequestReset consumes a password-reset OTP challenge and issues the reset
// token scoped to that phone and challenge.
func (s *PasswordService) RequestReset(ctx context.Context, input ResetRequestInput) (*ResetTicket, error) {
	verification, err := s.otp.Verify(ctx, VerifyOTPInput{
		VerificationID: input.VerificationID,
		Phone:          input.Phone,
		CountryCode:    input.CountryCode,
		Code:           input.Code,
	})
	if err != nil {
		return nil, err
	}
	if verification.Purpose != domain.OTPPurposePasswordReset {
		return nil, domain.ErrInvalidOTPPurpose
	}

	token, expiresAt, err := s.issuer.IssueResetToken(verification.PhoneHash, verification.VerificationID)
	if err != nil {
		return nil, fmt.Errorf("issue reset token: %w", err)
	}

	s.publisher.Publish(ctx, domain.NewEvent(
		domain.EventPasswordResetRequested, verification.AccountUUID, s.now().UTC(), map[string]any{
			"phone_hash": verification.PhoneHash,
		},
	))

	return &ResetTicket{ResetToken: token, ExpiresAt: expiresAt}, nil
}

// ConfirmResetInput finishes the reset flow with the new password.
type ConfirmResetInput struct {
	ResetToken  string
	NewPassword string
}

// ConfirmReset validates the reset token, installs the new password and
// revokes all sessions. Each reset token works exactly once.
func (s *PasswordService) ConfirmReset(ctx context.Context, input ConfirmResetInput) error {
	claims, err := s.issuer.ParseResetToken(input.ResetToken)
	if err != nil {
		return ErrInvalidResetToken
	}

	consumedKey := resetTokenConsumedPrefix + ":" + claims.VerificationID
	used, err := s.cache.Exists(ctx, consumedKey)
	if err != nil {
		return fmt.Errorf("check reset token: %w", err)
	}
	if used {
		return ErrInvalidResetToken
	}

	account, err := s.accounts.GetByPhoneHash(ctx, claims.PhoneHash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	newHash, err := s.prepareNewPassword(account, input.NewPassword)
	if err != nil {
		return err
	}

	if err := s.applyPasswordChange(ctx, account, newHash, "", domain.RevokeReasonPasswordReset); err != nil {
		return err
	}

	if err := s.cache.Set(ctx, consumedKey, "1", s.issuer.ResetTokenTTL()); err != nil {
		s.logger.Warn("failed to mark reset token consumed",
			zap.String("account_uuid", account.UUID),
			zap.Error(err),
		)
	}
	return nil
}

// prepareNewPassword runs policy and history-reuse checks, then hashes.
func (s *PasswordService) prepareNewPassword(account *domain.Account, newPassword string) (string, error) {
	if err := s.policy.Validate(newPassword, account.Phone); err != nil {
		return "", err
	}

	// The current hash counts against reuse alongside the bounded history.
	current, err := s.hasher.Verify(newPassword, account.PasswordHash)
	if err != nil {
		return "", fmt.Errorf("verify against current: %w", err)
	}
	if current {
		return "", ErrPasswordReused
	}
	reused, err := security.IsPasswordReused(s.hasher, newPassword, account.PasswordHistory)
	if err != nil {
		return "", err
	}
	if reused {
		return "", ErrPasswordReused
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func (s *PasswordService) applyPasswordChange(ctx context.Context, account *domain.Account, newHash, keepSessionID, revokeReason string) error {
	now := s.now().UTC()

	var revoked []*domain.Session
	err := s.txm.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		account.ChangePassword(newHash, now)
		if err := repos.Accounts.Update(ctx, account); err != nil {
			return fmt.Errorf("update account: %w", err)
		}

		sessions, err := repos.Sessions.ListByAccount(ctx, account.ID)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		for i := range sessions {
			session := sessions[i]
			if session.PublicID == keepSessionID {
				continue
			}
			if err := session.Revoke(revokeReason, now); err != nil {
				continue
			}
			if err := repos.Sessions.Update(ctx, &session); err != nil {
				return fmt.Errorf("revoke session: %w", err)
			}
			revoked = append(revoked, &session)
		}
		return nil
	})
	if err != nil {
		return err
	}

	ttl := s.issuer.AccessTokenTTL()
	for _, session := range revoked {
		if err := s.revocations.MarkSessionRevoked(ctx, session.PublicID, revokeReason, ttl); err != nil {
			s.logger.Warn("failed to flag revoked session",
				zap.String("session_id", session.PublicID),
				zap.Error(err),
			)
		}
		s.publisher.Publish(ctx, session.DrainEvents()...)
	}
	s.publisher.Publish(ctx, account.DrainEvents()...)

	s.logger.Info("password changed",
		zap.String("account_uuid", account.UUID),
		zap.String("phone", logger.MaskPhone(account.Phone)),
		zap.Int("sessions_revoked", len(revoked)),
	)
	return nil
}
