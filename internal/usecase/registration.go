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

// RegistrationService creates accounts for OTP-verified phone numbers.
type RegistrationService struct {
	txm       port.TxManager
	otp       *OTPService
	hasher    port.PasswordHasher
	policy    port.PasswordPolicyValidator
	identity  port.IdentityHasher
	issuer    *security.TokenIssuer
	publisher port.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewRegistrationService constructs a RegistrationService instance.
func NewRegistrationService(
	txm port.TxManager,
	otp *OTPService,
	hasher port.PasswordHasher,
	policy port.PasswordPolicyValidator,
	identity port.IdentityHasher,
	issuer *security.TokenIssuer,
	publisher port.EventPublisher,
	log *zap.Logger,
) *RegistrationService {
	return &RegistrationService{
		txm:       txm,
		otp:       otp,
		hasher:    hasher,
		policy:    policy,
		identity:  identity,
		issuer:    issuer,
		publisher: publisher,
		logger:    log,
		now:       time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *RegistrationService) WithClock(clock func() time.Time) *RegistrationService {
	s.now = clock
	return s
}

// RegisterInput carries a registration request. The verification ID and code
// must belong to a live registration challenge for the same phone.
type RegisterInput struct {
	Phone          string
	CountryCode    string
	Password       string
	VerificationID string
	Code           string
	DeviceID       string
	DeviceName     string
	IP             string
	UserAgent      string
}

// AuthResult is the outcome of any flow that establishes a session.
type AuthResult struct {
	AccountUUID string
	SessionID   string
	Tokens      security.TokenPair
}

// Register verifies the OTP challenge, creates the account and opens its
// first session, all account and session writes inside one transaction.
func (s *RegistrationService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	phone, err := domain.NewPhone(input.Phone, input.CountryCode)
	if err != nil {
		return nil, err
	}

	// Policy runs before any hashing work is spent.
	if err := s.policy.Validate(input.Password, phone.E164(), phone.National()); err != nil {
		return nil, err
	}

	verification, err := s.otp.Verify(ctx, VerifyOTPInput{
		VerificationID: input.VerificationID,
		Phone:          input.Phone,
		CountryCode:    input.CountryCode,
		Code:           input.Code,
	})
	if err != nil {
		return nil, err
	}
	if verification.Purpose != domain.OTPPurposeRegistration {
		return nil, domain.ErrInvalidOTPPurpose
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	phoneHash := s.identity.Hash(phone.E164())

	// The account starts unverified; phone verification is a separate
	// transition after registration.
	account := domain.NewAccount(phone, phoneHash, passwordHash, now)

	var (
		session *domain.Session
		tokens  security.TokenPair
	)

	err = s.txm.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		if err := repos.Accounts.Create(ctx, account); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrPhoneAlreadyRegistered
			}
			return fmt.Errorf("create account: %w", err)
		}

		session = domain.NewSession(
			account.ID, "", input.DeviceID, input.DeviceName, input.IP, input.UserAgent,
			now.Add(s.issuer.RefreshTokenTTL()), now,
		)

		tokens, err = s.issuer.IssuePair(account.UUID, session.PublicID, input.DeviceID, nil)
		if err != nil {
			return fmt.Errorf("issue tokens: %w", err)
		}
		session.RefreshTokenHash = security.HashToken(tokens.RefreshToken)

		if err := repos.Sessions.Create(ctx, session); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, account.DrainEvents()...)
	s.publisher.Publish(ctx, session.DrainEvents()...)

	s.logger.Info("account registered",
		zap.String("account_uuid", account.UUID),
		zap.String("phone", logger.MaskPhone(phone.E164())),
	)

	return &AuthResult{
		AccountUUID: account.UUID,
		SessionID:   session.PublicID,
		Tokens:      tokens,
	}, nil
}
