package usecase

import (
	"context"
	"crypto/subtle"
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

// AuthService coordinates password login, token refresh and logout.
type AuthService struct {
	txm         port.TxManager
	accounts    port.AccountRepository
	sessions    port.SessionRepository
	audit       port.LoginAuditRepository
	hasher      port.PasswordHasher
	identity    port.IdentityHasher
	issuer      *security.TokenIssuer
	revocations port.SessionRevocationStore
	publisher   port.EventPublisher
	logger      *zap.Logger
	now         func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	txm port.TxManager,
	accounts port.AccountRepository,
	sessions port.SessionRepository,
	audit port.LoginAuditRepository,
	hasher port.PasswordHasher,
	identity port.IdentityHasher,
	issuer *security.TokenIssuer,
	revocations port.SessionRevocationStore,
	publisher port.EventPublisher,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		txm:         txm,
		accounts:    accounts,
		sessions:    sessions,
		audit:       audit,
		hasher:      hasher,
		identity:    identity,
		issuer:      issuer,
		revocations: revocations,
		publisher:   publisher,
		logger:      log,
		now:         time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *AuthService) WithClock(clock func() time.Time) *AuthService {
	s.now = clock
	return s
}

// LoginInput carries a password login request.
type LoginInput struct {
	Phone       string
	CountryCode string
	Password    string
	DeviceID    string
	DeviceName  string
	IP          string
	UserAgent   string
}

// Login authenticates a phone and password pair and opens a session.
// Every credential problem, including an active lockout, surfaces as the
// same ErrInvalidCredentials so the endpoint leaks nothing.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	phone, err := domain.NewPhone(input.Phone, input.CountryCode)
	if err != nil {
		return nil, err
	}
	phoneHash := s.identity.Hash(phone.E164())
	now := s.now().UTC()

	account, err := s.accounts.GetByPhoneHash(ctx, phoneHash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.recordAttempt(ctx, nil, phoneHash, false, "invalid_credentials", input)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	match, err := s.hasher.Verify(input.Password, account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !match {
		err = s.txm.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
			account.RecordFailedLogin(input.IP, now)
			return repos.Accounts.Update(ctx, account)
		})
		if err != nil {
			return nil, fmt.Errorf("record failed login: %w", err)
		}
		s.publisher.Publish(ctx, account.DrainEvents()...)
		s.recordAttempt(ctx, &account.UUID, phoneHash, false, "invalid_credentials", input)
		return nil, ErrInvalidCredentials
	}

	// Lockout is silent: a correct password on a locked account still reads
	// as invalid credentials from the outside.
	if account.IsLocked() {
		s.recordAttempt(ctx, &account.UUID, phoneHash, false, "account_locked", input)
		return nil, ErrInvalidCredentials
	}

	if account.IsSuspended(now) {
		s.recordAttempt(ctx, &account.UUID, phoneHash, false, "account_suspended", input)
		return nil, ErrAccountSuspended
	}

	var (
		session *domain.Session
		tokens  security.TokenPair
		revoked []*domain.Session
	)

	err = s.txm.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		// Logging in from deactivated or pending-deletion restores the account.
		account.Reactivate(now)
		account.RecordSuccessfulLogin(input.IP, now)
		if err := repos.Accounts.Update(ctx, account); err != nil {
			return fmt.Errorf("update account: %w", err)
		}

		// One active session per device: earlier sessions on this device
		// lose to the new login.
		prior, err := repos.Sessions.ListActiveByDevice(ctx, account.ID, input.DeviceID)
		if err != nil {
			return fmt.Errorf("list device sessions: %w", err)
		}
		for i := range prior {
			existing := prior[i]
			if err := existing.Revoke(domain.RevokeReasonNewDeviceLogin, now); err != nil {
				continue
			}
			if err := repos.Sessions.Update(ctx, &existing); err != nil {
				return fmt.Errorf("revoke device session: %w", err)
			}
			revoked = append(revoked, &existing)
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

		return repos.Sessions.Create(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	for _, old := range revoked {
		s.flagRevoked(ctx, old.PublicID, domain.RevokeReasonNewDeviceLogin)
		s.publisher.Publish(ctx, old.DrainEvents()...)
	}
	s.publisher.Publish(ctx, account.DrainEvents()...)
	s.publisher.Publish(ctx, session.DrainEvents()...)
	s.recordAttempt(ctx, &account.UUID, phoneHash, true, "", input)

	s.logger.Info("login succeeded",
		zap.String("account_uuid", account.UUID),
		zap.String("phone", logger.MaskPhone(phone.E164())),
		zap.String("device_id", input.DeviceID),
	)

	return &AuthResult{
		AccountUUID: account.UUID,
		SessionID:   session.PublicID,
		Tokens:      tokens,
	}, nil
}

// Refresh rotates the refresh token and issues a fresh pair. The presented
// token must hash to the session's stored value; anything else invalidates
// the call without hinting which check failed.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.issuer.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidSession
	}

	now := s.now().UTC()

	session, err := s.sessions.GetByPublicID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("lookup session: %w", err)
	}

	if !session.IsValid(now) {
		return nil, ErrInvalidSession
	}
	if subtle.ConstantTimeCompare([]byte(session.RefreshTokenHash), []byte(security.HashToken(refreshToken))) != 1 {
		return nil, ErrInvalidSession
	}

	tokens, err := s.issuer.IssuePair(claims.AccountUUID, session.PublicID, session.DeviceID, claims.Roles)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}

	session.RotateRefreshToken(security.HashToken(tokens.RefreshToken), now.Add(s.issuer.RefreshTokenTTL()), now)
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}

	s.publisher.Publish(ctx, session.DrainEvents()...)

	return &AuthResult{
		AccountUUID: claims.AccountUUID,
		SessionID:   session.PublicID,
		Tokens:      tokens,
	}, nil
}

// Logout revokes the caller's session.
func (s *AuthService) Logout(ctx context.Context, accountUUID, sessionPublicID string) error {
	session, err := s.sessions.GetByPublicID(ctx, sessionPublicID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("lookup session: %w", err)
	}

	account, err := s.accounts.GetByUUID(ctx, accountUUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("lookup account: %w", err)
	}
	if session.AccountID != account.ID {
		return ErrSessionNotFound
	}

	now := s.now().UTC()
	if err := session.Revoke(domain.RevokeReasonUserLogout, now); err != nil {
		// Already revoked: logout is idempotent from the caller's side.
		return nil
	}
	if err := s.sessions.Update(ctx, session); err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	s.flagRevoked(ctx, session.PublicID, domain.RevokeReasonUserLogout)
	s.publisher.Publish(ctx, session.DrainEvents()...)
	return nil
}

// LogoutAll revokes every active session of the account, optionally sparing
// the session making the call.
func (s *AuthService) LogoutAll(ctx context.Context, accountUUID, keepSessionPublicID string) (int, error) {
	account, err := s.accounts.GetByUUID(ctx, accountUUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("lookup account: %w", err)
	}

	return s.revokeSessions(ctx, account.ID, domain.RevokeReasonUserLogout, keepSessionPublicID)
}

// revokeSessions revokes all active sessions of an account through the
// aggregate so each one emits its own revocation event.
func (s *AuthService) revokeSessions(ctx context.Context, accountID int64, reason, keepPublicID string) (int, error) {
	now := s.now().UTC()

	sessions, err := s.sessions.ListByAccount(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}

	count := 0
	for i := range sessions {
		session := sessions[i]
		if session.PublicID == keepPublicID {
			continue
		}
		if err := session.Revoke(reason, now); err != nil {
			continue
		}
		if err := s.sessions.Update(ctx, &session); err != nil {
			return count, fmt.Errorf("update session: %w", err)
		}
		s.flagRevoked(ctx, session.PublicID, reason)
		s.publisher.Publish(ctx, session.DrainEvents()...)
		count++
	}
	return count, nil
}

// flagRevoked mirrors the revocation into the cache so access tokens die
// before their natural expiry. Cache failures are logged, not fatal.
func (s *AuthService) flagRevoked(ctx context.Context, sessionPublicID, reason string) {
	ttl := s.issuer.AccessTokenTTL()
	if err := s.revocations.MarkSessionRevoked(ctx, sessionPublicID, reason, ttl); err != nil {
		s.logger.Warn("failed to flag revoked session",
			zap.String("session_id", sessionPublicID),
			zap.Error(err),
		)
	}
}

func (s *AuthService) recordAttempt(ctx context.Context, accountUUID *string, phoneHash string, succeeded bool, failureCode string, input LoginInput) {
	attempt := domain.LoginAttempt{
		AccountUUID: accountUUID,
		PhoneHash:   phoneHash,
		Succeeded:   succeeded,
		FailureCode: failureCode,
		IP:          input.IP,
		UserAgent:   input.UserAgent,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.audit.Record(ctx, attempt); err != nil {
		s.logger.Warn("failed to record login attempt", zap.Error(err))
	}
}
