package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/silver1334/lianxin/internal/core/domain"
	"github.com/silver1334/lianxin/internal/core/port"
	"github.com/silver1334/lianxin/internal/infra/security"
	"github.com/silver1334/lianxin/internal/repository"
)

// deletionGraceDays is how long a deletion-scheduled account can still be
// recovered by logging in.
const deletionGraceDays = 15

// AccountAdminService covers moderation and lifecycle operations that are
// not part of the self-service login flows.
type AccountAdminService struct {
	txm         port.TxManager
	accounts    port.AccountRepository
	sessions    port.SessionRepository
	revocations port.SessionRevocationStore
	issuer      *security.TokenIssuer
	publisher   port.EventPublisher
	logger      *zap.Logger
	now         func() time.Time
}

// NewAccountAdminService constructs an AccountAdminService instance.
func NewAccountAdminService(
	txm port.TxManager,
	accounts port.AccountRepository,
	sessions port.SessionRepository,
	revocations port.SessionRevocationStore,
	issuer *security.TokenIssuer,
	publisher port.EventPublisher,
	log *zap.Logger,
) *AccountAdminService {
	return &AccountAdminService{
		txm:         txm,
		accounts:    accounts,
		sessions:    sessions,
		revocations: revocations,
		issuer:      issuer,
		publisher:   publisher,
		logger:      log,
		now:         time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *AccountAdminService) WithClock(clock func() time.Time) *AccountAdminService {
	s.now = clock
	return s
}

// SuspendInput describes an administrative suspension.
type SuspendInput struct {
	AccountUUID  string
	Reason       string
	DurationDays int
	ActorID      string
}

// Suspend places the account under a time-boxed suspension and kicks out
// every active session.
func (s *AccountAdminService) Suspend(ctx context.Context, input SuspendInput) error {
	account, err := s.getAccount(ctx, input.AccountUUID)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	if err := account.Suspend(input.Reason, input.DurationDays, input.ActorID, now); err != nil {
		return err
	}

	var revoked []*domain.Session
	err = s.txm.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		if err := repos.Accounts.Update(ctx, account); err != nil {
			return fmt.Errorf("update account: %w", err)
		}

		sessions, err := repos.Sessions.ListByAccount(ctx, account.ID)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		for i := range sessions {
			session := sessions[i]
			if err := session.Revoke(domain.RevokeReasonAdminAction, now); err != nil {
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

	s.finish(ctx, account, revoked, domain.RevokeReasonAdminAction)
	s.logger.Info("account suspended",
		zap.String("account_uuid", account.UUID),
		zap.String("actor", input.ActorID),
		zap.Int("duration_days", input.DurationDays),
	)
	return nil
}

// Unsuspend lifts a suspension ahead of its window.
func (s *AccountAdminService) Unsuspend(ctx context.Context, accountUUID, actorID string) error {
	return s.mutate(ctx, accountUUID, func(account *domain.Account, now time.Time) error {
		return account.Unsuspend(actorID, now)
	})
}

// Unlock clears the failed-login counter for a locked account.
func (s *AccountAdminService) Unlock(ctx context.Context, accountUUID, actorID string) error {
	return s.mutate(ctx, accountUUID, func(account *domain.Account, now time.Time) error {
		return account.Unlock(actorID, now)
	})
}

// Deactivate is the user-initiated soft close. Active sessions are revoked;
// the next successful login reactivates the account.
func (s *AccountAdminService) Deactivate(ctx context.Context, accountUUID, reason string) error {
	account, err := s.getAccount(ctx, accountUUID)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	if err := account.Deactivate(reason, now); err != nil {
		return err
	}
	return s.closeSessions(ctx, account, now)
}

// ScheduleDeletion marks the account for deletion after the grace period and
// revokes its sessions.
func (s *AccountAdminService) ScheduleDeletion(ctx context.Context, accountUUID string) (time.Time, error) {
	account, err := s.getAccount(ctx, accountUUID)
	if err != nil {
		return time.Time{}, err
	}

	now := s.now().UTC()
	purgeAt := now.Add(deletionGraceDays * 24 * time.Hour)
	if err := account.ScheduleForDeletion(purgeAt, now); err != nil {
		return time.Time{}, err
	}

	if err := s.closeSessions(ctx, account, now); err != nil {
		return time.Time{}, err
	}
	return purgeAt, nil
}

// PurgeExpired hard-deletes accounts whose deletion grace period has lapsed.
// Intended for a periodic maintenance job.
func (s *AccountAdminService) PurgeExpired(ctx context.Context, batchSize int) (int, error) {
	now := s.now().UTC()

	candidates, err := s.accounts.ListByStatus(ctx, domain.AccountStatusPendingDeletion, batchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending deletions: %w", err)
	}

	purged := 0
	for i := range candidates {
		account := candidates[i]
		if account.PendingDeletionAt == nil || account.PendingDeletionAt.After(now) {
			continue
		}

		err := s.txm.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
			if err := repos.Sessions.DeleteForAccount(ctx, account.ID); err != nil {
				return fmt.Errorf("delete sessions: %w", err)
			}
			if err := repos.Accounts.Delete(ctx, account.ID); err != nil {
				return fmt.Errorf("delete account: %w", err)
			}
			return nil
		})
		if err != nil {
			return purged, err
		}
		purged++

		s.logger.Info("account purged", zap.String("account_uuid", account.UUID))
	}
	return purged, nil
}

// ListSessions returns every session of the account, newest first.
func (s *AccountAdminService) ListSessions(ctx context.Context, accountUUID string) ([]domain.Session, error) {
	account, err := s.getAccount(ctx, accountUUID)
	if err != nil {
		return nil, err
	}
	return s.sessions.ListByAccount(ctx, account.ID)
}

func (s *AccountAdminService) getAccount(ctx context.Context, accountUUID string) (*domain.Account, error) {
	account, err := s.accounts.GetByUUID(ctx, accountUUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	return account, nil
}

// mutate applies a single aggregate transition and publishes its events.
func (s *AccountAdminService) mutate(ctx context.Context, accountUUID string, op func(*domain.Account, time.Time) error) error {
	account, err := s.getAccount(ctx, accountUUID)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	if err := op(account, now); err != nil {
		return err
	}
	if err := s.accounts.Update(ctx, account); err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	s.publisher.Publish(ctx, account.DrainEvents()...)
	return nil
}

// closeSessions persists the account transition and revokes all sessions in
// one transaction.
func (s *AccountAdminService) closeSessions(ctx context.Context, account *domain.Account, now time.Time) error {
	var revoked []*domain.Session
	err := s.txm.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		if err := repos.Accounts.Update(ctx, account); err != nil {
			return fmt.Errorf("update account: %w", err)
		}

		sessions, err := repos.Sessions.ListByAccount(ctx, account.ID)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		for i := range sessions {
			session := sessions[i]
			if err := session.Revoke(domain.RevokeReasonAccountClosed, now); err != nil {
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

	s.finish(ctx, account, revoked, domain.RevokeReasonAccountClosed)
	return nil
}

func (s *AccountAdminService) finish(ctx context.Context, account *domain.Account, revoked []*domain.Session, reason string) {
	ttl := s.issuer.AccessTokenTTL()
	for _, session := range revoked {
		if err := s.revocations.MarkSessionRevoked(ctx, session.PublicID, reason, ttl); err != nil {
			s.logger.Warn("failed to flag revoked session",
				zap.String("session_id", session.PublicID),
				zap.Error(err),
			)
		}
		s.publisher.Publish(ctx, session.DrainEvents()...)
	}
	s.publisher.Publish(ctx, account.DrainEvents()...)
}
