package port

import (
	"context"

	"github.com/silver1334/lianxin/internal/core/domain"
)

// AccountRepository exposes persistence behavior for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
	GetByUUID(ctx context.Context, accountUUID string) (*domain.Account, error)
	GetByPhoneHash(ctx context.Context, phoneHash string) (*domain.Account, error)
	Update(ctx context.Context, account *domain.Account) error
	ListByStatus(ctx context.Context, status domain.AccountStatus, limit int) ([]domain.Account, error)
	Delete(ctx context.Context, id int64) error
}

// LoginAuditRepository persists authentication attempts.
type LoginAuditRepository interface {
	Record(ctx context.Context, attempt domain.LoginAttempt) error
}
