package port

import (
	"context"

	"github.com/silver1334/lianxin/internal/core/domain"
)

// SessionRepository deals with session storage.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByPublicID(ctx context.Context, publicID string) (*domain.Session, error)
	ListByAccount(ctx context.Context, accountID int64) ([]domain.Session, error)
	ListActiveByDevice(ctx context.Context, accountID int64, deviceID string) ([]domain.Session, error)
	Update(ctx context.Context, session *domain.Session) error
	RevokeAllForAccount(ctx context.Context, accountID int64, reason string, exceptPublicID string) (int, error)
	DeleteForAccount(ctx context.Context, accountID int64) error
}
