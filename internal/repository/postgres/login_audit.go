package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/silver1334/lianxin/internal/core/domain"
	"github.com/silver1334/lianxin/internal/core/port"
)

// LoginAuditRepository appends authentication attempts to an audit table.
type LoginAuditRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewLoginAuditRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewLoginAuditRepository(exec pgExecutor) *LoginAuditRepository {
	repo := &LoginAuditRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *LoginAuditRepository) WithTx(tx pgx.Tx) *LoginAuditRepository {
	if tx == nil {
		return r
	}
	return &LoginAuditRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Record appends one login attempt row.
func (r *LoginAuditRepository) Record(ctx context.Context, attempt domain.LoginAttempt) error {
	var failureCode any
	if attempt.FailureCode != "" {
		failureCode = attempt.FailureCode
	}

	stmt, args, err := r.builder.Insert("identity.login_attempts").
		Columns(
			"account_uuid",
			"phone_hash",
			"succeeded",
			"failure_code",
			"ip",
			"user_agent",
			"created_at",
		).
		Values(
			attempt.AccountUUID,
			attempt.PhoneHash,
			attempt.Succeeded,
			failureCode,
			attempt.IP,
			attempt.UserAgent,
			attempt.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert login attempt sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert login attempt: %w", err)
	}
	return nil
}

var _ port.LoginAuditRepository = (*LoginAuditRepository)(nil)
