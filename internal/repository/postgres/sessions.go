package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/silver1334/lianxin/internal/core/domain"
	"github.com/silver1334/lianxin/internal/core/port"
	"github.com/silver1334/lianxin/internal/repository"
)

var sessionColumns = []string{
	"id",
	"public_id",
	"account_id",
	"refresh_token_hash",
	"refresh_issued_at",
	"expires_at",
	"device_id",
	"device_name",
	"ip",
	"user_agent",
	"location",
	"active",
	"last_active_at",
	"revoked_at",
	"revoke_reason",
	"created_at",
}

// SessionRepository implements port.SessionRepository backed by PostgreSQL.
type SessionRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSessionRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewSessionRepository(exec pgExecutor) *SessionRepository {
	repo := &SessionRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *SessionRepository) WithTx(tx pgx.Tx) *SessionRepository {
	if tx == nil {
		return r
	}
	return &SessionRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create persists a new session and backfills the generated ID.
func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) error {
	stmt, args, err := r.builder.Insert("identity.sessions").
		Columns(sessionColumns[1:]...).
		Values(
			session.PublicID,
			session.AccountID,
			session.RefreshTokenHash,
			session.RefreshIssuedAt,
			session.ExpiresAt,
			session.DeviceID,
			session.DeviceName,
			session.IP,
			session.UserAgent,
			session.Location,
			session.Active,
			session.LastActiveAt,
			session.RevokedAt,
			session.RevokeReason,
			session.CreatedAt,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session sql: %w", err)
	}

	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&session.ID); err != nil {
		return fmt.Errorf("insert session: %w", translateError(err))
	}
	return nil
}

// GetByPublicID retrieves a session by its public identifier.
func (r *SessionRepository) GetByPublicID(ctx context.Context, publicID string) (*domain.Session, error) {
	stmt, args, err := r.builder.
		Select(sessionColumns...).
		From("identity.sessions").
		Where(squirrel.Eq{"public_id": publicID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session sql: %w", err)
	}

	session, err := scanSession(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select session: %w", err)
	}
	return session, nil
}

// ListByAccount returns every session belonging to the account, newest first.
func (r *SessionRepository) ListByAccount(ctx context.Context, accountID int64) ([]domain.Session, error) {
	return r.list(ctx, squirrel.Eq{"account_id": accountID})
}

// ListActiveByDevice returns active sessions for one device of the account.
func (r *SessionRepository) ListActiveByDevice(ctx context.Context, accountID int64, deviceID string) ([]domain.Session, error) {
	return r.list(ctx, squirrel.Eq{
		"account_id": accountID,
		"device_id":  deviceID,
		"active":     true,
	})
}

func (r *SessionRepository) list(ctx context.Context, cond squirrel.Eq) ([]domain.Session, error) {
	stmt, args, err := r.builder.
		Select(sessionColumns...).
		From("identity.sessions").
		Where(cond).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sessions sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// Update persists the mutable state of the session.
func (r *SessionRepository) Update(ctx context.Context, session *domain.Session) error {
	stmt, args, err := r.builder.Update("identity.sessions").
		Set("refresh_token_hash", session.RefreshTokenHash).
		Set("refresh_issued_at", session.RefreshIssuedAt).
		Set("expires_at", session.ExpiresAt).
		Set("active", session.Active).
		Set("last_active_at", session.LastActiveAt).
		Set("revoked_at", session.RevokedAt).
		Set("revoke_reason", session.RevokeReason).
		Where(squirrel.Eq{"id": session.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update session sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// RevokeAllForAccount marks every active session of the account as revoked
// with the given reason, optionally sparing one session. It returns the
// number of sessions revoked.
func (r *SessionRepository) RevokeAllForAccount(ctx context.Context, accountID int64, reason string, exceptPublicID string) (int, error) {
	now := time.Now().UTC()
	query := r.builder.Update("identity.sessions").
		Set("active", false).
		Set("revoked_at", now).
		Set("revoke_reason", reason).
		Where(squirrel.Eq{"account_id": accountID, "active": true})
	if exceptPublicID != "" {
		query = query.Where(squirrel.NotEq{"public_id": exceptPublicID})
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build revoke sessions sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// DeleteForAccount removes every session row belonging to the account.
func (r *SessionRepository) DeleteForAccount(ctx context.Context, accountID int64) error {
	stmt, args, err := r.builder.Delete("identity.sessions").
		Where(squirrel.Eq{"account_id": accountID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete sessions sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	return nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var session domain.Session
	if err := row.Scan(
		&session.ID,
		&session.PublicID,
		&session.AccountID,
		&session.RefreshTokenHash,
		&session.RefreshIssuedAt,
		&session.ExpiresAt,
		&session.DeviceID,
		&session.DeviceName,
		&session.IP,
		&session.UserAgent,
		&session.Location,
		&session.Active,
		&session.LastActiveAt,
		&session.RevokedAt,
		&session.RevokeReason,
		&session.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &session, nil
}

var _ port.SessionRepository = (*SessionRepository)(nil)
