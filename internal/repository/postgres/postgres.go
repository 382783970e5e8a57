package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/silver1334/lianxin/internal/core/port"
	"github.com/silver1334/lianxin/internal/repository"
)

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const uniqueViolationCode = "23505"

// translateError maps driver-level failures onto repository sentinels.
func translateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return repository.ErrDuplicate
	}
	return err
}

// Repositories groups the concrete PostgreSQL repositories backed by one pool.
type Repositories struct {
	Accounts   *AccountRepository
	Sessions   *SessionRepository
	LoginAudit *LoginAuditRepository
}

// NewRepositories wires all repositories against the provided pool.
func NewRepositories(pool *pgxpool.Pool, cipher port.FieldCipher) *Repositories {
	return &Repositories{
		Accounts:   NewAccountRepository(pool, cipher),
		Sessions:   NewSessionRepository(pool),
		LoginAudit: NewLoginAuditRepository(pool),
	}
}

// Ports exposes the repository group through the core interfaces.
func (r *Repositories) Ports() port.Repositories {
	return port.Repositories{
		Accounts:   r.Accounts,
		Sessions:   r.Sessions,
		LoginAudit: r.LoginAudit,
	}
}

// TxManager runs multi-repository units of work inside a single
// database transaction.
type TxManager struct {
	pool  *pgxpool.Pool
	repos *Repositories
}

// NewTxManager constructs a transaction manager over the repository group.
func NewTxManager(pool *pgxpool.Pool, repos *Repositories) *TxManager {
	return &TxManager{pool: pool, repos: repos}
}

// WithinTx begins a transaction, hands tx-scoped repositories to fn and
// commits on success. Any error (or panic) rolls the transaction back.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, repos port.Repositories) error) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	scoped := port.Repositories{
		Accounts:   m.repos.Accounts.WithTx(tx),
		Sessions:   m.repos.Sessions.WithTx(tx),
		LoginAudit: m.repos.LoginAudit.WithTx(tx),
	}

	if err := fn(ctx, scoped); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("rollback tx: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

var _ port.TxManager = (*TxManager)(nil)
