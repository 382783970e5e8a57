package postgres

import (
	"context"
	"encoding/json"
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

var accountColumns = []string{
	"id",
	"uuid",
	"phone_encrypted",
	"phone_hash",
	"password_hash",
	"password_changed_at",
	"password_history",
	"is_verified",
	"status",
	"suspension_reason",
	"suspended_until",
	"suspended_by",
	"failed_login_attempts",
	"last_failed_login_at",
	"last_login_at",
	"last_login_ip",
	"deactivated_at",
	"pending_deletion_at",
	"created_at",
	"updated_at",
}

// AccountRepository implements port.AccountRepository using PostgreSQL.
// The phone number is encrypted at rest; lookups go through the
// deterministic phone hash column.
type AccountRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	cipher  port.FieldCipher
	builder squirrel.StatementBuilderType
}

// NewAccountRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewAccountRepository(exec pgExecutor, cipher port.FieldCipher) *AccountRepository {
	repo := &AccountRepository{
		exec:    exec,
		cipher:  cipher,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *AccountRepository) WithTx(tx pgx.Tx) *AccountRepository {
	if tx == nil {
		return r
	}
	return &AccountRepository{
		pool:    r.pool,
		exec:    tx,
		cipher:  r.cipher,
		builder: r.builder,
	}
}

// Create inserts a new account row and backfills the generated ID.
func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	phoneEncrypted, err := r.cipher.Encrypt(account.Phone)
	if err != nil {
		return fmt.Errorf("encrypt phone: %w", err)
	}

	history, err := marshalPasswordHistory(account.PasswordHistory)
	if err != nil {
		return err
	}

	stmt, args, err := r.builder.Insert("identity.accounts").
		Columns(accountColumns[1:]...).
		Values(
			account.UUID,
			phoneEncrypted,
			account.PhoneHash,
			account.PasswordHash,
			account.PasswordChangedAt,
			history,
			account.IsVerified,
			string(account.Status),
			account.SuspensionReason,
			account.SuspendedUntil,
			account.SuspendedBy,
			account.FailedLoginAttempts,
			account.LastFailedLoginAt,
			account.LastLoginAt,
			account.LastLoginIP,
			account.DeactivatedAt,
			account.PendingDeletionAt,
			account.CreatedAt,
			account.UpdatedAt,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert account sql: %w", err)
	}

	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&account.ID); err != nil {
		return fmt.Errorf("insert account: %w", translateError(err))
	}
	return nil
}

// GetByID retrieves an account by its internal identifier.
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	return r.getBy(ctx, squirrel.Eq{"id": id})
}

// GetByUUID retrieves an account by its public identifier.
func (r *AccountRepository) GetByUUID(ctx context.Context, accountUUID string) (*domain.Account, error) {
	return r.getBy(ctx, squirrel.Eq{"uuid": accountUUID})
}

// GetByPhoneHash retrieves an account by the deterministic phone lookup key.
func (r *AccountRepository) GetByPhoneHash(ctx context.Context, phoneHash string) (*domain.Account, error) {
	return r.getBy(ctx, squirrel.Eq{"phone_hash": phoneHash})
}

func (r *AccountRepository) getBy(ctx context.Context, cond squirrel.Eq) (*domain.Account, error) {
	stmt, args, err := r.builder.
		Select(accountColumns...).
		From("identity.accounts").
		Where(cond).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account sql: %w", err)
	}

	account, err := r.scanAccount(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select account: %w", err)
	}
	return account, nil
}

// Update persists the full mutable state of the aggregate.
func (r *AccountRepository) Update(ctx context.Context, account *domain.Account) error {
	phoneEncrypted, err := r.cipher.Encrypt(account.Phone)
	if err != nil {
		return fmt.Errorf("encrypt phone: %w", err)
	}

	history, err := marshalPasswordHistory(account.PasswordHistory)
	if err != nil {
		return err
	}

	stmt, args, err := r.builder.Update("identity.accounts").
		Set("phone_encrypted", phoneEncrypted).
		Set("phone_hash", account.PhoneHash).
		Set("password_hash", account.PasswordHash).
		Set("password_changed_at", account.PasswordChangedAt).
		Set("password_history", history).
		Set("is_verified", account.IsVerified).
		Set("status", string(account.Status)).
		Set("suspension_reason", account.SuspensionReason).
		Set("suspended_until", account.SuspendedUntil).
		Set("suspended_by", account.SuspendedBy).
		Set("failed_login_attempts", account.FailedLoginAttempts).
		Set("last_failed_login_at", account.LastFailedLoginAt).
		Set("last_login_at", account.LastLoginAt).
		Set("last_login_ip", account.LastLoginIP).
		Set("deactivated_at", account.DeactivatedAt).
		Set("pending_deletion_at", account.PendingDeletionAt).
		Set("updated_at", account.UpdatedAt).
		Where(squirrel.Eq{"id": account.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update account sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update account: %w", translateError(err))
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListByStatus returns accounts in the given lifecycle state, oldest first.
func (r *AccountRepository) ListByStatus(ctx context.Context, status domain.AccountStatus, limit int) ([]domain.Account, error) {
	query := r.builder.
		Select(accountColumns...).
		From("identity.accounts").
		Where(squirrel.Eq{"status": string(status)}).
		OrderBy("updated_at ASC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list accounts sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		account, err := r.scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

// Delete removes the account row. Sessions cascade at the schema level.
func (r *AccountRepository) Delete(ctx context.Context, id int64) error {
	stmt, args, err := r.builder.Delete("identity.accounts").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete account sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		account        domain.Account
		phoneEncrypted string
		status         string
		history        []byte
	)

	if err := row.Scan(
		&account.ID,
		&account.UUID,
		&phoneEncrypted,
		&account.PhoneHash,
		&account.PasswordHash,
		&account.PasswordChangedAt,
		&history,
		&account.IsVerified,
		&status,
		&account.SuspensionReason,
		&account.SuspendedUntil,
		&account.SuspendedBy,
		&account.FailedLoginAttempts,
		&account.LastFailedLoginAt,
		&account.LastLoginAt,
		&account.LastLoginIP,
		&account.DeactivatedAt,
		&account.PendingDeletionAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		return nil, err
	}

	phone, err := r.cipher.Decrypt(phoneEncrypted)
	if err != nil {
		return nil, fmt.Errorf("decrypt phone: %w", err)
	}
	account.Phone = phone
	account.Status = domain.AccountStatus(status)

	if len(history) > 0 {
		entries, err := unmarshalPasswordHistory(history)
		if err != nil {
			return nil, err
		}
		account.PasswordHistory = entries
	}
	return &account, nil
}

type passwordHistoryRecord struct {
	Hash      string    `json:"hash"`
	ChangedAt time.Time `json:"changed_at"`
}

func marshalPasswordHistory(entries []domain.PasswordHistoryEntry) ([]byte, error) {
	records := make([]passwordHistoryRecord, 0, len(entries))
	for _, entry := range entries {
		records = append(records, passwordHistoryRecord{Hash: entry.Hash, ChangedAt: entry.ChangedAt})
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("marshal password history: %w", err)
	}
	return payload, nil
}

func unmarshalPasswordHistory(payload []byte) ([]domain.PasswordHistoryEntry, error) {
	var records []passwordHistoryRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("unmarshal password history: %w", err)
	}
	entries := make([]domain.PasswordHistoryEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, domain.PasswordHistoryEntry{Hash: record.Hash, ChangedAt: record.ChangedAt})
	}
	return entries, nil
}

var _ port.AccountRepository = (*AccountRepository)(nil)
