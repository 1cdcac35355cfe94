package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"erasure/internal/account/models"
	"erasure/internal/platform/postgres"
	id "erasure/pkg/domain"
	"erasure/pkg/platform/sentinel"
	txcontext "erasure/pkg/platform/tx"
)

// PostgresStore persists accounts in PostgreSQL. Lifecycle transitions are
// single conditional UPDATEs; zero affected rows means the guard did not hold.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const accountColumns = `id, status, email, phone, username, nickname, avatar_url, password_hash,
	delete_requested_at, delete_scheduled_at, deleted_at, token_version, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	var createdAt *time.Time
	if !account.CreatedAt.IsZero() {
		createdAt = &account.CreatedAt
	}
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(account.ID),
		string(account.Status),
		account.Email,
		account.Phone,
		account.Username,
		account.Nickname,
		account.AvatarURL,
		account.PasswordHash,
		account.DeleteRequestedAt,
		account.DeleteScheduledAt,
		account.DeletedAt,
		account.TokenVersion,
		createdAt,
		account.UpdatedAt,
	)
	if err != nil {
		if code, ok := postgres.SQLState(err); ok && code == "23505" {
			return fmt.Errorf("create account: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	account, err := scanAccount(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(accountID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return account, nil
}

// FindByIDForUpdate locks the row until the surrounding transaction ends.
// Outside a transaction the lock is released immediately.
func (s *PostgresStore) FindByIDForUpdate(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
	account, err := scanAccount(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(accountID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock account: %w", err)
	}
	return account, nil
}

func (s *PostgresStore) GetStatus(ctx context.Context, accountID id.AccountID) (models.Status, error) {
	var status string
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT status FROM accounts WHERE id = $1`, uuid.UUID(accountID),
	).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", sentinel.ErrNotFound
		}
		return "", fmt.Errorf("get account status: %w", err)
	}
	return models.ParseStatus(status)
}

func (s *PostgresStore) GetTokenVersion(ctx context.Context, accountID id.AccountID) (int64, error) {
	var version int64
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT token_version FROM accounts WHERE id = $1`, uuid.UUID(accountID),
	).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, sentinel.ErrNotFound
		}
		return 0, fmt.Errorf("get token version: %w", err)
	}
	return version, nil
}

func (s *PostgresStore) MarkPendingDelete(ctx context.Context, accountID id.AccountID, requestedAt, scheduledAt time.Time) (*models.Account, error) {
	query := `
		UPDATE accounts
		SET status = 'PENDING_DELETE',
			delete_requested_at = $2,
			delete_scheduled_at = $3,
			token_version = token_version + 1,
			updated_at = $2
		WHERE id = $1 AND status = 'ACTIVE'
		RETURNING ` + accountColumns
	account, err := scanAccount(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(accountID), requestedAt, scheduledAt))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.missOrInvalid(ctx, accountID)
		}
		return nil, fmt.Errorf("mark pending delete: %w", err)
	}
	return account, nil
}

func (s *PostgresStore) CancelPendingDelete(ctx context.Context, accountID id.AccountID, now time.Time) (*models.Account, error) {
	query := `
		UPDATE accounts
		SET status = 'ACTIVE',
			delete_requested_at = NULL,
			delete_scheduled_at = NULL,
			token_version = token_version + 1,
			updated_at = $2
		WHERE id = $1
		  AND status = 'PENDING_DELETE'
		  AND delete_scheduled_at > $2
		RETURNING ` + accountColumns
	account, err := scanAccount(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(accountID), now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.missOrInvalid(ctx, accountID)
		}
		return nil, fmt.Errorf("cancel pending delete: %w", err)
	}
	return account, nil
}

// Tombstone clears every personal column of a due PENDING_DELETE row.
func (s *PostgresStore) Tombstone(ctx context.Context, accountID id.AccountID, now time.Time) error {
	query := `
		UPDATE accounts
		SET status = 'DELETED',
			deleted_at = $2,
			email = NULL,
			phone = NULL,
			username = NULL,
			nickname = NULL,
			avatar_url = NULL,
			password_hash = NULL,
			delete_requested_at = NULL,
			delete_scheduled_at = NULL,
			created_at = NULL,
			token_version = token_version + 1,
			updated_at = $2
		WHERE id = $1
		  AND status = 'PENDING_DELETE'
		  AND delete_scheduled_at <= $2
	`
	result, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(accountID), now)
	if err != nil {
		return fmt.Errorf("tombstone account: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("tombstone rows affected: %w", err)
	}
	if rows == 0 {
		return s.missOrInvalid(ctx, accountID)
	}
	return nil
}

func (s *PostgresStore) missOrInvalid(ctx context.Context, accountID id.AccountID) error {
	var exists bool
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, uuid.UUID(accountID),
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check account exists: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrInvalidState
}

func (s *PostgresStore) ListDue(ctx context.Context, now time.Time, limit int) ([]id.AccountID, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id FROM accounts
		WHERE status = 'PENDING_DELETE' AND delete_scheduled_at <= $1
		ORDER BY delete_scheduled_at, id
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due accounts: %w", err)
	}
	defer rows.Close()

	var ids []id.AccountID
	for rows.Next() {
		var raw uuid.UUID
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan due account: %w", err)
		}
		ids = append(ids, id.AccountID(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due accounts: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) ListPending(ctx context.Context, limit int) ([]*models.Account, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE status = 'PENDING_DELETE'
		ORDER BY delete_scheduled_at, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending accounts: %w", err)
	}
	return accounts, nil
}

func (s *PostgresStore) CountByStatus(ctx context.Context) (map[models.Status]int64, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `SELECT status, COUNT(*) FROM accounts GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count accounts by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Status]int64, 3)
	for _, status := range models.AllStatuses() {
		counts[status] = 0
	}
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[models.Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return counts, nil
}

type accountRow interface {
	Scan(dest ...any) error
}

func scanAccount(row accountRow) (*models.Account, error) {
	var (
		account                                          models.Account
		rawID                                            uuid.UUID
		status                                           string
		email, phone, username, nickname, avatar, passwd sql.NullString
		requestedAt, scheduledAt, deletedAt, createdAt   sql.NullTime
	)
	if err := row.Scan(
		&rawID, &status, &email, &phone, &username, &nickname, &avatar, &passwd,
		&requestedAt, &scheduledAt, &deletedAt, &account.TokenVersion, &createdAt, &account.UpdatedAt,
	); err != nil {
		return nil, err
	}
	account.ID = id.AccountID(rawID)
	account.Status = models.Status(status)
	account.Email = nullString(email)
	account.Phone = nullString(phone)
	account.Username = nullString(username)
	account.Nickname = nullString(nickname)
	account.AvatarURL = nullString(avatar)
	account.PasswordHash = nullString(passwd)
	account.DeleteRequestedAt = nullTime(requestedAt)
	account.DeleteScheduledAt = nullTime(scheduledAt)
	account.DeletedAt = nullTime(deletedAt)
	if createdAt.Valid {
		account.CreatedAt = createdAt.Time
	}
	return &account, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	return &v.Time
}
