package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "erasure/pkg/domain"
	audit "erasure/pkg/platform/audit"
	txcontext "erasure/pkg/platform/tx"
)

// Store implements audit.Store on the audit_log table. The table doubles as a
// transactional outbox: rows with published_at IS NULL are picked up by the
// stream relay and stamped once delivered.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const entryColumns = `id, action, account_id, result, timestamp, details`

// Append inserts an entry, joining the caller's transaction if there is one.
func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	query := `
		INSERT INTO audit_log (id, action, account_id, result, timestamp, details)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		entry.ID,
		string(entry.Action),
		uuid.UUID(entry.AccountID),
		string(entry.Result),
		entry.Timestamp,
		details,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *Store) ListByAccount(ctx context.Context, accountID id.AccountID) ([]audit.Entry, error) {
	query := `SELECT ` + entryColumns + `
		FROM audit_log
		WHERE account_id = $1
		ORDER BY timestamp ASC`

	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(accountID))
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *Store) ListByAction(ctx context.Context, action audit.Action, page audit.Page) ([]audit.Entry, int, error) {
	page = page.Normalize()

	var total int
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_log WHERE action = $1`, string(action),
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	query := `SELECT ` + entryColumns + `
		FROM audit_log
		WHERE action = $1
		ORDER BY timestamp DESC, id
		LIMIT $2 OFFSET $3`
	rows, err := s.execer(ctx).QueryContext(ctx, query, string(action), page.Size, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (s *Store) CountByActionResult(ctx context.Context, action audit.Action, result audit.Result, since time.Time) (int, error) {
	var n int
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM audit_log
		WHERE action = $1 AND result = $2 AND timestamp >= $3`,
		string(action), string(result), since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count audit entries: %w", err)
	}
	return n, nil
}

// -----------------------------------------------------------------------------
// Outbox
// -----------------------------------------------------------------------------

// ClaimUnpublished locks up to limit undelivered entries, oldest first. Call it
// inside a transaction and mark the delivered ids before committing.
func (s *Store) ClaimUnpublished(ctx context.Context, limit int) ([]audit.Entry, error) {
	query := `SELECT ` + entryColumns + `
		FROM audit_log
		WHERE published_at IS NULL
		ORDER BY timestamp ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED`
	rows, err := s.execer(ctx).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("claim unpublished audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]string, len(ids))
	for i, v := range ids {
		raw[i] = v.String()
	}
	_, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE audit_log SET published_at = $1 WHERE id = ANY($2::uuid[])`,
		at, pq.Array(raw),
	)
	if err != nil {
		return fmt.Errorf("mark audit entries published: %w", err)
	}
	return nil
}

func scanEntries(rows *sql.Rows) ([]audit.Entry, error) {
	entries := []audit.Entry{}
	for rows.Next() {
		var (
			e         audit.Entry
			action    string
			result    string
			accountID uuid.UUID
			details   []byte
		)
		if err := rows.Scan(&e.ID, &action, &accountID, &result, &e.Timestamp, &details); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Action = audit.Action(action)
		e.Result = audit.Result(result)
		e.AccountID = id.AccountID(accountID)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("decode audit details: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}
