package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	accountmodels "erasure/internal/account/models"
	"erasure/internal/deletion/models"
	"erasure/internal/platform/postgres"
	id "erasure/pkg/domain"
	"erasure/pkg/platform/sentinel"
	txcontext "erasure/pkg/platform/tx"
)

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func execer(ctx context.Context, db *sql.DB) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return db
}

// Children are reached through their parent so the account id is the only key.
var deleteQueries = map[accountmodels.Resource]string{
	accountmodels.ResourceMessages: `
		DELETE FROM messages
		WHERE conversation_id IN (SELECT id FROM conversations WHERE account_id = $1)`,
	accountmodels.ResourceConversations: `DELETE FROM conversations WHERE account_id = $1`,
	accountmodels.ResourceReadings:      `DELETE FROM readings WHERE account_id = $1`,
	accountmodels.ResourceChartComputations: `
		DELETE FROM chart_computations
		WHERE chart_profile_id IN (SELECT id FROM chart_profiles WHERE account_id = $1)`,
	accountmodels.ResourceChartProfiles:     `DELETE FROM chart_profiles WHERE account_id = $1`,
	accountmodels.ResourceSettings:          `DELETE FROM settings WHERE account_id = $1`,
	accountmodels.ResourceRateLimitCounters: `DELETE FROM rate_limit_counters WHERE account_id = $1`,
}

var countQueries = map[accountmodels.Resource]string{
	accountmodels.ResourceMessages: `
		SELECT COUNT(*) FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE c.account_id = $1`,
	accountmodels.ResourceConversations: `SELECT COUNT(*) FROM conversations WHERE account_id = $1`,
	accountmodels.ResourceReadings:      `SELECT COUNT(*) FROM readings WHERE account_id = $1`,
	accountmodels.ResourceChartComputations: `
		SELECT COUNT(*) FROM chart_computations cc
		JOIN chart_profiles p ON p.id = cc.chart_profile_id
		WHERE p.account_id = $1`,
	accountmodels.ResourceChartProfiles:     `SELECT COUNT(*) FROM chart_profiles WHERE account_id = $1`,
	accountmodels.ResourceSettings:          `SELECT COUNT(*) FROM settings WHERE account_id = $1`,
	accountmodels.ResourceRateLimitCounters: `SELECT COUNT(*) FROM rate_limit_counters WHERE account_id = $1`,
}

// PostgresOwnedData deletes and anonymizes account-owned rows. Every call
// joins the transaction carried by ctx, if any.
type PostgresOwnedData struct {
	db *sql.DB
}

func NewPostgresOwnedData(db *sql.DB) *PostgresOwnedData {
	return &PostgresOwnedData{db: db}
}

func (s *PostgresOwnedData) DeleteOwned(ctx context.Context, resource accountmodels.Resource, accountID id.AccountID) (int64, error) {
	query, ok := deleteQueries[resource]
	if !ok {
		return 0, fmt.Errorf("unknown resource %q", resource)
	}
	res, err := execer(ctx, s.db).ExecContext(ctx, query, uuid.UUID(accountID))
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", resource, mapFK(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete %s rows affected: %w", resource, err)
	}
	return n, nil
}

func (s *PostgresOwnedData) CountOwned(ctx context.Context, resource accountmodels.Resource, accountID id.AccountID) (int64, error) {
	query, ok := countQueries[resource]
	if !ok {
		return 0, fmt.Errorf("unknown resource %q", resource)
	}
	var n int64
	if err := execer(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(accountID)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", resource, err)
	}
	return n, nil
}

func (s *PostgresOwnedData) AnonymizeSubscriptions(ctx context.Context, accountID id.AccountID, key string) (int64, error) {
	query := `
		UPDATE subscriptions
		SET account_id = NULL, anonymized_account_key = $2
		WHERE account_id = $1
	`
	res, err := execer(ctx, s.db).ExecContext(ctx, query, uuid.UUID(accountID), key)
	if err != nil {
		return 0, fmt.Errorf("anonymize subscriptions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("anonymize subscriptions rows affected: %w", err)
	}
	return n, nil
}

func (s *PostgresOwnedData) FindSubscription(ctx context.Context, subID id.SubscriptionID) (*accountmodels.Subscription, error) {
	query := `
		SELECT id, account_id, anonymized_account_key, plan, amount, currency, period_start, period_end, created_at
		FROM subscriptions WHERE id = $1
	`
	var (
		sub       accountmodels.Subscription
		rawID     uuid.UUID
		accountID uuid.NullUUID
		anonKey   sql.NullString
	)
	err := execer(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(subID)).Scan(
		&rawID, &accountID, &anonKey, &sub.Plan, &sub.Amount, &sub.Currency,
		&sub.PeriodStart, &sub.PeriodEnd, &sub.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find subscription: %w", err)
	}
	sub.ID = id.SubscriptionID(rawID)
	if accountID.Valid {
		owner := id.AccountID(accountID.UUID)
		sub.AccountID = &owner
	}
	if anonKey.Valid {
		sub.AnonymizedAccountKey = &anonKey.String
	}
	return &sub, nil
}

// -----------------------------------------------------------------------------
// Fixtures
// -----------------------------------------------------------------------------

func (s *PostgresOwnedData) AddConversation(ctx context.Context, accountID id.AccountID) (uuid.UUID, error) {
	return s.insertRow(ctx, "conversation", `INSERT INTO conversations (id, account_id) VALUES ($1, $2)`, accountID)
}

func (s *PostgresOwnedData) AddMessage(ctx context.Context, conversationID uuid.UUID) (uuid.UUID, error) {
	return s.insertRow(ctx, "message",
		`INSERT INTO messages (id, conversation_id, role, content) VALUES ($1, $2, 'user', '')`, conversationID)
}

func (s *PostgresOwnedData) AddReading(ctx context.Context, accountID id.AccountID) (uuid.UUID, error) {
	return s.insertRow(ctx, "reading", `INSERT INTO readings (id, account_id) VALUES ($1, $2)`, accountID)
}

func (s *PostgresOwnedData) AddChartProfile(ctx context.Context, accountID id.AccountID) (uuid.UUID, error) {
	return s.insertRow(ctx, "chart profile", `INSERT INTO chart_profiles (id, account_id) VALUES ($1, $2)`, accountID)
}

func (s *PostgresOwnedData) AddChartComputation(ctx context.Context, profileID uuid.UUID) (uuid.UUID, error) {
	return s.insertRow(ctx, "chart computation",
		`INSERT INTO chart_computations (id, chart_profile_id) VALUES ($1, $2)`, profileID)
}

func (s *PostgresOwnedData) insertRow(ctx context.Context, what, query string, parent any) (uuid.UUID, error) {
	rowID := uuid.New()
	var parentArg any = parent
	if accountID, ok := parent.(id.AccountID); ok {
		parentArg = uuid.UUID(accountID)
	}
	if _, err := execer(ctx, s.db).ExecContext(ctx, query, rowID, parentArg); err != nil {
		return uuid.Nil, fmt.Errorf("insert %s: %w", what, mapFK(err))
	}
	return rowID, nil
}

func (s *PostgresOwnedData) PutSettings(ctx context.Context, accountID id.AccountID) error {
	query := `
		INSERT INTO settings (account_id) VALUES ($1)
		ON CONFLICT (account_id) DO UPDATE SET updated_at = NOW()
	`
	if _, err := execer(ctx, s.db).ExecContext(ctx, query, uuid.UUID(accountID)); err != nil {
		return fmt.Errorf("put settings: %w", mapFK(err))
	}
	return nil
}

func (s *PostgresOwnedData) AddRateLimitCounter(ctx context.Context, accountID id.AccountID, bucket string) error {
	query := `
		INSERT INTO rate_limit_counters (account_id, bucket, count) VALUES ($1, $2, 1)
		ON CONFLICT (account_id, bucket) DO UPDATE SET count = rate_limit_counters.count + 1
	`
	if _, err := execer(ctx, s.db).ExecContext(ctx, query, uuid.UUID(accountID), bucket); err != nil {
		return fmt.Errorf("add rate limit counter: %w", mapFK(err))
	}
	return nil
}

func (s *PostgresOwnedData) AddSubscription(ctx context.Context, sub *accountmodels.Subscription) error {
	query := `
		INSERT INTO subscriptions (id, account_id, anonymized_account_key, plan, amount, currency, period_start, period_end, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	var owner uuid.NullUUID
	if sub.AccountID != nil {
		owner = uuid.NullUUID{UUID: uuid.UUID(*sub.AccountID), Valid: true}
	}
	_, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(sub.ID), owner, sub.AnonymizedAccountKey, sub.Plan, sub.Amount, sub.Currency,
		sub.PeriodStart, sub.PeriodEnd, sub.CreatedAt,
	)
	if err != nil {
		if code, ok := postgres.SQLState(err); ok {
			switch code {
			case "23505":
				return fmt.Errorf("add subscription: %w", sentinel.ErrConflict)
			case "23514":
				return fmt.Errorf("add subscription: %w", sentinel.ErrInvalidState)
			}
		}
		return fmt.Errorf("add subscription: %w", mapFK(err))
	}
	return nil
}

func mapFK(err error) error {
	if code, ok := postgres.SQLState(err); ok && code == "23503" {
		return fmt.Errorf("%w: %w", ErrForeignKey, err)
	}
	return err
}

// -----------------------------------------------------------------------------
// Job runs
// -----------------------------------------------------------------------------

type PostgresJobRuns struct {
	db *sql.DB
}

func NewPostgresJobRuns(db *sql.DB) *PostgresJobRuns {
	return &PostgresJobRuns{db: db}
}

func (s *PostgresJobRuns) Save(ctx context.Context, run *models.JobRun) error {
	errs, err := json.Marshal(run.Errors)
	if err != nil {
		return fmt.Errorf("marshal job errors: %w", err)
	}
	query := `
		INSERT INTO deletion_job_runs
			(job_id, trigger, started_at, finished_at, total_accounts, success_count, failure_count, skipped_count, errors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.db.ExecContext(ctx, query,
		run.JobID, string(run.Trigger), run.StartTime, run.EndTime,
		run.TotalAccounts, run.SuccessCount, run.FailureCount, run.SkippedCount, errs,
	)
	if err != nil {
		if code, ok := postgres.SQLState(err); ok && code == "23505" {
			return fmt.Errorf("save job run: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("save job run: %w", err)
	}
	return nil
}

func (s *PostgresJobRuns) ListRecent(ctx context.Context, limit int) ([]*models.JobRun, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT job_id, trigger, started_at, finished_at, total_accounts, success_count, failure_count, skipped_count, errors
		FROM deletion_job_runs
		ORDER BY started_at DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list job runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.JobRun
	for rows.Next() {
		var (
			run     models.JobRun
			trigger string
			rawErrs []byte
		)
		if err := rows.Scan(&run.JobID, &trigger, &run.StartTime, &run.EndTime,
			&run.TotalAccounts, &run.SuccessCount, &run.FailureCount, &run.SkippedCount, &rawErrs); err != nil {
			return nil, fmt.Errorf("scan job run: %w", err)
		}
		run.Trigger = models.Trigger(trigger)
		run.Errors = []models.JobError{}
		if len(rawErrs) > 0 {
			if err := json.Unmarshal(rawErrs, &run.Errors); err != nil {
				return nil, fmt.Errorf("unmarshal job errors: %w", err)
			}
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job runs: %w", err)
	}
	return runs, nil
}
