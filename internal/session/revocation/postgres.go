package revocation

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresTRL keeps revoked JTIs in token_revocations. Expired rows stay
// invisible to IsRevoked and are removed by PurgeExpired.
type PostgresTRL struct {
	db *sql.DB
	options
}

func NewPostgresTRL(db *sql.DB, opts ...Option) *PostgresTRL {
	return &PostgresTRL{db: db, options: buildOptions(opts)}
}

// RevokeToken is an upsert: revoking twice keeps the later expiry.
func (t *PostgresTRL) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return nil
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO token_revocations (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO UPDATE SET expires_at = GREATEST(token_revocations.expires_at, EXCLUDED.expires_at)
	`, jti, t.clock().Add(ttl))
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (t *PostgresTRL) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	defer t.metrics.observe("postgres", time.Now())

	var revoked bool
	err := t.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM token_revocations WHERE jti = $1 AND expires_at >= $2)`,
		jti, t.clock(),
	).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check token revocation: %w", err)
	}
	return revoked, nil
}

// PurgeExpired deletes rows whose token lifetime has ended and reports how many.
func (t *PostgresTRL) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := t.db.ExecContext(ctx, `DELETE FROM token_revocations WHERE expires_at < $1`, t.clock())
	if err != nil {
		return 0, fmt.Errorf("purge expired revocations: %w", err)
	}
	return result.RowsAffected()
}
