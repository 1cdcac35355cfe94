package postgres

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestSQLState(t *testing.T) {
	err := fmt.Errorf("delete messages: %w", &pgconn.PgError{Code: "40P01", Message: "deadlock detected"})
	code, ok := SQLState(err)
	assert.True(t, ok)
	assert.Equal(t, "40P01", code)

	_, ok = SQLState(errors.New("plain"))
	assert.False(t, ok)
}

func TestSchemaDeclaresEveryTable(t *testing.T) {
	for _, table := range []string{
		"accounts", "conversations", "messages", "readings", "chart_profiles",
		"chart_computations", "settings", "rate_limit_counters", "subscriptions",
		"audit_log", "deletion_job_runs", "token_revocations",
	} {
		assert.True(t, strings.Contains(schema, "CREATE TABLE IF NOT EXISTS "+table+" ("), table)
	}
}
