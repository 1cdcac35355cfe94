package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"erasure/pkg/platform/sentinel"
)

func TestInMemoryTRL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	trl := NewInMemoryTRL(WithClock(func() time.Time { return now }))

	t.Run("revoked token is reported until its ttl ends", func(t *testing.T) {
		require.NoError(t, trl.RevokeToken(ctx, "jti-1", time.Minute))

		revoked, err := trl.IsRevoked(ctx, "jti-1")
		require.NoError(t, err)
		assert.True(t, revoked)

		now = now.Add(2 * time.Minute)
		revoked, err = trl.IsRevoked(ctx, "jti-1")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("unknown and empty jti are not revoked", func(t *testing.T) {
		revoked, err := trl.IsRevoked(ctx, "unknown")
		require.NoError(t, err)
		assert.False(t, revoked)

		require.NoError(t, trl.RevokeToken(ctx, "", time.Minute))
		revoked, err = trl.IsRevoked(ctx, "")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("non-positive ttl is rejected", func(t *testing.T) {
		err := trl.RevokeToken(ctx, "jti-2", 0)
		assert.ErrorIs(t, err, sentinel.ErrInvalidState)
	})
}

func TestInMemoryTRLKeepsLaterExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	reg := prometheus.NewRegistry()
	trl := NewInMemoryTRL(WithClock(func() time.Time { return now }), WithMetrics(NewMetrics(reg)))

	require.NoError(t, trl.RevokeToken(ctx, "jti", time.Hour))
	require.NoError(t, trl.RevokeToken(ctx, "jti", time.Minute))

	now = now.Add(30 * time.Minute)
	revoked, err := trl.IsRevoked(ctx, "jti")
	require.NoError(t, err)
	assert.True(t, revoked, "a shorter second revocation must not shorten the first")

	assert.Equal(t, 1, testutil.CollectAndCount(reg, "erasure_token_revocation_lookup_seconds"))
}
