package statuscache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"erasure/internal/account/models"
	id "erasure/pkg/domain"
	"erasure/pkg/platform/sentinel"
)

type stubReader struct {
	status models.Status
	err    error
	calls  int
}

func (s *stubReader) GetStatus(context.Context, id.AccountID) (models.Status, error) {
	s.calls++
	return s.status, s.err
}

func TestGetStatusWithoutRedisReadsSource(t *testing.T) {
	source := &stubReader{status: models.StatusPendingDelete}
	cache := New(nil, source)

	status, err := cache.GetStatus(context.Background(), id.NewAccountID())
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingDelete, status)
	assert.Equal(t, 1, source.calls)
	assert.NoError(t, cache.Invalidate(context.Background(), id.NewAccountID()))
}

func TestGetStatusFallsBackWhenRedisUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	source := &stubReader{status: models.StatusActive}
	cache := New(client, source,
		WithMetrics(metrics),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	status, err := cache.GetStatus(context.Background(), id.NewAccountID())
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, status)
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.lookups.WithLabelValues("error")))
}

func TestGetStatusPropagatesSourceErrors(t *testing.T) {
	source := &stubReader{err: sentinel.ErrNotFound}
	cache := New(nil, source)

	_, err := cache.GetStatus(context.Background(), id.NewAccountID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestWithTTLIgnoresNonPositive(t *testing.T) {
	cache := New(nil, &stubReader{}, WithTTL(0))
	assert.Equal(t, defaultTTL, cache.ttl)

	cache = New(nil, &stubReader{}, WithTTL(time.Minute))
	assert.Equal(t, time.Minute, cache.ttl)
}
