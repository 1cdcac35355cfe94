package compliance

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "erasure/pkg/domain"
	audit "erasure/pkg/platform/audit"
	"erasure/pkg/platform/audit/store/memory"
	"erasure/pkg/platform/tx"
	"erasure/pkg/requestcontext"
)

type failingStore struct {
	audit.Store
}

func (failingStore) Append(context.Context, audit.Entry) error {
	return errors.New("disk full")
}

func TestEmitFillsDefaults(t *testing.T) {
	store := memory.NewInMemoryStore(tx.NewMemory())
	metrics := NewMetrics(prometheus.NewRegistry())
	pub := New(store, WithMetrics(metrics))

	accountID := id.NewAccountID()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithRequestID(requestcontext.WithTime(context.Background(), now), "req-9")

	err := pub.Emit(ctx, audit.Entry{
		Action:    audit.ActionDeletionRequested,
		AccountID: accountID,
		Result:    audit.ResultSuccess,
	})
	require.NoError(t, err)

	entries, err := store.ListByAccount(context.Background(), accountID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEqual(t, uuid.Nil, entries[0].ID)
	assert.Equal(t, now, entries[0].Timestamp)
	assert.Equal(t, "req-9", entries[0].Details.RequestID)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EventsEmitted.WithLabelValues("DELETION_REQUESTED", "SUCCESS")))
}

func TestEmitRejectsInvalidEntries(t *testing.T) {
	pub := New(memory.NewInMemoryStore(tx.NewMemory()))

	assert.Error(t, pub.Emit(context.Background(), audit.Entry{Action: audit.ActionDeletionExecuted, Result: audit.ResultSuccess}))
	assert.Error(t, pub.Emit(context.Background(), audit.Entry{AccountID: id.NewAccountID(), Action: "nope", Result: audit.ResultSuccess}))
	assert.Error(t, pub.Emit(context.Background(), audit.Entry{AccountID: id.NewAccountID(), Action: audit.ActionDeletionExecuted}))
}

func TestEmitFailsClosed(t *testing.T) {
	var buf bytes.Buffer
	metrics := NewMetrics(prometheus.NewRegistry())
	pub := New(failingStore{}, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))), WithMetrics(metrics))

	err := pub.Emit(context.Background(), audit.Entry{
		Action:    audit.ActionDeletionExecuted,
		AccountID: id.NewAccountID(),
		Result:    audit.ResultFailed,
	})
	require.Error(t, err)
	assert.Contains(t, buf.String(), "CRITICAL")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PersistFailures))
}
