package main

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	accountservice "erasure/internal/account/service"
	accountstore "erasure/internal/account/store"
	"erasure/internal/deletion"
	deletionstore "erasure/internal/deletion/store"
	"erasure/internal/platform/config"
	"erasure/internal/platform/postgres"
	platformredis "erasure/internal/platform/redis"
	"erasure/internal/session/revocation"
	id "erasure/pkg/domain"
	"erasure/pkg/platform/audit"
	auditmemory "erasure/pkg/platform/audit/store/memory"
	auditpostgres "erasure/pkg/platform/audit/store/postgres"
	"erasure/pkg/platform/tx"
)

type accountBackend interface {
	accountservice.AccountStore
	deletion.AccountStore
	GetTokenVersion(ctx context.Context, accountID id.AccountID) (int64, error)
}

type auditBackend interface {
	audit.Store
	ClaimUnpublished(ctx context.Context, limit int) ([]audit.Entry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

type revocationList interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// backends groups every store behind one transaction runner. Postgres is used
// when DATABASE_URL is set; otherwise everything lives in memory and shares a
// single tx.Memory coordinator.
type backends struct {
	db       *sql.DB
	runner   tx.Runner
	accounts accountBackend
	owned    deletion.OwnedDataStore
	runs     deletion.JobRunStore
	audits   auditBackend
	trl      revocationList
	// purgeTRL is set only for the Postgres revocation list, whose rows need sweeping.
	purgeTRL func(ctx context.Context) (int64, error)
}

func openBackends(ctx context.Context, cfg config.Config, rc *platformredis.Client, reg prometheus.Registerer, log *slog.Logger) (*backends, error) {
	trlOpts := []revocation.Option{revocation.WithMetrics(revocation.NewMetrics(reg))}
	if cfg.Database.URL == "" {
		log.WarnContext(ctx, "DATABASE_URL not set, using in-memory stores")
		coord := tx.NewMemory()
		b := &backends{
			runner:   coord,
			accounts: accountstore.NewInMemory(coord),
			owned:    deletionstore.NewInMemoryOwnedData(coord),
			runs:     deletionstore.NewInMemoryJobRuns(coord),
			audits:   auditmemory.NewInMemoryStore(coord),
			trl:      revocation.NewInMemoryTRL(trlOpts...),
		}
		if rc != nil {
			b.trl = revocation.NewRedisTRL(rc.Client, trlOpts...)
		}
		return b, nil
	}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	b := &backends{
		db:       db,
		runner:   tx.NewPostgres(db, cfg.Deletion.TxTimeout),
		accounts: accountstore.NewPostgres(db),
		owned:    deletionstore.NewPostgresOwnedData(db),
		runs:     deletionstore.NewPostgresJobRuns(db),
		audits:   auditpostgres.New(db),
	}
	if rc != nil {
		b.trl = revocation.NewRedisTRL(rc.Client, trlOpts...)
	} else {
		pg := revocation.NewPostgresTRL(db, trlOpts...)
		b.trl = pg
		b.purgeTRL = pg.PurgeExpired
	}
	return b, nil
}

func (b *backends) ping(ctx context.Context) error {
	if b.db == nil {
		return nil
	}
	return b.db.PingContext(ctx)
}

func (b *backends) close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}
