// Package statuscache is a read-through Redis cache in front of the account
// status store. The gate reads through it; lifecycle transitions invalidate it.
package statuscache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"erasure/internal/account/models"
	id "erasure/pkg/domain"
)

const (
	keyPrefix  = "acct:status:"
	genPrefix  = "acct:status:gen:"
	defaultTTL = 30 * time.Second
	// genTTL outlives any in-flight fill by a wide margin.
	genTTL = time.Hour
)

// StatusReader is the authoritative status source.
type StatusReader interface {
	GetStatus(ctx context.Context, accountID id.AccountID) (models.Status, error)
}

type Metrics struct {
	lookups *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		lookups: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "erasure_status_cache_lookups_total",
			Help: "Account status cache lookups by result (hit, miss, error)",
		}, []string{"result"}),
	}
}

func (m *Metrics) observe(result string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(result).Inc()
}

// Cache implements StatusReader. A nil Redis client disables caching.
type Cache struct {
	client  *redis.Client
	source  StatusReader
	ttl     time.Duration
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Cache)

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

func New(client *redis.Client, source StatusReader, opts ...Option) *Cache {
	c := &Cache{
		client: client,
		source: source,
		ttl:    defaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetStatus serves from Redis when possible. Redis failures fall back to the
// source; source errors are returned unchanged.
func (c *Cache) GetStatus(ctx context.Context, accountID id.AccountID) (models.Status, error) {
	if c.client == nil {
		return c.source.GetStatus(ctx, accountID)
	}

	key := keyPrefix + accountID.String()
	raw, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if status, parseErr := models.ParseStatus(raw); parseErr == nil {
			c.metrics.observe("hit")
			return status, nil
		}
		c.metrics.observe("error")
	case errors.Is(err, redis.Nil):
		c.metrics.observe("miss")
	default:
		c.metrics.observe("error")
		c.logger.WarnContext(ctx, "status cache read failed",
			"account_id", accountID.String(),
			"error", err,
		)
		return c.source.GetStatus(ctx, accountID)
	}

	return c.fill(ctx, accountID, key)
}

// fill reads the source under WATCH on the account's generation key. An
// Invalidate that lands between the read and the write aborts the write, so a
// status loaded before a commit is never cached after it.
func (c *Cache) fill(ctx context.Context, accountID id.AccountID, key string) (models.Status, error) {
	var (
		status    models.Status
		sourceErr error
		loaded    bool
	)
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		status, sourceErr = c.source.GetStatus(ctx, accountID)
		if sourceErr != nil {
			return nil
		}
		loaded = true
		_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, string(status), c.ttl)
			return nil
		})
		return err
	}, genPrefix+accountID.String())
	if sourceErr != nil {
		return "", sourceErr
	}

	switch {
	case err == nil:
	case errors.Is(err, redis.TxFailedErr):
		c.logger.DebugContext(ctx, "status changed during cache fill, not caching",
			"account_id", accountID.String(),
		)
	default:
		c.logger.WarnContext(ctx, "status cache write failed",
			"account_id", accountID.String(),
			"error", err,
		)
	}
	if !loaded {
		return c.source.GetStatus(ctx, accountID)
	}
	return status, nil
}

// Invalidate drops the cached entry and bumps the generation so any fill
// still in flight discards its result. Call after a committed transition.
func (c *Cache) Invalidate(ctx context.Context, accountID id.AccountID) error {
	if c.client == nil {
		return nil
	}
	genKey := genPrefix + accountID.String()
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, genKey)
		p.Expire(ctx, genKey, genTTL)
		p.Del(ctx, keyPrefix+accountID.String())
		return nil
	})
	return err
}
