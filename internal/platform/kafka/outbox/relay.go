// Package outbox relays audit entries from the audit_log table to Kafka.
//
// Entries are claimed, produced and stamped in one database transaction, so a
// crash between produce and commit re-delivers them. Consumers deduplicate on
// the entry id.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "erasure/pkg/platform/audit"
	"erasure/pkg/platform/tx"
)

const (
	DefaultInterval = 2 * time.Second
	DefaultBatch    = 100
)

// Store is the outbox side of the audit store.
type Store interface {
	ClaimUnpublished(ctx context.Context, limit int) ([]audit.Entry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Producer is satisfied by *kgo.Client.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Message is the wire form of an audit entry on the topic.
type Message struct {
	ID        string        `json:"id"`
	Action    string        `json:"action"`
	AccountID string        `json:"accountId"`
	Result    string        `json:"result"`
	Timestamp time.Time     `json:"timestamp"`
	Details   audit.Details `json:"details"`
}

type Relay struct {
	store    Store
	producer Producer
	tx       tx.Runner
	topic    string
	batch    int
	interval time.Duration
	clock    clock.Clock
	logger   *slog.Logger
}

type Option func(*Relay)

func WithBatch(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batch = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithClock(clk clock.Clock) Option {
	return func(r *Relay) {
		if clk != nil {
			r.clock = clk
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func NewRelay(store Store, producer Producer, runner tx.Runner, topic string, opts ...Option) (*Relay, error) {
	if store == nil || producer == nil || runner == nil {
		return nil, errors.New("store, producer and transaction runner are required")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}
	r := &Relay{
		store:    store,
		producer: producer,
		tx:       runner,
		topic:    topic,
		batch:    DefaultBatch,
		interval: DefaultInterval,
		clock:    clock.WallClock,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// PublishPending relays one batch and returns how many entries were delivered.
func (r *Relay) PublishPending(ctx context.Context) (int, error) {
	var delivered int
	err := r.tx.RunInTx(ctx, func(ctx context.Context) error {
		entries, err := r.store.ClaimUnpublished(ctx, r.batch)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}

		records := make([]*kgo.Record, 0, len(entries))
		ids := make([]uuid.UUID, 0, len(entries))
		for _, e := range entries {
			rec, err := r.record(e)
			if err != nil {
				return err
			}
			records = append(records, rec)
			ids = append(ids, e.ID)
		}
		if err := r.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
			return fmt.Errorf("produce audit entries: %w", err)
		}
		if err := r.store.MarkPublished(ctx, ids, r.clock.Now()); err != nil {
			return err
		}
		delivered = len(entries)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return delivered, nil
}

func (r *Relay) record(e audit.Entry) (*kgo.Record, error) {
	value, err := json.Marshal(Message{
		ID:        e.ID.String(),
		Action:    string(e.Action),
		AccountID: e.AccountID.String(),
		Result:    string(e.Result),
		Timestamp: e.Timestamp,
		Details:   e.Details,
	})
	if err != nil {
		return nil, fmt.Errorf("encode audit entry %s: %w", e.ID, err)
	}
	// Keyed by account so one account's entries stay ordered within a partition.
	return &kgo.Record{
		Topic: r.topic,
		Key:   []byte(e.AccountID.String()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(e.Action)},
			{Key: "result", Value: []byte(e.Result)},
		},
		Timestamp: e.Timestamp,
	}, nil
}

// Run relays until ctx is cancelled. A full batch is followed immediately by
// another; otherwise the relay waits one interval.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "audit relay started", "topic", r.topic, "interval", r.interval.String())
	for {
		n, err := r.PublishPending(ctx)
		if err != nil && ctx.Err() == nil {
			r.logger.WarnContext(ctx, "audit relay batch failed", "error", err)
		}
		if n == r.batch && err == nil {
			continue
		}
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "audit relay stopped")
			return nil
		case <-r.clock.After(r.interval):
		}
	}
}

// EnsureTopic creates topic if it does not exist yet.
func EnsureTopic(ctx context.Context, admin *kadm.Client, topic string, partitions int32, replication int16) error {
	resp, err := admin.CreateTopic(ctx, partitions, replication, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}

// NewClient builds a producer for brokers with settings suited to audit delivery.
func NewClient(brokers []string, topic string) (*kgo.Client, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return client, nil
}
