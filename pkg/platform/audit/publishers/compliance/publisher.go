// Package compliance provides a fail-closed audit publisher for account lifecycle entries.
//
// Emit writes synchronously. When it is called with a transactional context the
// entry commits or rolls back together with the state change it describes; if the
// write fails the caller's operation must fail too.
package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	audit "erasure/pkg/platform/audit"
	"erasure/pkg/requestcontext"
)

// Publisher emits audit entries with fail-closed semantics.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store: store,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit validates and persists entry. ID and Timestamp are filled when zero.
func (p *Publisher) Emit(ctx context.Context, entry audit.Entry) error {
	start := time.Now()

	if entry.AccountID.IsNil() {
		return fmt.Errorf("audit entry requires AccountID")
	}
	if !entry.Action.IsValid() {
		return fmt.Errorf("audit entry has unknown action %q", entry.Action)
	}
	if entry.Result != audit.ResultSuccess && entry.Result != audit.ResultFailed {
		return fmt.Errorf("audit entry has unknown result %q", entry.Result)
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = requestcontext.Now(ctx)
	}
	if entry.Details.RequestID == "" {
		entry.Details.RequestID = requestcontext.RequestID(ctx)
	}

	if err := p.store.Append(ctx, entry); err != nil {
		if p.metrics != nil {
			p.metrics.IncPersistFailures()
		}
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "CRITICAL: audit entry not persisted",
				"action", entry.Action,
				"result", entry.Result,
				"account_id", entry.AccountID,
				"error", err,
			)
		}
		return fmt.Errorf("audit persistence failed: %w", err)
	}

	if p.metrics != nil {
		p.metrics.ObservePersistDuration(time.Since(start).Seconds())
		p.metrics.IncEventsEmitted(string(entry.Action), string(entry.Result))
	}
	return nil
}
