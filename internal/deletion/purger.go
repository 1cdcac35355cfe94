package deletion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/juju/clock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"erasure/internal/deletion/models"
	id "erasure/pkg/domain"
	dErrors "erasure/pkg/domain-errors"
	audit "erasure/pkg/platform/audit"
	"erasure/pkg/platform/sentinel"
	"erasure/pkg/platform/tx"
)

var tracer = otel.Tracer("erasure/internal/deletion")

// Purger erases a single account in one transaction: owned data, subscription
// ownership, the account row itself and the SUCCESS audit entry all commit or
// none do.
type Purger struct {
	accounts   AccountStore
	owned      OwnedDataStore
	manifest   Manifest
	anonymizer Anonymizer
	publisher  AuditPublisher
	tx         tx.Runner
	clock      clock.Clock
}

func NewPurger(accounts AccountStore, owned OwnedDataStore, anonymizer Anonymizer, publisher AuditPublisher, runner tx.Runner, clk clock.Clock) (*Purger, error) {
	if accounts == nil || owned == nil {
		return nil, errors.New("account and owned data stores are required")
	}
	if anonymizer == nil {
		return nil, errors.New("anonymizer is required")
	}
	if publisher == nil {
		return nil, errors.New("audit publisher is required")
	}
	if runner == nil {
		return nil, errors.New("transaction runner is required")
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &Purger{
		accounts:   accounts,
		owned:      owned,
		manifest:   NewManifest(owned),
		anonymizer: anonymizer,
		publisher:  publisher,
		tx:         runner,
		clock:      clk,
	}, nil
}

// Purge erases accountID if it is still pending deletion and due at now. The
// row is locked first, so a cancel that commits earlier wins and the purge
// fails with invalid_state.
func (p *Purger) Purge(ctx context.Context, jobID string, accountID id.AccountID, now time.Time) (*models.PurgeResult, error) {
	ctx, span := tracer.Start(ctx, "deletion.purge", trace.WithAttributes(
		attribute.String("job_id", jobID),
		attribute.String("account_id", accountID.String()),
	))
	defer span.End()

	start := p.clock.Now()
	result := &models.PurgeResult{DeletedCounts: make(map[string]int64, len(p.manifest))}

	err := p.tx.RunInTx(ctx, func(ctx context.Context) error {
		account, err := p.accounts.FindByIDForUpdate(ctx, accountID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeAccountNotFound, "account not found")
			}
			return fmt.Errorf("lock account: %w", err)
		}
		if !account.IsDue(now) {
			return dErrors.New(dErrors.CodeInvalidState, "account is no longer due for deletion")
		}

		for _, d := range p.manifest {
			n, err := d.Delete(ctx, accountID)
			if err != nil {
				return fmt.Errorf("delete %s: %w", d.Resource(), err)
			}
			result.DeletedCounts[string(d.Resource())] = n
		}

		anonymized, err := p.owned.AnonymizeSubscriptions(ctx, accountID, p.anonymizer.Key(accountID))
		if err != nil {
			return fmt.Errorf("anonymize subscriptions: %w", err)
		}
		result.Anonymized = anonymized

		if err := p.accounts.Tombstone(ctx, accountID, now); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.Wrap(err, dErrors.CodeInvalidState, "account changed before tombstone")
			}
			return fmt.Errorf("tombstone account: %w", err)
		}

		return p.publisher.Emit(ctx, audit.Entry{
			Action:    audit.ActionDeletionExecuted,
			AccountID: accountID,
			Result:    audit.ResultSuccess,
			Timestamp: now,
			Details: audit.Details{
				JobID:         jobID,
				DeletedCounts: result.DeletedCounts,
				Anonymized:    result.Anonymized,
				DurationMS:    p.clock.Now().Sub(start).Milliseconds(),
			},
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int64("subscriptions_anonymized", result.Anonymized))
	return result, nil
}
