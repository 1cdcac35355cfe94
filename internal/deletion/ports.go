// Package deletion runs the batch job that permanently erases accounts whose
// grace period has elapsed, and exposes its operational views.
package deletion

import (
	"context"
	"time"

	accountmodels "erasure/internal/account/models"
	"erasure/internal/deletion/models"
	id "erasure/pkg/domain"
	audit "erasure/pkg/platform/audit"
)

// AccountStore is the slice of the account store the job needs.
type AccountStore interface {
	FindByIDForUpdate(ctx context.Context, accountID id.AccountID) (*accountmodels.Account, error)
	Tombstone(ctx context.Context, accountID id.AccountID, now time.Time) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]id.AccountID, error)
	ListPending(ctx context.Context, limit int) ([]*accountmodels.Account, error)
	CountByStatus(ctx context.Context) (map[accountmodels.Status]int64, error)
}

// OwnedDataStore removes account-owned rows and severs subscription ownership.
type OwnedDataStore interface {
	DeleteOwned(ctx context.Context, resource accountmodels.Resource, accountID id.AccountID) (int64, error)
	AnonymizeSubscriptions(ctx context.Context, accountID id.AccountID, key string) (int64, error)
}

type Anonymizer interface {
	Key(accountID id.AccountID) string
}

type AuditPublisher interface {
	Emit(ctx context.Context, entry audit.Entry) error
}

// AuditReader backs the admin views over DELETION_EXECUTED entries.
type AuditReader interface {
	ListByAction(ctx context.Context, action audit.Action, page audit.Page) ([]audit.Entry, int, error)
	CountByActionResult(ctx context.Context, action audit.Action, result audit.Result, since time.Time) (int, error)
}

type JobRunStore interface {
	Save(ctx context.Context, run *models.JobRun) error
	ListRecent(ctx context.Context, limit int) ([]*models.JobRun, error)
}

type StatusCache interface {
	Invalidate(ctx context.Context, accountID id.AccountID) error
}
