package deletion

import (
	"context"
	"errors"
	"time"

	accountmodels "erasure/internal/account/models"
	"erasure/internal/deletion/models"
	id "erasure/pkg/domain"
	dErrors "erasure/pkg/domain-errors"
	audit "erasure/pkg/platform/audit"
	"erasure/pkg/requestcontext"
)

const (
	pendingListLimit = 100
	recentRunsLimit  = 10
)

// ManualTrigger starts an operator-requested run.
type ManualTrigger interface {
	RunNow(ctx context.Context) (*models.JobRun, error)
}

// Service backs the admin views of the deletion pipeline.
type Service struct {
	trigger  ManualTrigger
	accounts AccountStore
	audit    AuditReader
	runs     JobRunStore
}

func NewService(trigger ManualTrigger, accounts AccountStore, auditReader AuditReader, runs JobRunStore) (*Service, error) {
	if trigger == nil {
		return nil, errors.New("job trigger is required")
	}
	if accounts == nil {
		return nil, errors.New("account store is required")
	}
	if auditReader == nil {
		return nil, errors.New("audit reader is required")
	}
	if runs == nil {
		return nil, errors.New("job run store is required")
	}
	return &Service{trigger: trigger, accounts: accounts, audit: auditReader, runs: runs}, nil
}

// TriggerDeletionJob runs the job now and waits for its summary. The run is
// not tied to the caller's connection.
func (s *Service) TriggerDeletionJob(ctx context.Context) (*models.JobRun, error) {
	return s.trigger.RunNow(context.WithoutCancel(ctx))
}

type PendingDeletion struct {
	AccountID         id.AccountID
	Email             *string
	Phone             *string
	Nickname          *string
	DeleteRequestedAt *time.Time
	DeleteScheduledAt *time.Time
	SecondsRemaining  int64
	IsExpired         bool
}

// ListPendingDeletions lists the soonest-due PENDING_DELETE accounts with
// contact details masked.
func (s *Service) ListPendingDeletions(ctx context.Context) ([]PendingDeletion, error) {
	accounts, err := s.accounts.ListPending(ctx, pendingListLimit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list pending deletions")
	}
	now := requestcontext.Now(ctx)
	out := make([]PendingDeletion, 0, len(accounts))
	for _, a := range accounts {
		p := PendingDeletion{
			AccountID:         a.ID,
			Email:             accountmodels.MaskEmail(a.Email),
			Phone:             accountmodels.MaskPhone(a.Phone),
			Nickname:          a.Nickname,
			DeleteRequestedAt: a.DeleteRequestedAt,
			DeleteScheduledAt: a.DeleteScheduledAt,
		}
		if a.DeleteScheduledAt != nil {
			p.SecondsRemaining = int64(a.DeleteScheduledAt.Sub(now) / time.Second)
		}
		p.IsExpired = p.SecondsRemaining <= 0
		out = append(out, p)
	}
	return out, nil
}

type JobLogs struct {
	Items      []audit.Entry
	Total      int
	Page       int
	PageSize   int
	RecentRuns []*models.JobRun
}

// GetDeletionJobLogs pages through DELETION_EXECUTED audit entries, newest first.
func (s *Service) GetDeletionJobLogs(ctx context.Context, page audit.Page) (*JobLogs, error) {
	page = page.Normalize()
	items, total, err := s.audit.ListByAction(ctx, audit.ActionDeletionExecuted, page)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list deletion logs")
	}
	runs, err := s.runs.ListRecent(ctx, recentRunsLimit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list deletion job runs")
	}
	return &JobLogs{
		Items:      items,
		Total:      total,
		Page:       page.Number,
		PageSize:   page.Size,
		RecentRuns: runs,
	}, nil
}

type Stats struct {
	AccountsByStatus map[accountmodels.Status]int64
	DeletedToday     int
	DeletedTotal     int
	FailedTotal      int
}

// GetDeletionStats counts accounts by status and executed deletions. "Today"
// starts at UTC midnight.
func (s *Service) GetDeletionStats(ctx context.Context) (*Stats, error) {
	byStatus, err := s.accounts.CountByStatus(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count accounts")
	}
	now := requestcontext.Now(ctx).UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	stats := &Stats{AccountsByStatus: byStatus}
	if stats.DeletedToday, err = s.audit.CountByActionResult(ctx, audit.ActionDeletionExecuted, audit.ResultSuccess, midnight); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count deletions")
	}
	if stats.DeletedTotal, err = s.audit.CountByActionResult(ctx, audit.ActionDeletionExecuted, audit.ResultSuccess, time.Time{}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count deletions")
	}
	if stats.FailedTotal, err = s.audit.CountByActionResult(ctx, audit.ActionDeletionExecuted, audit.ResultFailed, time.Time{}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count failed deletions")
	}
	return stats, nil
}
