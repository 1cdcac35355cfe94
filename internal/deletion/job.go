package deletion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/juju/clock"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"erasure/internal/deletion/models"
	"erasure/internal/platform/postgres"
	id "erasure/pkg/domain"
	dErrors "erasure/pkg/domain-errors"
	audit "erasure/pkg/platform/audit"
	"erasure/pkg/platform/sentinel"
)

const (
	DefaultBatchSize = 200
	DefaultWorkers   = 4
	DefaultTxTimeout = 30 * time.Second
)

// Job finds accounts whose grace period has elapsed and purges each one
// independently. A failure on one account never stops the others.
type Job struct {
	accounts  AccountStore
	purger    *Purger
	publisher AuditPublisher
	runs      JobRunStore
	cache     StatusCache
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *Metrics

	batchSize int
	workers   int
	txTimeout time.Duration
}

type JobOption func(*Job)

func WithBatchSize(n int) JobOption {
	return func(j *Job) {
		if n > 0 {
			j.batchSize = n
		}
	}
}

func WithWorkers(n int) JobOption {
	return func(j *Job) {
		if n > 0 {
			j.workers = n
		}
	}
}

// WithTxTimeout bounds each per-account transaction.
func WithTxTimeout(d time.Duration) JobOption {
	return func(j *Job) {
		if d > 0 {
			j.txTimeout = d
		}
	}
}

func WithClock(clk clock.Clock) JobOption {
	return func(j *Job) {
		if clk != nil {
			j.clock = clk
		}
	}
}

func WithJobLogger(logger *slog.Logger) JobOption {
	return func(j *Job) {
		j.logger = logger
	}
}

func WithMetrics(m *Metrics) JobOption {
	return func(j *Job) {
		j.metrics = m
	}
}

// WithStatusCache drops cached statuses of purged accounts.
func WithStatusCache(cache StatusCache) JobOption {
	return func(j *Job) {
		j.cache = cache
	}
}

func NewJob(accounts AccountStore, purger *Purger, publisher AuditPublisher, runs JobRunStore, opts ...JobOption) (*Job, error) {
	if accounts == nil {
		return nil, errors.New("account store is required")
	}
	if purger == nil {
		return nil, errors.New("purger is required")
	}
	if publisher == nil {
		return nil, errors.New("audit publisher is required")
	}
	if runs == nil {
		return nil, errors.New("job run store is required")
	}
	j := &Job{
		accounts:  accounts,
		purger:    purger,
		publisher: publisher,
		runs:      runs,
		clock:     clock.WallClock,
		logger:    slog.Default(),
		batchSize: DefaultBatchSize,
		workers:   DefaultWorkers,
		txTimeout: DefaultTxTimeout,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// RunNow runs the job on behalf of an operator.
func (j *Job) RunNow(ctx context.Context) (*models.JobRun, error) {
	return j.Run(ctx, models.TriggerManual)
}

// Run processes one batch of due accounts and returns a summary owned by this
// invocation. Cancelling ctx stops new purges from starting; purges already
// under way finish or time out on their own.
func (j *Job) Run(ctx context.Context, trigger models.Trigger) (*models.JobRun, error) {
	run := models.NewJobRun(trigger, j.clock.Now())
	ctx, span := tracer.Start(ctx, "deletion.job", trace.WithAttributes(
		attribute.String("job_id", run.JobID),
		attribute.String("trigger", string(trigger)),
	))
	defer span.End()

	j.logger.InfoContext(ctx, "deletion job started",
		"job_id", run.JobID,
		"trigger", trigger,
	)

	due, err := j.accounts.ListDue(ctx, run.StartTime, j.batchSize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list due accounts")
		j.logger.ErrorContext(ctx, "deletion job could not list due accounts",
			"job_id", run.JobID,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list accounts due for deletion")
	}
	run.TotalAccounts = len(due)

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(j.workers)
	for _, accountID := range due {
		if ctx.Err() != nil {
			mu.Lock()
			run.SkippedCount++
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			jobErr := j.purgeOne(ctx, run.JobID, accountID)
			mu.Lock()
			defer mu.Unlock()
			if jobErr != nil {
				run.FailureCount++
				run.Errors = append(run.Errors, *jobErr)
			} else {
				run.SuccessCount++
			}
			return nil
		})
	}
	_ = g.Wait()

	run.EndTime = j.clock.Now()
	span.SetAttributes(
		attribute.Int("total_accounts", run.TotalAccounts),
		attribute.Int("success_count", run.SuccessCount),
		attribute.Int("failure_count", run.FailureCount),
	)

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), j.txTimeout)
	defer cancel()
	if err := j.runs.Save(persistCtx, run); err != nil {
		j.logger.ErrorContext(ctx, "failed to persist deletion job run",
			"job_id", run.JobID,
			"error", err,
		)
	}
	j.metrics.observeRun(run)

	level := slog.LevelInfo
	if run.FailureCount > 0 {
		level = slog.LevelWarn
	}
	j.logger.Log(ctx, level, "deletion job finished",
		"job_id", run.JobID,
		"trigger", trigger,
		"total_accounts", run.TotalAccounts,
		"success_count", run.SuccessCount,
		"failure_count", run.FailureCount,
		"skipped_count", run.SkippedCount,
		"duration_ms", run.Duration().Milliseconds(),
	)
	return run, nil
}

// purgeOne runs a single purge detached from the caller's cancellation and
// records a FAILED audit entry when it does not commit.
func (j *Job) purgeOne(ctx context.Context, jobID string, accountID id.AccountID) *models.JobError {
	purgeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), j.txTimeout)
	defer cancel()

	start := j.clock.Now()
	result, err := j.purger.Purge(purgeCtx, jobID, accountID, start)
	if err == nil {
		j.metrics.observePurge(j.clock.Now().Sub(start).Seconds(), result.DeletedCounts)
		j.invalidate(ctx, accountID)
		j.logger.InfoContext(ctx, "account purged",
			"job_id", jobID,
			"account_id", accountID.String(),
			"deleted_counts", result.DeletedCounts,
			"subscriptions_anonymized", result.Anonymized,
		)
		return nil
	}

	jobErr := &models.JobError{
		AccountID:    accountID,
		ErrorCode:    classify(err),
		ErrorMessage: err.Error(),
	}
	j.logger.ErrorContext(ctx, "account purge failed",
		"job_id", jobID,
		"account_id", accountID.String(),
		"error_code", jobErr.ErrorCode,
		"error", err,
	)

	auditCtx, cancelAudit := context.WithTimeout(context.WithoutCancel(ctx), j.txTimeout)
	defer cancelAudit()
	if emitErr := j.publisher.Emit(auditCtx, audit.Entry{
		Action:    audit.ActionDeletionExecuted,
		AccountID: accountID,
		Result:    audit.ResultFailed,
		Timestamp: j.clock.Now(),
		Details: audit.Details{
			JobID:        jobID,
			ErrorCode:    jobErr.ErrorCode,
			ErrorMessage: jobErr.ErrorMessage,
		},
	}); emitErr != nil {
		j.logger.ErrorContext(ctx, "failed to record purge failure",
			"job_id", jobID,
			"account_id", accountID.String(),
			"error", emitErr,
		)
	}
	return jobErr
}

func (j *Job) invalidate(ctx context.Context, accountID id.AccountID) {
	if j.cache == nil {
		return
	}
	if err := j.cache.Invalidate(context.WithoutCancel(ctx), accountID); err != nil {
		j.logger.WarnContext(ctx, "failed to invalidate account status cache",
			"account_id", accountID.String(),
			"error", err,
		)
	}
}

// classify turns a purge error into the code recorded on the job run and in
// the FAILED audit entry.
func classify(err error) string {
	if de, ok := dErrors.As(err); ok && de.Code != dErrors.CodeInternal {
		return string(de.Code)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return string(dErrors.CodeTimeout)
	}
	if code, ok := postgres.SQLState(err); ok {
		return fmt.Sprintf("db_%s", code)
	}
	if errors.Is(err, sentinel.ErrInvalidState) {
		return string(dErrors.CodeInvalidState)
	}
	return string(dErrors.CodePerAccountPurgeFailure)
}
