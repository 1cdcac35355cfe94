package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"erasure/internal/account/models"
	id "erasure/pkg/domain"
	dErrors "erasure/pkg/domain-errors"
	audit "erasure/pkg/platform/audit"
	"erasure/pkg/platform/middleware/device"
	"erasure/pkg/platform/sentinel"
	"erasure/pkg/platform/tx"
	"erasure/pkg/requestcontext"
)

const DefaultGracePeriod = 7 * 24 * time.Hour

type AccountStore interface {
	FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error)
	GetStatus(ctx context.Context, accountID id.AccountID) (models.Status, error)
	MarkPendingDelete(ctx context.Context, accountID id.AccountID, requestedAt, scheduledAt time.Time) (*models.Account, error)
	CancelPendingDelete(ctx context.Context, accountID id.AccountID, now time.Time) (*models.Account, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, entry audit.Entry) error
}

// StatusCache is told about every committed transition.
type StatusCache interface {
	Invalidate(ctx context.Context, accountID id.AccountID) error
}

// Service owns the user-initiated half of the deletion lifecycle: request,
// cancel and status. State changes and their audit entries commit together.
type Service struct {
	accounts       AccountStore
	tx             tx.Runner
	auditPublisher AuditPublisher
	cache          StatusCache
	gracePeriod    time.Duration
	logger         *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithStatusCache(cache StatusCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func WithGracePeriod(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.gracePeriod = d
		}
	}
}

func New(accounts AccountStore, runner tx.Runner, publisher AuditPublisher, opts ...Option) (*Service, error) {
	if accounts == nil {
		return nil, errors.New("account store is required")
	}
	if runner == nil {
		return nil, errors.New("transaction runner is required")
	}
	if publisher == nil {
		return nil, errors.New("audit publisher is required")
	}
	s := &Service{
		accounts:       accounts,
		tx:             runner,
		auditPublisher: publisher,
		gracePeriod:    DefaultGracePeriod,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RequestDeletion moves an ACTIVE account into its grace period. Repeating the
// request while PENDING_DELETE returns the original schedule unchanged.
func (s *Service) RequestDeletion(ctx context.Context, accountID id.AccountID, reason string) (*RequestResult, error) {
	now := requestcontext.Now(ctx)
	var result *RequestResult

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		account, err := s.accounts.FindByID(ctx, accountID)
		if err != nil {
			return translateLoadErr(err)
		}
		if existing, err := existingRequest(account); existing != nil || err != nil {
			result = existing
			return err
		}

		updated, err := s.accounts.MarkPendingDelete(ctx, accountID, now, now.Add(s.gracePeriod))
		if err != nil {
			if !errors.Is(err, sentinel.ErrInvalidState) {
				return translateLoadErr(err)
			}
			// Lost a race with another transition; answer from the row as it is now.
			account, err := s.accounts.FindByID(ctx, accountID)
			if err != nil {
				return translateLoadErr(err)
			}
			existing, err := existingRequest(account)
			if existing == nil && err == nil {
				return dErrors.New(dErrors.CodeConflict, "account changed concurrently, retry the request")
			}
			result = existing
			return err
		}

		if err := s.auditPublisher.Emit(ctx, audit.Entry{
			Action:    audit.ActionDeletionRequested,
			AccountID: accountID,
			Result:    audit.ResultSuccess,
			Timestamp: now,
			Details:   s.requestDetails(ctx, updated.DeleteScheduledAt, reason),
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record deletion request")
		}
		result = &RequestResult{
			Status:            updated.Status,
			DeleteScheduledAt: *updated.DeleteScheduledAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.AlreadyPending {
		s.invalidate(ctx, accountID)
		s.logger.InfoContext(ctx, "account deletion requested",
			"account_id", accountID.String(),
			"delete_scheduled_at", result.DeleteScheduledAt,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return result, nil
}

// existingRequest answers a request against an account that is not ACTIVE.
// It returns (nil, nil) for ACTIVE accounts.
func existingRequest(account *models.Account) (*RequestResult, error) {
	switch account.Status {
	case models.StatusDeleted:
		return nil, dErrors.New(dErrors.CodeAccountAlreadyGone, "account has already been deleted")
	case models.StatusPendingDelete:
		return &RequestResult{
			Status:            account.Status,
			DeleteScheduledAt: *account.DeleteScheduledAt,
			AlreadyPending:    true,
		}, nil
	}
	return nil, nil
}

// CancelDeletion returns a PENDING_DELETE account to ACTIVE while the grace
// period is still open. The instant the period ends belongs to the deletion job.
func (s *Service) CancelDeletion(ctx context.Context, accountID id.AccountID) (*CancelResult, error) {
	now := requestcontext.Now(ctx)
	var result *CancelResult

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		updated, err := s.accounts.CancelPendingDelete(ctx, accountID, now)
		if err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return s.windowClosed(ctx, accountID, now)
			}
			return translateLoadErr(err)
		}

		if err := s.auditPublisher.Emit(ctx, audit.Entry{
			Action:    audit.ActionDeletionCancelled,
			AccountID: accountID,
			Result:    audit.ResultSuccess,
			Timestamp: now,
			Details:   s.requestDetails(ctx, nil, ""),
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record deletion cancellation")
		}
		result = &CancelResult{Status: updated.Status}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, accountID)
	s.logger.InfoContext(ctx, "account deletion cancelled",
		"account_id", accountID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return result, nil
}

// windowClosed explains why a conditional cancel matched nothing.
func (s *Service) windowClosed(ctx context.Context, accountID id.AccountID, now time.Time) error {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return translateLoadErr(err)
	}
	switch {
	case account.Status == models.StatusPendingDelete && !account.CanCancel(now):
		return dErrors.New(dErrors.CodeDeletionWindowClosed, "deletion grace period has expired")
	case account.Status == models.StatusDeleted:
		return dErrors.New(dErrors.CodeDeletionWindowClosed, "account has already been deleted")
	default:
		return dErrors.New(dErrors.CodeDeletionWindowClosed, "no pending deletion to cancel")
	}
}

func (s *Service) GetDeletionStatus(ctx context.Context, accountID id.AccountID) (*DeletionStatus, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, translateLoadErr(err)
	}
	status := &DeletionStatus{
		Status:    account.Status,
		ServerNow: requestcontext.Now(ctx),
	}
	if account.Status == models.StatusPendingDelete {
		status.DeleteScheduledAt = account.DeleteScheduledAt
	}
	return status, nil
}

// GetAccountStatus reads the authoritative status.
func (s *Service) GetAccountStatus(ctx context.Context, accountID id.AccountID) (models.Status, error) {
	status, err := s.accounts.GetStatus(ctx, accountID)
	if err != nil {
		return "", translateLoadErr(err)
	}
	return status, nil
}

// Me returns the caller's identity with contact details masked.
func (s *Service) Me(ctx context.Context, accountID id.AccountID) (*Identity, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, translateLoadErr(err)
	}
	identity := &Identity{
		AccountID: account.ID,
		Status:    account.Status,
		Nickname:  account.Nickname,
		Email:     models.MaskEmail(account.Email),
		Phone:     models.MaskPhone(account.Phone),
		CreatedAt: account.CreatedAt,
	}
	if account.Status == models.StatusPendingDelete {
		identity.DeleteScheduledAt = account.DeleteScheduledAt
	}
	return identity, nil
}

func (s *Service) requestDetails(ctx context.Context, scheduledAt *time.Time, reason string) audit.Details {
	return audit.Details{
		DeleteScheduledAt: scheduledAt,
		Reason:            reason,
		RequestID:         requestcontext.RequestID(ctx),
		Device:            device.Label(ctx),
		ClientIP:          requestcontext.ClientIP(ctx),
	}
}

// invalidate is best effort; the cache TTL bounds staleness if it fails.
func (s *Service) invalidate(ctx context.Context, accountID id.AccountID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, accountID); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate account status cache",
			"account_id", accountID.String(),
			"error", err,
		)
	}
}

func translateLoadErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeAccountNotFound, "account not found")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
}
