package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks AccountStore,AuditPublisher,StatusCache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"erasure/internal/account/models"
	"erasure/internal/account/service/mocks"
	id "erasure/pkg/domain"
	dErrors "erasure/pkg/domain-errors"
	audit "erasure/pkg/platform/audit"
	"erasure/pkg/platform/sentinel"
	"erasure/pkg/platform/tx"
	"erasure/pkg/requestcontext"
)

// =============================================================================
// Deletion Request Service Test Suite
// =============================================================================
// Store and audit publisher are mocked; the memory coordinator stands in for
// the transaction runner.

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	accounts  *mocks.MockAccountStore
	publisher *mocks.MockAuditPublisher
	cache     *mocks.MockStatusCache
	service   *Service
	ctx       context.Context
	now       time.Time
	accountID id.AccountID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.accounts = mocks.NewMockAccountStore(s.ctrl)
	s.publisher = mocks.NewMockAuditPublisher(s.ctrl)
	s.cache = mocks.NewMockStatusCache(s.ctrl)
	s.now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.accountID = id.NewAccountID()

	var err error
	s.service, err = New(s.accounts, tx.NewMemory(), s.publisher,
		WithStatusCache(s.cache),
		WithGracePeriod(7*24*time.Hour),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) account(status models.Status, scheduled *time.Time) *models.Account {
	return &models.Account{
		ID:                s.accountID,
		Status:            status,
		DeleteScheduledAt: scheduled,
	}
}

func (s *ServiceSuite) TestNew() {
	runner := tx.NewMemory()

	s.Run("nil account store returns error", func() {
		_, err := New(nil, runner, s.publisher)
		s.ErrorContains(err, "account store is required")
	})

	s.Run("nil runner returns error", func() {
		_, err := New(s.accounts, nil, s.publisher)
		s.ErrorContains(err, "transaction runner is required")
	})

	s.Run("nil publisher returns error", func() {
		_, err := New(s.accounts, runner, nil)
		s.ErrorContains(err, "audit publisher is required")
	})

	s.Run("defaults grace period to seven days", func() {
		svc, err := New(s.accounts, runner, s.publisher, WithGracePeriod(0))
		s.Require().NoError(err)
		s.Equal(DefaultGracePeriod, svc.gracePeriod)
	})
}

func (s *ServiceSuite) TestRequestDeletion() {
	grace := 7 * 24 * time.Hour

	s.Run("active account enters grace period and is audited", func() {
		scheduled := s.now.Add(grace)
		s.accounts.EXPECT().FindByID(gomock.Any(), s.accountID).Return(s.account(models.StatusActive, nil), nil)
		s.accounts.EXPECT().MarkPendingDelete(gomock.Any(), s.accountID, s.now, scheduled).
			Return(s.account(models.StatusPendingDelete, &scheduled), nil)
		s.publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.Entry) error {
			s.Equal(audit.ActionDeletionRequested, e.Action)
			s.Equal(audit.ResultSuccess, e.Result)
			s.Equal(s.accountID, e.AccountID)
			s.Equal("moving on", e.Details.Reason)
			s.Require().NotNil(e.Details.DeleteScheduledAt)
			s.Equal(scheduled, *e.Details.DeleteScheduledAt)
			return nil
		})
		s.cache.EXPECT().Invalidate(gomock.Any(), s.accountID).Return(nil)

		result, err := s.service.RequestDeletion(s.ctx, s.accountID, "moving on")
		s.Require().NoError(err)
		s.Equal(models.StatusPendingDelete, result.Status)
		s.Equal(scheduled, result.DeleteScheduledAt)
		s.False(result.AlreadyPending)
	})

	s.Run("pending account returns existing schedule without mutation", func() {
		scheduled := s.now.Add(2 * time.Hour)
		s.accounts.EXPECT().FindByID(gomock.Any(), s.accountID).Return(s.account(models.StatusPendingDelete, &scheduled), nil)

		result, err := s.service.RequestDeletion(s.ctx, s.accountID, "")
		s.Require().NoError(err)
		s.Equal(scheduled, result.DeleteScheduledAt)
		s.True(result.AlreadyPending)
	})

	s.Run("deleted account is already gone", func() {
		s.accounts.EXPECT().FindByID(gomock.Any(), s.accountID).Return(s.account(models.StatusDeleted, nil), nil)

		_, err := s.service.RequestDeletion(s.ctx, s.accountID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeAccountAlreadyGone))
	})

	s.Run("missing account is not found", func() {
		s.accounts.EXPECT().FindByID(gomock.Any(), s.accountID).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.RequestDeletion(s.ctx, s.accountID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeAccountNotFound))
	})

	s.Run("lost race answers from the re-read row", func() {
		scheduled := s.now.Add(time.Hour)
		gomock.InOrder(
			s.accounts.EXPECT().FindByID(gomock.Any(), s.accountID).Return(s.account(models.StatusActive, nil), nil),
			s.accounts.EXPECT().MarkPendingDelete(gomock.Any(), s.accountID, gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrInvalidState),
			s.accounts.EXPECT().FindByID(gomock.Any(), s.accountID).Return(s.account(models.StatusPendingDelete, &scheduled), nil),
		)

		result, err := s.service.RequestDeletion(s.ctx, s.accountID, "")
		s.Require().NoError(err)
		s.True(result.AlreadyPending)
		s.Equal(scheduled, result.DeleteScheduledAt)
	})

	s.Run("audit failure fails the request", func() {
		scheduled := s.now.Add(grace)
		s.accounts.EXPECT().FindByID(gomock.Any(), s.accountID).Return(s.account(models.StatusActive, nil), nil)
		s.accounts.EXPECT().MarkPendingDelete(gomock.Any(), s.accountID, gomock.Any(), gomock.Any()).
			Return(s.account(models.StatusPendingDelete, &scheduled), nil)
		s.publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

		_, err := s.service.RequestDeletion(s.ctx, s.accountID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("cache invalidation failure does not fail the request", func() {
		scheduled := s.now.Add(grace)
		s.accounts.EXPECT().FindByID(gomock.Any(), s.accountID).Return(s.account(models.StatusActive, nil), nil)
		s.accounts.EXPECT().MarkPendingDelete(gomock.Any(), s.accountID, gomock.Any(), gomock.Any()).
			Return(s.account(models.StatusPendingDelete, &scheduled), nil)
		s.publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)
		s.cache.EXPECT().Invalidate(gomock.Any(), s.accountID).Return(errors.New("redis down"))

		_, err := s.service.RequestDeletion(s.ctx, s.accountID, "")
		s.NoError(err)
	})
}

func (s *ServiceSuite) TestCancelDeletion() {
	s.Run("cancels inside the window and audits", func() {
		s.accounts.EXPECT().CancelPendingDelete(gomock.Any(), s.accountID, s.now).
			Return(s.account(models.StatusActive, nil), nil)
		s.publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.Entry) error {
			s.Equal(audit.ActionDeletionCancelled, e.Action)
			s.Equal(audit.ResultSuccess, e.Result)
			return nil
		})
		s.cache.EXPECT().Invalidate(gomock.Any(), s.accountID).Return(nil)

		result, err := s.service.CancelDeletion(s.ctx, s.accountID)
		s.Require().NoError(err)
		s.Equal(models.StatusActive, result.Status)
	})

	s.Run("expired window reports expiry", func() {
		scheduled := s.now
		s.accounts.EXPECT().CancelPendingDelete(gomock.Any(), s.accountID, s.now).Return(nil, sentinel.ErrInvalidState)
		s.accounts.EXPECT().FindByID(gomock.Any(), s.accountID).Return(s.account(models.StatusPendingDelete, &scheduled), nil)

		_, err := s.service.CancelDeletion(s.ctx, s.accountID)
		s.Require().ErrorIs(err, dErrors.New(dErrors.CodeDeletionWindowClosed, "deletion grace period has expired"))
	})

	s.Run("active account has nothing to cancel", func() {
		s.accounts.EXPECT().CancelPendingDelete(gomock.Any(), s.accountID, s.now).Return(nil, sentinel.ErrInvalidState)
		s.accounts.EXPECT().FindByID(gomock.Any(), s.accountID).Return(s.account(models.StatusActive, nil), nil)

		_, err := s.service.CancelDeletion(s.ctx, s.accountID)
		s.Require().ErrorIs(err, dErrors.New(dErrors.CodeDeletionWindowClosed, "no pending deletion to cancel"))
	})

	s.Run("missing account is not found", func() {
		s.accounts.EXPECT().CancelPendingDelete(gomock.Any(), s.accountID, s.now).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.CancelDeletion(s.ctx, s.accountID)
		s.True(dErrors.HasCode(err, dErrors.CodeAccountNotFound))
	})
}

func (s *ServiceSuite) TestStatusQueries() {
	s.Run("deletion status includes schedule only while pending", func() {
		scheduled := s.now.Add(time.Hour)
		s.accounts.EXPECT().FindByID(gomock.Any(), s.accountID).Return(s.account(models.StatusPendingDelete, &scheduled), nil)

		status, err := s.service.GetDeletionStatus(s.ctx, s.accountID)
		s.Require().NoError(err)
		s.Equal(models.StatusPendingDelete, status.Status)
		s.Equal(&scheduled, status.DeleteScheduledAt)
		s.Equal(s.now, status.ServerNow)
	})

	s.Run("account status passes through", func() {
		s.accounts.EXPECT().GetStatus(gomock.Any(), s.accountID).Return(models.StatusDeleted, nil)

		status, err := s.service.GetAccountStatus(s.ctx, s.accountID)
		s.Require().NoError(err)
		s.Equal(models.StatusDeleted, status)
	})

	s.Run("me masks contact details", func() {
		email, phone := "alice@example.com", "+886912345678"
		account := s.account(models.StatusActive, nil)
		account.Email = &email
		account.Phone = &phone
		s.accounts.EXPECT().FindByID(gomock.Any(), s.accountID).Return(account, nil)

		me, err := s.service.Me(s.ctx, s.accountID)
		s.Require().NoError(err)
		s.Equal("al****@example.com", *me.Email)
		s.Equal("+886****78", *me.Phone)
		s.Nil(me.DeleteScheduledAt)
	})
}
