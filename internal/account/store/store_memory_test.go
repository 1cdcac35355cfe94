package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"erasure/internal/account/models"
	id "erasure/pkg/domain"
	"erasure/pkg/platform/sentinel"
	"erasure/pkg/platform/tx"
)

type InMemoryStoreSuite struct {
	suite.Suite
	coord *tx.Memory
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.coord = tx.NewMemory()
	s.store = NewInMemory(s.coord)
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) newAccount(email string) *models.Account {
	return &models.Account{
		ID:        id.NewAccountID(),
		Status:    models.StatusActive,
		Email:     &email,
		CreatedAt: s.now.Add(-24 * time.Hour),
		UpdatedAt: s.now.Add(-24 * time.Hour),
	}
}

func (s *InMemoryStoreSuite) TestCreateAndFind() {
	s.Run("round trips an account", func() {
		account := s.newAccount("a@example.com")
		s.Require().NoError(s.store.Create(s.ctx, account))

		found, err := s.store.FindByID(s.ctx, account.ID)
		s.Require().NoError(err)
		s.Equal("a@example.com", *found.Email)

		status, err := s.store.GetStatus(s.ctx, account.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusActive, status)
	})

	s.Run("returned copies do not alias stored rows", func() {
		account := s.newAccount("alias@example.com")
		s.Require().NoError(s.store.Create(s.ctx, account))

		found, err := s.store.FindByID(s.ctx, account.ID)
		s.Require().NoError(err)
		*found.Email = "changed@example.com"

		again, err := s.store.FindByID(s.ctx, account.ID)
		s.Require().NoError(err)
		s.Equal("alias@example.com", *again.Email)
	})

	s.Run("rejects duplicate email", func() {
		s.Require().NoError(s.store.Create(s.ctx, s.newAccount("dup@example.com")))
		err := s.store.Create(s.ctx, s.newAccount("dup@example.com"))
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("unknown id is ErrNotFound", func() {
		_, err := s.store.FindByID(s.ctx, id.NewAccountID())
		s.ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.GetTokenVersion(s.ctx, id.NewAccountID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestLifecycleTransitions() {
	s.Run("mark pending delete only from ACTIVE", func() {
		account := s.newAccount("pending@example.com")
		s.Require().NoError(s.store.Create(s.ctx, account))

		updated, err := s.store.MarkPendingDelete(s.ctx, account.ID, s.now, s.now.Add(7*24*time.Hour))
		s.Require().NoError(err)
		s.Equal(models.StatusPendingDelete, updated.Status)
		s.Equal(s.now.Add(7*24*time.Hour), *updated.DeleteScheduledAt)
		s.Equal(int64(1), updated.TokenVersion)

		_, err = s.store.MarkPendingDelete(s.ctx, account.ID, s.now.Add(time.Hour), s.now.Add(8*24*time.Hour))
		s.ErrorIs(err, sentinel.ErrInvalidState)

		unchanged, err := s.store.FindByID(s.ctx, account.ID)
		s.Require().NoError(err)
		s.Equal(s.now.Add(7*24*time.Hour), *unchanged.DeleteScheduledAt)
	})

	s.Run("cancel succeeds strictly before the scheduled instant", func() {
		account := s.newAccount("cancel@example.com")
		s.Require().NoError(s.store.Create(s.ctx, account))
		scheduled := s.now.Add(time.Hour)
		_, err := s.store.MarkPendingDelete(s.ctx, account.ID, s.now, scheduled)
		s.Require().NoError(err)

		_, err = s.store.CancelPendingDelete(s.ctx, account.ID, scheduled)
		s.ErrorIs(err, sentinel.ErrInvalidState)

		updated, err := s.store.CancelPendingDelete(s.ctx, account.ID, scheduled.Add(-time.Nanosecond))
		s.Require().NoError(err)
		s.Equal(models.StatusActive, updated.Status)
		s.Nil(updated.DeleteScheduledAt)
		s.Equal(int64(2), updated.TokenVersion)
	})

	s.Run("tombstone requires a due pending row", func() {
		account := s.newAccount("tomb@example.com")
		s.Require().NoError(s.store.Create(s.ctx, account))

		err := s.store.Tombstone(s.ctx, account.ID, s.now)
		s.ErrorIs(err, sentinel.ErrInvalidState)

		_, err = s.store.MarkPendingDelete(s.ctx, account.ID, s.now, s.now.Add(time.Hour))
		s.Require().NoError(err)
		s.ErrorIs(s.store.Tombstone(s.ctx, account.ID, s.now), sentinel.ErrInvalidState)

		s.Require().NoError(s.store.Tombstone(s.ctx, account.ID, s.now.Add(time.Hour)))
		gone, err := s.store.FindByID(s.ctx, account.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusDeleted, gone.Status)
		s.Nil(gone.Email)
		s.NotNil(gone.DeletedAt)
		s.True(gone.CreatedAt.IsZero())
	})

	s.Run("missing rows are ErrNotFound", func() {
		_, err := s.store.CancelPendingDelete(s.ctx, id.NewAccountID(), s.now)
		s.ErrorIs(err, sentinel.ErrNotFound)
		s.ErrorIs(s.store.Tombstone(s.ctx, id.NewAccountID(), s.now), sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestQueries() {
	first := s.newAccount("first@example.com")
	second := s.newAccount("second@example.com")
	later := s.newAccount("later@example.com")
	active := s.newAccount("active@example.com")
	for _, a := range []*models.Account{first, second, later, active} {
		s.Require().NoError(s.store.Create(s.ctx, a))
	}
	_, err := s.store.MarkPendingDelete(s.ctx, second.ID, s.now.Add(-48*time.Hour), s.now.Add(-time.Hour))
	s.Require().NoError(err)
	_, err = s.store.MarkPendingDelete(s.ctx, first.ID, s.now.Add(-72*time.Hour), s.now.Add(-2*time.Hour))
	s.Require().NoError(err)
	_, err = s.store.MarkPendingDelete(s.ctx, later.ID, s.now, s.now.Add(time.Hour))
	s.Require().NoError(err)

	s.Run("due accounts ordered by schedule and limited", func() {
		due, err := s.store.ListDue(s.ctx, s.now, 10)
		s.Require().NoError(err)
		s.Equal([]id.AccountID{first.ID, second.ID}, due)

		due, err = s.store.ListDue(s.ctx, s.now, 1)
		s.Require().NoError(err)
		s.Equal([]id.AccountID{first.ID}, due)
	})

	s.Run("pending includes accounts not yet due", func() {
		pending, err := s.store.ListPending(s.ctx, 100)
		s.Require().NoError(err)
		s.Require().Len(pending, 3)
		s.Equal(later.ID, pending[2].ID)
	})

	s.Run("counts every status", func() {
		counts, err := s.store.CountByStatus(s.ctx)
		s.Require().NoError(err)
		s.Equal(int64(1), counts[models.StatusActive])
		s.Equal(int64(3), counts[models.StatusPendingDelete])
		s.Equal(int64(0), counts[models.StatusDeleted])
	})
}

func (s *InMemoryStoreSuite) TestTransactionRollback() {
	account := s.newAccount("rollback@example.com")
	s.Require().NoError(s.store.Create(s.ctx, account))

	boom := errors.New("boom")
	err := s.coord.RunInTx(s.ctx, func(ctx context.Context) error {
		if _, err := s.store.MarkPendingDelete(ctx, account.ID, s.now, s.now.Add(time.Hour)); err != nil {
			return err
		}
		return boom
	})
	s.Require().ErrorIs(err, boom)

	status, err := s.store.GetStatus(s.ctx, account.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, status)
}
