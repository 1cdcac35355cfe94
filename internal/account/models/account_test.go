package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	id "erasure/pkg/domain"
	dErrors "erasure/pkg/domain-errors"
)

type AccountSuite struct {
	suite.Suite
	now   time.Time
	grace time.Duration
}

func TestAccountSuite(t *testing.T) {
	suite.Run(t, new(AccountSuite))
}

func (s *AccountSuite) SetupTest() {
	s.now = time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	s.grace = 7 * 24 * time.Hour
}

func strPtr(v string) *string { return &v }

func (s *AccountSuite) activeAccount() *Account {
	return &Account{
		ID:           id.NewAccountID(),
		Status:       StatusActive,
		Email:        strPtr("a@example.com"),
		Phone:        strPtr("+15550001"),
		Username:     strPtr("alice"),
		Nickname:     strPtr("Al"),
		AvatarURL:    strPtr("https://cdn/a.png"),
		PasswordHash: strPtr("$2a$10$x"),
		TokenVersion: 4,
		CreatedAt:    s.now.Add(-30 * 24 * time.Hour),
	}
}

func (s *AccountSuite) TestTransitionClosure() {
	allowed := map[[2]Status]bool{
		{StatusActive, StatusPendingDelete}:  true,
		{StatusPendingDelete, StatusActive}:  true,
		{StatusPendingDelete, StatusDeleted}: true,
	}
	for _, from := range AllStatuses() {
		for _, to := range AllStatuses() {
			s.Equal(allowed[[2]Status{from, to}], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func (s *AccountSuite) TestMarkPendingDelete() {
	a := s.activeAccount()
	s.Require().NoError(a.MarkPendingDelete(s.now, s.grace))

	s.Equal(StatusPendingDelete, a.Status)
	s.Equal(s.now, *a.DeleteRequestedAt)
	s.Equal(s.now.Add(s.grace), *a.DeleteScheduledAt)
	s.Equal(int64(5), a.TokenVersion)

	err := a.MarkPendingDelete(s.now.Add(time.Hour), s.grace)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	s.Equal(s.now.Add(s.grace), *a.DeleteScheduledAt, "schedule is set once per episode")
}

func (s *AccountSuite) TestCancelWindow() {
	a := s.activeAccount()
	s.Require().NoError(a.MarkPendingDelete(s.now, s.grace))

	s.True(a.CanCancel(s.now.Add(3 * 24 * time.Hour)))
	s.False(a.CanCancel(s.now.Add(s.grace)), "boundary instant belongs to the job")
	s.True(a.IsDue(s.now.Add(s.grace)))

	s.Require().NoError(a.CancelPendingDelete(s.now.Add(time.Hour)))
	s.Equal(StatusActive, a.Status)
	s.Nil(a.DeleteRequestedAt)
	s.Nil(a.DeleteScheduledAt)
	s.Equal(int64(6), a.TokenVersion)
}

func (s *AccountSuite) TestCancelAfterExpiryRejected() {
	a := s.activeAccount()
	s.Require().NoError(a.MarkPendingDelete(s.now, s.grace))

	err := a.CancelPendingDelete(s.now.Add(s.grace + time.Second))
	s.Require().Error(err)
	s.Equal(StatusPendingDelete, a.Status)
}

func (s *AccountSuite) TestTombstoneClearsPersonalData() {
	a := s.activeAccount()
	s.Require().NoError(a.MarkPendingDelete(s.now, s.grace))
	deletedAt := s.now.Add(s.grace + time.Hour)

	s.Require().NoError(a.Tombstone(deletedAt))

	s.Equal(StatusDeleted, a.Status)
	s.Equal(deletedAt, *a.DeletedAt)
	s.Nil(a.Email)
	s.Nil(a.Phone)
	s.Nil(a.Username)
	s.Nil(a.Nickname)
	s.Nil(a.AvatarURL)
	s.Nil(a.PasswordHash)
	s.Nil(a.DeleteScheduledAt)
	s.True(a.CreatedAt.IsZero())
	s.Equal(int64(6), a.TokenVersion)

	s.Error(a.Tombstone(deletedAt), "deleted is absorbing")
	s.Error(a.MarkPendingDelete(deletedAt, s.grace))
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("PENDING_DELETE")
	require.NoError(t, err)
	assert.Equal(t, StatusPendingDelete, st)

	_, err = ParseStatus("SUSPENDED")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestCloneIsDeep(t *testing.T) {
	email := "x@example.com"
	now := time.Now()
	a := &Account{Email: &email, DeleteScheduledAt: &now}
	cp := a.Clone()
	*cp.Email = "changed"
	*cp.DeleteScheduledAt = now.Add(time.Hour)

	assert.Equal(t, "x@example.com", *a.Email)
	assert.Equal(t, now, *a.DeleteScheduledAt)
}
