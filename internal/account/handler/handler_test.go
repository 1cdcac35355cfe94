package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"erasure/internal/account/models"
	"erasure/internal/account/service"
	"erasure/internal/account/store"
	"erasure/internal/session"
	"erasure/internal/session/revocation"
	id "erasure/pkg/domain"
	audit "erasure/pkg/platform/audit"
	auditmemory "erasure/pkg/platform/audit/store/memory"
	"erasure/pkg/platform/audit/publishers/compliance"
	"erasure/pkg/platform/tx"
	"erasure/pkg/testutil"
)

// =============================================================================
// Account Handler Test Suite
// =============================================================================
// Handlers run against the real service over memory stores so status codes and
// envelopes are checked end to end.

type HandlerSuite struct {
	suite.Suite
	router    http.Handler
	accounts  *store.InMemory
	audits    *auditmemory.InMemoryStore
	trl       *revocation.InMemoryTRL
	accountID id.AccountID
	now       time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	coord := tx.NewMemory()
	s.accounts = store.NewInMemory(coord)
	s.audits = auditmemory.NewInMemoryStore(coord)
	s.trl = revocation.NewInMemoryTRL()
	s.now = time.Now().UTC()

	svc, err := service.New(s.accounts, coord, compliance.New(s.audits), service.WithLogger(logger))
	s.Require().NoError(err)
	sessions, err := session.New(s.accounts, s.trl, session.WithLogger(logger))
	s.Require().NoError(err)

	email := "owner@example.com"
	s.accountID = id.NewAccountID()
	s.Require().NoError(s.accounts.Create(context.Background(), &models.Account{
		ID:        s.accountID,
		Status:    models.StatusActive,
		Email:     &email,
		CreatedAt: s.now.Add(-time.Hour),
		UpdatedAt: s.now.Add(-time.Hour),
	}))

	r := chi.NewRouter()
	New(svc, sessions, logger).Register(r)
	s.router = r
}

func (s *HandlerSuite) do(req *http.Request) *http.Request {
	return testutil.WithAccount(req, s.accountID, 0)
}

func (s *HandlerSuite) TestUnauthenticatedRequestsAreRejected() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/account/deletion-status"))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
}

func (s *HandlerSuite) TestRequestStatusCancelFlow() {
	s.Run("request without body schedules deletion", func() {
		req := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/account/deletion-request"))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(s.T(), rr)

		resp := testutil.UnmarshalResponse[deletionRequestResponse](s.T(), rr)
		s.Equal("PENDING_DELETE", resp.Status)
		s.WithinDuration(s.now.Add(service.DefaultGracePeriod), resp.DeleteScheduledAt, time.Minute)
	})

	s.Run("repeat request returns the same schedule", func() {
		first, err := s.accounts.FindByID(context.Background(), s.accountID)
		s.Require().NoError(err)

		req := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/account/deletion-request", map[string]string{"reason": "again"}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[deletionRequestResponse](s.T(), rr)
		s.True(first.DeleteScheduledAt.Equal(resp.DeleteScheduledAt))
	})

	s.Run("status exposes schedule and server time", func() {
		rr := testutil.DoRequest(s.router, s.do(testutil.NewRequest(s.T(), http.MethodGet, "/account/deletion-status")))
		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[deletionStatusResponse](s.T(), rr)
		s.Equal("PENDING_DELETE", resp.Status)
		s.NotNil(resp.DeleteScheduledAt)
		s.False(resp.ServerNow.IsZero())
	})

	s.Run("cancel returns the account to active", func() {
		rr := testutil.DoRequest(s.router, s.do(testutil.NewRequest(s.T(), http.MethodPost, "/account/deletion-cancel")))
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "status", "ACTIVE")
	})

	s.Run("second cancel has nothing to cancel", func() {
		rr := testutil.DoRequest(s.router, s.do(testutil.NewRequest(s.T(), http.MethodPost, "/account/deletion-cancel")))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "deletion_window_closed")
	})

	s.Run("one audit entry per committed transition", func() {
		entries, err := s.audits.ListByAccount(context.Background(), s.accountID)
		s.Require().NoError(err)
		s.Require().Len(entries, 2)
		s.Equal(audit.ActionDeletionRequested, entries[0].Action)
		s.Equal(audit.ActionDeletionCancelled, entries[1].Action)
	})
}

func (s *HandlerSuite) TestRequestValidation() {
	s.Run("reason longer than 500 characters", func() {
		body := `{"reason":"` + strings.Repeat("x", 501) + `"}`
		rr := testutil.DoRequest(s.router, s.do(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/account/deletion-request", body)))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("unknown fields are rejected", func() {
		rr := testutil.DoRequest(s.router, s.do(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/account/deletion-request", `{"when":"now"}`)))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
}

func (s *HandlerSuite) TestMissingAccount() {
	req := testutil.WithAccount(testutil.NewRequest(s.T(), http.MethodGet, "/account/deletion-status"), id.NewAccountID(), 0)
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "account_not_found")
}

func (s *HandlerSuite) TestMe() {
	rr := testutil.DoRequest(s.router, s.do(testutil.NewRequest(s.T(), http.MethodGet, "/auth/me")))
	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[meResponse](s.T(), rr)
	s.Equal(s.accountID.String(), resp.ID)
	s.Equal("ow****@example.com", *resp.Email)
	s.Nil(resp.Phone)
}

func (s *HandlerSuite) TestLogoutRevokesPresentedToken() {
	req := testutil.WithSession(
		testutil.NewRequest(s.T(), http.MethodPost, "/auth/logout"),
		s.accountID, 0, "jti-logout", time.Now().Add(30*time.Minute),
	)
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusNoContent)

	revoked, err := s.trl.IsRevoked(context.Background(), "jti-logout")
	s.Require().NoError(err)
	s.True(revoked)
}
