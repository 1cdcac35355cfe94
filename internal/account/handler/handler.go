// Package handler exposes the account lifecycle routes owned by the account holder.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"erasure/internal/account/service"
	id "erasure/pkg/domain"
	dErrors "erasure/pkg/domain-errors"
	"erasure/pkg/platform/httputil"
	"erasure/pkg/requestcontext"
)

type Service interface {
	RequestDeletion(ctx context.Context, accountID id.AccountID, reason string) (*service.RequestResult, error)
	CancelDeletion(ctx context.Context, accountID id.AccountID) (*service.CancelResult, error)
	GetDeletionStatus(ctx context.Context, accountID id.AccountID) (*service.DeletionStatus, error)
	Me(ctx context.Context, accountID id.AccountID) (*service.Identity, error)
}

type SessionService interface {
	Logout(ctx context.Context, accountID id.AccountID, jti string, expiresAt time.Time) error
}

type Handler struct {
	service  Service
	sessions SessionService
	logger   *slog.Logger
}

func New(service Service, sessions SessionService, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		sessions: sessions,
		logger:   logger,
	}
}

// Register mounts the routes. Callers mount it under /api/v1 behind RequireAuth
// and the access gate.
func (h *Handler) Register(r chi.Router) {
	r.Post("/account/deletion-request", h.HandleRequestDeletion)
	r.Post("/account/deletion-cancel", h.HandleCancelDeletion)
	r.Get("/account/deletion-status", h.HandleDeletionStatus)
	r.Get("/auth/me", h.HandleMe)
	r.Post("/auth/logout", h.HandleLogout)
}

func (h *Handler) HandleRequestDeletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	accountID, ok := h.requireAccount(w, ctx)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[DeletionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.RequestDeletion(ctx, accountID, req.Reason)
	if err != nil {
		h.logFailure(ctx, "deletion request failed", accountID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, deletionRequestResponse{
		Status:            string(result.Status),
		DeleteScheduledAt: result.DeleteScheduledAt,
	})
}

func (h *Handler) HandleCancelDeletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, ok := h.requireAccount(w, ctx)
	if !ok {
		return
	}

	result, err := h.service.CancelDeletion(ctx, accountID)
	if err != nil {
		h.logFailure(ctx, "deletion cancel failed", accountID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, deletionCancelResponse{Status: string(result.Status)})
}

func (h *Handler) HandleDeletionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, ok := h.requireAccount(w, ctx)
	if !ok {
		return
	}

	status, err := h.service.GetDeletionStatus(ctx, accountID)
	if err != nil {
		h.logFailure(ctx, "deletion status lookup failed", accountID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, deletionStatusResponse{
		Status:            string(status.Status),
		DeleteScheduledAt: status.DeleteScheduledAt,
		ServerNow:         status.ServerNow,
	})
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, ok := h.requireAccount(w, ctx)
	if !ok {
		return
	}

	identity, err := h.service.Me(ctx, accountID)
	if err != nil {
		h.logFailure(ctx, "identity lookup failed", accountID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toMeResponse(identity))
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, ok := h.requireAccount(w, ctx)
	if !ok {
		return
	}

	jti, expiresAt := requestcontext.TokenID(ctx)
	if err := h.sessions.Logout(ctx, accountID, jti, expiresAt); err != nil {
		h.logFailure(ctx, "logout failed", accountID, err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requireAccount(w http.ResponseWriter, ctx context.Context) (id.AccountID, bool) {
	accountID := requestcontext.AccountID(ctx)
	if accountID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.AccountID{}, false
	}
	return accountID, true
}

func (h *Handler) logFailure(ctx context.Context, msg string, accountID id.AccountID, err error) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"account_id", accountID.String(),
		"error", err,
	)
}
