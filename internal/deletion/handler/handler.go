// Package handler exposes the operator routes of the deletion job.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"erasure/internal/deletion"
	"erasure/internal/deletion/models"
	dErrors "erasure/pkg/domain-errors"
	audit "erasure/pkg/platform/audit"
	"erasure/pkg/platform/httputil"
	"erasure/pkg/requestcontext"
)

type Service interface {
	TriggerDeletionJob(ctx context.Context) (*models.JobRun, error)
	ListPendingDeletions(ctx context.Context) ([]deletion.PendingDeletion, error)
	GetDeletionJobLogs(ctx context.Context, page audit.Page) (*deletion.JobLogs, error)
	GetDeletionStats(ctx context.Context) (*deletion.Stats, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the routes. Callers mount it under /api/admin/v1 behind the
// admin token check.
func (h *Handler) Register(r chi.Router) {
	r.Route("/jobs/deletion", func(r chi.Router) {
		r.Post("/trigger", h.HandleTrigger)
		r.Get("/pending", h.HandlePending)
		r.Get("/logs", h.HandleLogs)
		r.Get("/stats", h.HandleStats)
	})
}

func (h *Handler) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.logger.InfoContext(ctx, "deletion job triggered manually",
		"request_id", requestcontext.RequestID(ctx),
		"client_ip", requestcontext.ClientIP(ctx),
	)

	run, err := h.service.TriggerDeletionJob(ctx)
	if err != nil {
		h.logFailure(ctx, "manual deletion job failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, run)
}

func (h *Handler) HandlePending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pending, err := h.service.ListPendingDeletions(ctx)
	if err != nil {
		h.logFailure(ctx, "pending deletions lookup failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPendingResponse(pending))
}

func (h *Handler) HandleLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, err := parsePage(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	logs, err := h.service.GetDeletionJobLogs(ctx, page)
	if err != nil {
		h.logFailure(ctx, "deletion logs lookup failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toLogsResponse(logs))
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.service.GetDeletionStats(ctx)
	if err != nil {
		h.logFailure(ctx, "deletion stats lookup failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStatsResponse(stats))
}

// parsePage reads page and pageSize. Missing values fall back to defaults.
func parsePage(r *http.Request) (audit.Page, error) {
	q := r.URL.Query()
	page := audit.Page{}
	for _, p := range []struct {
		name string
		dst  *int
	}{{"page", &page.Number}, {"pageSize", &page.Size}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return audit.Page{}, dErrors.New(dErrors.CodeBadRequest, p.name+" must be a positive integer")
		}
		if p.name == "page" && n > audit.MaxPageNumber {
			return audit.Page{}, dErrors.New(dErrors.CodeBadRequest, "page is out of range")
		}
		*p.dst = n
	}
	return page.Normalize(), nil
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
}
