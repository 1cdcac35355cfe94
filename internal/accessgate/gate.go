// Package accessgate restricts what an account may do while its deletion is
// pending, and shuts a deleted account out entirely.
package accessgate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"erasure/internal/account/models"
	id "erasure/pkg/domain"
	dErrors "erasure/pkg/domain-errors"
	"erasure/pkg/platform/httputil"
	"erasure/pkg/platform/sentinel"
	"erasure/pkg/requestcontext"
)

// StatusReader supplies the account status. The gate depends on it, never the reverse.
type StatusReader interface {
	GetStatus(ctx context.Context, accountID id.AccountID) (models.Status, error)
}

type Decision string

const (
	DecisionAllowed    Decision = "allowed"
	DecisionRestricted Decision = "restricted"
	DecisionDeleted    Decision = "deleted"
	DecisionUnknown    Decision = "unknown_account"
	DecisionError      Decision = "error"
)

type Gate struct {
	status  StatusReader
	allowed map[Route]struct{}
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Gate)

// WithExtraRoutes adds entries to the default allow-list.
func WithExtraRoutes(routes ...Route) Option {
	return func(g *Gate) {
		for _, r := range routes {
			g.allowed[r] = struct{}{}
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

func New(status StatusReader, opts ...Option) *Gate {
	g := &Gate{
		status:  status,
		allowed: make(map[Route]struct{}, len(DefaultAllowList)),
		logger:  slog.Default(),
	}
	for _, r := range DefaultAllowList {
		g.allowed[r] = struct{}{}
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Allows reports whether method and path are on the allow-list.
func (g *Gate) Allows(method, path string) bool {
	_, ok := g.allowed[Route{Method: method, Path: NormalizePath(path)}]
	return ok
}

// Decide evaluates one request. A non-nil error is returned alongside every
// decision other than DecisionAllowed.
func (g *Gate) Decide(ctx context.Context, accountID id.AccountID, method, path string) (Decision, error) {
	status, err := g.status.GetStatus(ctx, accountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || dErrors.HasCode(err, dErrors.CodeAccountNotFound) {
			return DecisionUnknown, dErrors.New(dErrors.CodeUnauthorized, "account not found")
		}
		return DecisionError, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read account status")
	}

	switch status {
	case models.StatusActive:
		return DecisionAllowed, nil
	case models.StatusPendingDelete:
		if g.Allows(method, path) {
			return DecisionAllowed, nil
		}
		return DecisionRestricted, dErrors.New(dErrors.CodeAccessRestricted,
			"account is pending deletion; only cancel, status and logout are available")
	case models.StatusDeleted:
		return DecisionDeleted, dErrors.New(dErrors.CodeAccountDeleted, "account has been deleted")
	default:
		return DecisionError, dErrors.New(dErrors.CodeInternal, "unknown account status "+string(status))
	}
}

// Middleware must run after RequireAuth. Lookup failures fail closed.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		accountID := requestcontext.AccountID(ctx)
		if accountID.IsNil() {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
			return
		}

		decision, err := g.Decide(ctx, accountID, r.Method, r.URL.Path)
		g.metrics.observe(decision)
		if err != nil {
			level := slog.LevelInfo
			if decision == DecisionError {
				level = slog.LevelError
			}
			g.logger.Log(ctx, level, "access gate denied request",
				"decision", string(decision),
				"account_id", accountID.String(),
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
