package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"

	"erasure/internal/accessgate"
	accounthandler "erasure/internal/account/handler"
	accountservice "erasure/internal/account/service"
	"erasure/internal/account/statuscache"
	"erasure/internal/anonymize"
	"erasure/internal/deletion"
	deletionhandler "erasure/internal/deletion/handler"
	jwttoken "erasure/internal/jwt_token"
	"erasure/internal/platform/config"
	"erasure/internal/platform/metrics"
	platformredis "erasure/internal/platform/redis"
	"erasure/internal/session"
	"erasure/pkg/platform/audit/publishers/compliance"
	"erasure/pkg/platform/httputil"
	adminmw "erasure/pkg/platform/middleware/admin"
	authmw "erasure/pkg/platform/middleware/auth"
	"erasure/pkg/platform/middleware/metadata"
	request "erasure/pkg/platform/middleware/request"
	"erasure/pkg/platform/middleware/requesttime"
)

// app is everything run needs after wiring: the router and the deletion job
// the scheduler drives.
type app struct {
	router http.Handler
	job    *deletion.Job
}

func wire(cfg config.Config, log *slog.Logger, b *backends, rc *platformredis.Client, reg *prometheus.Registry) (*app, error) {
	publisher := compliance.New(b.audits,
		compliance.WithLogger(log),
		compliance.WithMetrics(compliance.NewMetrics(reg)),
	)

	cache := statuscache.New(rc.Raw(), b.accounts,
		statuscache.WithTTL(cfg.Gate.StatusCacheTTL),
		statuscache.WithLogger(log),
		statuscache.WithMetrics(statuscache.NewMetrics(reg)),
	)

	accounts, err := accountservice.New(b.accounts, b.runner, publisher,
		accountservice.WithLogger(log),
		accountservice.WithStatusCache(cache),
		accountservice.WithGracePeriod(cfg.Deletion.GracePeriod),
	)
	if err != nil {
		return nil, err
	}
	sessions, err := session.New(b.accounts, b.trl, session.WithLogger(log))
	if err != nil {
		return nil, err
	}

	extraRoutes, err := accessgate.ParseRoutes(cfg.Gate.ExtraAllowedRoutes)
	if err != nil {
		return nil, fmt.Errorf("GATE_EXTRA_ALLOWED_ROUTES: %w", err)
	}
	gate := accessgate.New(cache,
		accessgate.WithExtraRoutes(extraRoutes...),
		accessgate.WithLogger(log),
		accessgate.WithMetrics(accessgate.NewMetrics(reg)),
	)

	anonymizer, err := anonymize.New(cfg.Deletion.AnonymizationSecret)
	if err != nil {
		return nil, err
	}
	purger, err := deletion.NewPurger(b.accounts, b.owned, anonymizer, publisher, b.runner, clock.WallClock)
	if err != nil {
		return nil, err
	}
	job, err := deletion.NewJob(b.accounts, purger, publisher, b.runs,
		deletion.WithBatchSize(cfg.Deletion.BatchSize),
		deletion.WithWorkers(cfg.Deletion.Workers),
		deletion.WithTxTimeout(cfg.Deletion.TxTimeout),
		deletion.WithJobLogger(log),
		deletion.WithMetrics(deletion.NewMetrics(reg)),
		deletion.WithStatusCache(cache),
	)
	if err != nil {
		return nil, err
	}
	adminService, err := deletion.NewService(job, b.accounts, b.audits, b.runs)
	if err != nil {
		return nil, err
	}

	jwt := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", request.HeaderRequestID, adminmw.HeaderAdminToken},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(request.RequestID)
	r.Use(request.Logger(log))
	r.Use(request.Recovery(log))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware(clock.WallClock))
	r.Use(metrics.NewHTTP(reg).Middleware)

	r.Handle("/metrics", metrics.Handler(reg))
	r.Get("/healthz", healthz(b, rc))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authmw.RequireAuth(jwttoken.NewMiddlewareAdapter(jwt), sessions, sessions, log))
		r.Use(gate.Middleware)
		accounthandler.New(accounts, sessions, log).Register(r)
	})
	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(adminmw.RequireAdminToken(cfg.Auth.AdminTokenHash, log))
		deletionhandler.New(adminService, log).Register(r)
	})

	return &app{router: r, job: job}, nil
}

func healthz(b *backends, rc *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := map[string]string{"database": "memory", "redis": "disabled"}
		status := http.StatusOK
		if b.db != nil {
			checks["database"] = "ok"
			if err := b.ping(ctx); err != nil {
				checks["database"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		if rc != nil {
			checks["redis"] = "ok"
			if err := rc.Health(ctx); err != nil {
				checks["redis"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		httputil.WriteJSON(w, status, checks)
	}
}
