package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/twmb/franz-go/pkg/kadm"
	"golang.org/x/sync/errgroup"

	"erasure/internal/deletion"
	"erasure/internal/platform/config"
	"erasure/internal/platform/httpserver"
	"erasure/internal/platform/kafka/outbox"
	"erasure/internal/platform/logger"
	platformredis "erasure/internal/platform/redis"
)

const trlSweepInterval = 15 * time.Minute

// main loads configuration, wires the stores and services, and runs the HTTP
// server next to the deletion scheduler and the audit relay until a signal arrives.
func main() {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rc, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rc != nil {
		defer rc.Close()
	} else {
		log.InfoContext(ctx, "REDIS_URL not set, status cache reads go straight to the account store")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	b, err := openBackends(ctx, cfg, rc, reg, log)
	if err != nil {
		return err
	}
	defer b.close()

	a, err := wire(cfg, log, b, rc, reg)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Deletion.SchedulerEnabled {
		scheduler, err := deletion.NewScheduler(a.job, cfg.Deletion.JobInterval, deletion.WithSchedulerLogger(log))
		if err != nil {
			return err
		}
		scheduler.Start(gctx)
		defer scheduler.Stop()
	}

	if b.purgeTRL != nil {
		g.Go(func() error {
			sweepRevocations(gctx, b.purgeTRL, log)
			return nil
		})
	}

	if len(cfg.Kafka.Brokers) > 0 {
		client, err := outbox.NewClient(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			return err
		}
		defer client.Close()
		if err := outbox.EnsureTopic(ctx, kadm.NewClient(client), cfg.Kafka.AuditTopic,
			int32(cfg.Kafka.TopicPartitions), int16(cfg.Kafka.TopicReplication)); err != nil {
			return err
		}
		relay, err := outbox.NewRelay(b.audits, client, b.runner, cfg.Kafka.AuditTopic,
			outbox.WithBatch(cfg.Kafka.RelayBatch),
			outbox.WithInterval(cfg.Kafka.RelayInterval),
			outbox.WithLogger(log),
		)
		if err != nil {
			return err
		}
		g.Go(func() error { return relay.Run(gctx) })
	}

	srv := httpserver.New(cfg.Server.Addr, a.router)
	g.Go(func() error {
		log.InfoContext(gctx, "starting erasure", "addr", cfg.Server.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.InfoContext(shutdownCtx, "shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func sweepRevocations(ctx context.Context, purge func(context.Context) (int64, error), log *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(trlSweepInterval):
		}
		n, err := purge(ctx)
		if err != nil {
			log.WarnContext(ctx, "revocation sweep failed", "error", err)
			continue
		}
		if n > 0 {
			log.InfoContext(ctx, "revocation sweep", "removed", n)
		}
	}
}
