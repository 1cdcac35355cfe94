package deletion

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/clock"

	"erasure/internal/deletion/models"
)

const DefaultInterval = time.Hour

// JobRunner is what the scheduler drives.
type JobRunner interface {
	Run(ctx context.Context, trigger models.Trigger) (*models.JobRun, error)
}

// Scheduler runs the deletion job on a fixed interval inside the process. A tick
// that arrives while the previous scheduled run is still going is skipped.
type Scheduler struct {
	job      JobRunner
	clock    clock.Clock
	interval time.Duration
	logger   *slog.Logger

	running  atomic.Bool
	inflight sync.WaitGroup
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

type SchedulerOption func(*Scheduler)

func WithSchedulerClock(clk clock.Clock) SchedulerOption {
	return func(s *Scheduler) {
		if clk != nil {
			s.clock = clk
		}
	}
}

func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func NewScheduler(job JobRunner, interval time.Duration, opts ...SchedulerOption) (*Scheduler, error) {
	if job == nil {
		return nil, errors.New("job is required")
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &Scheduler{
		job:      job,
		clock:    clock.WallClock,
		interval: interval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start launches the timer loop. The first run happens one interval from now.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)
	s.logger.InfoContext(ctx, "deletion scheduler started", "interval", s.interval.String())
}

// Stop ends the loop and waits for an in-flight run. Purges already started
// are allowed to finish; the run launches no new ones.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel == nil {
			return
		}
		s.cancel()
		<-s.done
		s.inflight.Wait()
		s.logger.Info("deletion scheduler stopped")
	})
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	timer := s.clock.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.Chan():
			s.tick(ctx)
			timer.Reset(s.interval)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.WarnContext(ctx, "previous deletion job still running, skipping tick")
		return
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer s.running.Store(false)
		if _, err := s.job.Run(ctx, models.TriggerScheduled); err != nil {
			s.logger.ErrorContext(ctx, "scheduled deletion job failed", "error", err)
		}
	}()
}
