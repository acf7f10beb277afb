package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/couchcryptid/crisis-news-scanner/internal/observability"
)

// Scheduler runs pipeline cycles on a fixed interval. A tick that fires while
// the previous cycle is still running is skipped.
type Scheduler struct {
	pipeline *Pipeline
	interval time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewScheduler creates a Scheduler for p.
func NewScheduler(p *Pipeline, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	return &Scheduler{pipeline: p, interval: interval, logger: logger, metrics: metrics}
}

// Run executes one cycle immediately, then one per interval until ctx is
// cancelled. It waits for a running cycle to finish before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)
	s.metrics.SchedulerRunning.Set(1)
	defer s.metrics.SchedulerRunning.Set(0)

	log := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)
	c.Schedule(cron.Every(s.interval), cron.FuncJob(func() { s.runCycle(ctx) }))

	s.runCycle(ctx)
	c.Start()

	<-ctx.Done()
	s.logger.Info("scheduler stopping", "reason", ctx.Err())
	<-c.Stop().Done()
	return nil
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.pipeline.RunCycle(ctx); err != nil {
		if errors.Is(err, ErrCycleInProgress) {
			s.logger.Warn("previous cycle still running, skipping tick")
			return
		}
		s.logger.Error("cycle failed", "error", err)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
