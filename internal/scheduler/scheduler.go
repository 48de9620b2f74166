package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicer/internal/clock"
	obsmetrics "github.com/smallbiznis/invoicer/internal/observability/metrics"
	"github.com/smallbiznis/invoicer/internal/providers/email"
	"github.com/smallbiznis/invoicer/internal/reminder/sweep"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobReminderSweep = "reminder_sweep"

	deferredReasonMailNotConfigured = "mail_not_configured"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Sweeper sweep.Runner
	Mailer  email.Mailer
	Config  Config `optional:"true"`
}

type Scheduler struct {
	log     *zap.Logger
	cfg     Config
	genID   *snowflake.Node
	clock   clock.Clock
	sweeper sweep.Runner
	mailer  email.Mailer
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Sweeper == nil || p.Mailer == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:     p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:     p.Config.withDefaults(),
		genID:   p.GenID,
		clock:   p.Clock,
		sweeper: p.Sweeper,
		mailer:  p.Mailer,
	}, nil
}

// runJob bounds fn by timeout. A deadline is a soft failure: it is counted and logged
// but not returned.
func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobReminderSweep, s.ReminderSweepJob},
	}

	for _, job := range jobs {
		if !s.cfg.jobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, s.cfg.JobTimeout, job.Run))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	s.log.Info("scheduler started", zap.Duration("interval", s.cfg.RunInterval))
	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
		}

		if lag := s.clock.Now().Sub(nextRun); lag > 0 {
			schedMetrics.ObserveRunLoopLag(lag)
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)
	}
}

// ReminderSweepJob runs a real sweep. It is deferred, not failed, when mail is not
// configured or another run holds the sweep lock.
func (s *Scheduler) ReminderSweepJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobReminderSweep)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	schedMetrics := obsmetrics.Scheduler()

	if !s.mailer.Configured() {
		schedMetrics.IncBatchDeferred(JobReminderSweep, deferredReasonMailNotConfigured)
		s.logger(ctx).Debug("scheduler.job.skipped",
			zap.String("job", JobReminderSweep),
			zap.String("reason", deferredReasonMailNotConfigured),
		)
		return nil
	}

	result, err := s.sweeper.Run(ctx, false)
	if errors.Is(err, sweep.ErrSweepInProgress) {
		schedMetrics.IncBatchDeferred(JobReminderSweep, obsmetrics.SchedulerBatchDeferredReasonLockHeld)
		s.logger(ctx).Info("scheduler.job.skipped",
			zap.String("job", JobReminderSweep),
			zap.String("reason", obsmetrics.SchedulerBatchDeferredReasonLockHeld),
		)
		return nil
	}

	failed := 0
	for _, outcome := range result.Results {
		if outcome.Status == sweep.StatusFailed {
			failed++
		}
	}
	run.AddProcessed(result.Processed)
	for i := 0; i < failed; i++ {
		run.IncError()
	}
	schedMetrics.AddBatchProcessed(JobReminderSweep, "reminder", result.Processed)

	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.reminder_sweep.failed", JobReminderSweep, err)
		return err
	}
	return nil
}
