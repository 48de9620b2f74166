package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/smallbiznis/invoicer/internal/clock"
	"github.com/smallbiznis/invoicer/internal/config"
	obsmetrics "github.com/smallbiznis/invoicer/internal/observability/metrics"
	"github.com/smallbiznis/invoicer/internal/providers/email"
	"github.com/smallbiznis/invoicer/internal/reminder/sweep"
	"go.uber.org/zap"
)

type fakeSweeper struct {
	calls  int
	dryRun []bool
	result sweep.Result
	err    error
}

func (f *fakeSweeper) Run(_ context.Context, dryRun bool) (sweep.Result, error) {
	f.calls++
	f.dryRun = append(f.dryRun, dryRun)
	return f.result, f.err
}

func newTestScheduler(t *testing.T, sweeper sweep.Runner, mailer email.Mailer, cfg Config) *Scheduler {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	s, err := New(Params{
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clock.NewFakeClock(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)),
		Sweeper: sweeper,
		Mailer:  mailer,
		Config:  cfg,
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return s
}

func withRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	t.Cleanup(restore)

	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{
		ServiceName: "invoicer",
		Environment: "test",
	})
	return registry
}

func TestRunJobTimeoutDoesNotReturnErrorAndIncrementsTimeout(t *testing.T) {
	registry := withRegistry(t)

	s := newTestScheduler(t, &fakeSweeper{}, email.NewRecorder(), Config{})
	err := s.runJob(context.Background(), "timeout_job", 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	labels := map[string]string{
		"service": "invoicer",
		"env":     "test",
		"job":     "timeout_job",
	}
	if got := getCounterValue(t, registry, "invoicer_scheduler_job_timeouts_total", labels); got != 1 {
		t.Fatalf("expected timeout count 1, got %v", got)
	}

	errorLabels := map[string]string{
		"service": "invoicer",
		"env":     "test",
		"job":     "timeout_job",
		"reason":  obsmetrics.SchedulerJobReasonDeadlineExceeded,
	}
	if got := getCounterValue(t, registry, "invoicer_scheduler_job_errors_total", errorLabels); got != 1 {
		t.Fatalf("expected error count 1, got %v", got)
	}
}

func TestReminderSweepSkippedWithoutMailer(t *testing.T) {
	registry := withRegistry(t)
	sweeper := &fakeSweeper{}

	s := newTestScheduler(t, sweeper, email.NotConfigured{}, Config{})
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if sweeper.calls != 0 {
		t.Fatalf("expected no sweep, got %d calls", sweeper.calls)
	}

	labels := map[string]string{
		"service": "invoicer",
		"env":     "test",
		"job":     JobReminderSweep,
		"reason":  deferredReasonMailNotConfigured,
	}
	if got := getCounterValue(t, registry, "invoicer_scheduler_batch_deferred_total", labels); got != 1 {
		t.Fatalf("expected deferred count 1, got %v", got)
	}
}

func TestReminderSweepDeferredWhenLockHeld(t *testing.T) {
	registry := withRegistry(t)
	sweeper := &fakeSweeper{err: sweep.ErrSweepInProgress}

	s := newTestScheduler(t, sweeper, email.NewRecorder(), Config{})
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}

	labels := map[string]string{
		"service": "invoicer",
		"env":     "test",
		"job":     JobReminderSweep,
		"reason":  obsmetrics.SchedulerBatchDeferredReasonLockHeld,
	}
	if got := getCounterValue(t, registry, "invoicer_scheduler_batch_deferred_total", labels); got != 1 {
		t.Fatalf("expected deferred count 1, got %v", got)
	}
}

func TestReminderSweepRecordsProcessed(t *testing.T) {
	registry := withRegistry(t)
	sweeper := &fakeSweeper{result: sweep.Result{
		Processed: 2,
		Results: []sweep.Outcome{
			{InvoiceID: 1, Type: "before_due", Status: sweep.StatusSent},
			{InvoiceID: 2, Type: "overdue", Status: sweep.StatusFailed, Error: "smtp down"},
		},
	}}

	s := newTestScheduler(t, sweeper, email.NewRecorder(), Config{})
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(sweeper.dryRun) != 1 || sweeper.dryRun[0] {
		t.Fatalf("expected one real sweep, got %v", sweeper.dryRun)
	}

	labels := map[string]string{
		"service":  "invoicer",
		"env":      "test",
		"job":      JobReminderSweep,
		"resource": "reminder",
	}
	if got := getCounterValue(t, registry, "invoicer_scheduler_batch_processed_total", labels); got != 2 {
		t.Fatalf("expected processed 2, got %v", got)
	}
	runLabels := map[string]string{"service": "invoicer", "env": "test", "job": JobReminderSweep}
	if got := getCounterValue(t, registry, "invoicer_scheduler_job_runs_total", runLabels); got != 1 {
		t.Fatalf("expected one job run, got %v", got)
	}
}

func TestReminderSweepErrorIsReturned(t *testing.T) {
	registry := withRegistry(t)
	boom := errors.New("database is gone")
	sweeper := &fakeSweeper{err: boom}

	s := newTestScheduler(t, sweeper, email.NewRecorder(), Config{})
	err := s.RunOnce(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped sweep error, got %v", err)
	}

	labels := map[string]string{
		"service": "invoicer",
		"env":     "test",
		"job":     JobReminderSweep,
		"reason":  obsmetrics.SchedulerJobReasonUnknown,
	}
	if got := getCounterValue(t, registry, "invoicer_scheduler_job_errors_total", labels); got != 1 {
		t.Fatalf("expected error count 1, got %v", got)
	}
}

func TestReminderSweepCountsPartialRun(t *testing.T) {
	registry := withRegistry(t)
	boom := errors.New("database is gone")
	sweeper := &fakeSweeper{
		result: sweep.Result{
			Processed: 1,
			Results:   []sweep.Outcome{{InvoiceID: 1, Type: "before_due", Status: sweep.StatusSent}},
		},
		err: boom,
	}

	s := newTestScheduler(t, sweeper, email.NewRecorder(), Config{})
	if err := s.RunOnce(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected sweep error, got %v", err)
	}

	labels := map[string]string{
		"service":  "invoicer",
		"env":      "test",
		"job":      JobReminderSweep,
		"resource": "reminder",
	}
	if got := getCounterValue(t, registry, "invoicer_scheduler_batch_processed_total", labels); got != 1 {
		t.Fatalf("expected processed 1, got %v", got)
	}
}

func TestRunOnceHonoursEnabledJobs(t *testing.T) {
	withRegistry(t)
	sweeper := &fakeSweeper{}

	s := newTestScheduler(t, sweeper, email.NewRecorder(), Config{EnabledJobs: []string{"something_else"}})
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if sweeper.calls != 0 {
		t.Fatalf("expected sweep to be disabled, got %d calls", sweeper.calls)
	}

	s = newTestScheduler(t, sweeper, email.NewRecorder(), Config{EnabledJobs: []string{" Reminder_Sweep "}})
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if sweeper.calls != 1 {
		t.Fatalf("expected one sweep, got %d calls", sweeper.calls)
	}
}

func TestProvideConfigDefaults(t *testing.T) {
	cfg := ProvideConfig(config.Config{}, nil)
	if cfg.Enabled {
		t.Fatalf("expected scheduler disabled by zero config")
	}
	if cfg.RunInterval != time.Hour {
		t.Fatalf("expected default interval, got %v", cfg.RunInterval)
	}
	if cfg.JobTimeout != config.DefaultReminderConfig().SweepTimeout {
		t.Fatalf("expected sweep timeout as job timeout, got %v", cfg.JobTimeout)
	}

	cfg = ProvideConfig(config.Config{Scheduler: config.SchedulerConfig{Enabled: true, Interval: 15 * time.Minute}}, nil)
	if !cfg.Enabled || cfg.RunInterval != 15*time.Minute {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	if _, err := New(Params{Log: zap.NewNop()}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func swapPrometheusRegistry(registry *prometheus.Registry) func() {
	oldRegisterer := prometheus.DefaultRegisterer
	oldGatherer := prometheus.DefaultGatherer
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
	return func() {
		prometheus.DefaultRegisterer = oldRegisterer
		prometheus.DefaultGatherer = oldGatherer
		obsmetrics.ResetSchedulerMetricsForTest()
	}
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			if metric.Counter == nil {
				t.Fatalf("metric %s is not a counter", name)
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}
