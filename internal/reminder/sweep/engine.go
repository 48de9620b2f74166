// Package sweep dispatches due-date reminders for open invoices. Every run scans all
// sent and overdue invoices; the reminder log makes repeated runs on one day idempotent.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicer/internal/clock"
	"github.com/smallbiznis/invoicer/internal/config"
	"github.com/smallbiznis/invoicer/internal/observability/metrics"
	"github.com/smallbiznis/invoicer/internal/providers/email"
	"github.com/smallbiznis/invoicer/internal/ratelimit"
	"github.com/smallbiznis/invoicer/internal/reminder/domain"
	"github.com/smallbiznis/invoicer/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	LockKey = "invoicer:reminder-sweep"

	StatusSent   = "sent"
	StatusFailed = "failed"
	StatusDryRun = "dry_run"
)

var ErrSweepInProgress = errors.New("reminder_sweep_in_progress")

var eligibleStatuses = []string{"sent", "overdue"}

// Outcome is one reminder the run acted on. Invoices with nothing due are not reported.
type Outcome struct {
	InvoiceID snowflake.ID        `json:"invoiceId"`
	Type      domain.ReminderType `json:"type"`
	Status    string              `json:"status"`
	Error     string              `json:"error,omitempty"`
}

type Result struct {
	DryRun    bool      `json:"dryRun"`
	Processed int       `json:"processed"`
	Results   []Outcome `json:"results"`
}

type Runner interface {
	Run(ctx context.Context, dryRun bool) (Result, error)
}

// distributedLock is satisfied by *ratelimit.Locker.
type distributedLock interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Resolver domain.Resolver
	Ledger   domain.Ledger
	Mailer   email.Mailer
	Policies *config.ReminderConfigHolder `optional:"true"`
	Locker   *ratelimit.Locker            `optional:"true"`
	Metrics  *metrics.SchedulerMetrics    `optional:"true"`
}

type Engine struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	resolver domain.Resolver
	ledger   domain.Ledger
	mailer   email.Mailer
	policies *config.ReminderConfigHolder
	lock     distributedLock
	metrics  *metrics.SchedulerMetrics

	running sync.Mutex
}

func New(p Params) *Engine {
	e := &Engine{
		db:       p.DB,
		log:      p.Log.Named("reminder.sweep"),
		clock:    p.Clock,
		resolver: p.Resolver,
		ledger:   p.Ledger,
		mailer:   p.Mailer,
		policies: p.Policies,
		metrics:  p.Metrics,
	}
	if p.Locker != nil {
		e.lock = p.Locker
	}
	return e
}

func NewRunner(e *Engine) Runner { return e }

type candidate struct {
	ID          snowflake.ID
	UserID      snowflake.ID
	ClientID    snowflake.ID
	Number      string
	DueDate     time.Time
	ClientEmail string
	ClientName  string
}

// Run evaluates every eligible invoice against today's date. A non-dry run needs a
// configured mailer and fails before touching any invoice otherwise. When a storage
// error stops the run part way, the outcomes recorded so far come back with the error.
func (e *Engine) Run(ctx context.Context, dryRun bool) (Result, error) {
	if !dryRun && (e.mailer == nil || !e.mailer.Configured()) {
		return Result{}, email.ErrNotConfigured
	}

	if !e.running.TryLock() {
		return Result{}, ErrSweepInProgress
	}
	defer e.running.Unlock()

	policy := e.policies.Get()
	ctx, cancel := context.WithTimeout(ctx, policy.SweepTimeout)
	defer cancel()
	ctx, correlationID := correlation.EnsureCorrelationID(ctx)
	log := e.log.With(zap.String("correlation_id", correlationID), zap.Bool("dry_run", dryRun))

	if e.lock != nil {
		token, ok, err := e.lock.TryLock(ctx, LockKey, policy.LockTTL)
		if err != nil {
			return Result{}, fmt.Errorf("acquire sweep lock: %w", err)
		}
		if !ok {
			return Result{}, ErrSweepInProgress
		}
		defer func() {
			if err := e.lock.Release(context.WithoutCancel(ctx), LockKey, token); err != nil {
				log.Warn("release sweep lock failed", zap.Error(err))
			}
		}()
	}

	today := truncateDay(e.clock.Now())
	log.Info("reminder.sweep.start", zap.Time("today", today))

	candidates, err := e.listCandidates(ctx)
	if err != nil {
		return Result{}, err
	}

	result := Result{DryRun: dryRun, Results: []Outcome{}}
	for _, inv := range candidates {
		err := ctx.Err()
		var (
			outcome Outcome
			fired   bool
		)
		if err == nil {
			outcome, fired, err = e.evaluate(ctx, log, inv, today, dryRun)
		}
		if err != nil {
			// outcomes already acted on are returned with the error
			result.Processed = len(result.Results)
			log.Error("reminder.sweep.aborted",
				zap.String("invoice_id", inv.ID.String()),
				zap.Int("processed", result.Processed),
				zap.Error(err),
			)
			return result, err
		}
		if fired {
			result.Results = append(result.Results, outcome)
		}
	}
	result.Processed = len(result.Results)

	log.Info("reminder.sweep.finish",
		zap.Int("candidates", len(candidates)),
		zap.Int("processed", result.Processed),
	)
	return result, nil
}

// evaluate handles one invoice. Delivery failures become failed outcomes; storage
// errors are returned and end the run.
func (e *Engine) evaluate(ctx context.Context, log *zap.Logger, inv candidate, today time.Time, dryRun bool) (Outcome, bool, error) {
	rule, err := e.resolver.Resolve(ctx, domain.InvoiceRef{ID: inv.ID, UserID: inv.UserID, ClientID: inv.ClientID})
	if err != nil {
		return Outcome{}, false, fmt.Errorf("resolve reminder rule for invoice %s: %w", inv.ID, err)
	}

	reminderType, due := dueReminder(daysBetween(today, inv.DueDate), rule)
	if !due {
		return Outcome{}, false, nil
	}

	sent, err := e.ledger.AlreadySent(ctx, inv.ID, reminderType, today)
	if err != nil {
		return Outcome{}, false, fmt.Errorf("check reminder log for invoice %s: %w", inv.ID, err)
	}
	if sent {
		return Outcome{}, false, nil
	}

	outcome := Outcome{InvoiceID: inv.ID, Type: reminderType}
	if dryRun {
		outcome.Status = StatusDryRun
		e.metrics.IncReminderDispatched(string(reminderType), StatusDryRun)
		return outcome, true, nil
	}

	subject, text := composeReminder(reminderType, inv)
	sendErr := e.mailer.Send(ctx, email.Message{
		To:      []string{inv.ClientEmail},
		Subject: subject,
		Text:    text,
		Headers: correlation.Headers(ctx),
	})

	entry := domain.Log{
		RuleID:       rule.ID,
		InvoiceID:    inv.ID,
		ReminderType: reminderType,
		ScheduledFor: today,
		CreatedAt:    e.clock.Now(),
	}
	if sendErr != nil {
		msg := sendErr.Error()
		entry.Status = domain.LogStatusFailed
		entry.Error = &msg
		outcome.Status = StatusFailed
		outcome.Error = msg
		log.Warn("reminder.dispatch.failed",
			zap.String("invoice_id", inv.ID.String()),
			zap.String("reminder_type", string(reminderType)),
			zap.Error(sendErr),
		)
	} else {
		sentAt := e.clock.Now()
		entry.Status = domain.LogStatusSent
		entry.SentAt = &sentAt
		outcome.Status = StatusSent
		log.Info("reminder.dispatch.sent",
			zap.String("invoice_id", inv.ID.String()),
			zap.String("number", inv.Number),
			zap.String("reminder_type", string(reminderType)),
		)
	}
	e.metrics.IncReminderDispatched(string(reminderType), outcome.Status)

	if _, err := e.ledger.Append(ctx, entry); err != nil {
		return Outcome{}, false, fmt.Errorf("append reminder log for invoice %s: %w", inv.ID, err)
	}
	return outcome, true, nil
}

func (e *Engine) listCandidates(ctx context.Context) ([]candidate, error) {
	var rows []candidate
	err := e.db.WithContext(ctx).Raw(
		`SELECT i.id, i.user_id, i.client_id, i.number, i.due_date,
		        c.email AS client_email, c.name AS client_name
		 FROM invoices i
		 JOIN clients c ON c.id = i.client_id
		 WHERE i.status IN ? AND c.email IS NOT NULL AND c.email <> ''
		 ORDER BY i.due_date ASC, i.id ASC`,
		eligibleStatuses,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list sweep candidates: %w", err)
	}
	return rows, nil
}

// dueReminder applies the rule to the whole-day distance to the due date. Positive
// daysToDue means the due date is still ahead.
func dueReminder(daysToDue int, rule domain.ResolvedRule) (domain.ReminderType, bool) {
	if daysToDue == rule.DaysBeforeDue {
		return domain.ReminderTypeBeforeDue, true
	}
	daysOverdue := -daysToDue
	if daysOverdue > 0 && daysOverdue == rule.DaysAfterDue {
		return domain.ReminderTypeOverdue, true
	}
	return "", false
}

func composeReminder(reminderType domain.ReminderType, inv candidate) (string, string) {
	name := inv.ClientName
	if name == "" {
		name = "there"
	}
	due := inv.DueDate.Format("2006-01-02")
	if reminderType == domain.ReminderTypeOverdue {
		return "Overdue: Invoice " + inv.Number,
			fmt.Sprintf("Hello %s,\n\nYour invoice %s is overdue since %s.\n\nPlease arrange payment.", name, inv.Number, due)
	}
	return fmt.Sprintf("Reminder: Invoice %s is due soon", inv.Number),
		fmt.Sprintf("Hello %s,\n\nYour invoice %s is due on %s.\n\nThank you.", name, inv.Number, due)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween counts whole calendar days from a to b.
func daysBetween(a, b time.Time) int {
	return int(truncateDay(b).Sub(truncateDay(a)).Hours() / 24)
}
