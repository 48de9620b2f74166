package sweep

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/invoicer/internal/clock"
	"github.com/smallbiznis/invoicer/internal/providers/email"
	"github.com/smallbiznis/invoicer/internal/ratelimit"
	"github.com/smallbiznis/invoicer/internal/reminder/domain"
	"github.com/smallbiznis/invoicer/internal/reminder/repository"
	reminderservice "github.com/smallbiznis/invoicer/internal/reminder/service"
	"github.com/smallbiznis/invoicer/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var sweepNow = time.Date(2026, 3, 10, 6, 30, 0, 0, time.UTC)

type harness struct {
	db     *gorm.DB
	node   *snowflake.Node
	clock  *clock.FakeClock
	mailer *email.Recorder
	engine *Engine
	userID snowflake.ID
}

func newHarness(t *testing.T, mailer email.Mailer, locker *ratelimit.Locker) harness {
	t.Helper()
	db := testutil.OpenSQLite(t)
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(sweepNow)
	repo := repository.Provide()

	recorder, _ := mailer.(*email.Recorder)
	engine := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		Clock:    clk,
		Resolver: reminderservice.NewResolver(reminderservice.ResolverParams{DB: db, Repo: repo}),
		Ledger:   reminderservice.NewLedger(reminderservice.LedgerParams{DB: db, GenID: node, Repo: repo}),
		Mailer:   mailer,
		Locker:   locker,
	})

	return harness{
		db:     db,
		node:   node,
		clock:  clk,
		mailer: recorder,
		engine: engine,
		userID: testutil.SeedUser(t, db, node, "owner@example.com"),
	}
}

func (h harness) invoice(t *testing.T, clientEmail, status string, due time.Time) (snowflake.ID, snowflake.ID) {
	t.Helper()
	clientID := testutil.SeedClient(t, h.db, h.node, h.userID, "Acme", clientEmail)
	invoiceID := testutil.SeedInvoice(t, h.db, h.node, testutil.InvoiceSeed{
		UserID:   h.userID,
		ClientID: clientID,
		Number:   "INV-" + clientEmail,
		Status:   status,
		Total:    "100",
		DueAt:    due,
	})
	return clientID, invoiceID
}

func (h harness) logCount(t *testing.T, status domain.LogStatus) int64 {
	t.Helper()
	var row struct{ Count int64 }
	require.NoError(t, h.db.Raw(`SELECT COUNT(1) AS count FROM reminder_logs WHERE status = ?`, status).Scan(&row).Error)
	return row.Count
}

func day(offset int) time.Time {
	return time.Date(2026, 3, 10+offset, 0, 0, 0, 0, time.UTC)
}

func TestSweepEndToEndAcrossDays(t *testing.T) {
	h := newHarness(t, email.NewRecorder(), nil)
	ctx := context.Background()

	_, soonID := h.invoice(t, "soon@acme.test", "sent", day(3))

	res, err := h.engine.Run(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 1, res.Processed)
	assert.Equal(t, Outcome{InvoiceID: soonID, Type: domain.ReminderTypeBeforeDue, Status: StatusSent}, res.Results[0])

	sent := h.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"soon@acme.test"}, sent[0].To)
	assert.Equal(t, "Reminder: Invoice INV-soon@acme.test is due soon", sent[0].Subject)
	assert.Equal(t, "Hello Acme,\n\nYour invoice INV-soon@acme.test is due on 2026-03-13.\n\nThank you.", sent[0].Text)
	assert.NotEmpty(t, sent[0].Headers["X-Correlation-ID"])

	// same day again
	res, err = h.engine.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Processed)
	assert.Empty(t, res.Results)
	assert.Len(t, h.mailer.Sent(), 1)

	// next day, two days to due matches nothing
	h.clock.AdvanceDays(1)
	res, err = h.engine.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Processed)

	_, lateID := h.invoice(t, "late@acme.test", "overdue", day(-2))
	res, err = h.engine.Run(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 1, res.Processed)
	assert.Equal(t, lateID, res.Results[0].InvoiceID)
	assert.Equal(t, domain.ReminderTypeOverdue, res.Results[0].Type)

	last := h.mailer.Sent()[1]
	assert.Equal(t, "Overdue: Invoice INV-late@acme.test", last.Subject)
	assert.Equal(t, "Hello Acme,\n\nYour invoice INV-late@acme.test is overdue since 2026-03-08.\n\nPlease arrange payment.", last.Text)

	res, err = h.engine.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Processed)
	assert.Equal(t, int64(2), h.logCount(t, domain.LogStatusSent))
}

func TestSweepIdempotentWithinDay(t *testing.T) {
	h := newHarness(t, email.NewRecorder(), nil)
	ctx := context.Background()
	h.invoice(t, "a@acme.test", "sent", day(3))
	h.invoice(t, "b@acme.test", "overdue", day(-3))

	for i := 0; i < 3; i++ {
		_, err := h.engine.Run(ctx, false)
		require.NoError(t, err)
	}

	var rows []struct {
		InvoiceID    int64
		ReminderType string
		Count        int64
	}
	require.NoError(t, h.db.Raw(
		`SELECT invoice_id, reminder_type, COUNT(1) AS count FROM reminder_logs
		 WHERE status = 'sent' GROUP BY invoice_id, reminder_type`,
	).Scan(&rows).Error)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, int64(1), row.Count)
	}
	assert.Len(t, h.mailer.Sent(), 2)
}

func TestSweepDryRunWritesNothing(t *testing.T) {
	h := newHarness(t, email.NewRecorder(), nil)
	ctx := context.Background()
	_, invoiceID := h.invoice(t, "a@acme.test", "sent", day(3))

	res, err := h.engine.Run(ctx, true)
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	require.Equal(t, 1, res.Processed)
	assert.Equal(t, Outcome{InvoiceID: invoiceID, Type: domain.ReminderTypeBeforeDue, Status: StatusDryRun}, res.Results[0])
	assert.Empty(t, h.mailer.Sent())
	assert.Equal(t, int64(0), h.logCount(t, domain.LogStatusSent))

	res, err = h.engine.Run(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 1, res.Processed)
	assert.Equal(t, StatusSent, res.Results[0].Status)
}

func TestSweepDryRunWithoutMailer(t *testing.T) {
	h := newHarness(t, email.NotConfigured{}, nil)
	h.invoice(t, "a@acme.test", "sent", day(3))

	_, err := h.engine.Run(context.Background(), false)
	assert.ErrorIs(t, err, email.ErrNotConfigured)

	res, err := h.engine.Run(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
}

func TestSweepIsolatesDeliveryFailures(t *testing.T) {
	recorder := email.NewRecorder()
	recorder.FailFor["broken@acme.test"] = errors.New("smtp: 550 mailbox unavailable")
	h := newHarness(t, recorder, nil)
	ctx := context.Background()

	_, brokenID := h.invoice(t, "broken@acme.test", "sent", day(3))
	_, okID := h.invoice(t, "ok@acme.test", "sent", day(3))

	res, err := h.engine.Run(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 2, res.Processed)

	byInvoice := map[snowflake.ID]Outcome{}
	for _, o := range res.Results {
		byInvoice[o.InvoiceID] = o
	}
	assert.Equal(t, StatusFailed, byInvoice[brokenID].Status)
	assert.Contains(t, byInvoice[brokenID].Error, "550 mailbox unavailable")
	assert.Equal(t, StatusSent, byInvoice[okID].Status)
	assert.Equal(t, int64(1), h.logCount(t, domain.LogStatusFailed))
	assert.Equal(t, int64(1), h.logCount(t, domain.LogStatusSent))

	var stored struct{ Error string }
	require.NoError(t, h.db.Raw(`SELECT error FROM reminder_logs WHERE invoice_id = ?`, brokenID).Scan(&stored).Error)
	assert.Contains(t, stored.Error, "550 mailbox unavailable")

	// a failed row does not block a retry later the same day
	res, err = h.engine.Run(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 1, res.Processed)
	assert.Equal(t, brokenID, res.Results[0].InvoiceID)
	assert.Equal(t, StatusFailed, res.Results[0].Status)
}

// flakyLedger fails to append after the first row.
type flakyLedger struct {
	domain.Ledger
	appended int
}

func (l *flakyLedger) Append(ctx context.Context, entry domain.Log) (domain.Log, error) {
	if l.appended > 0 {
		return domain.Log{}, errors.New("database is gone")
	}
	l.appended++
	return l.Ledger.Append(ctx, entry)
}

func TestSweepReturnsPartialResultOnStorageError(t *testing.T) {
	h := newHarness(t, email.NewRecorder(), nil)
	h.invoice(t, "first@acme.test", "sent", day(3))
	h.invoice(t, "second@acme.test", "sent", day(3))

	repo := repository.Provide()
	engine := New(Params{
		DB:       h.db,
		Log:      zap.NewNop(),
		Clock:    h.clock,
		Resolver: reminderservice.NewResolver(reminderservice.ResolverParams{DB: h.db, Repo: repo}),
		Ledger: &flakyLedger{
			Ledger: reminderservice.NewLedger(reminderservice.LedgerParams{DB: h.db, GenID: h.node, Repo: repo}),
		},
		Mailer: h.mailer,
	})

	res, err := engine.Run(context.Background(), false)
	require.Error(t, err)
	assert.Equal(t, 1, res.Processed)
	require.Len(t, res.Results, 1)
	assert.Equal(t, StatusSent, res.Results[0].Status)
	assert.Equal(t, int64(1), h.logCount(t, domain.LogStatusSent))
}

func TestSweepSkipsIneligibleInvoices(t *testing.T) {
	h := newHarness(t, email.NewRecorder(), nil)
	h.invoice(t, "draft@acme.test", "draft", day(3))
	h.invoice(t, "paid@acme.test", "paid", day(3))
	h.invoice(t, "", "sent", day(3))
	h.invoice(t, "due-today@acme.test", "sent", day(0))

	res, err := h.engine.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Processed)
	assert.Empty(t, h.mailer.Sent())
}

func TestSweepUsesResolvedRule(t *testing.T) {
	h := newHarness(t, email.NewRecorder(), nil)
	clientID, invoiceID := h.invoice(t, "a@acme.test", "sent", day(5))

	ruleID := h.node.Generate()
	now := time.Now().UTC()
	require.NoError(t, h.db.Exec(
		`INSERT INTO reminder_rules (id, user_id, client_id, enabled, days_before_due, days_after_due, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ruleID, h.userID, clientID, true, 5, 1, now, now,
	).Error)

	res, err := h.engine.Run(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 1, res.Processed)
	assert.Equal(t, invoiceID, res.Results[0].InvoiceID)

	var stored struct{ RuleID int64 }
	require.NoError(t, h.db.Raw(`SELECT rule_id FROM reminder_logs WHERE invoice_id = ?`, invoiceID).Scan(&stored).Error)
	assert.Equal(t, int64(ruleID), stored.RuleID)
}

func TestSweepRejectsOverlappingRun(t *testing.T) {
	h := newHarness(t, email.NewRecorder(), nil)
	h.engine.running.Lock()
	defer h.engine.running.Unlock()

	_, err := h.engine.Run(context.Background(), false)
	assert.ErrorIs(t, err, ErrSweepInProgress)
}

// heldLockMailer records whether the sweep lock key is held while a reminder is sent.
type heldLockMailer struct {
	*email.Recorder
	srv      *miniredis.Miniredis
	heldKeys []bool
}

func (m *heldLockMailer) Send(ctx context.Context, msg email.Message) error {
	m.heldKeys = append(m.heldKeys, m.srv.Exists(LockKey))
	return m.Recorder.Send(ctx, msg)
}

func TestSweepHonoursDistributedLock(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mailer := &heldLockMailer{Recorder: email.NewRecorder(), srv: srv}
	h := newHarness(t, mailer, ratelimit.NewLocker(client))
	h.invoice(t, "a@acme.test", "sent", day(3))

	require.NoError(t, srv.Set(LockKey, "other-instance"))
	_, err := h.engine.Run(context.Background(), false)
	assert.ErrorIs(t, err, ErrSweepInProgress)
	assert.Empty(t, mailer.Sent())
	held, err := srv.Get(LockKey)
	require.NoError(t, err)
	assert.Equal(t, "other-instance", held)

	srv.Del(LockKey)
	res, err := h.engine.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, []bool{true}, mailer.heldKeys)
	assert.False(t, srv.Exists(LockKey))
}

func TestDueReminder(t *testing.T) {
	rule := domain.ResolvedRule{DaysBeforeDue: 3, DaysAfterDue: 3}
	cases := []struct {
		daysToDue int
		want      domain.ReminderType
		fired     bool
	}{
		{3, domain.ReminderTypeBeforeDue, true},
		{2, "", false},
		{4, "", false},
		{0, "", false},
		{-3, domain.ReminderTypeOverdue, true},
		{-2, "", false},
	}
	for _, tc := range cases {
		got, fired := dueReminder(tc.daysToDue, rule)
		assert.Equal(t, tc.fired, fired, "daysToDue=%d", tc.daysToDue)
		assert.Equal(t, tc.want, got, "daysToDue=%d", tc.daysToDue)
	}

	// zero offsets only fire on the due date itself
	zero := domain.ResolvedRule{}
	got, fired := dueReminder(0, zero)
	assert.True(t, fired)
	assert.Equal(t, domain.ReminderTypeBeforeDue, got)
}

func TestDaysBetweenIgnoresTimeOfDay(t *testing.T) {
	a := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	b := time.Date(2026, 3, 13, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 3, daysBetween(a, b))
	assert.Equal(t, -3, daysBetween(b, a))
}
