package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/invoicer/internal/clock"
	"github.com/smallbiznis/invoicer/internal/providers/email"
	"github.com/smallbiznis/invoicer/internal/reminder/repository"
	reminderservice "github.com/smallbiznis/invoicer/internal/reminder/service"
	"github.com/smallbiznis/invoicer/internal/reminder/sweep"
	"github.com/smallbiznis/invoicer/internal/testutil"
	"go.uber.org/zap"
)

// Drives the scheduler through simulated days against a real sweep engine.
func TestSchedulerSweepsAcrossSimulatedDays(t *testing.T) {
	withRegistry(t)

	db := testutil.OpenSQLite(t)
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	repo := repository.Provide()
	mailer := email.NewRecorder()

	userID := testutil.SeedUser(t, db, node, "owner@example.com")
	clientID := testutil.SeedClient(t, db, node, userID, "Acme", "ap@acme.test")
	testutil.SeedInvoice(t, db, node, testutil.InvoiceSeed{
		UserID:   userID,
		ClientID: clientID,
		Number:   "INV-2026-0001",
		Status:   "sent",
		Total:    "250",
		DueAt:    time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC),
	})

	engine := sweep.New(sweep.Params{
		DB:       db,
		Log:      zap.NewNop(),
		Clock:    clk,
		Resolver: reminderservice.NewResolver(reminderservice.ResolverParams{DB: db, Repo: repo}),
		Ledger:   reminderservice.NewLedger(reminderservice.LedgerParams{DB: db, GenID: node, Repo: repo}),
		Mailer:   mailer,
	})
	s, err := New(Params{
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clk,
		Sweeper: sweep.NewRunner(engine),
		Mailer:  mailer,
		Config:  Config{Enabled: true, RunInterval: time.Hour},
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	// hourly ticks over ten days
	subjects := []string{}
	for hour := 0; hour < 24*10; hour++ {
		if err := s.RunOnce(context.Background()); err != nil {
			t.Fatalf("run once at %s: %v", clk.Now(), err)
		}
		clk.Advance(time.Hour)
	}
	for _, msg := range mailer.Sent() {
		subjects = append(subjects, msg.Subject)
	}

	want := []string{
		"Reminder: Invoice INV-2026-0001 is due soon",
		"Overdue: Invoice INV-2026-0001",
	}
	if len(subjects) != len(want) {
		t.Fatalf("expected %d reminders, got %v", len(want), subjects)
	}
	for i := range want {
		if subjects[i] != want[i] {
			t.Fatalf("reminder %d: expected %q, got %q", i, want[i], subjects[i])
		}
	}
}
