package balance

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoicer/internal/clock"
	"github.com/smallbiznis/invoicer/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	svc      Reconciler
	userID   snowflake.ID
	clientID snowflake.ID
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.OpenSQLite(t)
	node := testutil.NewNode(t)
	userID := testutil.SeedUser(t, db, node, "owner@example.com")
	clientID := testutil.SeedClient(t, db, node, userID, "Acme", "billing@acme.test")
	svc := New(Params{DB: db, Log: zap.NewNop(), Clock: clock.NewFakeClock(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))})
	return fixture{db: db, node: node, svc: svc, userID: userID, clientID: clientID}
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2))
}

func TestSyncBalanceMissingInvoice(t *testing.T) {
	f := newFixture(t)
	bal, err := f.svc.SyncBalance(context.Background(), f.node.Generate())
	require.NoError(t, err)
	assert.Nil(t, bal)
}

func TestSyncBalanceCountsOnlyCompletedPayments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	invoiceID := testutil.SeedInvoice(t, f.db, f.node, testutil.InvoiceSeed{
		UserID: f.userID, ClientID: f.clientID, Status: "sent", Total: "100.00",
	})

	testutil.SeedPayment(t, f.db, f.node, invoiceID, "30.10", "completed")
	testutil.SeedPayment(t, f.db, f.node, invoiceID, "20.20", "completed")
	testutil.SeedPayment(t, f.db, f.node, invoiceID, "49.70", "pending")

	bal, err := f.svc.SyncBalance(ctx, invoiceID)
	require.NoError(t, err)
	require.NotNil(t, bal)
	assertMoney(t, "100.00", bal.Total)
	assertMoney(t, "50.30", bal.Paid)
	assertMoney(t, "49.70", bal.Balance)
	assert.Equal(t, "USD", bal.Currency)
	assert.Equal(t, "sent", testutil.InvoiceStatus(t, f.db, invoiceID))
}

func TestSyncBalanceMarksSettledInvoicePaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	invoiceID := testutil.SeedInvoice(t, f.db, f.node, testutil.InvoiceSeed{
		UserID: f.userID, ClientID: f.clientID, Status: "overdue", Total: "27.50",
	})
	testutil.SeedPayment(t, f.db, f.node, invoiceID, "27.50", "completed")

	bal, err := f.svc.SyncBalance(ctx, invoiceID)
	require.NoError(t, err)
	assertMoney(t, "0.00", bal.Balance)
	assert.Equal(t, "paid", testutil.InvoiceStatus(t, f.db, invoiceID))

	testutil.SeedPayment(t, f.db, f.node, invoiceID, "0", "completed")
	testutil.SeedPayment(t, f.db, f.node, invoiceID, "10.00", "failed")
	bal, err = f.svc.SyncBalance(ctx, invoiceID)
	require.NoError(t, err)
	assertMoney(t, "0.00", bal.Balance)
	assert.Equal(t, "paid", testutil.InvoiceStatus(t, f.db, invoiceID))
}

func TestSyncBalanceOverpaymentGoesNegative(t *testing.T) {
	f := newFixture(t)
	invoiceID := testutil.SeedInvoice(t, f.db, f.node, testutil.InvoiceSeed{
		UserID: f.userID, ClientID: f.clientID, Status: "sent", Total: "10.00",
	})
	testutil.SeedPayment(t, f.db, f.node, invoiceID, "12.345", "completed")

	bal, err := f.svc.SyncBalance(context.Background(), invoiceID)
	require.NoError(t, err)
	assertMoney(t, "-2.35", bal.Balance)
	assert.Equal(t, "paid", testutil.InvoiceStatus(t, f.db, invoiceID))
}

func TestGetBalanceMaterializesLazily(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	invoiceID := testutil.SeedInvoice(t, f.db, f.node, testutil.InvoiceSeed{
		UserID: f.userID, ClientID: f.clientID, Status: "sent", Total: "80.00",
	})

	var count int64
	require.NoError(t, f.db.Raw(`SELECT COUNT(*) FROM invoice_balances`).Scan(&count).Error)
	require.Zero(t, count)

	bal, err := f.svc.GetBalance(ctx, invoiceID)
	require.NoError(t, err)
	assertMoney(t, "80.00", bal.Balance)

	require.NoError(t, f.db.Raw(`SELECT COUNT(*) FROM invoice_balances`).Scan(&count).Error)
	assert.EqualValues(t, 1, count)

	// Cached rows are served as-is until the next sync.
	testutil.SeedPayment(t, f.db, f.node, invoiceID, "5.00", "completed")
	cached, err := f.svc.GetBalance(ctx, invoiceID)
	require.NoError(t, err)
	assertMoney(t, "80.00", cached.Balance)

	synced, err := f.svc.SyncBalance(ctx, invoiceID)
	require.NoError(t, err)
	assertMoney(t, "75.00", synced.Balance)
}

func TestInvalidateForcesRecompute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	invoiceID := testutil.SeedInvoice(t, f.db, f.node, testutil.InvoiceSeed{
		UserID: f.userID, ClientID: f.clientID, Status: "sent", Total: "40.00",
	})

	bal, err := f.svc.GetBalance(ctx, invoiceID)
	require.NoError(t, err)
	assertMoney(t, "40.00", bal.Balance)

	require.NoError(t, f.db.Exec(`UPDATE invoices SET total = 55 WHERE id = ?`, invoiceID).Error)
	require.NoError(t, f.svc.Invalidate(ctx, nil, invoiceID))

	bal, err = f.svc.GetBalance(ctx, invoiceID)
	require.NoError(t, err)
	assertMoney(t, "55.00", bal.Balance)
}
