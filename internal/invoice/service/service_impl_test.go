package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoicer/internal/balance"
	"github.com/smallbiznis/invoicer/internal/clock"
	invoicedomain "github.com/smallbiznis/invoicer/internal/invoice/domain"
	"github.com/smallbiznis/invoicer/internal/invoice/repository"
	"github.com/smallbiznis/invoicer/internal/providers/email"
	"github.com/smallbiznis/invoicer/internal/providers/pdf"
	"github.com/smallbiznis/invoicer/internal/sequence"
	"github.com/smallbiznis/invoicer/internal/testutil"
	"github.com/smallbiznis/invoicer/internal/usercontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)

type fixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	svc      invoicedomain.Service
	mailer   *email.Recorder
	userID   snowflake.ID
	clientID snowflake.ID
	ctx      context.Context
}

type fixtureOption func(*ServiceParam)

func newFixture(t *testing.T, opts ...fixtureOption) fixture {
	t.Helper()
	db := testutil.OpenSQLite(t)
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(testNow)
	log := zap.NewNop()

	userID := testutil.SeedUser(t, db, node, "owner@example.com")
	clientID := testutil.SeedClient(t, db, node, userID, "Acme", "billing@acme.test")
	mailer := email.NewRecorder()

	p := ServiceParam{
		DB:        db,
		Log:       log,
		GenID:     node,
		Clock:     clk,
		Repo:      repository.Provide(),
		Allocator: sequence.New(sequence.Params{DB: db, Log: log, Clock: clk}),
		Balances:  balance.New(balance.Params{DB: db, Log: log, Clock: clk}),
		Mailer:    mailer,
		PDF:       pdf.New(),
	}
	for _, opt := range opts {
		opt(&p)
	}

	return fixture{
		db:       db,
		node:     node,
		svc:      NewService(p),
		mailer:   mailer,
		userID:   userID,
		clientID: clientID,
		ctx:      usercontext.WithUserID(context.Background(), userID),
	}
}

func money(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func ptr[T any](v T) *T { return &v }

func (f fixture) input(items ...invoicedomain.ItemInput) invoicedomain.InvoiceInput {
	return invoicedomain.InvoiceInput{
		ClientID:  f.clientID.String(),
		IssueDate: "2026-04-01",
		DueDate:   "2026-04-30",
		Items:     items,
	}
}

func item(desc, qty, price string) invoicedomain.ItemInput {
	return invoicedomain.ItemInput{Description: desc, Quantity: money(qty), UnitPrice: money(price)}
}

func countRows(t *testing.T, db *gorm.DB, query string, args ...any) int64 {
	t.Helper()
	var row struct{ Count int64 }
	require.NoError(t, db.Raw(query, args...).Scan(&row).Error)
	return row.Count
}

func TestCreateThenUpdateReplacesItemsAndTotals(t *testing.T) {
	f := newFixture(t)

	in := f.input(item("Design", "2", "10.00"), item("Hosting", "1", "5.00"))
	in.TaxRate = ptr(money("0.1"))
	created, err := f.svc.Create(f.ctx, in)
	require.NoError(t, err)

	assert.Equal(t, "25.00", created.Subtotal.StringFixed(2))
	assert.Equal(t, "2.50", created.Tax.StringFixed(2))
	assert.Equal(t, "27.50", created.Total.StringFixed(2))
	require.Len(t, created.Items, 2)
	assert.Equal(t, "Design", created.Items[0].Description)
	assert.Equal(t, "Hosting", created.Items[1].Description)
	assert.Equal(t, invoicedomain.InvoiceStatusDraft, created.Status)
	assert.Equal(t, "USD", created.Currency)

	up := f.input(item("Retainer", "1", "100.00"))
	up.Number = ptr(created.Number)
	up.TaxRate = ptr(decimal.Zero)
	updated, err := f.svc.Update(f.ctx, created.ID.String(), up)
	require.NoError(t, err)

	assert.Equal(t, "100.00", updated.Subtotal.StringFixed(2))
	assert.Equal(t, "0.00", updated.Tax.StringFixed(2))
	assert.Equal(t, "100.00", updated.Total.StringFixed(2))

	items, err := f.svc.ListItems(f.ctx, created.ID.String())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Retainer", items[0].Description)
	assert.Equal(t, "100.00", items[0].Amount.StringFixed(2))
}

type updateCapturingRepo struct {
	invoicedomain.Repository
	updated []invoicedomain.Invoice
}

func (r *updateCapturingRepo) Update(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice) (bool, error) {
	r.updated = append(r.updated, *invoice)
	return r.Repository.Update(ctx, tx, invoice)
}

func TestUpdateWritesExistingInvoiceRow(t *testing.T) {
	repo := &updateCapturingRepo{Repository: repository.Provide()}
	f := newFixture(t, func(p *ServiceParam) { p.Repo = repo })

	created, err := f.svc.Create(f.ctx, f.input(item("A", "1", "10")))
	require.NoError(t, err)

	up := f.input(item("B", "2", "10"))
	up.Number = ptr(created.Number)
	updated, err := f.svc.Update(f.ctx, created.ID.String(), up)
	require.NoError(t, err)

	require.Len(t, repo.updated, 1)
	assert.Equal(t, created.ID, repo.updated[0].ID)
	assert.Equal(t, f.userID, repo.updated[0].UserID)
	assert.Equal(t, created.ID, updated.ID)
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))
	assert.Equal(t, int64(1), countRows(t, f.db, `SELECT COUNT(1) AS count FROM invoices`))
}

func TestCreateAllocatesNumberOnlyWhenMissing(t *testing.T) {
	f := newFixture(t)

	first, err := f.svc.Create(f.ctx, f.input(item("A", "1", "1")))
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-0001", first.Number)

	manual := f.input(item("B", "1", "1"))
	manual.Number = ptr("  CUSTOM-7 ")
	second, err := f.svc.Create(f.ctx, manual)
	require.NoError(t, err)
	assert.Equal(t, "CUSTOM-7", second.Number)

	next, err := f.svc.PeekNextNumber(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-0002", next)

	third, err := f.svc.Create(f.ctx, f.input(item("C", "1", "1")))
	require.NoError(t, err)
	assert.Equal(t, next, third.Number)
}

func TestConcurrentCreatesYieldGaplessNumbers(t *testing.T) {
	f := newFixture(t)
	const n = 12

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []string
		errs    []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			created, err := f.svc.Create(f.ctx, f.input(item(fmt.Sprintf("line %d", i), "1", "10")))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			numbers = append(numbers, created.Number)
		}(i)
	}
	wg.Wait()

	require.Empty(t, errs)
	sort.Strings(numbers)
	want := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		want = append(want, fmt.Sprintf("INV-2026-%04d", i))
	}
	assert.Equal(t, want, numbers)
}

type failingItemsRepo struct {
	invoicedomain.Repository
}

func (failingItemsRepo) InsertItems(context.Context, *gorm.DB, []invoicedomain.InvoiceItem) error {
	return errors.New("disk full")
}

func TestCreateRollsBackInvoiceAndCounter(t *testing.T) {
	f := newFixture(t, func(p *ServiceParam) {
		p.Repo = failingItemsRepo{Repository: repository.Provide()}
	})

	_, err := f.svc.Create(f.ctx, f.input(item("A", "1", "1")))
	require.Error(t, err)

	assert.Zero(t, countRows(t, f.db, `SELECT COUNT(1) AS count FROM invoices`))
	assert.Zero(t, countRows(t, f.db, `SELECT COUNT(1) AS count FROM invoice_counters`))

	next, err := f.svc.PeekNextNumber(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-0001", next)
}

func TestCrossTenantWritesReturnNotFound(t *testing.T) {
	f := newFixture(t)

	otherUser := testutil.SeedUser(t, f.db, f.node, "other@example.com")
	otherClient := testutil.SeedClient(t, f.db, f.node, otherUser, "Globex", "")
	otherCtx := usercontext.WithUserID(context.Background(), otherUser)
	in := invoicedomain.InvoiceInput{
		ClientID:  otherClient.String(),
		IssueDate: "2026-04-01",
		DueDate:   "2026-04-30",
		Items:     []invoicedomain.ItemInput{item("Theirs", "1", "42")},
	}
	theirs, err := f.svc.Create(otherCtx, in)
	require.NoError(t, err)

	up := f.input(item("Mine", "1", "1"))
	up.Number = ptr("HIJACK")
	_, err = f.svc.Update(f.ctx, theirs.ID.String(), up)
	assert.ErrorIs(t, err, invoicedomain.ErrNotFound)

	err = f.svc.Delete(f.ctx, theirs.ID.String())
	assert.ErrorIs(t, err, invoicedomain.ErrNotFound)

	_, err = f.svc.SetStatus(f.ctx, theirs.ID.String(), "paid")
	assert.ErrorIs(t, err, invoicedomain.ErrNotFound)

	_, err = f.svc.Get(f.ctx, theirs.ID.String())
	assert.ErrorIs(t, err, invoicedomain.ErrNotFound)

	stored, err := f.svc.Get(otherCtx, theirs.ID.String())
	require.NoError(t, err)
	assert.Equal(t, theirs.Number, stored.Number)
	assert.Equal(t, invoicedomain.InvoiceStatusDraft, stored.Status)
	assert.Equal(t, "42.00", stored.Total.StringFixed(2))
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "Theirs", stored.Items[0].Description)
}

func TestCreateRejectsForeignClient(t *testing.T) {
	f := newFixture(t)
	otherUser := testutil.SeedUser(t, f.db, f.node, "other@example.com")
	otherClient := testutil.SeedClient(t, f.db, f.node, otherUser, "Globex", "")

	in := f.input(item("A", "1", "1"))
	in.ClientID = otherClient.String()
	_, err := f.svc.Create(f.ctx, in)
	assert.ErrorIs(t, err, invoicedomain.ErrClientNotFound)
}

func TestCreateRejectsUnknownTemplate(t *testing.T) {
	f := newFixture(t)
	in := f.input(item("A", "1", "1"))
	in.TemplateID = ptr(f.node.Generate().String())
	_, err := f.svc.Create(f.ctx, in)
	assert.ErrorIs(t, err, invoicedomain.ErrTemplateNotFound)
}

func TestValidationReportsEveryIssue(t *testing.T) {
	f := newFixture(t)

	in := invoicedomain.InvoiceInput{
		ClientID:  "nope",
		IssueDate: "yesterday",
		DueDate:   "2026-04-30",
		Status:    ptr("archived"),
		TaxRate:   ptr(money("-0.1")),
		Items: []invoicedomain.ItemInput{
			{Description: "", Quantity: money("0"), UnitPrice: money("-1")},
		},
	}
	_, err := f.svc.Create(f.ctx, in)
	require.Error(t, err)
	assert.ErrorIs(t, err, invoicedomain.ErrValidation)

	var verr *invoicedomain.ValidationError
	require.True(t, errors.As(err, &verr))
	fields := make([]string, 0, len(verr.Fields))
	for _, fe := range verr.Fields {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{
		"clientId", "status", "issueDate", "taxRate",
		"items[0].description", "items[0].quantity", "items[0].unitPrice",
	}, fields)

	_, err = f.svc.Create(f.ctx, f.input())
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "items", verr.Fields[0].Field)
}

func TestUpdateRequiresNumber(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Create(f.ctx, f.input(item("A", "1", "1")))
	require.NoError(t, err)

	_, err = f.svc.Update(f.ctx, created.ID.String(), f.input(item("B", "1", "1")))
	var verr *invoicedomain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "number", verr.Fields[0].Field)

	assert.Equal(t, int64(1), countRows(t, f.db, `SELECT COUNT(1) AS count FROM invoice_counters`))
}

func TestSetStatusIsDirectWrite(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Create(f.ctx, f.input(item("A", "1", "10")))
	require.NoError(t, err)

	inv, err := f.svc.SetStatus(f.ctx, created.ID.String(), "sent")
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusSent, inv.Status)

	_, err = f.svc.SetStatus(f.ctx, created.ID.String(), "void")
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidStatus)
}

func TestGetReturnsBalanceAndSettlement(t *testing.T) {
	f := newFixture(t)
	in := f.input(item("A", "2", "10"))
	in.Status = ptr("sent")
	created, err := f.svc.Create(f.ctx, in)
	require.NoError(t, err)

	detail, err := f.svc.Get(f.ctx, created.ID.String())
	require.NoError(t, err)
	require.NotNil(t, detail.Balance)
	assert.Equal(t, "20.00", detail.Balance.Balance.StringFixed(2))

	testutil.SeedPayment(t, f.db, f.node, created.ID, "20.00", "completed")
	require.NoError(t, f.db.Exec(`DELETE FROM invoice_balances`).Error)

	detail, err = f.svc.Get(f.ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "0.00", detail.Balance.Balance.StringFixed(2))
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, detail.Status)
}

func TestUpdateRefreshesCachedBalance(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Create(f.ctx, f.input(item("A", "1", "10")))
	require.NoError(t, err)

	bal, err := f.svc.GetBalance(f.ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "10.00", bal.Balance.StringFixed(2))

	up := f.input(item("A", "3", "10"))
	up.Number = ptr(created.Number)
	_, err = f.svc.Update(f.ctx, created.ID.String(), up)
	require.NoError(t, err)

	bal, err = f.svc.GetBalance(f.ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "30.00", bal.Balance.StringFixed(2))
}

func TestListIncludesClientNameNewestFirst(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(f.ctx, f.input(item("A", "1", "1")))
	require.NoError(t, err)
	second, err := f.svc.Create(f.ctx, f.input(item("B", "1", "1")))
	require.NoError(t, err)

	list, err := f.svc.List(f.ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, "Acme", list[0].ClientName)
}

func TestDeleteRemovesItems(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Create(f.ctx, f.input(item("A", "1", "1")))
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(f.ctx, created.ID.String()))
	assert.Zero(t, countRows(t, f.db, `SELECT COUNT(1) AS count FROM invoice_items`))
	assert.ErrorIs(t, f.svc.Delete(f.ctx, created.ID.String()), invoicedomain.ErrNotFound)
}

func TestSendEmailAttachesPDF(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Create(f.ctx, f.input(item("A", "1", "10")))
	require.NoError(t, err)

	require.NoError(t, f.svc.SendEmail(f.ctx, created.ID.String(), invoicedomain.SendEmailRequest{}))

	sent := f.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"billing@acme.test"}, sent[0].To)
	assert.Equal(t, "Invoice INV-2026-0001", sent[0].Subject)
	assert.Equal(t, "Hello,\n\nPlease find attached invoice INV-2026-0001.\n\nThank you.", sent[0].Text)
	require.Len(t, sent[0].Attachments, 1)
	assert.Equal(t, "inv-2026-0001.pdf", sent[0].Attachments[0].Filename)
	assert.Equal(t, "application/pdf", sent[0].Attachments[0].ContentType)

	require.NoError(t, f.svc.SendEmail(f.ctx, created.ID.String(), invoicedomain.SendEmailRequest{
		To:      ptr("ap@acme.test"),
		Message: ptr("Custom body"),
	}))
	sent = f.mailer.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, []string{"ap@acme.test"}, sent[1].To)
	assert.Equal(t, "Custom body", sent[1].Text)
}

func TestSendEmailFailures(t *testing.T) {
	f := newFixture(t, func(p *ServiceParam) { p.Mailer = email.NotConfigured{} })

	created, err := f.svc.Create(f.ctx, f.input(item("A", "1", "10")))
	require.NoError(t, err)
	err = f.svc.SendEmail(f.ctx, created.ID.String(), invoicedomain.SendEmailRequest{})
	assert.ErrorIs(t, err, email.ErrNotConfigured)

	noEmail := testutil.SeedClient(t, f.db, f.node, f.userID, "Initech", "")
	in := f.input(item("A", "1", "10"))
	in.ClientID = noEmail.String()
	created, err = f.svc.Create(f.ctx, in)
	require.NoError(t, err)
	err = f.svc.SendEmail(f.ctx, created.ID.String(), invoicedomain.SendEmailRequest{})
	assert.ErrorIs(t, err, invoicedomain.ErrMissingRecipient)

	err = f.svc.SendEmail(f.ctx, created.ID.String(), invoicedomain.SendEmailRequest{To: ptr("not-an-email")})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidRecipient)
}

func TestRenderPDF(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Create(f.ctx, f.input(item("A", "1", "10")))
	require.NoError(t, err)

	doc, err := f.svc.RenderPDF(f.ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "inv-2026-0001.pdf", doc.Filename)
	assert.NotEmpty(t, doc.Content)
}
