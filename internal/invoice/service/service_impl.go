package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoicer/internal/balance"
	"github.com/smallbiznis/invoicer/internal/clock"
	invoicedomain "github.com/smallbiznis/invoicer/internal/invoice/domain"
	"github.com/smallbiznis/invoicer/internal/observability/metrics"
	"github.com/smallbiznis/invoicer/internal/providers/email"
	"github.com/smallbiznis/invoicer/internal/providers/pdf"
	"github.com/smallbiznis/invoicer/internal/sequence"
	"github.com/smallbiznis/invoicer/internal/usercontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultCurrency = "USD"

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      invoicedomain.Repository
	Allocator sequence.Allocator
	Balances  balance.Reconciler
	Mailer    email.Mailer
	PDF       pdf.Renderer
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID     *snowflake.Node
	clock     clock.Clock
	repo      invoicedomain.Repository
	allocator sequence.Allocator
	balances  balance.Reconciler
	mailer    email.Mailer
	pdf       pdf.Renderer
	metrics   *metrics.Metrics
	validate  *validator.Validate
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("invoice.service"),

		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		allocator: p.Allocator,
		balances:  p.Balances,
		mailer:    p.Mailer,
		pdf:       p.PDF,
		metrics:   p.Metrics,
		validate:  validator.New(),
	}
}

// draft is a validated input with computed totals.
type draft struct {
	clientID   snowflake.ID
	templateID *snowflake.ID
	number     string
	status     invoicedomain.InvoiceStatus
	currency   string
	issueDate  time.Time
	dueDate    time.Time
	notes      *string
	subtotal   decimal.Decimal
	tax        decimal.Decimal
	total      decimal.Decimal
	items      []invoicedomain.ItemInput
}

func (s *Service) List(ctx context.Context) ([]invoicedomain.InvoiceSummary, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return nil, invoicedomain.ErrInvalidUser
	}
	return s.repo.List(ctx, s.db, userID)
}

func (s *Service) Get(ctx context.Context, id string) (invoicedomain.InvoiceDetail, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return invoicedomain.InvoiceDetail{}, invoicedomain.ErrInvalidUser
	}
	invoiceID, err := parseID(id)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}

	invoice, err := s.loadInvoice(ctx, s.db, userID, invoiceID)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}

	bal, err := s.balances.GetBalance(ctx, invoiceID)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}
	if bal != nil && bal.Balance.LessThanOrEqual(decimal.Zero) && invoice.Status != invoicedomain.InvoiceStatusPaid {
		// the reconciler may have just settled it
		invoice, err = s.loadInvoice(ctx, s.db, userID, invoiceID)
		if err != nil {
			return invoicedomain.InvoiceDetail{}, err
		}
	}

	items, err := s.repo.ListItems(ctx, s.db, invoiceID)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}

	return invoicedomain.InvoiceDetail{Invoice: *invoice, Items: items, Balance: bal}, nil
}

func (s *Service) Create(ctx context.Context, input invoicedomain.InvoiceInput) (invoicedomain.InvoiceDetail, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return invoicedomain.InvoiceDetail{}, invoicedomain.ErrInvalidUser
	}

	d, err := s.buildDraft(input, false)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}

	var detail invoicedomain.InvoiceDetail
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureReferences(ctx, tx, userID, d); err != nil {
			return err
		}

		number := d.number
		if number == "" {
			allocated, err := s.allocator.Allocate(ctx, tx, userID)
			if err != nil {
				return fmt.Errorf("allocate invoice number: %w", err)
			}
			number = allocated
		}

		now := s.clock.Now()
		invoice := newInvoice(s.genID.Generate(), d, userID, number, now)
		if err := s.repo.Insert(ctx, tx, &invoice); err != nil {
			return err
		}

		items, err := s.insertItems(ctx, tx, invoice.ID, d.items, now)
		if err != nil {
			return err
		}

		detail = invoicedomain.InvoiceDetail{Invoice: invoice, Items: items}
		return nil
	})
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}

	s.metrics.RecordInvoiceCreated(ctx, string(detail.Status))
	s.log.Info("invoice created",
		zap.String("invoice_id", detail.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("number", detail.Number),
		zap.Bool("generated_number", d.number == ""),
	)
	return detail, nil
}

func (s *Service) Update(ctx context.Context, id string, input invoicedomain.InvoiceInput) (invoicedomain.InvoiceDetail, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return invoicedomain.InvoiceDetail{}, invoicedomain.ErrInvalidUser
	}
	invoiceID, err := parseID(id)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}

	d, err := s.buildDraft(input, true)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}

	var detail invoicedomain.InvoiceDetail
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureReferences(ctx, tx, userID, d); err != nil {
			return err
		}

		now := s.clock.Now()
		invoice := newInvoice(invoiceID, d, userID, d.number, now)

		updated, err := s.repo.Update(ctx, tx, &invoice)
		if err != nil {
			return err
		}
		if !updated {
			return invoicedomain.ErrNotFound
		}

		if err := s.repo.DeleteItems(ctx, tx, invoiceID); err != nil {
			return err
		}
		items, err := s.insertItems(ctx, tx, invoiceID, d.items, now)
		if err != nil {
			return err
		}

		if err := s.balances.Invalidate(ctx, tx, invoiceID); err != nil {
			return fmt.Errorf("invalidate balance: %w", err)
		}

		stored, err := s.loadInvoice(ctx, tx, userID, invoiceID)
		if err != nil {
			return err
		}
		detail = invoicedomain.InvoiceDetail{Invoice: *stored, Items: items}
		return nil
	})
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}
	return detail, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return invoicedomain.ErrInvalidUser
	}
	invoiceID, err := parseID(id)
	if err != nil {
		return err
	}

	deleted, err := s.repo.Delete(ctx, s.db, userID, invoiceID)
	if err != nil {
		return err
	}
	if !deleted {
		return invoicedomain.ErrNotFound
	}
	return nil
}

// SetStatus writes the status directly. It does not consult the balance.
func (s *Service) SetStatus(ctx context.Context, id string, status string) (invoicedomain.Invoice, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidUser
	}
	invoiceID, err := parseID(id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	next := invoicedomain.InvoiceStatus(strings.ToLower(strings.TrimSpace(status)))
	if !next.Valid() {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidStatus
	}

	updated, err := s.repo.UpdateStatus(ctx, s.db, userID, invoiceID, next, s.clock.Now())
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if !updated {
		return invoicedomain.Invoice{}, invoicedomain.ErrNotFound
	}

	invoice, err := s.loadInvoice(ctx, s.db, userID, invoiceID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	return *invoice, nil
}

func (s *Service) ListItems(ctx context.Context, id string) ([]invoicedomain.InvoiceItem, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return nil, invoicedomain.ErrInvalidUser
	}
	invoiceID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadInvoice(ctx, s.db, userID, invoiceID); err != nil {
		return nil, err
	}
	return s.repo.ListItems(ctx, s.db, invoiceID)
}

func (s *Service) GetBalance(ctx context.Context, id string) (*balance.Balance, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return nil, invoicedomain.ErrInvalidUser
	}
	invoiceID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadInvoice(ctx, s.db, userID, invoiceID); err != nil {
		return nil, err
	}

	bal, err := s.balances.GetBalance(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if bal == nil {
		return nil, invoicedomain.ErrNotFound
	}
	return bal, nil
}

func (s *Service) PeekNextNumber(ctx context.Context) (string, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return "", invoicedomain.ErrInvalidUser
	}
	return s.allocator.Peek(ctx, userID)
}

func (s *Service) buildDraft(input invoicedomain.InvoiceInput, requireNumber bool) (draft, error) {
	verr := &invoicedomain.ValidationError{}
	var d draft

	clientID, err := parseID(input.ClientID)
	if err != nil {
		verr.Add("clientId", "must be a valid id")
	}
	d.clientID = clientID

	if input.TemplateID != nil && strings.TrimSpace(*input.TemplateID) != "" {
		templateID, err := parseID(*input.TemplateID)
		if err != nil {
			verr.Add("templateId", "must be a valid id")
		} else {
			d.templateID = &templateID
		}
	}

	if input.Number != nil {
		d.number = strings.TrimSpace(*input.Number)
	}
	if requireNumber && d.number == "" {
		verr.Add("number", "is required")
	}

	d.status = invoicedomain.InvoiceStatusDraft
	if input.Status != nil && strings.TrimSpace(*input.Status) != "" {
		d.status = invoicedomain.InvoiceStatus(strings.ToLower(strings.TrimSpace(*input.Status)))
		if !d.status.Valid() {
			verr.Add("status", "must be one of draft, sent, paid, overdue")
		}
	}

	d.currency = strings.ToUpper(strings.TrimSpace(input.Currency))
	if d.currency == "" {
		d.currency = defaultCurrency
	}

	if d.issueDate, err = parseDate(input.IssueDate); err != nil {
		verr.Add("issueDate", "must be a date (YYYY-MM-DD)")
	}
	if d.dueDate, err = parseDate(input.DueDate); err != nil {
		verr.Add("dueDate", "must be a date (YYYY-MM-DD)")
	}

	if input.Notes != nil {
		notes := strings.TrimSpace(*input.Notes)
		if notes != "" {
			d.notes = &notes
		}
	}

	rate := decimal.Zero
	if input.TaxRate != nil {
		rate = *input.TaxRate
		if rate.IsNegative() {
			verr.Add("taxRate", "must be greater than or equal to 0")
		}
	}

	if len(input.Items) == 0 {
		verr.Add("items", "must contain at least one item")
	}
	subtotal := decimal.Zero
	for i, item := range input.Items {
		field := fmt.Sprintf("items[%d]", i)
		if strings.TrimSpace(item.Description) == "" {
			verr.Add(field+".description", "is required")
		}
		if !item.Quantity.IsPositive() {
			verr.Add(field+".quantity", "must be greater than 0")
		}
		if item.UnitPrice.IsNegative() {
			verr.Add(field+".unitPrice", "must be greater than or equal to 0")
		}
		subtotal = subtotal.Add(item.Quantity.Mul(item.UnitPrice))
	}
	d.items = input.Items

	if err := verr.Err(); err != nil {
		return draft{}, err
	}

	d.subtotal = subtotal.Round(2)
	d.tax = decimal.Zero
	if !rate.IsZero() {
		d.tax = d.subtotal.Mul(rate).Round(2)
	}
	d.total = d.subtotal.Add(d.tax)
	return d, nil
}

func (s *Service) ensureReferences(ctx context.Context, tx *gorm.DB, userID snowflake.ID, d draft) error {
	client, err := s.repo.FindClient(ctx, tx, userID, d.clientID)
	if err != nil {
		return err
	}
	if client == nil {
		return invoicedomain.ErrClientNotFound
	}

	if d.templateID != nil {
		exists, err := s.repo.TemplateExists(ctx, tx, userID, *d.templateID)
		if err != nil {
			return err
		}
		if !exists {
			return invoicedomain.ErrTemplateNotFound
		}
	}
	return nil
}

func newInvoice(id snowflake.ID, d draft, userID snowflake.ID, number string, now time.Time) invoicedomain.Invoice {
	return invoicedomain.Invoice{
		ID:         id,
		UserID:     userID,
		ClientID:   d.clientID,
		TemplateID: d.templateID,
		Number:     number,
		Status:     d.status,
		Currency:   d.currency,
		IssueDate:  d.issueDate,
		DueDate:    d.dueDate,
		Subtotal:   d.subtotal,
		Tax:        d.tax,
		Total:      d.total,
		Notes:      d.notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (s *Service) insertItems(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID, inputs []invoicedomain.ItemInput, now time.Time) ([]invoicedomain.InvoiceItem, error) {
	items := make([]invoicedomain.InvoiceItem, 0, len(inputs))
	for i, in := range inputs {
		items = append(items, invoicedomain.InvoiceItem{
			ID:          s.genID.Generate(),
			InvoiceID:   invoiceID,
			Position:    i,
			Description: strings.TrimSpace(in.Description),
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			Amount:      in.Quantity.Mul(in.UnitPrice).Round(2),
			CreatedAt:   now,
		})
	}
	if err := s.repo.InsertItems(ctx, tx, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) loadInvoice(ctx context.Context, db *gorm.DB, userID, invoiceID snowflake.ID) (*invoicedomain.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, db, userID, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrNotFound
	}
	return invoice, nil
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"}

// parseDate keeps only the calendar date, at UTC midnight.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	var lastErr error
	for _, layout := range dateLayouts {
		parsed, err := time.Parse(layout, raw)
		if err == nil {
			return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, invoicedomain.ErrInvalidID
	}
	return id, nil
}
