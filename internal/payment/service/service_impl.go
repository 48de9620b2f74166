package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicer/internal/balance"
	"github.com/smallbiznis/invoicer/internal/clock"
	obsmetrics "github.com/smallbiznis/invoicer/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/invoicer/internal/payment/domain"
	"github.com/smallbiznis/invoicer/internal/usercontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       paymentdomain.Repository
	Balances   balance.Reconciler
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       paymentdomain.Repository
	balances   balance.Reconciler
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		balances:   p.Balances,
		obsMetrics: p.ObsMetrics,
	}
}

// RecordPayment stores the payment and then reconciles the invoice balance, which may
// settle the invoice.
func (s *Service) RecordPayment(ctx context.Context, invoiceID string, input paymentdomain.PaymentInput) (paymentdomain.RecordResult, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return paymentdomain.RecordResult{}, paymentdomain.ErrInvalidUser
	}
	id, err := parseID(invoiceID)
	if err != nil {
		return paymentdomain.RecordResult{}, err
	}

	if !input.Amount.IsPositive() {
		return paymentdomain.RecordResult{}, paymentdomain.ErrInvalidAmount
	}
	status := paymentdomain.PaymentStatusCompleted
	if raw := strings.ToLower(strings.TrimSpace(input.Status)); raw != "" {
		status = paymentdomain.PaymentStatus(raw)
	}
	if !status.Valid() {
		return paymentdomain.RecordResult{}, paymentdomain.ErrInvalidStatus
	}

	owned, err := s.repo.InvoiceOwned(ctx, s.db, userID, id)
	if err != nil {
		return paymentdomain.RecordResult{}, err
	}
	if !owned {
		return paymentdomain.RecordResult{}, paymentdomain.ErrNotFound
	}

	now := s.clock.Now()
	payment := paymentdomain.Payment{
		ID:        s.genID.Generate(),
		InvoiceID: id,
		Amount:    input.Amount.Round(2),
		Status:    status,
		Method:    optional(input.Method),
		Reference: optional(input.Reference),
		PaidAt:    now,
		CreatedAt: now,
	}
	if input.PaidAt != nil && !input.PaidAt.IsZero() {
		payment.PaidAt = input.PaidAt.UTC()
	}

	if err := s.repo.Insert(ctx, s.db, &payment); err != nil {
		return paymentdomain.RecordResult{}, err
	}

	bal, err := s.balances.SyncBalance(ctx, id)
	if err != nil {
		return paymentdomain.RecordResult{}, fmt.Errorf("sync balance: %w", err)
	}

	method := ""
	if payment.Method != nil {
		method = *payment.Method
	}
	s.obsMetrics.RecordPayment(ctx, method)
	s.log.Info("payment recorded",
		zap.String("invoice_id", id.String()),
		zap.String("payment_id", payment.ID.String()),
		zap.String("status", string(status)),
	)

	return paymentdomain.RecordResult{Payment: payment, Balance: bal}, nil
}

func (s *Service) ListPayments(ctx context.Context, invoiceID string) ([]paymentdomain.Payment, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return nil, paymentdomain.ErrInvalidUser
	}
	id, err := parseID(invoiceID)
	if err != nil {
		return nil, err
	}

	owned, err := s.repo.InvoiceOwned(ctx, s.db, userID, id)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, paymentdomain.ErrNotFound
	}
	return s.repo.ListByInvoice(ctx, s.db, id)
}

func optional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, paymentdomain.ErrInvalidID
	}
	return id, nil
}
