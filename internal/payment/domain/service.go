package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoicer/internal/balance"
)

// PaymentInput records a payment. Status defaults to completed and PaidAt to now.
type PaymentInput struct {
	Amount    decimal.Decimal
	Status    string
	Method    *string
	Reference *string
	PaidAt    *time.Time
}

// RecordResult is the stored payment with the balance recomputed after it.
type RecordResult struct {
	Payment Payment          `json:"payment"`
	Balance *balance.Balance `json:"balance"`
}

type Service interface {
	RecordPayment(ctx context.Context, invoiceID string, input PaymentInput) (RecordResult, error)
	ListPayments(ctx context.Context, invoiceID string) ([]Payment, error)
}

var (
	ErrInvalidUser   = errors.New("invalid_user")
	ErrInvalidID     = errors.New("invalid_id")
	ErrInvalidAmount = errors.New("invalid_amount")
	ErrInvalidStatus = errors.New("invalid_status")
	ErrNotFound      = errors.New("not_found")
)
