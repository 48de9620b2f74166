package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// RuleInput is shared by create and full update. Nil Enabled means true; nil day
// offsets fall back to the configured defaults.
type RuleInput struct {
	InvoiceID     *string
	ClientID      *string
	Enabled       *bool
	DaysBeforeDue *int
	DaysAfterDue  *int
}

type Service interface {
	ListRules(ctx context.Context) ([]Rule, error)
	CreateRule(ctx context.Context, input RuleInput) (Rule, error)
	UpdateRule(ctx context.Context, id string, input RuleInput) (Rule, error)
	DeleteRule(ctx context.Context, id string) error
	ListLogs(ctx context.Context, invoiceID string) ([]Log, error)
}

// Resolver picks the most specific enabled rule for an invoice.
type Resolver interface {
	Resolve(ctx context.Context, invoice InvoiceRef) (ResolvedRule, error)
}

// Ledger records reminder attempts and answers deduplication queries.
type Ledger interface {
	AlreadySent(ctx context.Context, invoiceID snowflake.ID, reminderType ReminderType, scheduledFor time.Time) (bool, error)
	Append(ctx context.Context, entry Log) (Log, error)
}

var (
	ErrInvalidUser          = errors.New("invalid_user")
	ErrInvalidID            = errors.New("invalid_id")
	ErrInvalidDaysBeforeDue = errors.New("invalid_days_before_due")
	ErrInvalidDaysAfterDue  = errors.New("invalid_days_after_due")
	ErrInvoiceNotFound      = errors.New("invoice_not_found")
	ErrClientNotFound       = errors.New("client_not_found")
	ErrNotFound             = errors.New("not_found")
)
