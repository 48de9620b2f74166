package domain

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoicer/internal/balance"
)

// ItemInput is one submitted line. Amount is always computed server side.
type ItemInput struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// InvoiceInput is shared by create and full update. Dates accept YYYY-MM-DD or RFC 3339.
// Number is optional on create and required on update.
type InvoiceInput struct {
	ClientID   string
	TemplateID *string
	Number     *string
	Currency   string
	IssueDate  string
	DueDate    string
	Notes      *string
	Status     *string
	TaxRate    *decimal.Decimal
	Items      []ItemInput
}

type SendEmailRequest struct {
	To      *string
	Message *string
}

// InvoiceDetail is an invoice with its items in submitted order and, on reads, its balance.
type InvoiceDetail struct {
	Invoice
	Items   []InvoiceItem    `json:"items"`
	Balance *balance.Balance `json:"balance,omitempty"`
}

// Document is a rendered invoice file.
type Document struct {
	Filename    string
	ContentType string
	Content     []byte
}

type Service interface {
	List(ctx context.Context) ([]InvoiceSummary, error)
	Get(ctx context.Context, id string) (InvoiceDetail, error)
	Create(ctx context.Context, input InvoiceInput) (InvoiceDetail, error)
	Update(ctx context.Context, id string, input InvoiceInput) (InvoiceDetail, error)
	Delete(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id string, status string) (Invoice, error)
	ListItems(ctx context.Context, id string) ([]InvoiceItem, error)
	GetBalance(ctx context.Context, id string) (*balance.Balance, error)
	PeekNextNumber(ctx context.Context) (string, error)
	RenderPDF(ctx context.Context, id string) (Document, error)
	SendEmail(ctx context.Context, id string, req SendEmailRequest) error
}

var (
	ErrInvalidUser      = errors.New("invalid_user")
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidStatus    = errors.New("invalid_status")
	ErrNotFound         = errors.New("not_found")
	ErrClientNotFound   = errors.New("client_not_found")
	ErrTemplateNotFound = errors.New("template_not_found")
	ErrMissingRecipient = errors.New("missing_recipient")
	ErrInvalidRecipient = errors.New("invalid_recipient")
	ErrValidation       = errors.New("invalid_invoice")
)

// FieldError is one violated rule on a submitted invoice.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every violation found in an invoice input, not only the first.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Err returns nil when no violation was recorded.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
