// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "draft"
	InvoiceStatusSent    InvoiceStatus = "sent"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusOverdue InvoiceStatus = "overdue"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPaid, InvoiceStatusOverdue:
		return true
	default:
		return false
	}
}

// Invoice represents an issued invoice. IssueDate and DueDate carry calendar dates at UTC midnight.
type Invoice struct {
	ID         snowflake.ID    `gorm:"primaryKey" json:"id"`
	UserID     snowflake.ID    `gorm:"not null;index" json:"-"`
	ClientID   snowflake.ID    `gorm:"not null;index" json:"clientId"`
	TemplateID *snowflake.ID   `json:"templateId"`
	Number     string          `gorm:"type:text;not null" json:"number"`
	Status     InvoiceStatus   `gorm:"type:text;not null;default:'draft'" json:"status"`
	Currency   string          `gorm:"type:text;not null" json:"currency"`
	IssueDate  time.Time       `gorm:"type:date;not null" json:"issueDate"`
	DueDate    time.Time       `gorm:"type:date;not null" json:"dueDate"`
	Subtotal   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	Tax        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"tax"`
	Total      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	Notes      *string         `json:"notes"`
	CreatedAt  time.Time       `gorm:"not null" json:"createdAt"`
	UpdatedAt  time.Time       `gorm:"not null" json:"updatedAt"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceItem represents a line on an invoice. Position preserves the submitted order.
type InvoiceItem struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceID   snowflake.ID    `gorm:"not null;index" json:"invoiceId"`
	Position    int             `gorm:"not null" json:"position"`
	Description string          `gorm:"type:text;not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unitPrice"`
	Amount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	CreatedAt   time.Time       `gorm:"not null" json:"createdAt"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }

// InvoiceSummary is a list row joined with the client name.
type InvoiceSummary struct {
	Invoice
	ClientName string `json:"clientName"`
}

// ClientContact is the subset of a client needed to address documents and mail.
type ClientContact struct {
	ID      snowflake.ID `json:"id"`
	Name    string       `json:"name"`
	Email   *string      `json:"email"`
	Company *string      `json:"company"`
	Phone   *string      `json:"phone"`
	Address *string      `json:"address"`
	TaxID   *string      `gorm:"column:tax_id" json:"taxId"`
}

// Issuer is the invoice owner as printed on documents.
type Issuer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
