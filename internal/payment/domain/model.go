package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusFailed    PaymentStatus = "failed"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusPending, PaymentStatusFailed:
		return true
	default:
		return false
	}
}

// Payment is money received against an invoice. Only completed payments count toward the balance.
type Payment struct {
	ID        snowflake.ID    `json:"id" gorm:"primaryKey"`
	InvoiceID snowflake.ID    `json:"invoiceId" gorm:"not null;index"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Status    PaymentStatus   `json:"status" gorm:"type:text;not null"`
	Method    *string         `json:"method"`
	Reference *string         `json:"reference"`
	PaidAt    time.Time       `json:"paidAt" gorm:"not null"`
	CreatedAt time.Time       `json:"createdAt" gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }
