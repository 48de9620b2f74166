// Package domain holds reminder rules, the reminder log ledger and their contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type ReminderType string

const (
	ReminderTypeBeforeDue ReminderType = "before_due"
	ReminderTypeOverdue   ReminderType = "overdue"
)

type LogStatus string

const (
	LogStatusSent   LogStatus = "sent"
	LogStatusFailed LogStatus = "failed"
)

// Rule configures reminder offsets. A nil InvoiceID or ClientID widens the scope.
type Rule struct {
	ID            snowflake.ID  `gorm:"primaryKey" json:"id"`
	UserID        snowflake.ID  `gorm:"not null;index" json:"-"`
	InvoiceID     *snowflake.ID `json:"invoiceId"`
	ClientID      *snowflake.ID `json:"clientId"`
	Enabled       bool          `gorm:"not null" json:"enabled"`
	DaysBeforeDue int           `gorm:"not null" json:"daysBeforeDue"`
	DaysAfterDue  int           `gorm:"not null" json:"daysAfterDue"`
	CreatedAt     time.Time     `gorm:"not null" json:"createdAt"`
	UpdatedAt     time.Time     `gorm:"not null" json:"updatedAt"`
}

func (Rule) TableName() string { return "reminder_rules" }

// ResolvedRule is the rule that applies to one invoice. ID is nil for the built-in default.
type ResolvedRule struct {
	ID            *snowflake.ID `json:"id"`
	DaysBeforeDue int           `json:"daysBeforeDue"`
	DaysAfterDue  int           `json:"daysAfterDue"`
}

// Log is one ledger row. Only rows with status sent block a repeat on the same day.
type Log struct {
	ID           snowflake.ID  `gorm:"primaryKey" json:"id"`
	RuleID       *snowflake.ID `json:"ruleId"`
	InvoiceID    snowflake.ID  `gorm:"not null;index" json:"invoiceId"`
	ReminderType ReminderType  `gorm:"type:text;not null" json:"reminderType"`
	ScheduledFor time.Time     `gorm:"type:date;not null" json:"scheduledFor"`
	Status       LogStatus     `gorm:"type:text;not null" json:"status"`
	Error        *string       `json:"error"`
	SentAt       *time.Time    `json:"sentAt"`
	CreatedAt    time.Time     `gorm:"not null" json:"createdAt"`
}

func (Log) TableName() string { return "reminder_logs" }

// InvoiceRef identifies the invoice a rule is resolved for.
type InvoiceRef struct {
	ID       snowflake.ID
	UserID   snowflake.ID
	ClientID snowflake.ID
}
