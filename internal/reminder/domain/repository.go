package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertRule(ctx context.Context, db *gorm.DB, rule *Rule) error
	UpdateRule(ctx context.Context, db *gorm.DB, rule *Rule) (bool, error)
	DeleteRule(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (bool, error)
	FindRule(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*Rule, error)
	ListRules(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]Rule, error)
	BestRule(ctx context.Context, db *gorm.DB, invoice InvoiceRef) (*Rule, error)

	InvoiceOwned(ctx context.Context, db *gorm.DB, userID, invoiceID snowflake.ID) (bool, error)
	ClientOwned(ctx context.Context, db *gorm.DB, userID, clientID snowflake.ID) (bool, error)

	CountSent(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, reminderType ReminderType, scheduledFor time.Time) (int64, error)
	InsertLog(ctx context.Context, db *gorm.DB, entry *Log) error
	ListLogs(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]Log, error)
}
