package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicer/internal/reminder/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const ruleColumns = `id, user_id, invoice_id, client_id, enabled, days_before_due, days_after_due, created_at, updated_at`

type countRow struct {
	Count int64
}

func (r *repo) InsertRule(ctx context.Context, db *gorm.DB, rule *domain.Rule) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO reminder_rules (`+ruleColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID,
		rule.UserID,
		rule.InvoiceID,
		rule.ClientID,
		rule.Enabled,
		rule.DaysBeforeDue,
		rule.DaysAfterDue,
		rule.CreatedAt,
		rule.UpdatedAt,
	).Error
}

func (r *repo) UpdateRule(ctx context.Context, db *gorm.DB, rule *domain.Rule) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE reminder_rules
		 SET invoice_id = ?, client_id = ?, enabled = ?, days_before_due = ?, days_after_due = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		rule.InvoiceID,
		rule.ClientID,
		rule.Enabled,
		rule.DaysBeforeDue,
		rule.DaysAfterDue,
		rule.UpdatedAt,
		rule.ID,
		rule.UserID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) DeleteRule(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM reminder_rules WHERE id = ? AND user_id = ?`, id, userID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindRule(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*domain.Rule, error) {
	var rule domain.Rule
	err := db.WithContext(ctx).Raw(
		`SELECT `+ruleColumns+` FROM reminder_rules WHERE user_id = ? AND id = ?`,
		userID,
		id,
	).Scan(&rule).Error
	if err != nil {
		return nil, err
	}
	if rule.ID == 0 {
		return nil, nil
	}
	return &rule, nil
}

func (r *repo) ListRules(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.Rule, error) {
	var rules []domain.Rule
	err := db.WithContext(ctx).Raw(
		`SELECT `+ruleColumns+` FROM reminder_rules WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	).Scan(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// BestRule orders matches invoice-scoped first, then client-scoped, then user-wide.
// Equally specific rules resolve to the newest one.
func (r *repo) BestRule(ctx context.Context, db *gorm.DB, invoice domain.InvoiceRef) (*domain.Rule, error) {
	var rule domain.Rule
	err := db.WithContext(ctx).Raw(
		`SELECT `+ruleColumns+`
		 FROM reminder_rules
		 WHERE user_id = ? AND enabled = ?
		   AND (invoice_id = ? OR invoice_id IS NULL)
		   AND (client_id = ? OR client_id IS NULL)
		 ORDER BY
		   CASE WHEN invoice_id IS NOT NULL THEN 0 ELSE 1 END,
		   CASE WHEN client_id IS NOT NULL THEN 0 ELSE 1 END,
		   id DESC
		 LIMIT 1`,
		invoice.UserID,
		true,
		invoice.ID,
		invoice.ClientID,
	).Scan(&rule).Error
	if err != nil {
		return nil, err
	}
	if rule.ID == 0 {
		return nil, nil
	}
	return &rule, nil
}

func (r *repo) InvoiceOwned(ctx context.Context, db *gorm.DB, userID, invoiceID snowflake.ID) (bool, error) {
	var row countRow
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) AS count FROM invoices WHERE id = ? AND user_id = ?`,
		invoiceID,
		userID,
	).Scan(&row).Error
	return row.Count > 0, err
}

func (r *repo) ClientOwned(ctx context.Context, db *gorm.DB, userID, clientID snowflake.ID) (bool, error) {
	var row countRow
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) AS count FROM clients WHERE id = ? AND user_id = ?`,
		clientID,
		userID,
	).Scan(&row).Error
	return row.Count > 0, err
}

func (r *repo) CountSent(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, reminderType domain.ReminderType, scheduledFor time.Time) (int64, error) {
	var row countRow
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) AS count FROM reminder_logs
		 WHERE invoice_id = ? AND reminder_type = ? AND scheduled_for = ? AND status = ?`,
		invoiceID,
		reminderType,
		scheduledFor,
		domain.LogStatusSent,
	).Scan(&row).Error
	return row.Count, err
}

func (r *repo) InsertLog(ctx context.Context, db *gorm.DB, entry *domain.Log) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO reminder_logs (id, rule_id, invoice_id, reminder_type, scheduled_for, status, error, sent_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.RuleID,
		entry.InvoiceID,
		entry.ReminderType,
		entry.ScheduledFor,
		entry.Status,
		entry.Error,
		entry.SentAt,
		entry.CreatedAt,
	).Error
}

func (r *repo) ListLogs(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.Log, error) {
	var logs []domain.Log
	err := db.WithContext(ctx).Raw(
		`SELECT id, rule_id, invoice_id, reminder_type, scheduled_for, status, error, sent_at, created_at
		 FROM reminder_logs
		 WHERE invoice_id = ?
		 ORDER BY created_at DESC, id DESC`,
		invoiceID,
	).Scan(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}
