package migration

import (
	"fmt"

	"gorm.io/gorm"
)

// sqliteSchema mirrors the Postgres migration with SQLite column types.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		avatar_url TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS clients (
		id BIGINT PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		email TEXT,
		company TEXT,
		phone TEXT,
		address TEXT,
		tax_id TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS invoice_templates (
		id BIGINT PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		data TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS invoices (
		id BIGINT PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		client_id BIGINT NOT NULL REFERENCES clients(id),
		template_id BIGINT REFERENCES invoice_templates(id) ON DELETE SET NULL,
		number TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'draft',
		currency TEXT NOT NULL DEFAULT 'USD',
		issue_date DATE NOT NULL,
		due_date DATE NOT NULL,
		subtotal NUMERIC NOT NULL DEFAULT 0,
		tax NUMERIC NOT NULL DEFAULT 0,
		total NUMERIC NOT NULL DEFAULT 0,
		notes TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS invoice_items (
		id BIGINT PRIMARY KEY,
		invoice_id BIGINT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		description TEXT NOT NULL,
		quantity NUMERIC NOT NULL,
		unit_price NUMERIC NOT NULL,
		amount NUMERIC NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id BIGINT PRIMARY KEY,
		invoice_id BIGINT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		amount NUMERIC NOT NULL,
		status TEXT NOT NULL DEFAULT 'completed',
		method TEXT,
		reference TEXT,
		paid_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS invoice_balances (
		invoice_id BIGINT PRIMARY KEY REFERENCES invoices(id) ON DELETE CASCADE,
		currency TEXT NOT NULL,
		total NUMERIC NOT NULL,
		paid NUMERIC NOT NULL,
		balance NUMERIC NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS invoice_counters (
		user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		current_number BIGINT NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reminder_rules (
		id BIGINT PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		invoice_id BIGINT REFERENCES invoices(id) ON DELETE CASCADE,
		client_id BIGINT REFERENCES clients(id) ON DELETE CASCADE,
		enabled BOOLEAN NOT NULL DEFAULT 1,
		days_before_due INTEGER NOT NULL DEFAULT 3,
		days_after_due INTEGER NOT NULL DEFAULT 3,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reminder_logs (
		id BIGINT PRIMARY KEY,
		rule_id BIGINT REFERENCES reminder_rules(id) ON DELETE SET NULL,
		invoice_id BIGINT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		reminder_type TEXT NOT NULL,
		scheduled_for DATE NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		sent_at DATETIME,
		created_at DATETIME NOT NULL
	)`,
}

var sqliteIndexes = []string{
	`CREATE INDEX IF NOT EXISTS ix_clients_user ON clients (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS ix_invoice_templates_user ON invoice_templates (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS ix_invoices_user ON invoices (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS ix_invoices_open ON invoices (status, due_date)`,
	`CREATE INDEX IF NOT EXISTS ix_invoice_items_invoice ON invoice_items (invoice_id, position)`,
	`CREATE INDEX IF NOT EXISTS ix_payments_invoice ON payments (invoice_id, status)`,
	`CREATE INDEX IF NOT EXISTS ix_reminder_rules_user ON reminder_rules (user_id, enabled)`,
	`CREATE INDEX IF NOT EXISTS ix_reminder_logs_dedup ON reminder_logs (invoice_id, reminder_type, scheduled_for, status)`,
}

// ApplySQLite creates the invoicer tables on a SQLite connection. It is idempotent, so
// local single-file databases can be reopened without a migration history table.
func ApplySQLite(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for _, group := range [][]string{sqliteSchema, sqliteIndexes} {
			for _, stmt := range group {
				if err := tx.Exec(stmt).Error; err != nil {
					return fmt.Errorf("apply sqlite schema: %w", err)
				}
			}
		}
		return nil
	})
}
