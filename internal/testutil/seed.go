package testutil

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// SeedUser inserts a user with a placeholder password hash.
func SeedUser(t testing.TB, db *gorm.DB, node *snowflake.Node, email string) snowflake.ID {
	t.Helper()
	id := node.Generate()
	now := time.Now().UTC()
	if err := db.Exec(
		`INSERT INTO users (id, email, password_hash, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, email, "hash", "Owner", now, now,
	).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}

// SeedClient inserts a client owned by userID. An empty email stores NULL.
func SeedClient(t testing.TB, db *gorm.DB, node *snowflake.Node, userID snowflake.ID, name, email string) snowflake.ID {
	t.Helper()
	id := node.Generate()
	now := time.Now().UTC()
	var emailValue *string
	if email != "" {
		emailValue = &email
	}
	if err := db.Exec(
		`INSERT INTO clients (id, user_id, name, email, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, userID, name, emailValue, now, now,
	).Error; err != nil {
		t.Fatalf("seed client: %v", err)
	}
	return id
}

// InvoiceSeed describes a bare invoice row without items.
type InvoiceSeed struct {
	UserID   snowflake.ID
	ClientID snowflake.ID
	Number   string
	Status   string
	Currency string
	Total    string
	IssueAt  time.Time
	DueAt    time.Time
}

// SeedInvoice inserts an invoice whose subtotal equals its total.
func SeedInvoice(t testing.TB, db *gorm.DB, node *snowflake.Node, seed InvoiceSeed) snowflake.ID {
	t.Helper()
	id := node.Generate()
	now := time.Now().UTC()
	if seed.Number == "" {
		seed.Number = "INV-" + id.String()
	}
	if seed.Status == "" {
		seed.Status = "draft"
	}
	if seed.Currency == "" {
		seed.Currency = "USD"
	}
	if seed.Total == "" {
		seed.Total = "0"
	}
	if seed.IssueAt.IsZero() {
		seed.IssueAt = now
	}
	if seed.DueAt.IsZero() {
		seed.DueAt = now.AddDate(0, 0, 30)
	}
	if err := db.Exec(
		`INSERT INTO invoices (id, user_id, client_id, number, status, currency, issue_date, due_date, subtotal, tax, total, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		id, seed.UserID, seed.ClientID, seed.Number, seed.Status, seed.Currency,
		seed.IssueAt, seed.DueAt, seed.Total, seed.Total, now, now,
	).Error; err != nil {
		t.Fatalf("seed invoice: %v", err)
	}
	return id
}

// SeedPayment inserts a payment row with the given amount and status.
func SeedPayment(t testing.TB, db *gorm.DB, node *snowflake.Node, invoiceID snowflake.ID, amount, status string) snowflake.ID {
	t.Helper()
	id := node.Generate()
	now := time.Now().UTC()
	if err := db.Exec(
		`INSERT INTO payments (id, invoice_id, amount, status, paid_at, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, invoiceID, amount, status, now, now,
	).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return id
}

// InvoiceStatus reads the stored status of an invoice.
func InvoiceStatus(t testing.TB, db *gorm.DB, invoiceID snowflake.ID) string {
	t.Helper()
	var row struct{ Status string }
	if err := db.Raw(`SELECT status FROM invoices WHERE id = ?`, invoiceID).Scan(&row).Error; err != nil {
		t.Fatalf("read invoice status: %v", err)
	}
	return row.Status
}
