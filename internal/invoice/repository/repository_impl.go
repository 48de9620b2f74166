package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicer/internal/invoice/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const invoiceColumns = `id, user_id, client_id, template_id, number, status, currency, issue_date, due_date,
	subtotal, tax, total, notes, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invoices (id, user_id, client_id, template_id, number, status, currency, issue_date, due_date,
			subtotal, tax, total, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID,
		invoice.UserID,
		invoice.ClientID,
		invoice.TemplateID,
		invoice.Number,
		invoice.Status,
		invoice.Currency,
		invoice.IssueDate,
		invoice.DueDate,
		invoice.Subtotal,
		invoice.Tax,
		invoice.Total,
		invoice.Notes,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET client_id = ?, template_id = ?, number = ?, status = ?, currency = ?, issue_date = ?, due_date = ?,
		     subtotal = ?, tax = ?, total = ?, notes = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		invoice.ClientID,
		invoice.TemplateID,
		invoice.Number,
		invoice.Status,
		invoice.Currency,
		invoice.IssueDate,
		invoice.DueDate,
		invoice.Subtotal,
		invoice.Tax,
		invoice.Total,
		invoice.Notes,
		invoice.UpdatedAt,
		invoice.ID,
		invoice.UserID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, userID, id snowflake.ID, status domain.InvoiceStatus, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE invoices SET status = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		status,
		at,
		id,
		userID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM invoices WHERE id = ? AND user_id = ?`, id, userID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+` FROM invoices WHERE user_id = ? AND id = ?`,
		userID,
		id,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.InvoiceSummary, error) {
	var rows []domain.InvoiceSummary
	err := db.WithContext(ctx).Raw(
		`SELECT i.id, i.user_id, i.client_id, i.template_id, i.number, i.status, i.currency, i.issue_date, i.due_date,
			i.subtotal, i.tax, i.total, i.notes, i.created_at, i.updated_at, c.name AS client_name
		 FROM invoices i
		 JOIN clients c ON c.id = i.client_id
		 WHERE i.user_id = ?
		 ORDER BY i.created_at DESC, i.id DESC`,
		userID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) InsertItems(ctx context.Context, db *gorm.DB, items []domain.InvoiceItem) error {
	for _, item := range items {
		if err := db.WithContext(ctx).Exec(
			`INSERT INTO invoice_items (id, invoice_id, position, description, quantity, unit_price, amount, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID,
			item.InvoiceID,
			item.Position,
			item.Description,
			item.Quantity,
			item.UnitPrice,
			item.Amount,
			item.CreatedAt,
		).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) DeleteItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM invoice_items WHERE invoice_id = ?`, invoiceID).Error
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.InvoiceItem, error) {
	var items []domain.InvoiceItem
	err := db.WithContext(ctx).Raw(
		`SELECT id, invoice_id, position, description, quantity, unit_price, amount, created_at
		 FROM invoice_items
		 WHERE invoice_id = ?
		 ORDER BY position ASC, id ASC`,
		invoiceID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindClient(ctx context.Context, db *gorm.DB, userID, clientID snowflake.ID) (*domain.ClientContact, error) {
	var client domain.ClientContact
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, email, company, phone, address, tax_id FROM clients WHERE user_id = ? AND id = ?`,
		userID,
		clientID,
	).Scan(&client).Error
	if err != nil {
		return nil, err
	}
	if client.ID == 0 {
		return nil, nil
	}
	return &client, nil
}

func (r *repo) TemplateExists(ctx context.Context, db *gorm.DB, userID, templateID snowflake.ID) (bool, error) {
	var row struct{ Count int64 }
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) AS count FROM invoice_templates WHERE user_id = ? AND id = ?`,
		userID,
		templateID,
	).Scan(&row).Error
	if err != nil {
		return false, err
	}
	return row.Count > 0, nil
}

func (r *repo) FindIssuer(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*domain.Issuer, error) {
	var row struct {
		ID    snowflake.ID
		Name  string
		Email string
	}
	err := db.WithContext(ctx).Raw(`SELECT id, name, email FROM users WHERE id = ?`, userID).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &domain.Issuer{Name: row.Name, Email: row.Email}, nil
}
