package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicer/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InvoiceOwned(ctx context.Context, db *gorm.DB, userID, invoiceID snowflake.ID) (bool, error) {
	var row struct{ Count int64 }
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) AS count FROM invoices WHERE id = ? AND user_id = ?`,
		invoiceID,
		userID,
	).Scan(&row).Error
	if err != nil {
		return false, err
	}
	return row.Count > 0, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payments (id, invoice_id, amount, status, method, reference, paid_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.InvoiceID,
		payment.Amount,
		payment.Status,
		payment.Method,
		payment.Reference,
		payment.PaidAt,
		payment.CreatedAt,
	).Error
}

func (r *repo) ListByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.Payment, error) {
	var payments []domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT id, invoice_id, amount, status, method, reference, paid_at, created_at
		 FROM payments
		 WHERE invoice_id = ?
		 ORDER BY paid_at DESC, id DESC`,
		invoiceID,
	).Scan(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}
