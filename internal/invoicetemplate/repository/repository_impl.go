package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	templatedomain "github.com/smallbiznis/invoicer/internal/invoicetemplate/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() templatedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tmpl *templatedomain.InvoiceTemplate) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invoice_templates (id, user_id, name, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tmpl.ID,
		tmpl.UserID,
		tmpl.Name,
		tmpl.Data,
		tmpl.CreatedAt,
		tmpl.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, tmpl *templatedomain.InvoiceTemplate) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE invoice_templates
		 SET name = ?, data = ?, updated_at = ?
		 WHERE user_id = ? AND id = ?`,
		tmpl.Name,
		tmpl.Data,
		tmpl.UpdatedAt,
		tmpl.UserID,
		tmpl.ID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM invoice_templates WHERE user_id = ? AND id = ?`, userID, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*templatedomain.InvoiceTemplate, error) {
	var tmpl templatedomain.InvoiceTemplate
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, name, data, created_at, updated_at
		 FROM invoice_templates
		 WHERE user_id = ? AND id = ?`,
		userID,
		id,
	).Scan(&tmpl).Error
	if err != nil {
		return nil, err
	}
	if tmpl.ID == 0 {
		return nil, nil
	}
	return &tmpl, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]*templatedomain.InvoiceTemplate, error) {
	var items []*templatedomain.InvoiceTemplate
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, name, data, created_at, updated_at
		 FROM invoice_templates
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC`,
		userID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
