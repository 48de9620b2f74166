package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicer/internal/client/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const clientColumns = `id, user_id, name, email, company, phone, address, tax_id, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, client *domain.Client) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO clients (id, user_id, name, email, company, phone, address, tax_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		client.ID,
		client.UserID,
		client.Name,
		client.Email,
		client.Company,
		client.Phone,
		client.Address,
		client.TaxID,
		client.CreatedAt,
		client.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, client *domain.Client) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE clients
		 SET name = ?, email = ?, company = ?, phone = ?, address = ?, tax_id = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		client.Name,
		client.Email,
		client.Company,
		client.Phone,
		client.Address,
		client.TaxID,
		client.UpdatedAt,
		client.ID,
		client.UserID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM clients WHERE id = ? AND user_id = ?`, id, userID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*domain.Client, error) {
	var client domain.Client
	err := db.WithContext(ctx).Raw(
		`SELECT `+clientColumns+` FROM clients WHERE user_id = ? AND id = ?`,
		userID,
		id,
	).Scan(&client).Error
	if err != nil {
		return nil, err
	}
	if client.ID == 0 {
		return nil, nil
	}
	return &client, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]*domain.Client, error) {
	var clients []*domain.Client
	err := db.WithContext(ctx).Raw(
		`SELECT `+clientColumns+` FROM clients WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	).Scan(&clients).Error
	if err != nil {
		return nil, err
	}
	return clients, nil
}
