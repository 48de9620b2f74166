package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, tmpl *InvoiceTemplate) error
	Update(ctx context.Context, db *gorm.DB, tmpl *InvoiceTemplate) (bool, error)
	Delete(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*InvoiceTemplate, error)
	List(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]*InvoiceTemplate, error)
}
