package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository scopes every invoice read and write by the owning user.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	Update(ctx context.Context, db *gorm.DB, invoice *Invoice) (bool, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, userID, id snowflake.ID, status InvoiceStatus, at time.Time) (bool, error)
	Delete(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*Invoice, error)
	List(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]InvoiceSummary, error)

	InsertItems(ctx context.Context, db *gorm.DB, items []InvoiceItem) error
	DeleteItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) error
	ListItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]InvoiceItem, error)

	FindClient(ctx context.Context, db *gorm.DB, userID, clientID snowflake.ID) (*ClientContact, error)
	TemplateExists(ctx context.Context, db *gorm.DB, userID, templateID snowflake.ID) (bool, error)
	FindIssuer(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*Issuer, error)
}
