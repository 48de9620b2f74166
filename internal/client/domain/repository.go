package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, client *Client) error
	Update(ctx context.Context, db *gorm.DB, client *Client) (bool, error)
	Delete(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*Client, error)
	List(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]*Client, error)
}
