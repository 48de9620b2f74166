package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Client struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID `gorm:"not null;index" json:"-"`
	Name      string       `gorm:"not null" json:"name"`
	Email     *string      `json:"email"`
	Company   *string      `json:"company"`
	Phone     *string      `json:"phone"`
	Address   *string      `json:"address"`
	TaxID     *string      `gorm:"column:tax_id" json:"taxId"`
	CreatedAt time.Time    `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time    `gorm:"not null" json:"updatedAt"`
}
