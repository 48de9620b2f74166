package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type User struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Email        string       `gorm:"not null" json:"email"`
	PasswordHash string       `gorm:"column:password_hash;not null" json:"-"`
	Name         string       `gorm:"not null" json:"name"`
	AvatarURL    *string      `gorm:"column:avatar_url" json:"avatarUrl"`
	CreatedAt    time.Time    `gorm:"not null" json:"createdAt"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updatedAt"`
}
