package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a storefront account holder.
type User struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Email           string     `gorm:"column:email;uniqueIndex;not null"`
	PasswordHash    string     `gorm:"column:password_hash;not null"`
	FirstName       string     `gorm:"column:first_name"`
	LastName        string     `gorm:"column:last_name"`
	LastLoginAt     *time.Time `gorm:"column:last_login_at"`
	EmailVerifiedAt *time.Time `gorm:"column:email_verified_at"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
