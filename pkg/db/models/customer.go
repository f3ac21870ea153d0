package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Customer is a registered shopper. PasswordHash is nil for guest checkouts.
type Customer struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Email        string             `gorm:"column:email;type:text;not null;uniqueIndex"`
	FirstName    string             `gorm:"column:first_name;type:text;not null;default:''"`
	Surname      string             `gorm:"column:surname;type:text;not null;default:''"`
	PasswordHash *string            `gorm:"column:password_hash;type:text"`
	Role         enums.CustomerRole `gorm:"column:role;type:text;not null;default:'customer'"`
	LastLoginAt  *time.Time         `gorm:"column:last_login_at"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
