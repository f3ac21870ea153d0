package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// FlatFeeShippingRate is a fixed shipping charge for one destination country.
type FlatFeeShippingRate struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CountryCode string          `gorm:"column:country_code;type:text;not null;uniqueIndex"`
	CountryName string          `gorm:"column:country_name;type:text;not null"`
	Amount      decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency    enums.Currency  `gorm:"column:currency;type:text;not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// TaxRate is a percentage levied on the post-discount subtotal for a country.
// Rate is a fraction, 0.15 for fifteen percent.
type TaxRate struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CountryCode string          `gorm:"column:country_code;type:text;not null;uniqueIndex"`
	Name        string          `gorm:"column:name;type:text;not null"`
	Rate        decimal.Decimal `gorm:"column:rate;type:numeric(6,4);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// DiscountCode is a fixed-amount reduction a shopper can redeem at checkout.
type DiscountCode struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Code      string          `gorm:"column:code;type:text;not null;uniqueIndex"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency  enums.Currency  `gorm:"column:currency;type:text;not null"`
	Active    bool            `gorm:"column:active;not null"`
	ExpiresAt *time.Time      `gorm:"column:expires_at"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// Redeemable reports whether the code can be applied at now.
func (d *DiscountCode) Redeemable(now time.Time) bool {
	if !d.Active {
		return false
	}
	return d.ExpiresAt == nil || now.Before(*d.ExpiresAt)
}
