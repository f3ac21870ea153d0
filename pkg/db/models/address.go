package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Address is a billing or shipping address owned by an order.
type Address struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID      uuid.UUID         `gorm:"column:order_id;type:uuid;not null"`
	Kind         enums.AddressKind `gorm:"column:kind;type:text;not null"`
	FirstName    string            `gorm:"column:first_name;type:text;not null;default:''"`
	Surname      string            `gorm:"column:surname;type:text;not null;default:''"`
	Company      string            `gorm:"column:company;type:text;not null;default:''"`
	Address      string            `gorm:"column:address;type:text;not null;default:''"`
	AddressLine2 string            `gorm:"column:address_line2;type:text;not null;default:''"`
	City         string            `gorm:"column:city;type:text;not null;default:''"`
	PostalCode   string            `gorm:"column:postal_code;type:text;not null;default:''"`
	State        string            `gorm:"column:state;type:text;not null;default:''"`
	CountryCode  string            `gorm:"column:country_code;type:text;not null;default:''"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Address) TableName() string { return "order_addresses" }
