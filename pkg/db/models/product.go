package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Product is a purchasable catalog entry. Version increments whenever the
// price changes so existing order lines keep the snapshot they captured.
type Product struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Title             string             `gorm:"column:title;type:text;not null"`
	Version           int                `gorm:"column:version;not null;default:1"`
	Price             decimal.Decimal    `gorm:"column:price;type:numeric(12,2);not null"`
	Currency          enums.Currency     `gorm:"column:currency;type:text;not null"`
	RequiresVariation bool               `gorm:"column:requires_variation;not null;default:false"`
	Published         bool               `gorm:"column:published;not null"`
	Virtual           bool               `gorm:"column:virtual;not null;default:false"`
	Variations        []ProductVariation `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) UnitPrice() types.Money {
	return types.NewMoney(p.Price, p.Currency)
}

// ProductVariation is a priced choice of a product such as size or colour.
// Price is added on top of the product price.
type ProductVariation struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Version     int             `gorm:"column:version;not null;default:1"`
	Description string          `gorm:"column:description;type:text;not null"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null;default:0"`
	Currency    enums.Currency  `gorm:"column:currency;type:text;not null"`
	Published   bool            `gorm:"column:published;not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *ProductVariation) UnitPrice() types.Money {
	return types.NewMoney(v.Price, v.Currency)
}
