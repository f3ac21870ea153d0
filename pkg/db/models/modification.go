package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Modification persists one modifier's adjustment to an order.
// There is at most one row per (order_id, modifier_type).
type Modification struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	ModifierType    string          `gorm:"column:modifier_type;type:text;not null"`
	OptionRef       string          `gorm:"column:option_ref;type:text;not null"`
	Amount          decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency        enums.Currency  `gorm:"column:currency;type:text;not null"`
	Description     string          `gorm:"column:description;type:text;not null;default:''"`
	AffectsSubtotal bool            `gorm:"column:affects_subtotal;not null;default:false"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Modification) TableName() string { return "order_modifications" }

func (m *Modification) Money() types.Money {
	return types.NewMoney(m.Amount, m.Currency)
}
