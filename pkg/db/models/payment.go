package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Payment records one settlement attempt against an order.
type Payment struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderID          uuid.UUID            `gorm:"column:order_id;type:uuid;not null"`
	Amount           decimal.Decimal      `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency         enums.Currency       `gorm:"column:currency;type:text;not null"`
	Status           enums.PaymentOutcome `gorm:"column:status;type:text;not null;default:'pending'"`
	Method           enums.PaymentMethod  `gorm:"column:method;type:text;not null"`
	GatewayReference *string              `gorm:"column:gateway_reference;type:text"`
	PayerReference   string               `gorm:"column:payer_reference;type:text;not null;default:''"`
	Message          string               `gorm:"column:message;type:text;not null;default:''"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) Money() types.Money {
	return types.NewMoney(p.Amount, p.Currency)
}
