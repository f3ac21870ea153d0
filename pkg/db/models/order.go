package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Order is a shopper's cart while in cart status and a placed order afterwards.
// Subtotal and total share the order currency.
type Order struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID       *uuid.UUID          `gorm:"column:customer_id;type:uuid"`
	Status           enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'cart'"`
	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'unpaid'"`
	Currency         enums.Currency      `gorm:"column:currency;type:text;not null"`
	SubtotalAmount   decimal.Decimal     `gorm:"column:subtotal_amount;type:numeric(12,2);not null"`
	TotalAmount      decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	OrderedOn        *time.Time          `gorm:"column:ordered_on"`
	LastActive       time.Time           `gorm:"column:last_active;not null"`
	ReceiptSent      bool                `gorm:"column:receipt_sent;not null;default:false"`
	NotificationSent bool                `gorm:"column:notification_sent;not null;default:false"`
	Notes            string              `gorm:"column:notes;type:text;not null;default:''"`
	Items            []Item              `gorm:"foreignKey:OrderID;constraint:OnDelete:RESTRICT"`
	Modifications    []Modification      `gorm:"foreignKey:OrderID;constraint:OnDelete:RESTRICT"`
	Addresses        []Address           `gorm:"foreignKey:OrderID;constraint:OnDelete:RESTRICT"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) Subtotal() types.Money {
	return types.NewMoney(o.SubtotalAmount, o.Currency)
}

func (o *Order) Total() types.Money {
	return types.NewMoney(o.TotalAmount, o.Currency)
}

func (o *Order) IsPaid() bool {
	return o.PaymentStatus == enums.PaymentStatusPaid
}

// Address returns the owned address of the given kind, or nil.
func (o *Order) Address(kind enums.AddressKind) *Address {
	for i := range o.Addresses {
		if o.Addresses[i].Kind == kind {
			return &o.Addresses[i]
		}
	}
	return nil
}

// Modification returns the stored modification for a modifier type, or nil.
func (o *Order) Modification(modifierType string) *Modification {
	for i := range o.Modifications {
		if o.Modifications[i].ModifierType == modifierType {
			return &o.Modifications[i]
		}
	}
	return nil
}
