package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Item is one order line pinned to a catalog object version.
// Amount is the unit price captured when the line was created.
type Item struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       uuid.UUID        `gorm:"column:order_id;type:uuid;not null"`
	ObjectID      uuid.UUID        `gorm:"column:object_id;type:uuid;not null"`
	ObjectType    enums.ObjectType `gorm:"column:object_type;type:text;not null;default:'product'"`
	ObjectVersion int              `gorm:"column:object_version;not null"`
	Amount        decimal.Decimal  `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency      enums.Currency   `gorm:"column:currency;type:text;not null"`
	Quantity      int              `gorm:"column:quantity;not null"`
	Virtual       bool             `gorm:"column:virtual;not null;default:false"`
	DownloadCount int              `gorm:"column:download_count;not null;default:0"`
	Options       []ItemOption     `gorm:"foreignKey:ItemID;constraint:OnDelete:RESTRICT"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (Item) TableName() string { return "order_items" }

func (i *Item) Price() types.Money {
	return types.NewMoney(i.Amount, i.Currency)
}

// ItemOption is a priced sub-selection of an item, such as a product variation.
type ItemOption struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	ItemID        uuid.UUID        `gorm:"column:item_id;type:uuid;not null"`
	ObjectID      uuid.UUID        `gorm:"column:object_id;type:uuid;not null"`
	ObjectType    enums.ObjectType `gorm:"column:object_type;type:text;not null;default:'variation'"`
	ObjectVersion int              `gorm:"column:object_version;not null"`
	Description   string           `gorm:"column:description;type:text;not null;default:''"`
	Amount        decimal.Decimal  `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency      enums.Currency   `gorm:"column:currency;type:text;not null"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (ItemOption) TableName() string { return "order_item_options" }

func (o *ItemOption) Price() types.Money {
	return types.NewMoney(o.Amount, o.Currency)
}
