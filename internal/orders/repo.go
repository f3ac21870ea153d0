package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Omit("Items", "Modifications", "Addresses").Create(order).Error
}

// FindByID loads the order with items, options, modifications and addresses.
// It returns gorm.ErrRecordNotFound when the order does not exist.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(q *gorm.DB) *gorm.DB { return q.Order("created_at ASC, id ASC") }).
		Preload("Items.Options", func(q *gorm.DB) *gorm.DB { return q.Order("object_id ASC") }).
		Preload("Modifications", func(q *gorm.DB) *gorm.DB { return q.Order("modifier_type ASC") }).
		Preload("Addresses").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// LockByID takes the row lock on the order, then loads it with its children.
func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var locked models.Order
	if err := db.ForUpdate(r.db.WithContext(ctx)).Select("id").Where("id = ?", id).First(&locked).Error; err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

// SaveTotals writes subtotal, total and last_active in one statement.
func (r *repository) SaveTotals(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]any{
			"subtotal_amount": order.SubtotalAmount,
			"total_amount":    order.TotalAmount,
			"last_active":     order.LastActive,
		}).Error
}

func (r *repository) SaveState(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]any{
			"customer_id":       order.CustomerID,
			"status":            order.Status,
			"payment_status":    order.PaymentStatus,
			"ordered_on":        order.OrderedOn,
			"notes":             order.Notes,
			"receipt_sent":      order.ReceiptSent,
			"notification_sent": order.NotificationSent,
			"last_active":       order.LastActive,
		}).Error
}

func (r *repository) CreateItem(ctx context.Context, item *models.Item) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	for i := range item.Options {
		if item.Options[i].ID == uuid.Nil {
			item.Options[i].ID = uuid.New()
		}
		item.Options[i].ItemID = item.ID
	}
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ?", itemID).
		Update("quantity", quantity).Error
}

// DeleteItem removes the item's options before the item itself.
func (r *repository) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	q := r.db.WithContext(ctx)
	if err := q.Where("item_id = ?", itemID).Delete(&models.ItemOption{}).Error; err != nil {
		return err
	}
	return q.Where("id = ?", itemID).Delete(&models.Item{}).Error
}

// ReplaceModification drops any stored modification of the same type first,
// so an order keeps at most one per modifier.
func (r *repository) ReplaceModification(ctx context.Context, mod *models.Modification) error {
	if err := r.DeleteModification(ctx, mod.OrderID, mod.ModifierType); err != nil {
		return err
	}
	if mod.ID == uuid.Nil {
		mod.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(mod).Error
}

func (r *repository) DeleteModification(ctx context.Context, orderID uuid.UUID, modifierType string) error {
	return r.db.WithContext(ctx).
		Where("order_id = ? AND modifier_type = ?", orderID, modifierType).
		Delete(&models.Modification{}).Error
}

func (r *repository) UpdateModification(ctx context.Context, mod *models.Modification) error {
	return r.db.WithContext(ctx).
		Model(&models.Modification{}).
		Where("id = ?", mod.ID).
		Updates(map[string]any{
			"amount":      mod.Amount,
			"currency":    mod.Currency,
			"description": mod.Description,
		}).Error
}

func (r *repository) UpsertAddress(ctx context.Context, address *models.Address) error {
	var existing models.Address
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND kind = ?", address.OrderID, address.Kind).
		First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if address.ID == uuid.Nil {
			address.ID = uuid.New()
		}
		return r.db.WithContext(ctx).Create(address).Error
	case err != nil:
		return err
	}
	address.ID = existing.ID
	address.CreatedAt = existing.CreatedAt
	return r.db.WithContext(ctx).Save(address).Error
}

// ListAbandonedIDs returns carts idle since before cutoff that never had a payment.
func (r *repository) ListAbandonedIDs(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("status = ?", enums.OrderStatusCart).
		Where("last_active < ?", cutoff).
		Where("NOT EXISTS (SELECT 1 FROM payments p WHERE p.order_id = orders.id)").
		Order("last_active ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *repository) HasPayments(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("order_id = ?", orderID).
		Count(&count).Error
	return count > 0, err
}

// DeleteCascade removes the order and everything it owns. Item options go
// first, then items, modifications, addresses and finally the order row.
func (r *repository) DeleteCascade(ctx context.Context, orderID uuid.UUID) error {
	q := r.db.WithContext(ctx)
	itemIDs := q.Model(&models.Item{}).Select("id").Where("order_id = ?", orderID)
	if err := q.Where("item_id IN (?)", itemIDs).Delete(&models.ItemOption{}).Error; err != nil {
		return err
	}
	if err := q.Where("order_id = ?", orderID).Delete(&models.Item{}).Error; err != nil {
		return err
	}
	if err := q.Where("order_id = ?", orderID).Delete(&models.Modification{}).Error; err != nil {
		return err
	}
	if err := q.Where("order_id = ?", orderID).Delete(&models.Address{}).Error; err != nil {
		return err
	}
	res := q.Where("id = ?", orderID).Delete(&models.Order{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// List returns placed orders newest first, starting after the cursor row.
// Carts are excluded. Only addresses are preloaded.
func (r *repository) List(ctx context.Context, filter ListFilter, after *pagination.Cursor) ([]models.Order, error) {
	q := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Preload("Addresses").
		Where("status <> ?", enums.OrderStatusCart)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.PaymentStatus != "" {
		q = q.Where("payment_status = ?", filter.PaymentStatus)
	}
	if filter.CustomerID != nil {
		q = q.Where("customer_id = ?", *filter.CustomerID)
	}
	if after != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", after.CreatedAt, after.CreatedAt, after.ID)
	}

	var orders []models.Order
	err := q.Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(filter.Limit)).
		Find(&orders).Error
	return orders, err
}
