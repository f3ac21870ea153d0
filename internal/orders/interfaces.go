package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and the rows they own.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	SaveTotals(ctx context.Context, order *models.Order) error
	SaveState(ctx context.Context, order *models.Order) error
	CreateItem(ctx context.Context, item *models.Item) error
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	ReplaceModification(ctx context.Context, mod *models.Modification) error
	DeleteModification(ctx context.Context, orderID uuid.UUID, modifierType string) error
	UpdateModification(ctx context.Context, mod *models.Modification) error
	UpsertAddress(ctx context.Context, address *models.Address) error
	ListAbandonedIDs(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
	HasPayments(ctx context.Context, orderID uuid.UUID) (bool, error)
	DeleteCascade(ctx context.Context, orderID uuid.UUID) error
	List(ctx context.Context, filter ListFilter, after *pagination.Cursor) ([]models.Order, error)
}

// Catalog resolves the products and variations order lines point at.
// Finders return nil when the row does not exist.
type Catalog interface {
	FindProduct(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Product, error)
	FindVariation(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.ProductVariation, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service is the cart and order aggregate. Every mutating operation runs in
// one transaction holding the order row lock.
type Service interface {
	CreateCart(ctx context.Context, customerID *uuid.UUID) (*models.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	AddItem(ctx context.Context, orderID uuid.UUID, input AddItemInput) (*models.Order, error)
	RemoveItem(ctx context.Context, orderID uuid.UUID, input RemoveItemInput) (*models.Order, error)
	SetQuantity(ctx context.Context, orderID, itemID uuid.UUID, quantity int) (*models.Order, error)
	UpdateTotal(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ApplyModifiers(ctx context.Context, orderID uuid.UUID, selections []ModifierSelection) (*models.Order, error)
	SetAddresses(ctx context.Context, orderID uuid.UUID, input AddressesInput) (*models.Order, error)
	ValidateForCheckout(ctx context.Context, orderID uuid.UUID) (CheckoutValidation, error)
	MarkDispatched(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	DeleteAbandoned(ctx context.Context, now time.Time, timeout time.Duration) (AbandonReport, error)
	ListOrders(ctx context.Context, filter ListFilter) (OrderPage, error)

	// Transaction-scoped steps used when checkout composes several
	// operations under a single order lock.
	LockCart(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Order, error)
	SetAddressesTx(ctx context.Context, tx *gorm.DB, order *models.Order, input AddressesInput) error
	ApplyModifiersTx(ctx context.Context, tx *gorm.DB, order *models.Order, selections []ModifierSelection) error
	UpdateTotalTx(ctx context.Context, tx *gorm.DB, order *models.Order) error
	ValidateForCheckoutTx(ctx context.Context, tx *gorm.DB, order *models.Order) (CheckoutValidation, error)
	SubmitTx(ctx context.Context, tx *gorm.DB, order *models.Order, customerID uuid.UUID, notes string, method enums.PaymentMethod) error
}
