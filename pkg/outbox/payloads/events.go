package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// LineRef identifies an order line for stock reservation consumers.
type LineRef struct {
	ItemID        uuid.UUID   `json:"item_id"`
	ProductID     uuid.UUID   `json:"product_id"`
	ProductVer    int         `json:"product_version"`
	VariationIDs  []uuid.UUID `json:"variation_ids,omitempty"`
	Quantity      int         `json:"quantity"`
	QuantityDelta int         `json:"quantity_delta"`
}

// OrderItemAddedEvent asks inventory to reserve QuantityDelta more units.
type OrderItemAddedEvent struct {
	OrderID uuid.UUID `json:"order_id"`
	Line    LineRef   `json:"line"`
}

// OrderItemRemovedEvent asks inventory to release QuantityDelta units.
type OrderItemRemovedEvent struct {
	OrderID uuid.UUID `json:"order_id"`
	Line    LineRef   `json:"line"`
	Deleted bool      `json:"deleted"`
}

// OrderDeletedEvent is emitted when an abandoned cart is swept.
type OrderDeletedEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	Reason        string    `json:"reason"`
	LastActive    time.Time `json:"last_active"`
	ReleasedLines []LineRef `json:"released_lines"`
}

// OrderSubmittedEvent marks the cart to pending transition at checkout.
type OrderSubmittedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	CustomerID    uuid.UUID           `json:"customer_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Total         string              `json:"total"`
	Currency      enums.Currency      `json:"currency"`
	OrderedOn     time.Time           `json:"ordered_on"`
}

// OrderStatusChangedEvent reports any status or payment status movement.
type OrderStatusChangedEvent struct {
	OrderID           uuid.UUID           `json:"order_id"`
	PreviousStatus    enums.OrderStatus   `json:"previous_status"`
	Status            enums.OrderStatus   `json:"status"`
	PaymentStatus     enums.PaymentStatus `json:"payment_status"`
	PreviousPayStatus enums.PaymentStatus `json:"previous_payment_status"`
}

// PaymentRecordedEvent is emitted for every settlement attempt recorded.
type PaymentRecordedEvent struct {
	PaymentID        uuid.UUID            `json:"payment_id"`
	OrderID          uuid.UUID            `json:"order_id"`
	Amount           string               `json:"amount"`
	Currency         enums.Currency       `json:"currency"`
	Status           enums.PaymentOutcome `json:"status"`
	Method           enums.PaymentMethod  `json:"method"`
	GatewayReference string               `json:"gateway_reference,omitempty"`
}

// CustomerRegisteredEvent is emitted when checkout or signup creates a customer.
type CustomerRegisteredEvent struct {
	CustomerID uuid.UUID `json:"customer_id"`
	Email      string    `json:"email"`
	Guest      bool      `json:"guest"`
}

// NotificationRequestedEvent asks the delivery service to send a templated message.
type NotificationRequestedEvent struct {
	OrderID   uuid.UUID                  `json:"order_id"`
	Template  enums.NotificationTemplate `json:"template"`
	Recipient string                     `json:"recipient"`
	From      string                     `json:"from,omitempty"`
	Subject   string                     `json:"subject"`
}
