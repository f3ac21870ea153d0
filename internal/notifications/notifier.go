package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

type customerLookup interface {
	FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Customer, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Notifier requests order emails by writing notification_requested events
// in the caller's transaction. Delivery happens in the notification worker.
type Notifier struct {
	customers customerLookup
	outbox    outboxPublisher
	shop      config.ShopConfig
	logg      *logger.Logger
}

func NewNotifier(customers customerLookup, outbox outboxPublisher, shop config.ShopConfig, logg *logger.Logger) (*Notifier, error) {
	if customers == nil {
		return nil, fmt.Errorf("customer lookup required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Notifier{customers: customers, outbox: outbox, shop: shop, logg: logg}, nil
}

// SendReceipt asks for the customer receipt.
func (n *Notifier) SendReceipt(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if order.CustomerID == nil {
		n.logg.Warn(n.logg.WithOrderID(ctx, order.ID.String()), "order has no customer, receipt skipped")
		return nil
	}
	customer, err := n.customers.FindByID(ctx, tx, *order.CustomerID)
	if err != nil {
		return err
	}
	return n.request(ctx, tx, payloads.NotificationRequestedEvent{
		OrderID:   order.ID,
		Template:  enums.NotificationTemplateOrderReceipt,
		Recipient: customer.Email,
		From:      n.shop.SenderAddress(),
		Subject:   ReceiptSubject(n.shop.ReceiptSubject, order.ID),
	})
}

// NotifyMerchant tells the shop a paid order is ready. Without a merchant
// or admin address there is nobody to tell and the call is a no-op.
func (n *Notifier) NotifyMerchant(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	to := n.shop.MerchantAddress()
	if to == "" {
		n.logg.Warn(n.logg.WithOrderID(ctx, order.ID.String()), "no merchant address configured")
		return nil
	}
	return n.request(ctx, tx, payloads.NotificationRequestedEvent{
		OrderID:   order.ID,
		Template:  enums.NotificationTemplateOrderNotification,
		Recipient: to,
		From:      n.shop.SenderAddress(),
		Subject:   fmt.Sprintf("New order #%s", order.ID),
	})
}

func (n *Notifier) request(ctx context.Context, tx *gorm.DB, event payloads.NotificationRequestedEvent) error {
	return n.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventNotificationRequested,
		AggregateType: enums.AggregateNotification,
		AggregateID:   event.OrderID,
		Data:          event,
	})
}

// ReceiptSubject formats "<subject> - Order #<id>".
func ReceiptSubject(subject string, orderID uuid.UUID) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return fmt.Sprintf("Order #%s", orderID)
	}
	return fmt.Sprintf("%s - Order #%s", subject, orderID)
}
