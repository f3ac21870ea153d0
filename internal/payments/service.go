package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Notifier sends the paid-order messages. Both calls run inside the
// settlement transaction.
type Notifier interface {
	SendReceipt(ctx context.Context, tx *gorm.DB, order *models.Order) error
	NotifyMerchant(ctx context.Context, tx *gorm.DB, order *models.Order) error
}

// Outcome is one settlement attempt reported by a gateway or an admin.
type Outcome struct {
	OrderID          uuid.UUID
	Amount           decimal.Decimal
	Currency         enums.Currency
	Status           enums.PaymentOutcome
	Method           enums.PaymentMethod
	GatewayReference string
	PayerReference   string
	Message          string
}

// Result is the order and payment as stored after an outcome was recorded.
type Result struct {
	Order      *models.Order
	Payment    *models.Payment
	Settlement Settlement
}

type Service struct {
	repo    Repository
	orders  orders.Repository
	tx      txRunner
	outbox  outboxPublisher
	notify  Notifier
	metrics *metrics.OrderMetrics
	logg    *logger.Logger
}

func NewService(repo Repository, ordersRepo orders.Repository, tx txRunner, outbox outboxPublisher, notify Notifier, m *metrics.OrderMetrics, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if notify == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		repo:    repo,
		orders:  ordersRepo,
		tx:      tx,
		outbox:  outbox,
		notify:  notify,
		metrics: m,
		logg:    logg,
	}, nil
}

// RecordPaymentOutcome stores the outcome and moves the order's statuses in
// one transaction under the order lock. Reporting the same gateway
// reference again updates that payment instead of adding one, so replays
// settle to the same state.
func (s *Service) RecordPaymentOutcome(ctx context.Context, outcome Outcome) (*Result, error) {
	if !outcome.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status")
	}
	if !outcome.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if outcome.Amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
	}
	outcome.GatewayReference = strings.TrimSpace(outcome.GatewayReference)

	var result Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		order, err := ordersRepo.LockByID(ctx, outcome.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}
		if order.Status == enums.OrderStatusCart {
			return pkgerrors.New(pkgerrors.CodeSettlement, "order has not been submitted")
		}
		if outcome.Currency != order.Currency {
			return pkgerrors.New(pkgerrors.CodeSettlement, "payment currency does not match order").
				WithDetails(map[string]any{"order_currency": order.Currency, "payment_currency": outcome.Currency})
		}

		payment, err := s.upsertPayment(ctx, tx, order, outcome)
		if err != nil {
			return err
		}

		stored, err := s.repo.WithTx(tx).ListByOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
		}
		settlement, err := Settle(order.Total(), stored)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeConsistency, err, "settle order")
		}

		prevStatus, prevPayment := order.Status, order.PaymentStatus
		order.Status, order.PaymentStatus = nextState(order, settlement)
		if err := s.onAfterPayment(ctx, tx, order); err != nil {
			return err
		}
		if err := ordersRepo.SaveState(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentRecorded,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Data: payloads.PaymentRecordedEvent{
				PaymentID:        payment.ID,
				OrderID:          order.ID,
				Amount:           payment.Amount.StringFixed(order.Currency.Exponent()),
				Currency:         payment.Currency,
				Status:           payment.Status,
				Method:           payment.Method,
				GatewayReference: outcome.GatewayReference,
			},
		}); err != nil {
			return err
		}
		if prevStatus != order.Status || prevPayment != order.PaymentStatus {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderStatusChanged,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Data: payloads.OrderStatusChangedEvent{
					OrderID:           order.ID,
					PreviousStatus:    prevStatus,
					Status:            order.Status,
					PaymentStatus:     order.PaymentStatus,
					PreviousPayStatus: prevPayment,
				},
			}); err != nil {
				return err
			}
		}

		result = Result{Order: order, Payment: payment, Settlement: settlement}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveSettlement(string(outcome.Method), string(outcome.Status))
	logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, outcome.OrderID.String()), map[string]any{
		"payment_id":     result.Payment.ID.String(),
		"payment_status": outcome.Status,
		"order_status":   result.Order.Status,
	})
	s.logg.Info(logCtx, "payment outcome recorded")
	return &result, nil
}

func (s *Service) upsertPayment(ctx context.Context, tx *gorm.DB, order *models.Order, outcome Outcome) (*models.Payment, error) {
	repo := s.repo.WithTx(tx)
	if outcome.GatewayReference != "" {
		existing, err := repo.FindByGatewayReference(ctx, outcome.GatewayReference)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find payment")
		}
		if existing != nil {
			if existing.OrderID != order.ID {
				return nil, pkgerrors.New(pkgerrors.CodeConflict, "gateway reference belongs to another order")
			}
			existing.Amount = outcome.Amount
			existing.Currency = outcome.Currency
			existing.Status = outcome.Status
			existing.PayerReference = outcome.PayerReference
			existing.Message = outcome.Message
			if err := repo.Update(ctx, existing); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
			}
			return existing, nil
		}
	}

	payment := &models.Payment{
		ID:             uuid.New(),
		OrderID:        order.ID,
		Amount:         outcome.Amount,
		Currency:       outcome.Currency,
		Status:         outcome.Status,
		Method:         outcome.Method,
		PayerReference: outcome.PayerReference,
		Message:        outcome.Message,
	}
	if outcome.GatewayReference != "" {
		ref := outcome.GatewayReference
		payment.GatewayReference = &ref
	}
	if err := repo.Create(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
	}
	return payment, nil
}

// onAfterPayment sends the receipt and the merchant notice the first time
// the order is seen paid. The flags are saved with the order state.
// A cancelled order gets no receipt; the merchant is still told so the late
// payment can be refunded.
func (s *Service) onAfterPayment(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if !order.IsPaid() {
		return nil
	}
	if order.Status == enums.OrderStatusCancelled && !order.ReceiptSent {
		s.logg.Warn(s.logg.WithOrderID(ctx, order.ID.String()), "payment received for cancelled order; receipt withheld")
	} else if !order.ReceiptSent {
		if err := s.notify.SendReceipt(ctx, tx, order); err != nil {
			return err
		}
		order.ReceiptSent = true
	}
	if !order.NotificationSent {
		if err := s.notify.NotifyMerchant(ctx, tx, order); err != nil {
			return err
		}
		order.NotificationSent = true
	}
	return nil
}

// Summary reports the settlement of an order from its stored payments.
func (s *Service) Summary(ctx context.Context, orderID uuid.UUID) (Settlement, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Settlement{}, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return Settlement{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	stored, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return Settlement{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	settlement, err := Settle(order.Total(), stored)
	if err != nil {
		return Settlement{}, pkgerrors.Wrap(pkgerrors.CodeConsistency, err, "settle order")
	}
	return settlement, nil
}
