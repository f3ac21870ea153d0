package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/customers"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const (
	resultSubmitted        = "submitted"
	resultInvalid          = "invalid"
	resultSettlementFailed = "settlement_failed"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type customerResolver interface {
	ResolveForCheckout(ctx context.Context, tx *gorm.DB, sessionCustomerID *uuid.UUID, input customers.RegisterInput) (*models.Customer, error)
}

type settlementRecorder interface {
	RecordPaymentOutcome(ctx context.Context, outcome payments.Outcome) (*payments.Result, error)
}

// Service places orders: it turns a cart into a pending order and takes
// payment for it.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error)
}

// SubmitInput is everything the checkout form collects. CustomerID is the
// signed-in shopper, nil for guests. Nil Modifiers leaves the cart's
// current selections alone.
type SubmitInput struct {
	OrderID         uuid.UUID
	CustomerID      *uuid.UUID
	Customer        customers.RegisterInput
	Addresses       orders.AddressesInput
	Modifiers       []orders.ModifierSelection
	Notes           string
	PaymentMethod   enums.PaymentMethod
	PaymentSourceID string
}

type SubmitResult struct {
	Order      *models.Order       `json:"order"`
	Payment    *models.Payment     `json:"payment"`
	Settlement payments.Settlement `json:"settlement"`
}

// ServiceParams bundles the checkout dependencies.
type ServiceParams struct {
	DB        txRunner
	Orders    orders.Service
	Customers customerResolver
	Gateways  *payments.GatewayRegistry
	Payments  settlementRecorder
	Metrics   *metrics.OrderMetrics
	Logger    *logger.Logger
}

type service struct {
	tx        txRunner
	orders    orders.Service
	customers customerResolver
	gateways  *payments.GatewayRegistry
	payments  settlementRecorder
	metrics   *metrics.OrderMetrics
	logg      *logger.Logger
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.Customers == nil {
		return nil, fmt.Errorf("customer resolver required")
	}
	if params.Gateways == nil {
		return nil, fmt.Errorf("gateway registry required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:        params.DB,
		orders:    params.Orders,
		customers: params.Customers,
		gateways:  params.Gateways,
		payments:  params.Payments,
		metrics:   params.Metrics,
		logg:      params.Logger,
	}, nil
}

// Submit places the order in one transaction, then captures payment.
// A failed capture leaves the order pending and unpaid so the shopper can
// pay again through the webhook or the merchant can record a payment.
func (s *service) Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	gateway, ok := s.gateways.Lookup(input.PaymentMethod)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method").
			WithDetails(map[string]any{"payment_method": input.PaymentMethod, "available": s.gateways.Methods()})
	}
	ctx = s.logg.WithOrderID(ctx, input.OrderID.String())

	var (
		order    *models.Order
		customer *models.Customer
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.orders.LockCart(ctx, tx, input.OrderID)
		if err != nil {
			return err
		}
		if order.CustomerID != nil && (input.CustomerID == nil || *order.CustomerID != *input.CustomerID) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		customer, err = s.customers.ResolveForCheckout(ctx, tx, input.CustomerID, input.Customer)
		if err != nil {
			return err
		}
		if input.Addresses.Billing != nil || input.Addresses.Shipping != nil {
			if err := s.orders.SetAddressesTx(ctx, tx, order, input.Addresses); err != nil {
				return err
			}
		}
		if input.Modifiers != nil {
			if err := s.orders.ApplyModifiersTx(ctx, tx, order, input.Modifiers); err != nil {
				return err
			}
		} else if err := s.orders.UpdateTotalTx(ctx, tx, order); err != nil {
			return err
		}
		if _, err := s.orders.ValidateForCheckoutTx(ctx, tx, order); err != nil {
			return err
		}
		return s.orders.SubmitTx(ctx, tx, order, customer.ID, input.Notes, input.PaymentMethod)
	})
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeValidation) {
			s.metrics.ObserveCheckout(resultInvalid)
		}
		return nil, err
	}
	s.logg.Info(s.logg.WithCustomerID(ctx, customer.ID.String()), "order submitted")

	capture, err := s.capture(ctx, gateway, order, customer, input.PaymentSourceID)
	if err != nil {
		s.metrics.ObserveCheckout(resultSettlementFailed)
		s.logg.Error(ctx, "payment capture failed", err)
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeSettlement {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeSettlement, err, "payment capture failed")
	}

	recorded, err := s.payments.RecordPaymentOutcome(ctx, payments.Outcome{
		OrderID:          order.ID,
		Amount:           capture.Amount.Amount,
		Currency:         capture.Amount.Currency,
		Status:           capture.Status,
		Method:           gateway.Method(),
		GatewayReference: capture.GatewayReference,
		PayerReference:   capture.PayerReference,
		Message:          capture.Message,
	})
	if err != nil {
		s.metrics.ObserveCheckout(resultSettlementFailed)
		return nil, err
	}
	s.metrics.ObserveCheckout(resultSubmitted)

	reloaded, err := s.orders.GetOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return &SubmitResult{Order: reloaded, Payment: recorded.Payment, Settlement: recorded.Settlement}, nil
}

// capture asks the gateway for the order total. A zero total has nothing
// to capture and is recorded as settled.
func (s *service) capture(ctx context.Context, gateway payments.Gateway, order *models.Order, customer *models.Customer, sourceID string) (payments.CaptureResult, error) {
	total := order.Total()
	if total.IsZero() {
		return payments.CaptureResult{
			Status:           enums.PaymentOutcomeSuccess,
			Amount:           total,
			GatewayReference: "free-" + order.ID.String(),
			PayerReference:   customer.Email,
			Message:          "nothing to capture",
		}, nil
	}
	return gateway.Capture(ctx, payments.CaptureRequest{
		OrderID:        order.ID,
		Amount:         total,
		SourceID:       sourceID,
		PayerEmail:     customer.Email,
		IdempotencyKey: "order-" + order.ID.String(),
	})
}
