package squarewebhook

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/square"
)

const (
	EventPaymentCreated = "payment.created"
	EventPaymentUpdated = "payment.updated"
)

type outcomeRecorder interface {
	RecordPaymentOutcome(ctx context.Context, outcome payments.Outcome) (*payments.Result, error)
}

// Event is the subset of a Square webhook notification this service reads.
type Event struct {
	MerchantID string    `json:"merchant_id"`
	Type       string    `json:"type"`
	EventID    string    `json:"event_id"`
	CreatedAt  string    `json:"created_at"`
	Data       EventData `json:"data"`
}

type EventData struct {
	Type   string      `json:"type"`
	ID     string      `json:"id"`
	Object EventObject `json:"object"`
}

type EventObject struct {
	Payment *Payment `json:"payment"`
}

type Payment struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	ReferenceID       string `json:"reference_id"`
	BuyerEmailAddress string `json:"buyer_email_address"`
	AmountMoney       *Money `json:"amount_money"`
}

type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Service turns Square payment notifications into recorded payment outcomes.
type Service struct {
	payments outcomeRecorder
	logg     *logger.Logger
}

func NewService(recorder outcomeRecorder, logg *logger.Logger) (*Service, error) {
	if recorder == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment recorder required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{payments: recorder, logg: logg}, nil
}

// HandleEvent records the payment carried by a payment.* event. Other event
// types, payments that do not reference one of our orders, and payments for
// orders that no longer exist are acknowledged without effect.
func (s *Service) HandleEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "square event required")
	}
	switch strings.ToLower(event.Type) {
	case EventPaymentCreated, EventPaymentUpdated:
	default:
		return nil
	}

	payment := event.Data.Object.Payment
	if payment == nil || payment.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment payload missing")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"square_payment_id": payment.ID, "square_event_id": event.EventID})

	orderID, err := uuid.Parse(strings.TrimSpace(payment.ReferenceID))
	if err != nil {
		s.logg.Warn(ctx, "square payment without order reference ignored")
		return nil
	}
	if payment.AmountMoney == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment amount missing")
	}
	currency := enums.Currency(strings.ToUpper(payment.AmountMoney.Currency))
	money := square.FromMinorUnits(payment.AmountMoney.Amount, currency)

	_, err = s.payments.RecordPaymentOutcome(ctx, payments.Outcome{
		OrderID:          orderID,
		Amount:           money.Amount,
		Currency:         currency,
		Status:           payments.OutcomeForSquareStatus(payment.Status),
		Method:           enums.PaymentMethodSquare,
		GatewayReference: payment.ID,
		PayerReference:   payment.BuyerEmailAddress,
		Message:          payment.Status,
	})
	if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		s.logg.Warn(s.logg.WithOrderID(ctx, orderID.String()), "square payment for unknown order ignored")
		return nil
	}
	return err
}
