package payments

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

type recordingNotifier struct {
	receipts  []uuid.UUID
	merchants []uuid.UUID
}

func (n *recordingNotifier) SendReceipt(_ context.Context, _ *gorm.DB, order *models.Order) error {
	n.receipts = append(n.receipts, order.ID)
	return nil
}

func (n *recordingNotifier) NotifyMerchant(_ context.Context, _ *gorm.DB, order *models.Order) error {
	n.merchants = append(n.merchants, order.ID)
	return nil
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *recordingNotifier) {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	notify := &recordingNotifier{}
	svc, err := NewService(
		NewRepository(conn),
		orders.NewRepository(conn),
		db.Wrap(conn),
		outbox.NewService(outbox.NewRepository(conn), logg),
		notify,
		nil,
		logg,
	)
	require.NoError(t, err)
	return svc, conn, notify
}

func seedOrder(t *testing.T, conn *gorm.DB, status enums.OrderStatus, total string) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:             uuid.New(),
		Status:         status,
		PaymentStatus:  enums.PaymentStatusUnpaid,
		Currency:       enums.CurrencyUSD,
		SubtotalAmount: decimal.RequireFromString(total),
		TotalAmount:    decimal.RequireFromString(total),
		LastActive:     time.Now().UTC(),
	}
	require.NoError(t, conn.Create(order).Error)
	return order
}

func outcome(orderID uuid.UUID, amount, ref string, status enums.PaymentOutcome) Outcome {
	return Outcome{
		OrderID:          orderID,
		Amount:           decimal.RequireFromString(amount),
		Currency:         enums.CurrencyUSD,
		Status:           status,
		Method:           enums.PaymentMethodSquare,
		GatewayReference: ref,
	}
}

func TestRecordPaymentOutcomeSettlesAcrossPayments(t *testing.T) {
	svc, conn, notify := newTestService(t)
	ctx := context.Background()
	order := seedOrder(t, conn, enums.OrderStatusPending, "100.00")

	first, err := svc.RecordPaymentOutcome(ctx, outcome(order.ID, "60.00", "sq-1", enums.PaymentOutcomeSuccess))
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, first.Order.Status)
	assert.Equal(t, enums.PaymentStatusUnpaid, first.Order.PaymentStatus)
	assert.Equal(t, "40.00 USD", first.Settlement.TotalOutstanding.String())
	assert.Empty(t, notify.receipts)

	second, err := svc.RecordPaymentOutcome(ctx, outcome(order.ID, "40.00", "sq-2", enums.PaymentOutcomeSuccess))
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, second.Order.Status)
	assert.Equal(t, enums.PaymentStatusPaid, second.Order.PaymentStatus)
	assert.True(t, second.Settlement.Paid)
	assert.Equal(t, "100.00 USD", second.Settlement.TotalPaid.String())
	assert.Equal(t, []uuid.UUID{order.ID}, notify.receipts)
	assert.Equal(t, []uuid.UUID{order.ID}, notify.merchants)

	var stored models.Order
	require.NoError(t, conn.First(&stored, "id = ?", order.ID).Error)
	assert.True(t, stored.ReceiptSent)
	assert.True(t, stored.NotificationSent)

	var events int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventPaymentRecorded).Count(&events).Error)
	assert.Equal(t, int64(2), events)
}

func TestRecordPaymentOutcomeReplayIsIdempotent(t *testing.T) {
	svc, conn, notify := newTestService(t)
	ctx := context.Background()
	order := seedOrder(t, conn, enums.OrderStatusPending, "25.00")

	for i := 0; i < 3; i++ {
		result, err := svc.RecordPaymentOutcome(ctx, outcome(order.ID, "25.00", "sq-replay", enums.PaymentOutcomeSuccess))
		require.NoError(t, err)
		assert.Equal(t, enums.OrderStatusProcessing, result.Order.Status)
	}

	var payments int64
	require.NoError(t, conn.Model(&models.Payment{}).Where("order_id = ?", order.ID).Count(&payments).Error)
	assert.Equal(t, int64(1), payments)
	assert.Len(t, notify.receipts, 1)
	assert.Len(t, notify.merchants, 1)
}

func TestRecordPaymentOutcomePendingThenSuccess(t *testing.T) {
	svc, conn, _ := newTestService(t)
	ctx := context.Background()
	order := seedOrder(t, conn, enums.OrderStatusPending, "30.00")

	pending, err := svc.RecordPaymentOutcome(ctx, outcome(order.ID, "30.00", "sq-p", enums.PaymentOutcomePending))
	require.NoError(t, err)
	assert.False(t, pending.Settlement.Paid)
	assert.True(t, pending.Settlement.TotalOutstanding.IsZero())

	done, err := svc.RecordPaymentOutcome(ctx, outcome(order.ID, "30.00", "sq-p", enums.PaymentOutcomeSuccess))
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, done.Order.PaymentStatus)
}

func TestRecordPaymentOutcomeRejectsCart(t *testing.T) {
	svc, conn, _ := newTestService(t)
	order := seedOrder(t, conn, enums.OrderStatusCart, "10.00")

	_, err := svc.RecordPaymentOutcome(context.Background(), outcome(order.ID, "10.00", "sq-cart", enums.PaymentOutcomeSuccess))
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeSettlement))

	var payments int64
	require.NoError(t, conn.Model(&models.Payment{}).Count(&payments).Error)
	assert.Zero(t, payments)
}

func TestRecordPaymentOutcomeRejectsBadInput(t *testing.T) {
	svc, conn, _ := newTestService(t)
	ctx := context.Background()
	order := seedOrder(t, conn, enums.OrderStatusPending, "10.00")

	wrongCurrency := outcome(order.ID, "10.00", "sq-eur", enums.PaymentOutcomeSuccess)
	wrongCurrency.Currency = enums.CurrencyEUR
	_, err := svc.RecordPaymentOutcome(ctx, wrongCurrency)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeSettlement))

	_, err = svc.RecordPaymentOutcome(ctx, outcome(order.ID, "10.00", "x", enums.PaymentOutcome("maybe")))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.RecordPaymentOutcome(ctx, outcome(uuid.New(), "10.00", "x", enums.PaymentOutcomeSuccess))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	other := seedOrder(t, conn, enums.OrderStatusPending, "10.00")
	_, err = svc.RecordPaymentOutcome(ctx, outcome(order.ID, "5.00", "shared", enums.PaymentOutcomePending))
	require.NoError(t, err)
	_, err = svc.RecordPaymentOutcome(ctx, outcome(other.ID, "5.00", "shared", enums.PaymentOutcomePending))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))
}

func TestRecordPaymentOutcomeKeepsCancelledStatus(t *testing.T) {
	svc, conn, notify := newTestService(t)
	order := seedOrder(t, conn, enums.OrderStatusCancelled, "10.00")

	result, err := svc.RecordPaymentOutcome(context.Background(), outcome(order.ID, "10.00", "sq-late", enums.PaymentOutcomeSuccess))
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, result.Order.Status)
	assert.Equal(t, enums.PaymentStatusPaid, result.Order.PaymentStatus)

	// the merchant hears about the late payment, the customer gets no receipt
	assert.Empty(t, notify.receipts)
	assert.Equal(t, []uuid.UUID{order.ID}, notify.merchants)

	var stored models.Order
	require.NoError(t, conn.First(&stored, "id = ?", order.ID).Error)
	assert.False(t, stored.ReceiptSent)
	assert.True(t, stored.NotificationSent)

	_, err = svc.RecordPaymentOutcome(context.Background(), outcome(order.ID, "10.00", "sq-late", enums.PaymentOutcomeSuccess))
	require.NoError(t, err)
	assert.Empty(t, notify.receipts)
	assert.Len(t, notify.merchants, 1)
}

func TestSummaryIgnoresFailures(t *testing.T) {
	svc, conn, _ := newTestService(t)
	ctx := context.Background()
	order := seedOrder(t, conn, enums.OrderStatusPending, "50.00")

	_, err := svc.RecordPaymentOutcome(ctx, outcome(order.ID, "50.00", "sq-f", enums.PaymentOutcomeFailure))
	require.NoError(t, err)
	_, err = svc.RecordPaymentOutcome(ctx, outcome(order.ID, "20.00", "sq-s", enums.PaymentOutcomeSuccess))
	require.NoError(t, err)

	summary, err := svc.Summary(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "20.00 USD", summary.TotalPaid.String())
	assert.Equal(t, "30.00 USD", summary.TotalOutstanding.String())
	assert.False(t, summary.Paid)

	_, err = svc.Summary(ctx, uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}
