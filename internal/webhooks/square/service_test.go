package squarewebhook

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type fakeRecorder struct {
	outcomes []payments.Outcome
	err      error
}

func (f *fakeRecorder) RecordPaymentOutcome(_ context.Context, outcome payments.Outcome) (*payments.Result, error) {
	f.outcomes = append(f.outcomes, outcome)
	if f.err != nil {
		return nil, f.err
	}
	return &payments.Result{}, nil
}

func newTestService(t *testing.T, recorder *fakeRecorder) *Service {
	t.Helper()
	svc, err := NewService(recorder, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)
	return svc
}

func paymentEvent(t *testing.T, kind, reference, status string) *Event {
	t.Helper()
	raw := `{
		"merchant_id": "M1",
		"type": "` + kind + `",
		"event_id": "evt-1",
		"data": {"type": "payment", "id": "pay-1", "object": {"payment": {
			"id": "pay-1",
			"status": "` + status + `",
			"reference_id": "` + reference + `",
			"buyer_email_address": "ada@example.com",
			"amount_money": {"amount": 990, "currency": "USD"}
		}}}
	}`
	var event Event
	require.NoError(t, json.Unmarshal([]byte(raw), &event))
	return &event
}

func TestHandleEventRecordsCompletedPayment(t *testing.T) {
	recorder := &fakeRecorder{}
	svc := newTestService(t, recorder)
	orderID := uuid.New()

	require.NoError(t, svc.HandleEvent(context.Background(), paymentEvent(t, EventPaymentUpdated, orderID.String(), "COMPLETED")))

	require.Len(t, recorder.outcomes, 1)
	got := recorder.outcomes[0]
	assert.Equal(t, orderID, got.OrderID)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("9.90")))
	assert.Equal(t, enums.Currency("USD"), got.Currency)
	assert.Equal(t, enums.PaymentOutcomeSuccess, got.Status)
	assert.Equal(t, enums.PaymentMethodSquare, got.Method)
	assert.Equal(t, "pay-1", got.GatewayReference)
	assert.Equal(t, "ada@example.com", got.PayerReference)
}

func TestHandleEventMapsFailure(t *testing.T) {
	recorder := &fakeRecorder{}
	svc := newTestService(t, recorder)

	require.NoError(t, svc.HandleEvent(context.Background(), paymentEvent(t, EventPaymentCreated, uuid.NewString(), "FAILED")))
	require.Len(t, recorder.outcomes, 1)
	assert.Equal(t, enums.PaymentOutcomeFailure, recorder.outcomes[0].Status)
}

func TestHandleEventIgnoresForeignEvents(t *testing.T) {
	recorder := &fakeRecorder{}
	svc := newTestService(t, recorder)
	ctx := context.Background()

	require.NoError(t, svc.HandleEvent(ctx, paymentEvent(t, "refund.updated", uuid.NewString(), "COMPLETED")))
	require.NoError(t, svc.HandleEvent(ctx, paymentEvent(t, EventPaymentUpdated, "invoice-42", "COMPLETED")))
	assert.Empty(t, recorder.outcomes)
}

func TestHandleEventSwallowsUnknownOrder(t *testing.T) {
	recorder := &fakeRecorder{err: pkgerrors.New(pkgerrors.CodeNotFound, "order not found")}
	svc := newTestService(t, recorder)

	require.NoError(t, svc.HandleEvent(context.Background(), paymentEvent(t, EventPaymentUpdated, uuid.NewString(), "COMPLETED")))
}

func TestHandleEventPropagatesSettlementErrors(t *testing.T) {
	recorder := &fakeRecorder{err: pkgerrors.New(pkgerrors.CodeSettlement, "currency mismatch")}
	svc := newTestService(t, recorder)

	err := svc.HandleEvent(context.Background(), paymentEvent(t, EventPaymentUpdated, uuid.NewString(), "COMPLETED"))
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeSettlement))
}

func TestHandleEventRejectsMissingPayment(t *testing.T) {
	svc := newTestService(t, &fakeRecorder{})
	err := svc.HandleEvent(context.Background(), &Event{Type: EventPaymentUpdated})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event_id":"evt-1"}`)
	url := "https://shop.example.com/api/v1/webhooks/square"
	sig := Sign("key", url, body)

	assert.True(t, VerifySignature("key", url, body, sig))
	assert.False(t, VerifySignature("key", url, []byte(`{}`), sig))
	assert.False(t, VerifySignature("other", url, body, sig))
	assert.False(t, VerifySignature("", url, body, sig))
	assert.False(t, VerifySignature("key", url, body, ""))
}
