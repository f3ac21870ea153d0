package orders

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/modifiers"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const cartTimeout = time.Hour

// idleCart builds a cart with one line, an option, a shipping address and a
// discount modification, last touched idle ago.
func (h *harness) idleCart(t *testing.T, idle time.Duration) *models.Order {
	t.Helper()
	ctx := context.Background()
	product := h.product(t, "5.00", "1.00")
	loaded, err := h.catalog.GetProduct(ctx, product.ID)
	require.NoError(t, err)

	order := h.cart(t)
	_, err = h.svc.AddItem(ctx, order.ID, AddItemInput{ProductID: product.ID, Quantity: 2, Options: []uuid.UUID{loaded.Variations[0].ID}})
	require.NoError(t, err)
	_, err = h.svc.SetAddresses(ctx, order.ID, AddressesInput{Shipping: &AddressInput{CountryCode: "NZ"}})
	require.NoError(t, err)
	code := "IDLE" + strings.ToUpper(uuid.NewString()[:8])
	_, err = h.catalog.CreateDiscountCode(ctx, catalog.DiscountCodeInput{Code: code, Amount: decimal.RequireFromString("1.00"), Currency: enums.CurrencyUSD})
	require.NoError(t, err)
	_, err = h.svc.ApplyModifiers(ctx, order.ID, []ModifierSelection{{Type: modifiers.TypeDiscount, OptionRef: code}})
	require.NoError(t, err)
	require.EqualValues(t, 1, h.count(t, &models.Modification{}, "order_id = ?", order.ID))
	require.NoError(t, h.db.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("last_active", testNow.Add(-idle)).Error)
	return order
}

func (h *harness) ownedRows(t *testing.T, orderID uuid.UUID) int64 {
	t.Helper()
	items := h.count(t, &models.Item{}, "order_id = ?", orderID)
	options := h.count(t, &models.ItemOption{}, "item_id IN (SELECT id FROM order_items WHERE order_id = ?)", orderID)
	modifications := h.count(t, &models.Modification{}, "order_id = ?", orderID)
	addresses := h.count(t, &models.Address{}, "order_id = ?", orderID)
	orders := h.count(t, &models.Order{}, "id = ?", orderID)
	return items + options + modifications + addresses + orders
}

func TestDeleteAbandonedRemovesIdleCarts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	idle := h.idleCart(t, 3*time.Hour)
	fresh := h.idleCart(t, 10*time.Minute)
	paid := h.idleCart(t, 3*time.Hour)
	require.NoError(t, h.db.Create(&models.Payment{
		ID:       uuid.New(),
		OrderID:  paid.ID,
		Amount:   decimal.RequireFromString("1.00"),
		Currency: enums.CurrencyUSD,
		Status:   enums.PaymentOutcomePending,
		Method:   enums.PaymentMethodCheque,
	}).Error)

	report, err := h.svc.DeleteAbandoned(ctx, testNow, cartTimeout)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Candidates)
	assert.Equal(t, []uuid.UUID{idle.ID}, report.Deleted)
	assert.Empty(t, report.Failures)
	assert.NoError(t, report.Err())

	assert.Zero(t, h.ownedRows(t, idle.ID))
	assert.Zero(t, h.count(t, &models.Modification{}, "order_id = ?", idle.ID))
	assert.Positive(t, h.ownedRows(t, fresh.ID))
	assert.Positive(t, h.ownedRows(t, paid.ID))
	assert.EqualValues(t, 1, h.count(t, &models.OutboxEvent{}, "event_type = ? AND aggregate_id = ?", enums.EventOrderDeleted, idle.ID))
}

func TestDeleteAbandonedIsolatesFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	stuck := h.idleCart(t, 2*time.Hour)
	gone := h.idleCart(t, 2*time.Hour)
	before := h.ownedRows(t, stuck.ID)

	require.NoError(t, h.db.Exec(fmt.Sprintf(`CREATE TRIGGER keep_address BEFORE DELETE ON order_addresses
		WHEN OLD.order_id = '%s'
		BEGIN SELECT RAISE(ABORT, 'address archived'); END`, stuck.ID)).Error)

	report, err := h.svc.DeleteAbandoned(ctx, testNow, cartTimeout)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Candidates)
	assert.Equal(t, []uuid.UUID{gone.ID}, report.Deleted)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, stuck.ID, report.Failures[0].OrderID)
	assert.True(t, pkgerrors.Is(report.Failures[0].Err, pkgerrors.CodeConsistency))
	assert.Error(t, report.Err())

	// rolled back as a whole: items, options and modifications are still there
	assert.Equal(t, before, h.ownedRows(t, stuck.ID))
	assert.EqualValues(t, 1, h.count(t, &models.Modification{}, "order_id = ?", stuck.ID))
	assert.Zero(t, h.count(t, &models.Modification{}, "order_id = ?", gone.ID))
	assert.Zero(t, h.ownedRows(t, gone.ID))
	assert.Zero(t, h.count(t, &models.OutboxEvent{}, "event_type = ? AND aggregate_id = ?", enums.EventOrderDeleted, stuck.ID))

	again, err := h.svc.DeleteAbandoned(ctx, testNow, cartTimeout)
	require.NoError(t, err)
	assert.Empty(t, again.Deleted)
	require.Len(t, again.Failures, 1)
	assert.Equal(t, before, h.ownedRows(t, stuck.ID))
}

func TestDeleteAbandonedIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.idleCart(t, 5*time.Hour)

	first, err := h.svc.DeleteAbandoned(ctx, testNow, cartTimeout)
	require.NoError(t, err)
	assert.Len(t, first.Deleted, 1)

	second, err := h.svc.DeleteAbandoned(ctx, testNow, cartTimeout)
	require.NoError(t, err)
	assert.Zero(t, second.Candidates)
	assert.Empty(t, second.Deleted)
}

func TestDeleteAbandonedSkipsNonCarts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.idleCart(t, 5*time.Hour)
	h.setStatus(t, order.ID, enums.OrderStatusCancelled, enums.PaymentStatusUnpaid)

	report, err := h.svc.DeleteAbandoned(ctx, testNow, cartTimeout)
	require.NoError(t, err)
	assert.Zero(t, report.Candidates)
	assert.Positive(t, h.ownedRows(t, order.ID))
}
