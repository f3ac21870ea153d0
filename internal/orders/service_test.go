package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/modifiers"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil, nil, config.ShopConfig{}, nil)
	require.Error(t, err)
}

func TestCreateCartStartsEmpty(t *testing.T) {
	h := newHarness(t)
	order := h.cart(t)

	loaded, err := h.svc.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCart, loaded.Status)
	assert.Equal(t, enums.PaymentStatusUnpaid, loaded.PaymentStatus)
	assert.Equal(t, "0.00 USD", loaded.Total().String())
	assert.Empty(t, loaded.Items)

	_, err = h.svc.GetOrder(context.Background(), uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestDiscountAndTaxScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	product := h.product(t, "5.00")
	order := h.cart(t)

	_, err := h.svc.AddItem(ctx, order.ID, AddItemInput{ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = h.svc.SetAddresses(ctx, order.ID, AddressesInput{
		Shipping: &AddressInput{FirstName: "Ada", Address: "1 Queen St", City: "Auckland", CountryCode: "nz"},
	})
	require.NoError(t, err)

	tax, err := h.catalog.CreateTaxRate(ctx, catalog.TaxRateInput{CountryCode: "NZ", Name: "GST", Rate: decimal.RequireFromString("0.10")})
	require.NoError(t, err)
	_, err = h.catalog.CreateDiscountCode(ctx, catalog.DiscountCodeInput{Code: "ONEOFF", Amount: decimal.RequireFromString("1.00"), Currency: enums.CurrencyUSD})
	require.NoError(t, err)

	updated, err := h.svc.ApplyModifiers(ctx, order.ID, []ModifierSelection{
		{Type: modifiers.TypeTax, OptionRef: tax.ID.String()},
		{Type: modifiers.TypeDiscount, OptionRef: "oneoff"},
	})
	require.NoError(t, err)
	assert.Equal(t, "9.00 USD", updated.Subtotal().String())
	assert.Equal(t, "9.90 USD", updated.Total().String())

	taxMod := updated.Modification(modifiers.TypeTax)
	require.NotNil(t, taxMod)
	assert.Equal(t, "0.90 USD", taxMod.Money().String())
	assert.Equal(t, "GST (10%)", taxMod.Description)

	again, err := h.svc.UpdateTotal(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "9.00 USD", again.Subtotal().String())
	assert.Equal(t, "9.90 USD", again.Total().String())

	subtotal, total, err := Aggregate(again.Currency, again.Items, again.Modifications)
	require.NoError(t, err)
	assert.True(t, subtotal.Equal(again.Subtotal()))
	assert.True(t, total.Equal(again.Total()))
}

func TestAddItemMergesIdenticalLines(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	product := h.product(t, "5.00")
	order := h.cart(t)

	_, err := h.svc.AddItem(ctx, order.ID, AddItemInput{ProductID: product.ID})
	require.NoError(t, err)
	updated, err := h.svc.AddItem(ctx, order.ID, AddItemInput{ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)

	require.Len(t, updated.Items, 1)
	assert.Equal(t, 3, updated.Items[0].Quantity)
	assert.Equal(t, "15.00 USD", updated.Total().String())
	assert.EqualValues(t, 2, h.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventOrderItemAdded))
}

func TestAddItemKeepsVersionsAndOptionsApart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	product := h.product(t, "10.00", "1.00", "2.00")
	loaded, err := h.catalog.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	small, large := loaded.Variations[0], loaded.Variations[1]
	order := h.cart(t)

	_, err = h.svc.AddItem(ctx, order.ID, AddItemInput{ProductID: product.ID, Options: []uuid.UUID{small.ID}})
	require.NoError(t, err)
	_, err = h.svc.AddItem(ctx, order.ID, AddItemInput{ProductID: product.ID, Options: []uuid.UUID{large.ID}})
	require.NoError(t, err)

	_, err = h.catalog.ChangePrice(ctx, product.ID, decimal.RequireFromString("12.00"))
	require.NoError(t, err)
	updated, err := h.svc.AddItem(ctx, order.ID, AddItemInput{ProductID: product.ID, Options: []uuid.UUID{small.ID}})
	require.NoError(t, err)

	require.Len(t, updated.Items, 3)
	versions := map[int]int{}
	for _, item := range updated.Items {
		versions[item.ObjectVersion]++
	}
	assert.Equal(t, map[int]int{1: 2, 2: 1}, versions)
	// 11 + 12 + 13: captured prices stay on the old lines
	assert.Equal(t, "36.00 USD", updated.Total().String())
}

func TestAddItemRequiresVariation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	product := h.product(t, "10.00", "1.00")
	order := h.cart(t)

	_, err := h.svc.AddItem(ctx, order.ID, AddItemInput{ProductID: product.ID})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	assert.Zero(t, h.count(t, &models.Item{}, "order_id = ?", order.ID))
}

func TestAddItemRejectsBadInput(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	product := h.product(t, "10.00")
	other := h.product(t, "3.00", "1.00")
	otherLoaded, err := h.catalog.GetProduct(ctx, other.ID)
	require.NoError(t, err)
	order := h.cart(t)

	_, err = h.svc.AddItem(ctx, order.ID, AddItemInput{ProductID: product.ID, Quantity: -1})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = h.svc.AddItem(ctx, order.ID, AddItemInput{ProductID: uuid.New()})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	_, err = h.svc.AddItem(ctx, order.ID, AddItemInput{ProductID: product.ID, Options: []uuid.UUID{otherLoaded.Variations[0].ID}})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	require.NoError(t, h.catalog.SetPublished(ctx, product.ID, false))
	_, err = h.svc.AddItem(ctx, order.ID, AddItemInput{ProductID: product.ID})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = h.svc.AddItem(ctx, uuid.New(), AddItemInput{ProductID: other.ID})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestSetQuantity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	product := h.product(t, "4.00", "0.50")
	loaded, err := h.catalog.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	order := h.cart(t)

	updated, err := h.svc.AddItem(ctx, order.ID, AddItemInput{ProductID: product.ID, Options: []uuid.UUID{loaded.Variations[0].ID}})
	require.NoError(t, err)
	itemID := updated.Items[0].ID

	updated, err = h.svc.SetQuantity(ctx, order.ID, itemID, 4)
	require.NoError(t, err)
	assert.Equal(t, "18.00 USD", updated.Total().String())

	_, err = h.svc.SetQuantity(ctx, order.ID, itemID, -1)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = h.svc.SetQuantity(ctx, order.ID, uuid.New(), 1)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	updated, err = h.svc.SetQuantity(ctx, order.ID, itemID, 0)
	require.NoError(t, err)
	assert.Empty(t, updated.Items)
	assert.Equal(t, "0.00 USD", updated.Total().String())
	assert.Zero(t, h.count(t, &models.ItemOption{}, "item_id = ?", itemID))
}

func TestRemoveOnlyItemLeavesNothingToCheckOut(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	product := h.product(t, "5.00")
	order := h.cart(t)

	_, err := h.svc.AddItem(ctx, order.ID, AddItemInput{ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)

	updated, err := h.svc.RemoveItem(ctx, order.ID, RemoveItemInput{ProductID: product.ID})
	require.NoError(t, err)
	require.Len(t, updated.Items, 1)
	assert.Equal(t, 1, updated.Items[0].Quantity)

	updated, err = h.svc.RemoveItem(ctx, order.ID, RemoveItemInput{ProductID: product.ID, Version: product.Version, Quantity: 5})
	require.NoError(t, err)
	assert.Empty(t, updated.Items)

	_, err = h.svc.RemoveItem(ctx, order.ID, RemoveItemInput{ProductID: product.ID})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	result, err := h.svc.ValidateForCheckout(ctx, order.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	assert.False(t, result.Valid)
	assert.Equal(t, []string{ProblemNoItems}, result.Problems)
	assert.EqualValues(t, 2, h.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventOrderItemRemoved))
}

func TestValidateForCheckoutReportsCatalogChanges(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	plain := h.product(t, "5.00")
	sized := h.product(t, "8.00", "1.00")
	loaded, err := h.catalog.GetProduct(ctx, sized.ID)
	require.NoError(t, err)
	order := h.cart(t)

	_, err = h.svc.AddItem(ctx, order.ID, AddItemInput{ProductID: plain.ID})
	require.NoError(t, err)
	_, err = h.svc.AddItem(ctx, order.ID, AddItemInput{ProductID: sized.ID, Options: []uuid.UUID{loaded.Variations[0].ID}})
	require.NoError(t, err)

	result, err := h.svc.ValidateForCheckout(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, result.Valid)

	require.NoError(t, h.catalog.SetPublished(ctx, plain.ID, false))
	require.NoError(t, h.db.Model(&models.ProductVariation{}).Where("id = ?", loaded.Variations[0].ID).Update("published", false).Error)

	before, err := h.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)

	result, err = h.svc.ValidateForCheckout(ctx, order.ID)
	require.Error(t, err)
	assert.ElementsMatch(t, []string{ProblemProductUnavailable, ProblemVariationUnavailable}, result.Problems)

	after, err := h.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, before.Total().Equal(after.Total()))
	assert.Len(t, after.Items, 2)
}

func TestApplyModifiersWithdrawsAndIgnoresUnknown(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	product := h.product(t, "20.00")
	order := h.cart(t)
	_, err := h.svc.AddItem(ctx, order.ID, AddItemInput{ProductID: product.ID})
	require.NoError(t, err)
	_, err = h.svc.SetAddresses(ctx, order.ID, AddressesInput{Shipping: &AddressInput{CountryCode: "NZ"}})
	require.NoError(t, err)
	rate, err := h.catalog.CreateShippingRate(ctx, catalog.ShippingRateInput{
		CountryCode: "NZ", CountryName: "New Zealand", Amount: decimal.RequireFromString("4.00"), Currency: enums.CurrencyUSD,
	})
	require.NoError(t, err)

	updated, err := h.svc.ApplyModifiers(ctx, order.ID, []ModifierSelection{
		{Type: modifiers.TypeFlatFeeShipping, OptionRef: rate.ID.String()},
		{Type: "gift_wrap", OptionRef: "gold"},
	})
	require.NoError(t, err)
	require.Len(t, updated.Modifications, 1)
	assert.Equal(t, "New Zealand flat fee shipping", updated.Modifications[0].Description)
	assert.Equal(t, "20.00 USD", updated.Subtotal().String())
	assert.Equal(t, "24.00 USD", updated.Total().String())

	// re-applying replaces rather than duplicates
	updated, err = h.svc.ApplyModifiers(ctx, order.ID, []ModifierSelection{{Type: modifiers.TypeFlatFeeShipping, OptionRef: rate.ID.String()}})
	require.NoError(t, err)
	require.Len(t, updated.Modifications, 1)

	updated, err = h.svc.ApplyModifiers(ctx, order.ID, []ModifierSelection{{Type: modifiers.TypeFlatFeeShipping}})
	require.NoError(t, err)
	assert.Empty(t, updated.Modifications)
	assert.Equal(t, "20.00 USD", updated.Total().String())
}

func TestApplyModifiersValidatesBeforeWriting(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	product := h.product(t, "20.00")
	order := h.cart(t)
	_, err := h.svc.AddItem(ctx, order.ID, AddItemInput{ProductID: product.ID})
	require.NoError(t, err)
	_, err = h.svc.SetAddresses(ctx, order.ID, AddressesInput{Shipping: &AddressInput{CountryCode: "NZ"}})
	require.NoError(t, err)
	au, err := h.catalog.CreateShippingRate(ctx, catalog.ShippingRateInput{
		CountryCode: "AU", CountryName: "Australia", Amount: decimal.RequireFromString("9.00"), Currency: enums.CurrencyUSD,
	})
	require.NoError(t, err)
	_, err = h.catalog.CreateDiscountCode(ctx, catalog.DiscountCodeInput{Code: "TWO", Amount: decimal.RequireFromString("2.00"), Currency: enums.CurrencyUSD})
	require.NoError(t, err)

	_, err = h.svc.ApplyModifiers(ctx, order.ID, []ModifierSelection{
		{Type: modifiers.TypeDiscount, OptionRef: "TWO"},
		{Type: modifiers.TypeFlatFeeShipping, OptionRef: au.ID.String()},
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	assert.Zero(t, h.count(t, &models.Modification{}, "order_id = ?", order.ID))
}

func TestUpdateTotalKeepsUnregisteredModification(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	product := h.product(t, "10.00")
	order := h.cart(t)
	_, err := h.svc.AddItem(ctx, order.ID, AddItemInput{ProductID: product.ID})
	require.NoError(t, err)

	require.NoError(t, h.db.Create(&models.Modification{
		ID:           uuid.New(),
		OrderID:      order.ID,
		ModifierType: "gift_wrap",
		OptionRef:    "gold",
		Amount:       decimal.RequireFromString("2.50"),
		Currency:     enums.CurrencyUSD,
		Description:  "Gift wrap",
	}).Error)

	updated, err := h.svc.UpdateTotal(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.00 USD", updated.Subtotal().String())
	assert.Equal(t, "12.50 USD", updated.Total().String())
}

func TestOnlyCartsAreMutable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	product := h.product(t, "10.00")
	order := h.cart(t)
	h.setStatus(t, order.ID, enums.OrderStatusPending, enums.PaymentStatusUnpaid)

	_, err := h.svc.AddItem(ctx, order.ID, AddItemInput{ProductID: product.ID})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
}

func TestStatusTransitions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pending := h.cart(t)
	h.setStatus(t, pending.ID, enums.OrderStatusPending, enums.PaymentStatusUnpaid)
	_, err := h.svc.MarkDispatched(ctx, pending.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
	cancelled, err := h.svc.Cancel(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)

	paid := h.cart(t)
	h.setStatus(t, paid.ID, enums.OrderStatusProcessing, enums.PaymentStatusPaid)
	_, err = h.svc.Cancel(ctx, paid.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
	dispatched, err := h.svc.MarkDispatched(ctx, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDispatched, dispatched.Status)

	assert.EqualValues(t, 2, h.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventOrderStatusChanged))
}

func TestSetAddressesUpserts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.cart(t)

	_, err := h.svc.SetAddresses(ctx, order.ID, AddressesInput{
		Billing:  &AddressInput{FirstName: "Ada", CountryCode: "GB"},
		Shipping: &AddressInput{FirstName: "Ada", CountryCode: "NZ"},
	})
	require.NoError(t, err)
	updated, err := h.svc.SetAddresses(ctx, order.ID, AddressesInput{Shipping: &AddressInput{FirstName: "Grace", CountryCode: "AU"}})
	require.NoError(t, err)

	require.Len(t, updated.Addresses, 2)
	assert.Equal(t, "AU", updated.Address(enums.AddressKindShipping).CountryCode)
	assert.Equal(t, "Grace", updated.Address(enums.AddressKindShipping).FirstName)
	assert.Equal(t, "GB", updated.Address(enums.AddressKindBilling).CountryCode)

	_, err = h.svc.SetAddresses(ctx, order.ID, AddressesInput{Billing: &AddressInput{CountryCode: "GBR"}})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestSetAddressesWithdrawsCountryBoundModifiers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	product := h.product(t, "5.00")
	order := h.cart(t)
	_, err := h.svc.AddItem(ctx, order.ID, AddItemInput{ProductID: product.ID})
	require.NoError(t, err)
	_, err = h.svc.SetAddresses(ctx, order.ID, AddressesInput{Shipping: &AddressInput{CountryCode: "NZ"}})
	require.NoError(t, err)
	nzShipping, err := h.catalog.CreateShippingRate(ctx, catalog.ShippingRateInput{
		CountryCode: "NZ", CountryName: "New Zealand", Amount: decimal.RequireFromString("4.00"), Currency: enums.CurrencyUSD,
	})
	require.NoError(t, err)
	nzTax, err := h.catalog.CreateTaxRate(ctx, catalog.TaxRateInput{CountryCode: "NZ", Name: "GST", Rate: decimal.RequireFromString("0.10")})
	require.NoError(t, err)
	_, err = h.catalog.CreateDiscountCode(ctx, catalog.DiscountCodeInput{Code: "ONE", Amount: decimal.RequireFromString("1.00"), Currency: enums.CurrencyUSD})
	require.NoError(t, err)

	updated, err := h.svc.ApplyModifiers(ctx, order.ID, []ModifierSelection{
		{Type: modifiers.TypeFlatFeeShipping, OptionRef: nzShipping.ID.String()},
		{Type: modifiers.TypeTax, OptionRef: nzTax.ID.String()},
		{Type: modifiers.TypeDiscount, OptionRef: "ONE"},
	})
	require.NoError(t, err)
	require.Len(t, updated.Modifications, 3)

	updated, err = h.svc.SetAddresses(ctx, order.ID, AddressesInput{Shipping: &AddressInput{CountryCode: "AU"}})
	require.NoError(t, err)
	require.Len(t, updated.Modifications, 1)
	assert.Equal(t, modifiers.TypeDiscount, updated.Modifications[0].ModifierType)
	assert.Equal(t, "4.00 USD", updated.Subtotal().String())
	assert.Equal(t, "4.00 USD", updated.Total().String())
	assert.EqualValues(t, 1, h.count(t, &models.Modification{}, "order_id = ?", order.ID))

	result, err := h.svc.ValidateForCheckout(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, result.Valid)

	// billing-only changes leave modifications alone
	updated, err = h.svc.SetAddresses(ctx, order.ID, AddressesInput{Billing: &AddressInput{CountryCode: "NZ"}})
	require.NoError(t, err)
	assert.Len(t, updated.Modifications, 1)
}

func TestValidateForCheckoutReportsInapplicableModification(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	product := h.product(t, "5.00")
	order := h.cart(t)
	_, err := h.svc.AddItem(ctx, order.ID, AddItemInput{ProductID: product.ID})
	require.NoError(t, err)
	_, err = h.svc.SetAddresses(ctx, order.ID, AddressesInput{Shipping: &AddressInput{CountryCode: "AU"}})
	require.NoError(t, err)
	nzShipping, err := h.catalog.CreateShippingRate(ctx, catalog.ShippingRateInput{
		CountryCode: "NZ", CountryName: "New Zealand", Amount: decimal.RequireFromString("4.00"), Currency: enums.CurrencyUSD,
	})
	require.NoError(t, err)

	// a row written before the address rules existed
	require.NoError(t, h.db.Create(&models.Modification{
		ID:           uuid.New(),
		OrderID:      order.ID,
		ModifierType: modifiers.TypeFlatFeeShipping,
		OptionRef:    nzShipping.ID.String(),
		Amount:       decimal.RequireFromString("4.00"),
		Currency:     enums.CurrencyUSD,
		Description:  "New Zealand flat fee shipping",
	}).Error)

	result, err := h.svc.ValidateForCheckout(ctx, order.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	assert.False(t, result.Valid)
	assert.Equal(t, []string{ProblemModifierInapplicable}, result.Problems)
}

func TestAddItemCapturesVirtualProduct(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ebook, err := h.catalog.CreateProduct(ctx, catalog.CreateProductInput{
		Title:     "Field guide (PDF)",
		Price:     decimal.RequireFromString("7.00"),
		Currency:  enums.CurrencyUSD,
		Published: true,
		Virtual:   true,
	})
	require.NoError(t, err)
	order := h.cart(t)

	updated, err := h.svc.AddItem(ctx, order.ID, AddItemInput{ProductID: ebook.ID, Quantity: 2})
	require.NoError(t, err)
	require.Len(t, updated.Items, 1)
	line := &updated.Items[0]
	assert.True(t, line.Virtual)
	assert.Zero(t, DownloadLimit(line, updated, 3))

	h.setStatus(t, order.ID, enums.OrderStatusProcessing, enums.PaymentStatusPaid)
	paid, err := h.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, DownloadLimit(&paid.Items[0], paid, 3))
}
