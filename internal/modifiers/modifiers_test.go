package modifiers

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type fakeRates struct {
	shipping map[uuid.UUID]*models.FlatFeeShippingRate
	tax      map[uuid.UUID]*models.TaxRate
	codes    map[string]*models.DiscountCode
}

func (f *fakeRates) FindShippingRate(_ context.Context, _ *gorm.DB, id uuid.UUID) (*models.FlatFeeShippingRate, error) {
	return f.shipping[id], nil
}

func (f *fakeRates) FindTaxRate(_ context.Context, _ *gorm.DB, id uuid.UUID) (*models.TaxRate, error) {
	return f.tax[id], nil
}

func (f *fakeRates) FindDiscountCode(_ context.Context, _ *gorm.DB, code string) (*models.DiscountCode, error) {
	return f.codes[strings.ToUpper(strings.TrimSpace(code))], nil
}

func newFakeRates() (*fakeRates, uuid.UUID, uuid.UUID) {
	shipID := uuid.New()
	taxID := uuid.New()
	return &fakeRates{
		shipping: map[uuid.UUID]*models.FlatFeeShippingRate{
			shipID: {ID: shipID, CountryCode: "NZ", CountryName: "New Zealand", Amount: decimal.RequireFromString("4.00"), Currency: enums.CurrencyUSD},
		},
		tax: map[uuid.UUID]*models.TaxRate{
			taxID: {ID: taxID, CountryCode: "NZ", Name: "GST", Rate: decimal.RequireFromString("0.10")},
		},
		codes: map[string]*models.DiscountCode{
			"SAVE1":   {Code: "SAVE1", Amount: decimal.RequireFromString("1.00"), Currency: enums.CurrencyUSD, Active: true},
			"SAVE100": {Code: "SAVE100", Amount: decimal.RequireFromString("100.00"), Currency: enums.CurrencyUSD, Active: true},
			"OFF":     {Code: "OFF", Amount: decimal.RequireFromString("1.00"), Currency: enums.CurrencyUSD, Active: false},
		},
	}, shipID, taxID
}

func orderShippingTo(country, subtotal string) *models.Order {
	return &models.Order{
		ID:             uuid.New(),
		Currency:       enums.CurrencyUSD,
		SubtotalAmount: decimal.RequireFromString(subtotal),
		Addresses: []models.Address{
			{Kind: enums.AddressKindShipping, CountryCode: country},
		},
	}
}

func TestRegistry(t *testing.T) {
	rates, _, _ := newFakeRates()
	reg := NewDefaultRegistry(rates, nil)

	assert.Equal(t, []string{TypeDiscount, TypeFlatFeeShipping, TypeTax}, reg.Types())

	m, ok := reg.Lookup(TypeTax)
	require.True(t, ok)
	assert.False(t, m.AffectsSubtotal())

	_, ok = reg.Lookup("gift_wrap")
	assert.False(t, ok)

	reg.Register(nil)
	assert.Len(t, reg.Types(), 3)
}

func TestFlatFeeShipping(t *testing.T) {
	rates, shipID, _ := newFakeRates()
	m := NewFlatFeeShipping(rates)
	ctx := context.Background()
	order := orderShippingTo("nz", "10.00")

	require.NoError(t, m.Validate(ctx, nil, order, shipID.String()))

	amount, err := m.ComputeAmount(ctx, nil, order, shipID.String())
	require.NoError(t, err)
	assert.Equal(t, "4.00 USD", amount.String())

	desc, err := m.Describe(ctx, nil, order, shipID.String())
	require.NoError(t, err)
	assert.Equal(t, "New Zealand flat fee shipping", desc)
}

func TestFlatFeeShippingRejectsOtherCountry(t *testing.T) {
	rates, shipID, _ := newFakeRates()
	m := NewFlatFeeShipping(rates)
	ctx := context.Background()

	err := m.Validate(ctx, nil, orderShippingTo("AU", "10.00"), shipID.String())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	err = m.Validate(ctx, nil, &models.Order{Currency: enums.CurrencyUSD}, shipID.String())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	err = m.Validate(ctx, nil, orderShippingTo("NZ", "10.00"), "not-a-uuid")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	err = m.Validate(ctx, nil, orderShippingTo("NZ", "10.00"), uuid.NewString())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestTaxRoundsOnSubtotal(t *testing.T) {
	rates, _, taxID := newFakeRates()
	m := NewTax(rates)
	ctx := context.Background()

	amount, err := m.ComputeAmount(ctx, nil, orderShippingTo("NZ", "9.00"), taxID.String())
	require.NoError(t, err)
	assert.Equal(t, "0.90 USD", amount.String())

	amount, err = m.ComputeAmount(ctx, nil, orderShippingTo("NZ", "0.05"), taxID.String())
	require.NoError(t, err)
	assert.Equal(t, "0.01 USD", amount.String())

	desc, err := m.Describe(ctx, nil, orderShippingTo("NZ", "9.00"), taxID.String())
	require.NoError(t, err)
	assert.Equal(t, "GST (10%)", desc)
}

func TestDiscountNeverExceedsSubtotal(t *testing.T) {
	rates, _, _ := newFakeRates()
	m := NewDiscount(rates, nil)
	ctx := context.Background()
	assert.True(t, m.AffectsSubtotal())

	amount, err := m.ComputeAmount(ctx, nil, orderShippingTo("NZ", "10.00"), "save1")
	require.NoError(t, err)
	assert.Equal(t, "-1.00 USD", amount.String())

	amount, err = m.ComputeAmount(ctx, nil, orderShippingTo("NZ", "10.00"), "SAVE100")
	require.NoError(t, err)
	assert.Equal(t, "-10.00 USD", amount.String())
}

func TestDiscountValidation(t *testing.T) {
	rates, _, _ := newFakeRates()
	expired := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rates.codes["OLD"] = &models.DiscountCode{Code: "OLD", Amount: decimal.NewFromInt(1), Currency: enums.CurrencyUSD, Active: true, ExpiresAt: &expired}
	rates.codes["EURO"] = &models.DiscountCode{Code: "EURO", Amount: decimal.NewFromInt(1), Currency: enums.CurrencyEUR, Active: true}

	now := func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	m := NewDiscount(rates, now)
	ctx := context.Background()
	order := orderShippingTo("NZ", "10.00")

	require.NoError(t, m.Validate(ctx, nil, order, "SAVE1"))
	for _, code := range []string{"OFF", "OLD", "EURO", "MISSING"} {
		err := m.Validate(ctx, nil, order, code)
		assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), code)
	}
}
