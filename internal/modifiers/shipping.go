package modifiers

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// FlatFeeShipping charges the fixed fee configured for the destination
// country. The option ref is the rate id.
type FlatFeeShipping struct {
	rates RateSource
}

func NewFlatFeeShipping(rates RateSource) *FlatFeeShipping {
	return &FlatFeeShipping{rates: rates}
}

func (m *FlatFeeShipping) Type() string          { return TypeFlatFeeShipping }
func (m *FlatFeeShipping) AffectsSubtotal() bool { return false }

func (m *FlatFeeShipping) ComputeAmount(ctx context.Context, tx *gorm.DB, order *models.Order, optionRef string) (types.Money, error) {
	rate, err := m.rate(ctx, tx, optionRef)
	if err != nil {
		return types.Money{}, err
	}
	if rate.Currency != order.Currency {
		return types.Money{}, pkgerrors.New(pkgerrors.CodeValidation, "shipping rate currency does not match order")
	}
	return types.NewMoney(rate.Amount, rate.Currency), nil
}

func (m *FlatFeeShipping) Describe(ctx context.Context, tx *gorm.DB, order *models.Order, optionRef string) (string, error) {
	rate, err := m.rate(ctx, tx, optionRef)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s flat fee shipping", rate.CountryName), nil
}

// Validate requires a shipping address in the rate's country.
func (m *FlatFeeShipping) Validate(ctx context.Context, tx *gorm.DB, order *models.Order, optionRef string) error {
	rate, err := m.rate(ctx, tx, optionRef)
	if err != nil {
		return err
	}
	return matchShippingCountry(order, rate.CountryCode)
}

func (m *FlatFeeShipping) rate(ctx context.Context, tx *gorm.DB, optionRef string) (*models.FlatFeeShippingRate, error) {
	id, err := uuid.Parse(strings.TrimSpace(optionRef))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid shipping option")
	}
	rate, err := m.rates.FindShippingRate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if rate == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping option not available")
	}
	return rate, nil
}

func matchShippingCountry(order *models.Order, countryCode string) error {
	shipping := order.Address(enums.AddressKindShipping)
	if shipping == nil || strings.TrimSpace(shipping.CountryCode) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping address required")
	}
	if !strings.EqualFold(strings.TrimSpace(shipping.CountryCode), countryCode) {
		return pkgerrors.New(pkgerrors.CodeValidation, "option does not apply to shipping country").
			WithDetails(map[string]any{"country_code": shipping.CountryCode})
	}
	return nil
}
