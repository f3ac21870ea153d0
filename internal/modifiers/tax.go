package modifiers

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Tax levies a country rate on the subtotal after discounts.
type Tax struct {
	rates RateSource
}

func NewTax(rates RateSource) *Tax {
	return &Tax{rates: rates}
}

func (m *Tax) Type() string          { return TypeTax }
func (m *Tax) AffectsSubtotal() bool { return false }

func (m *Tax) ComputeAmount(ctx context.Context, tx *gorm.DB, order *models.Order, optionRef string) (types.Money, error) {
	rate, err := m.rate(ctx, tx, optionRef)
	if err != nil {
		return types.Money{}, err
	}
	return order.Subtotal().MulRate(rate.Rate), nil
}

func (m *Tax) Describe(ctx context.Context, tx *gorm.DB, order *models.Order, optionRef string) (string, error) {
	rate, err := m.rate(ctx, tx, optionRef)
	if err != nil {
		return "", err
	}
	name := rate.Name
	if name == "" {
		name = "Tax"
	}
	return fmt.Sprintf("%s (%s%%)", name, rate.Rate.Shift(2).String()), nil
}

func (m *Tax) Validate(ctx context.Context, tx *gorm.DB, order *models.Order, optionRef string) error {
	rate, err := m.rate(ctx, tx, optionRef)
	if err != nil {
		return err
	}
	return matchShippingCountry(order, rate.CountryCode)
}

func (m *Tax) rate(ctx context.Context, tx *gorm.DB, optionRef string) (*models.TaxRate, error) {
	id, err := uuid.Parse(strings.TrimSpace(optionRef))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid tax option")
	}
	rate, err := m.rates.FindTaxRate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if rate == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tax option not available")
	}
	return rate, nil
}
