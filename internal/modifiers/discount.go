package modifiers

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Discount subtracts a fixed code amount from the subtotal, never taking it
// below zero. The option ref is the code the shopper entered.
type Discount struct {
	rates RateSource
	now   func() time.Time
}

func NewDiscount(rates RateSource, now func() time.Time) *Discount {
	if now == nil {
		now = time.Now
	}
	return &Discount{rates: rates, now: now}
}

func (m *Discount) Type() string          { return TypeDiscount }
func (m *Discount) AffectsSubtotal() bool { return true }

func (m *Discount) ComputeAmount(ctx context.Context, tx *gorm.DB, order *models.Order, optionRef string) (types.Money, error) {
	code, err := m.code(ctx, tx, optionRef)
	if err != nil {
		return types.Money{}, err
	}
	if code.Currency != order.Currency {
		return types.Money{}, pkgerrors.New(pkgerrors.CodeValidation, "discount code currency does not match order")
	}
	amount := types.NewMoney(code.Amount, code.Currency)
	if subtotal := order.Subtotal(); amount.Cmp(subtotal) > 0 {
		amount = subtotal
	}
	if amount.IsNegative() {
		return types.ZeroMoney(order.Currency), nil
	}
	return amount.Neg(), nil
}

func (m *Discount) Describe(ctx context.Context, tx *gorm.DB, order *models.Order, optionRef string) (string, error) {
	code, err := m.code(ctx, tx, optionRef)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Discount code %s", code.Code), nil
}

func (m *Discount) Validate(ctx context.Context, tx *gorm.DB, order *models.Order, optionRef string) error {
	code, err := m.code(ctx, tx, optionRef)
	if err != nil {
		return err
	}
	if !code.Redeemable(m.now().UTC()) {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount code is no longer valid")
	}
	if code.Currency != order.Currency {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount code currency does not match order")
	}
	return nil
}

func (m *Discount) code(ctx context.Context, tx *gorm.DB, optionRef string) (*models.DiscountCode, error) {
	code, err := m.rates.FindDiscountCode(ctx, tx, optionRef)
	if err != nil {
		return nil, err
	}
	if code == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount code not found")
	}
	return code, nil
}
