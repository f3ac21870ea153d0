package square

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	sq "github.com/square/square-go-sdk"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// PaymentCreateParams are the inputs for charging an order total.
type PaymentCreateParams struct {
	Amount         types.Money
	SourceID       string
	LocationID     string
	CustomerID     string
	ReferenceID    string
	Note           string
	IdempotencyKey string
}

func (p PaymentCreateParams) toSquareRequest(idempotencyKey string) (*sq.CreatePaymentRequest, error) {
	if strings.TrimSpace(p.SourceID) == "" {
		return nil, fmt.Errorf("square payment source is required")
	}
	minor, err := MinorUnits(p.Amount)
	if err != nil {
		return nil, err
	}
	autocomplete := true
	return &sq.CreatePaymentRequest{
		IdempotencyKey: idempotencyKey,
		SourceID:       p.SourceID,
		AmountMoney:    moneyPtr(minor, string(p.Amount.Currency)),
		Autocomplete:   &autocomplete,
		LocationID:     ptrString(p.LocationID),
		CustomerID:     ptrString(p.CustomerID),
		ReferenceID:    ptrString(p.ReferenceID),
		Note:           ptrString(p.Note),
	}, nil
}

// MinorUnits converts money into the smallest currency unit Square expects,
// cents for USD and whole yen for JPY.
func MinorUnits(m types.Money) (int64, error) {
	if m.Currency == "" {
		return 0, fmt.Errorf("currency is required")
	}
	if m.IsNegative() || m.IsZero() {
		return 0, fmt.Errorf("amount must be positive, got %s", m)
	}
	scaled := m.Amount.Shift(m.Currency.Exponent())
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("amount %s has more precision than %s allows", m, m.Currency)
	}
	return scaled.IntPart(), nil
}

// FromMinorUnits is the inverse of MinorUnits.
func FromMinorUnits(amount int64, currency enums.Currency) types.Money {
	return types.NewMoney(decimal.New(amount, -currency.Exponent()), currency)
}

func ptrString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func moneyPtr(amount int64, currency string) *sq.Money {
	code := sq.Currency(strings.ToUpper(strings.TrimSpace(currency)))
	return &sq.Money{Amount: &amount, Currency: &code}
}
