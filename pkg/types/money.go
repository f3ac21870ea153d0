package types

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Money is a fixed-point amount tagged with its currency.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency enums.Currency  `json:"currency"`
}

// ErrCurrencyMismatch is returned when amounts in different currencies meet.
type ErrCurrencyMismatch struct {
	Left, Right enums.Currency
}

func (e ErrCurrencyMismatch) Error() string {
	return fmt.Sprintf("currency mismatch: %s vs %s", e.Left, e.Right)
}

func NewMoney(amount decimal.Decimal, currency enums.Currency) Money {
	return Money{Amount: amount, Currency: currency}
}

// MoneyFromString parses a decimal string such as "12.50".
func MoneyFromString(amount string, currency enums.Currency) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return Money{Amount: d, Currency: currency}, nil
}

func ZeroMoney(currency enums.Currency) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

// Add sums two amounts. A zero amount with no currency adopts the other side.
func (m Money) Add(other Money) (Money, error) {
	switch {
	case m.Currency == "":
		return Money{Amount: m.Amount.Add(other.Amount), Currency: other.Currency}, nil
	case other.Currency == "" || other.Currency == m.Currency:
		return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
	default:
		return Money{}, ErrCurrencyMismatch{Left: m.Currency, Right: other.Currency}
	}
}

// Sub subtracts other from m.
func (m Money) Sub(other Money) (Money, error) {
	return m.Add(other.Neg())
}

func (m Money) Mul(quantity int64) Money {
	return Money{Amount: m.Amount.Mul(decimal.NewFromInt(quantity)), Currency: m.Currency}
}

// MulRate multiplies by a fractional rate and rounds to the currency's minor unit.
func (m Money) MulRate(rate decimal.Decimal) Money {
	return Money{Amount: m.Amount.Mul(rate), Currency: m.Currency}.Round()
}

func (m Money) Neg() Money {
	return Money{Amount: m.Amount.Neg(), Currency: m.Currency}
}

// Round rounds half away from zero to the currency exponent.
func (m Money) Round() Money {
	return Money{Amount: m.Amount.Round(m.Currency.Exponent()), Currency: m.Currency}
}

func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

func (m Money) IsNegative() bool {
	return m.Amount.IsNegative()
}

// Cmp compares amounts, ignoring currency.
func (m Money) Cmp(other Money) int {
	return m.Amount.Cmp(other.Amount)
}

// Equal reports whether both amount and currency match.
func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.StringFixed(m.Currency.Exponent()), m.Currency)
}

// SumMoney adds amounts in order, starting from zero in the given currency.
func SumMoney(currency enums.Currency, amounts ...Money) (Money, error) {
	total := ZeroMoney(currency)
	for _, amount := range amounts {
		next, err := total.Add(amount)
		if err != nil {
			return Money{}, err
		}
		total = next
	}
	return total, nil
}
