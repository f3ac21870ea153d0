package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

func usd(t *testing.T, amount string) Money {
	t.Helper()
	m, err := MoneyFromString(amount, enums.CurrencyUSD)
	require.NoError(t, err)
	return m
}

func TestMoneyArithmetic(t *testing.T) {
	line := usd(t, "5.00").Mul(2)
	subtotal, err := line.Add(usd(t, "-1.00"))
	require.NoError(t, err)
	assert.Equal(t, "9.00", subtotal.Amount.StringFixed(2))

	tax := subtotal.MulRate(decimal.RequireFromString("0.10"))
	assert.Equal(t, "0.90", tax.Amount.StringFixed(2))

	total, err := subtotal.Add(tax)
	require.NoError(t, err)
	assert.Equal(t, "USD 9.90", total.String())
}

func TestMoneyRejectsMixedCurrencies(t *testing.T) {
	eur := NewMoney(decimal.NewFromInt(1), enums.CurrencyEUR)
	_, err := usd(t, "1.00").Add(eur)
	require.Error(t, err)

	var mismatch ErrCurrencyMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, enums.CurrencyUSD, mismatch.Left)
}

func TestMoneyRoundsHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, "0.13", usd(t, "0.125").Round().Amount.StringFixed(2))
	assert.Equal(t, "-0.13", usd(t, "-0.125").Round().Amount.StringFixed(2))
}

func TestSumMoney(t *testing.T) {
	sum, err := SumMoney(enums.CurrencyUSD, usd(t, "1.10"), usd(t, "2.20"), usd(t, "3.30"))
	require.NoError(t, err)
	assert.True(t, sum.Equal(usd(t, "6.60")))

	empty, err := SumMoney(enums.CurrencyUSD)
	require.NoError(t, err)
	assert.True(t, empty.IsZero())
	assert.Equal(t, enums.CurrencyUSD, empty.Currency)
}

func TestMoneyFromStringRejectsGarbage(t *testing.T) {
	_, err := MoneyFromString("twelve", enums.CurrencyUSD)
	require.Error(t, err)
}
