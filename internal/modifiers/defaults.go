package modifiers

import "time"

// NewDefaultRegistry registers the built-in shipping, tax and discount strategies.
func NewDefaultRegistry(rates RateSource, now func() time.Time) *Registry {
	return NewRegistry(
		NewFlatFeeShipping(rates),
		NewTax(rates),
		NewDiscount(rates, now),
	)
}
