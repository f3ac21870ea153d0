package enums

import (
	"fmt"
	"slices"
	"strings"
)

// PaymentMethod names the gateway a shopper picked at checkout.
type PaymentMethod string

const (
	PaymentMethodCheque PaymentMethod = "cheque"
	PaymentMethodSquare PaymentMethod = "square"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCheque,
	PaymentMethodSquare,
}

func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	return slices.Contains(validPaymentMethods, p)
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	if v := PaymentMethod(strings.ToLower(strings.TrimSpace(value))); v.IsValid() {
		return v, nil
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
