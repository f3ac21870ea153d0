package enums

import (
	"fmt"
	"slices"
	"strings"
)

// PaymentStatus is the order-level settlement flag. It only moves forward.
type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusUnpaid,
	PaymentStatusPaid,
}

func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	return slices.Contains(validPaymentStatuses, p)
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	if v := PaymentStatus(strings.ToLower(strings.TrimSpace(value))); v.IsValid() {
		return v, nil
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
