package enums

import "fmt"

type AddressKind string

const (
	AddressKindBilling  AddressKind = "billing"
	AddressKindShipping AddressKind = "shipping"
)

// IsValid reports whether the value is a known AddressKind.
func (k AddressKind) IsValid() bool {
	return k == AddressKindBilling || k == AddressKindShipping
}

// ParseAddressKind converts raw input into an AddressKind.
func ParseAddressKind(value string) (AddressKind, error) {
	kind := AddressKind(value)
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid address kind %q", value)
	}
	return kind, nil
}
