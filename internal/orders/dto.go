package orders

import (
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// AddItemInput adds Quantity units of a product. Options are variation ids;
// Quantity zero means one.
type AddItemInput struct {
	ProductID uuid.UUID
	Quantity  int
	Options   []uuid.UUID
}

// RemoveItemInput removes Quantity units from the line matching the product,
// version and option set. Version zero matches any version.
type RemoveItemInput struct {
	ProductID uuid.UUID
	Version   int
	OptionIDs []uuid.UUID
	Quantity  int
}

// ModifierSelection picks an option for one modifier type. An empty
// OptionRef withdraws the modifier from the order.
type ModifierSelection struct {
	Type      string
	OptionRef string
}

type AddressInput struct {
	FirstName    string
	Surname      string
	Company      string
	Address      string
	AddressLine2 string
	City         string
	PostalCode   string
	State        string
	CountryCode  string
}

// AddressesInput leaves a kind untouched when its pointer is nil.
type AddressesInput struct {
	Billing  *AddressInput
	Shipping *AddressInput
}

func (a AddressInput) toModel(orderID uuid.UUID, kind enums.AddressKind) models.Address {
	return models.Address{
		OrderID:      orderID,
		Kind:         kind,
		FirstName:    strings.TrimSpace(a.FirstName),
		Surname:      strings.TrimSpace(a.Surname),
		Company:      strings.TrimSpace(a.Company),
		Address:      strings.TrimSpace(a.Address),
		AddressLine2: strings.TrimSpace(a.AddressLine2),
		City:         strings.TrimSpace(a.City),
		PostalCode:   strings.TrimSpace(a.PostalCode),
		State:        strings.TrimSpace(a.State),
		CountryCode:  strings.ToUpper(strings.TrimSpace(a.CountryCode)),
	}
}

// ListFilter narrows the admin order listing. Zero values match everything
// except carts, which are never listed.
type ListFilter struct {
	Status        enums.OrderStatus
	PaymentStatus enums.PaymentStatus
	CustomerID    *uuid.UUID
	Limit         int
	Cursor        string
}

type OrderPage struct {
	Orders     []models.Order
	NextCursor string
}

const (
	ProblemNoItems              = "no items"
	ProblemProductUnavailable   = "product no longer available"
	ProblemVariationRequired    = "variation required"
	ProblemVariationUnavailable = "variation no longer available"
	ProblemModifierInapplicable = "shipping or pricing option no longer applies"
)

// CheckoutValidation is the outcome of ValidateForCheckout.
type CheckoutValidation struct {
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems"`
}

func (v CheckoutValidation) err() error {
	if v.Valid {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "order cannot be checked out").
		WithDetails(map[string]any{"problems": v.Problems})
}

// AbandonFailure records one cart the sweep could not delete.
type AbandonFailure struct {
	OrderID uuid.UUID
	Err     error
}

// AbandonReport summarizes one DeleteAbandoned run.
type AbandonReport struct {
	Candidates int
	Deleted    []uuid.UUID
	Skipped    []uuid.UUID
	Failures   []AbandonFailure
}

// Err combines every per-order failure, or returns nil.
func (r AbandonReport) Err() error {
	var combined error
	for _, f := range r.Failures {
		combined = multierr.Append(combined, f.Err)
	}
	return combined
}
