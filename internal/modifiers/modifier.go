// Package modifiers holds the pluggable strategies that adjust an order's
// subtotal or total, such as shipping, tax and discounts.
package modifiers

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const (
	TypeFlatFeeShipping = "flat_fee_shipping"
	TypeTax             = "tax"
	TypeDiscount        = "discount"
)

// Modifier computes one adjustment for an order. optionRef is the shopper's
// choice for this modifier, for example a shipping rate id.
//
// ComputeAmount reads order.SubtotalAmount: subtotal-affecting modifiers
// run while it holds the item total, total-only modifiers see the subtotal
// after every subtotal-affecting modification.
type Modifier interface {
	Type() string
	ComputeAmount(ctx context.Context, tx *gorm.DB, order *models.Order, optionRef string) (types.Money, error)
	Describe(ctx context.Context, tx *gorm.DB, order *models.Order, optionRef string) (string, error)
	AffectsSubtotal() bool
}

// Validator is implemented by modifiers that can reject a selection before
// anything is written.
type Validator interface {
	Validate(ctx context.Context, tx *gorm.DB, order *models.Order, optionRef string) error
}

// RateSource is the catalog surface the built-in modifiers price against.
// Finders return nil when the row does not exist.
type RateSource interface {
	FindShippingRate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.FlatFeeShippingRate, error)
	FindTaxRate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.TaxRate, error)
	FindDiscountCode(ctx context.Context, tx *gorm.DB, code string) (*models.DiscountCode, error)
}

// Registry maps modifier type tags to strategies.
type Registry struct {
	mu        sync.RWMutex
	modifiers map[string]Modifier
}

func NewRegistry(mods ...Modifier) *Registry {
	r := &Registry{modifiers: make(map[string]Modifier, len(mods))}
	for _, m := range mods {
		r.Register(m)
	}
	return r
}

// Register adds or replaces the strategy for m.Type().
func (r *Registry) Register(m Modifier) {
	if m == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modifiers[m.Type()] = m
}

func (r *Registry) Lookup(modifierType string) (Modifier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modifiers[modifierType]
	return m, ok
}

// Types returns the registered tags in lexical order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.modifiers))
	for t := range r.modifiers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
