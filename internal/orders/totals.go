package orders

import (
	"context"
	"sort"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// ItemsTotal sums every line total.
func ItemsTotal(currency enums.Currency, items []models.Item) (types.Money, error) {
	total := types.ZeroMoney(currency)
	for i := range items {
		line, err := LineTotal(&items[i])
		if err != nil {
			return types.Money{}, err
		}
		if total, err = total.Add(line); err != nil {
			return types.Money{}, err
		}
	}
	return total, nil
}

// Aggregate folds stored modifications into the item total:
// subtotal = items + subtotal-affecting, total = subtotal + total-only.
func Aggregate(currency enums.Currency, items []models.Item, mods []models.Modification) (subtotal, total types.Money, err error) {
	subtotal, err = ItemsTotal(currency, items)
	if err != nil {
		return types.Money{}, types.Money{}, err
	}
	for i := range mods {
		if !mods[i].AffectsSubtotal {
			continue
		}
		if subtotal, err = subtotal.Add(mods[i].Money()); err != nil {
			return types.Money{}, types.Money{}, err
		}
	}
	total = subtotal
	for i := range mods {
		if mods[i].AffectsSubtotal {
			continue
		}
		if total, err = total.Add(mods[i].Money()); err != nil {
			return types.Money{}, types.Money{}, err
		}
	}
	return subtotal, total, nil
}

// modificationOrder returns indexes into mods, subtotal-affecting first and
// by type within each group.
func modificationOrder(mods []models.Modification) []int {
	idx := make([]int, len(mods))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ma, mb := mods[idx[a]], mods[idx[b]]
		if ma.AffectsSubtotal != mb.AffectsSubtotal {
			return ma.AffectsSubtotal
		}
		return ma.ModifierType < mb.ModifierType
	})
	return idx
}

// recompute re-evaluates the stored modifications against the current lines
// and writes subtotal and total. With strict unset, a modification whose
// type is unregistered or whose strategy fails keeps its stored amount.
func (s *service) recompute(ctx context.Context, tx *gorm.DB, order *models.Order, strict bool) error {
	itemsTotal, err := ItemsTotal(order.Currency, order.Items)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "order lines mix currencies")
	}

	// Subtotal-affecting strategies price against the item total, total-only
	// ones against the subtotal they produced.
	order.SubtotalAmount = itemsTotal.Amount
	subtotal := itemsTotal
	subtotalDone := false
	total := itemsTotal

	for _, i := range modificationOrder(order.Modifications) {
		mod := &order.Modifications[i]
		if !mod.AffectsSubtotal && !subtotalDone {
			order.SubtotalAmount = subtotal.Amount
			total = subtotal
			subtotalDone = true
		}
		if err := s.refreshModification(ctx, tx, order, mod, strict); err != nil {
			return err
		}
		if mod.AffectsSubtotal {
			if subtotal, err = subtotal.Add(mod.Money()); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "modification currency mismatch")
			}
			continue
		}
		if total, err = total.Add(mod.Money()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "modification currency mismatch")
		}
	}
	if !subtotalDone {
		total = subtotal
	}

	order.SubtotalAmount = subtotal.Amount
	order.TotalAmount = total.Amount
	order.LastActive = s.now().UTC()
	if err := s.repo.WithTx(tx).SaveTotals(ctx, order); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order totals")
	}
	return nil
}

func (s *service) refreshModification(ctx context.Context, tx *gorm.DB, order *models.Order, mod *models.Modification, strict bool) error {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":      order.ID.String(),
		"modifier_type": mod.ModifierType,
	})

	strategy, ok := s.registry.Lookup(mod.ModifierType)
	if !ok {
		s.logg.Warn(logCtx, "modifier no longer registered; keeping stored amount")
		return nil
	}
	amount, err := strategy.ComputeAmount(ctx, tx, order, mod.OptionRef)
	if err != nil {
		if strict {
			return err
		}
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "modifier failed; keeping stored amount")
		return nil
	}
	amount = amount.Round()
	description := mod.Description
	if desc, err := strategy.Describe(ctx, tx, order, mod.OptionRef); err == nil {
		description = desc
	}

	if amount.Equal(mod.Money()) && description == mod.Description {
		return nil
	}
	mod.Amount = amount.Amount
	mod.Currency = amount.Currency
	mod.Description = description
	if err := s.repo.WithTx(tx).UpdateModification(ctx, mod); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update modification")
	}
	return nil
}
