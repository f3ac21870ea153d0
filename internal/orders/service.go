package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/modifiers"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	catalog  Catalog
	registry *modifiers.Registry
	currency enums.Currency
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the order aggregate service. Carts are created in the
// shop currency.
func NewService(
	repo Repository,
	tx txRunner,
	outbox outboxPublisher,
	catalog Catalog,
	registry *modifiers.Registry,
	shop config.ShopConfig,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if registry == nil {
		return nil, fmt.Errorf("modifier registry required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	currency, err := enums.ParseCurrency(shop.Currency)
	if err != nil {
		return nil, err
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   outbox,
		catalog:  catalog,
		registry: registry,
		currency: currency,
		logg:     logg,
		now:      time.Now,
	}, nil
}

func (s *service) CreateCart(ctx context.Context, customerID *uuid.UUID) (*models.Order, error) {
	order := &models.Order{
		ID:             uuid.New(),
		CustomerID:     customerID,
		Status:         enums.OrderStatusCart,
		PaymentStatus:  enums.PaymentStatusUnpaid,
		Currency:       s.currency,
		SubtotalAmount: decimal.Zero,
		TotalAmount:    decimal.Zero,
		LastActive:     s.now().UTC(),
	}
	if err := s.repo.Create(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return order, nil
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, mapLoadErr(err)
	}
	return order, nil
}

func (s *service) AddItem(ctx context.Context, orderID uuid.UUID, input AddItemInput) (*models.Order, error) {
	if input.Quantity == 0 {
		input.Quantity = 1
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	return s.mutate(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		product, err := s.catalog.FindProduct(ctx, tx, input.ProductID)
		if err != nil {
			return err
		}
		if product == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		if !product.Published {
			return pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
		}
		if product.Currency != order.Currency {
			return pkgerrors.New(pkgerrors.CodeValidation, "product currency does not match cart")
		}

		options, err := s.resolveOptions(ctx, tx, product, input.Options)
		if err != nil {
			return err
		}
		if product.RequiresVariation && len(options) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "product requires a variation")
		}

		refs := make([]optionRef, 0, len(options))
		for _, o := range options {
			refs = append(refs, optionRef{id: o.ObjectID, version: o.ObjectVersion})
		}
		repo := s.repo.WithTx(tx)

		line := findIdentical(order, keyOf(product.ID, product.Version, refs))
		if line != nil {
			line.Quantity += input.Quantity
			if err := repo.UpdateItemQuantity(ctx, line.ID, line.Quantity); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item quantity")
			}
		} else {
			item := models.Item{
				ID:            uuid.New(),
				OrderID:       order.ID,
				ObjectID:      product.ID,
				ObjectType:    enums.ObjectTypeProduct,
				ObjectVersion: product.Version,
				Amount:        product.Price,
				Currency:      product.Currency,
				Quantity:      input.Quantity,
				Virtual:       product.Virtual,
				Options:       options,
			}
			if err := repo.CreateItem(ctx, &item); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create item")
			}
			order.Items = append(order.Items, item)
			line = &order.Items[len(order.Items)-1]
		}

		if err := s.recompute(ctx, tx, order, false); err != nil {
			return err
		}
		return s.emitLine(ctx, tx, enums.EventOrderItemAdded, order, line, input.Quantity, false)
	})
}

// resolveOptions loads each distinct variation id and captures its price.
func (s *service) resolveOptions(ctx context.Context, tx *gorm.DB, product *models.Product, ids []uuid.UUID) ([]models.ItemOption, error) {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	options := make([]models.ItemOption, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		variation, err := s.catalog.FindVariation(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if variation == nil || variation.ProductID != product.ID {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "option does not belong to product").
				WithDetails(map[string]any{"option_id": id.String()})
		}
		if !variation.Published {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "option is not available").
				WithDetails(map[string]any{"option_id": id.String()})
		}
		if variation.Currency != product.Currency {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "option currency does not match product")
		}
		options = append(options, models.ItemOption{
			ID:            uuid.New(),
			ObjectID:      variation.ID,
			ObjectType:    enums.ObjectTypeVariation,
			ObjectVersion: variation.Version,
			Description:   variation.Description,
			Amount:        variation.Price,
			Currency:      variation.Currency,
		})
	}
	if len(options) > 1 && product.RequiresVariation {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "only one variation may be selected")
	}
	return options, nil
}

func (s *service) RemoveItem(ctx context.Context, orderID uuid.UUID, input RemoveItemInput) (*models.Order, error) {
	if input.Quantity == 0 {
		input.Quantity = 1
	}
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}

	return s.mutate(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		line := findForRemoval(order, input)
		if line == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
		}
		removed := input.Quantity
		if removed > line.Quantity {
			removed = line.Quantity
		}
		return s.changeQuantity(ctx, tx, order, line, line.Quantity-input.Quantity, removed)
	})
}

func (s *service) SetQuantity(ctx context.Context, orderID, itemID uuid.UUID, quantity int) (*models.Order, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}

	return s.mutate(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		var line *models.Item
		for i := range order.Items {
			if order.Items[i].ID == itemID {
				line = &order.Items[i]
				break
			}
		}
		if line == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
		}
		if quantity == line.Quantity {
			return nil
		}
		if quantity > line.Quantity {
			added := quantity - line.Quantity
			line.Quantity = quantity
			if err := s.repo.WithTx(tx).UpdateItemQuantity(ctx, line.ID, quantity); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item quantity")
			}
			if err := s.recompute(ctx, tx, order, false); err != nil {
				return err
			}
			return s.emitLine(ctx, tx, enums.EventOrderItemAdded, order, line, added, false)
		}
		return s.changeQuantity(ctx, tx, order, line, quantity, line.Quantity-quantity)
	})
}

// changeQuantity lowers line to quantity, deleting it at zero or below.
func (s *service) changeQuantity(ctx context.Context, tx *gorm.DB, order *models.Order, line *models.Item, quantity, removed int) error {
	repo := s.repo.WithTx(tx)
	snapshot := *line
	deleted := quantity <= 0
	if deleted {
		if err := repo.DeleteItem(ctx, line.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete item")
		}
		order.Items = withoutItem(order.Items, line.ID)
		snapshot.Quantity = 0
	} else {
		line.Quantity = quantity
		snapshot.Quantity = quantity
		if err := repo.UpdateItemQuantity(ctx, line.ID, quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item quantity")
		}
	}
	if err := s.recompute(ctx, tx, order, false); err != nil {
		return err
	}
	return s.emitLine(ctx, tx, enums.EventOrderItemRemoved, order, &snapshot, removed, deleted)
}

func withoutItem(items []models.Item, id uuid.UUID) []models.Item {
	out := items[:0]
	for _, it := range items {
		if it.ID != id {
			out = append(out, it)
		}
	}
	return out
}

func (s *service) UpdateTotal(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var out *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.lock(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if err := s.UpdateTotalTx(ctx, tx, order); err != nil {
			return err
		}
		out = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateTotalTx recomputes totals for an order already locked in tx.
func (s *service) UpdateTotalTx(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	return s.recompute(ctx, tx, order, false)
}

func (s *service) ApplyModifiers(ctx context.Context, orderID uuid.UUID, selections []ModifierSelection) (*models.Order, error) {
	return s.mutate(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		return s.ApplyModifiersTx(ctx, tx, order, selections)
	})
}

// ApplyModifiersTx validates every selection before writing any of them,
// then replaces the stored modification per type and recomputes totals.
func (s *service) ApplyModifiersTx(ctx context.Context, tx *gorm.DB, order *models.Order, selections []ModifierSelection) error {
	type pending struct {
		strategy  modifiers.Modifier
		optionRef string
	}
	var apply []pending
	var withdraw []string

	for _, sel := range selections {
		strategy, ok := s.registry.Lookup(sel.Type)
		if !ok {
			continue
		}
		ref := strings.TrimSpace(sel.OptionRef)
		if ref == "" {
			withdraw = append(withdraw, sel.Type)
			continue
		}
		if v, ok := strategy.(modifiers.Validator); ok {
			if err := v.Validate(ctx, tx, order, ref); err != nil {
				return err
			}
		}
		apply = append(apply, pending{strategy: strategy, optionRef: ref})
	}

	repo := s.repo.WithTx(tx)
	for _, t := range withdraw {
		if err := repo.DeleteModification(ctx, order.ID, t); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete modification")
		}
		order.Modifications = withoutModification(order.Modifications, t)
	}
	for _, p := range apply {
		description, err := p.strategy.Describe(ctx, tx, order, p.optionRef)
		if err != nil {
			return err
		}
		mod := models.Modification{
			ID:              uuid.New(),
			OrderID:         order.ID,
			ModifierType:    p.strategy.Type(),
			OptionRef:       p.optionRef,
			Currency:        order.Currency,
			Description:     description,
			AffectsSubtotal: p.strategy.AffectsSubtotal(),
		}
		if err := repo.ReplaceModification(ctx, &mod); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store modification")
		}
		order.Modifications = append(withoutModification(order.Modifications, mod.ModifierType), mod)
	}

	return s.recompute(ctx, tx, order, true)
}

func withoutModification(mods []models.Modification, modifierType string) []models.Modification {
	out := mods[:0]
	for _, m := range mods {
		if m.ModifierType != modifierType {
			out = append(out, m)
		}
	}
	return out
}

func (s *service) SetAddresses(ctx context.Context, orderID uuid.UUID, input AddressesInput) (*models.Order, error) {
	return s.mutate(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		if err := s.SetAddressesTx(ctx, tx, order, input); err != nil {
			return err
		}
		return s.recompute(ctx, tx, order, false)
	})
}

// SetAddressesTx upserts the billing and shipping addresses of a locked order.
// A new shipping address withdraws every stored modification that no longer
// validates against it; callers recompute totals afterwards.
func (s *service) SetAddressesTx(ctx context.Context, tx *gorm.DB, order *models.Order, input AddressesInput) error {
	repo := s.repo.WithTx(tx)
	for _, entry := range []struct {
		kind  enums.AddressKind
		input *AddressInput
	}{
		{enums.AddressKindBilling, input.Billing},
		{enums.AddressKindShipping, input.Shipping},
	} {
		if entry.input == nil {
			continue
		}
		address := entry.input.toModel(order.ID, entry.kind)
		if len(address.CountryCode) != 2 {
			return pkgerrors.New(pkgerrors.CodeValidation, "country code must be ISO-3166 alpha-2").
				WithDetails(map[string]any{"kind": entry.kind})
		}
		if err := repo.UpsertAddress(ctx, &address); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save address")
		}
		if existing := order.Address(entry.kind); existing != nil {
			*existing = address
		} else {
			order.Addresses = append(order.Addresses, address)
		}
	}
	if input.Shipping == nil {
		return nil
	}
	return s.withdrawInapplicable(ctx, tx, order)
}

func (s *service) withdrawInapplicable(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	stale, err := s.inapplicableModifications(ctx, tx, order)
	if err != nil {
		return err
	}
	repo := s.repo.WithTx(tx)
	for _, modifierType := range stale {
		if err := repo.DeleteModification(ctx, order.ID, modifierType); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete modification")
		}
		order.Modifications = withoutModification(order.Modifications, modifierType)
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"order_id":      order.ID.String(),
			"modifier_type": modifierType,
		}), "modifier withdrawn after address change")
	}
	return nil
}

// inapplicableModifications lists the stored modification types whose
// strategy rejects its option for the order as it stands. Unregistered types
// and strategies without a validator are never reported.
func (s *service) inapplicableModifications(ctx context.Context, tx *gorm.DB, order *models.Order) ([]string, error) {
	var stale []string
	for _, mod := range order.Modifications {
		strategy, ok := s.registry.Lookup(mod.ModifierType)
		if !ok {
			continue
		}
		v, ok := strategy.(modifiers.Validator)
		if !ok {
			continue
		}
		err := v.Validate(ctx, tx, order, mod.OptionRef)
		switch {
		case err == nil:
		case pkgerrors.Is(err, pkgerrors.CodeValidation):
			stale = append(stale, mod.ModifierType)
		default:
			return nil, err
		}
	}
	return stale, nil
}

func (s *service) ValidateForCheckout(ctx context.Context, orderID uuid.UUID) (CheckoutValidation, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return CheckoutValidation{}, err
	}
	return s.ValidateForCheckoutTx(ctx, nil, order)
}

// ValidateForCheckoutTx inspects order without writing anything. The
// returned error is a validation error carrying the problems when invalid.
func (s *service) ValidateForCheckoutTx(ctx context.Context, tx *gorm.DB, order *models.Order) (CheckoutValidation, error) {
	result := CheckoutValidation{Problems: []string{}}
	if len(order.Items) == 0 {
		result.Problems = append(result.Problems, ProblemNoItems)
	}
	for i := range order.Items {
		problems, err := ItemProblems(ctx, tx, s.catalog, &order.Items[i])
		if err != nil {
			return CheckoutValidation{}, err
		}
		result.Problems = append(result.Problems, problems...)
	}
	stale, err := s.inapplicableModifications(ctx, tx, order)
	if err != nil {
		return CheckoutValidation{}, err
	}
	if len(stale) > 0 {
		result.Problems = append(result.Problems, ProblemModifierInapplicable)
	}
	result.Valid = len(result.Problems) == 0
	return result, result.err()
}

func (s *service) MarkDispatched(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.transition(ctx, orderID, enums.OrderStatusDispatched, func(order *models.Order) bool {
		return order.Status == enums.OrderStatusProcessing
	})
}

func (s *service) Cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.transition(ctx, orderID, enums.OrderStatusCancelled, func(order *models.Order) bool {
		return order.Status == enums.OrderStatusCart || order.Status == enums.OrderStatusPending
	})
}

func (s *service) transition(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus, allowed func(*models.Order) bool) (*models.Order, error) {
	var out *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.lock(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !allowed(order) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status cannot change").
				WithDetails(map[string]any{"status": order.Status, "target": target})
		}
		previous := order.Status
		order.Status = target
		order.LastActive = s.now().UTC()
		if err := s.repo.WithTx(tx).SaveState(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		out = order
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:           order.ID,
				PreviousStatus:    previous,
				Status:            order.Status,
				PaymentStatus:     order.PaymentStatus,
				PreviousPayStatus: order.PaymentStatus,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LockCart locks orderID in tx and requires it to still be a cart.
func (s *service) LockCart(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.lock(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusCart {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is no longer a cart").
			WithDetails(map[string]any{"status": order.Status})
	}
	return order, nil
}

// SubmitTx turns the locked cart into a pending order placed by customerID
// and emits order_submitted.
func (s *service) SubmitTx(ctx context.Context, tx *gorm.DB, order *models.Order, customerID uuid.UUID, notes string, method enums.PaymentMethod) error {
	if order.Status != enums.OrderStatusCart {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is no longer a cart").
			WithDetails(map[string]any{"status": order.Status})
	}
	now := s.now().UTC()
	order.CustomerID = &customerID
	order.Status = enums.OrderStatusPending
	order.OrderedOn = &now
	order.Notes = strings.TrimSpace(notes)
	order.LastActive = now
	if err := s.repo.WithTx(tx).SaveState(ctx, order); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "submit order")
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderSubmitted,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{CustomerID: customerID, Role: string(enums.CustomerRoleCustomer)},
		Data: payloads.OrderSubmittedEvent{
			OrderID:       order.ID,
			CustomerID:    customerID,
			PaymentMethod: method,
			Total:         order.TotalAmount.StringFixed(order.Currency.Exponent()),
			Currency:      order.Currency,
			OrderedOn:     now,
		},
	})
}

func (s *service) lock(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.WithTx(tx).LockByID(ctx, orderID)
	if err != nil {
		return nil, mapLoadErr(err)
	}
	return order, nil
}

// mutate runs fn against the locked cart and returns the reloaded order.
func (s *service) mutate(ctx context.Context, orderID uuid.UUID, fn func(tx *gorm.DB, order *models.Order) error) (*models.Order, error) {
	var out *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.LockCart(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if err := fn(tx, order); err != nil {
			return err
		}
		reloaded, err := s.repo.WithTx(tx).FindByID(ctx, orderID)
		if err != nil {
			return mapLoadErr(err)
		}
		out = reloaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) emitLine(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, order *models.Order, line *models.Item, delta int, deleted bool) error {
	ref := lineRef(line)
	ref.QuantityDelta = delta
	var data any
	if eventType == enums.EventOrderItemAdded {
		data = payloads.OrderItemAddedEvent{OrderID: order.ID, Line: ref}
	} else {
		data = payloads.OrderItemRemovedEvent{OrderID: order.ID, Line: ref, Deleted: deleted}
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data:          data,
	})
}

func lineRef(item *models.Item) payloads.LineRef {
	ref := payloads.LineRef{
		ItemID:     item.ID,
		ProductID:  item.ObjectID,
		ProductVer: item.ObjectVersion,
		Quantity:   item.Quantity,
	}
	for _, o := range item.Options {
		ref.VariationIDs = append(ref.VariationIDs, o.ObjectID)
	}
	return ref
}

func mapLoadErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}
