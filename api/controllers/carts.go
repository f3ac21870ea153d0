package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type orderReader interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// CartService is the slice of the order service the cart endpoints use.
type CartService interface {
	orderReader
	CreateCart(ctx context.Context, customerID *uuid.UUID) (*models.Order, error)
	AddItem(ctx context.Context, orderID uuid.UUID, input orders.AddItemInput) (*models.Order, error)
	RemoveItem(ctx context.Context, orderID uuid.UUID, input orders.RemoveItemInput) (*models.Order, error)
	SetQuantity(ctx context.Context, orderID, itemID uuid.UUID, quantity int) (*models.Order, error)
	ApplyModifiers(ctx context.Context, orderID uuid.UUID, selections []orders.ModifierSelection) (*models.Order, error)
	SetAddresses(ctx context.Context, orderID uuid.UUID, input orders.AddressesInput) (*models.Order, error)
	ValidateForCheckout(ctx context.Context, orderID uuid.UUID) (orders.CheckoutValidation, error)
}

// CreateCart opens an empty cart, owned by the caller when signed in.
func CreateCart(svc CartService, shop config.ShopConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		order, err := svc.CreateCart(r.Context(), middleware.CustomerIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, newOrderResponse(order, shop))
	}
}

func GetCart(svc CartService, shop config.ShopConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		order, err := loadOwnedOrder(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order, shop))
	}
}

type addItemRequest struct {
	ProductID uuid.UUID   `json:"product_id" validate:"required"`
	Quantity  int         `json:"quantity" validate:"gte=0,lte=1000"`
	Options   []uuid.UUID `json:"options,omitempty"`
}

func AddCartItem(svc CartService, shop config.ShopConfig, logg *logger.Logger) http.HandlerFunc {
	return cartMutation(svc, shop, logg, func(r *http.Request, orderID uuid.UUID) (*models.Order, error) {
		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.AddItem(r.Context(), orderID, orders.AddItemInput{
			ProductID: payload.ProductID,
			Quantity:  payload.Quantity,
			Options:   payload.Options,
		})
	})
}

type removeItemRequest struct {
	ProductID uuid.UUID   `json:"product_id" validate:"required"`
	Version   int         `json:"version" validate:"gte=0"`
	OptionIDs []uuid.UUID `json:"option_ids,omitempty"`
	Quantity  int         `json:"quantity" validate:"required,gte=1"`
}

func RemoveCartItem(svc CartService, shop config.ShopConfig, logg *logger.Logger) http.HandlerFunc {
	return cartMutation(svc, shop, logg, func(r *http.Request, orderID uuid.UUID) (*models.Order, error) {
		var payload removeItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.RemoveItem(r.Context(), orderID, orders.RemoveItemInput{
			ProductID: payload.ProductID,
			Version:   payload.Version,
			OptionIDs: payload.OptionIDs,
			Quantity:  payload.Quantity,
		})
	})
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,gte=0,lte=1000"`
}

// SetCartItemQuantity sets a line's quantity; zero removes the line.
func SetCartItemQuantity(svc CartService, shop config.ShopConfig, logg *logger.Logger) http.HandlerFunc {
	return cartMutation(svc, shop, logg, func(r *http.Request, orderID uuid.UUID) (*models.Order, error) {
		itemID, err := validators.UUIDParam(r, "itemID")
		if err != nil {
			return nil, err
		}
		var payload setQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.SetQuantity(r.Context(), orderID, itemID, *payload.Quantity)
	})
}

type addressRequest struct {
	FirstName    string `json:"first_name" validate:"required,max=100"`
	Surname      string `json:"surname" validate:"required,max=100"`
	Company      string `json:"company,omitempty" validate:"max=200"`
	Address      string `json:"address" validate:"required,max=255"`
	AddressLine2 string `json:"address_line2,omitempty" validate:"max=255"`
	City         string `json:"city" validate:"required,max=100"`
	PostalCode   string `json:"postal_code" validate:"required,max=20"`
	State        string `json:"state,omitempty" validate:"max=100"`
	CountryCode  string `json:"country_code" validate:"required,len=2"`
}

func (a *addressRequest) toInput() *orders.AddressInput {
	if a == nil {
		return nil
	}
	return &orders.AddressInput{
		FirstName:    validators.SanitizeString(a.FirstName, 100),
		Surname:      validators.SanitizeString(a.Surname, 100),
		Company:      validators.SanitizeString(a.Company, 200),
		Address:      validators.SanitizeString(a.Address, 255),
		AddressLine2: validators.SanitizeString(a.AddressLine2, 255),
		City:         validators.SanitizeString(a.City, 100),
		PostalCode:   validators.SanitizeString(a.PostalCode, 20),
		State:        validators.SanitizeString(a.State, 100),
		CountryCode:  a.CountryCode,
	}
}

type addressesRequest struct {
	Billing  *addressRequest `json:"billing,omitempty"`
	Shipping *addressRequest `json:"shipping,omitempty"`
}

func (a addressesRequest) toInput() orders.AddressesInput {
	return orders.AddressesInput{Billing: a.Billing.toInput(), Shipping: a.Shipping.toInput()}
}

func SetCartAddresses(svc CartService, shop config.ShopConfig, logg *logger.Logger) http.HandlerFunc {
	return cartMutation(svc, shop, logg, func(r *http.Request, orderID uuid.UUID) (*models.Order, error) {
		var payload addressesRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		if payload.Billing == nil && payload.Shipping == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "billing or shipping address required")
		}
		return svc.SetAddresses(r.Context(), orderID, payload.toInput())
	})
}

type modifierRequest struct {
	Type   string `json:"type" validate:"required,max=64"`
	Option string `json:"option" validate:"max=128"`
}

type modifiersRequest struct {
	Modifiers []modifierRequest `json:"modifiers" validate:"required,dive"`
}

func toSelections(in []modifierRequest) []orders.ModifierSelection {
	if in == nil {
		return nil
	}
	out := make([]orders.ModifierSelection, 0, len(in))
	for _, m := range in {
		out = append(out, orders.ModifierSelection{Type: m.Type, OptionRef: m.Option})
	}
	return out
}

// SetCartModifiers picks shipping, tax and discount options for the cart.
// An empty option withdraws that modifier.
func SetCartModifiers(svc CartService, shop config.ShopConfig, logg *logger.Logger) http.HandlerFunc {
	return cartMutation(svc, shop, logg, func(r *http.Request, orderID uuid.UUID) (*models.Order, error) {
		var payload modifiersRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.ApplyModifiers(r.Context(), orderID, toSelections(payload.Modifiers))
	})
}

func ValidateCart(svc CartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		order, err := loadOwnedOrder(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ValidateForCheckout(r.Context(), order.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if result.Problems == nil {
			result.Problems = []string{}
		}
		responses.WriteSuccess(w, result)
	}
}

// cartMutation wraps the ownership check shared by every cart write.
func cartMutation(svc CartService, shop config.ShopConfig, logg *logger.Logger, apply func(r *http.Request, orderID uuid.UUID) (*models.Order, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		current, err := loadOwnedOrder(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := apply(r, current.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order, shop))
	}
}

// loadOwnedOrder resolves {orderID} and hides orders that belong to another
// customer. Carts without an owner are reachable by anyone holding the id.
func loadOwnedOrder(r *http.Request, svc orderReader) (*models.Order, error) {
	orderID, err := validators.UUIDParam(r, "orderID")
	if err != nil {
		return nil, err
	}
	order, err := svc.GetOrder(r.Context(), orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID == nil || middleware.RoleFromContext(r.Context()) == string(enums.CustomerRoleAdmin) {
		return order, nil
	}
	caller := middleware.CustomerIDFromContext(r.Context())
	if caller == nil || *caller != *order.CustomerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}
