package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/customers"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type checkoutCustomerRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	Surname   string `json:"surname" validate:"required,max=100"`
	Password  string `json:"password,omitempty" validate:"omitempty,min=8,max=128"`
}

type checkoutRequest struct {
	Customer        checkoutCustomerRequest `json:"customer"`
	Billing         *addressRequest         `json:"billing" validate:"required"`
	Shipping        *addressRequest         `json:"shipping,omitempty"`
	Modifiers       []modifierRequest       `json:"modifiers,omitempty" validate:"omitempty,dive"`
	Notes           string                  `json:"notes,omitempty" validate:"max=2000"`
	PaymentMethod   string                  `json:"payment_method" validate:"required,oneof=cheque square"`
	PaymentSourceID string                  `json:"payment_source_id,omitempty" validate:"max=255"`
}

// Checkout submits the cart in {orderID} as an order and takes payment.
func Checkout(svc checkoutsvc.Service, cartSvc orderReader, shop config.ShopConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || cartSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		order, err := loadOwnedOrder(r, cartSvc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported payment method"))
			return
		}
		if method == enums.PaymentMethodSquare && payload.PaymentSourceID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payment_source_id required for card payments"))
			return
		}

		result, err := svc.Submit(r.Context(), checkoutsvc.SubmitInput{
			OrderID:    order.ID,
			CustomerID: middleware.CustomerIDFromContext(r.Context()),
			Customer: customers.RegisterInput{
				Email:     payload.Customer.Email,
				FirstName: validators.SanitizeString(payload.Customer.FirstName, 100),
				Surname:   validators.SanitizeString(payload.Customer.Surname, 100),
				Password:  payload.Customer.Password,
			},
			Addresses:       addressesRequest{Billing: payload.Billing, Shipping: payload.Shipping}.toInput(),
			Modifiers:       toSelections(payload.Modifiers),
			Notes:           validators.SanitizeString(payload.Notes, 2000),
			PaymentMethod:   method,
			PaymentSourceID: payload.PaymentSourceID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, settlementResponse{
			Order:      newOrderResponse(result.Order, shop),
			Payment:    newPaymentResponse(result.Payment),
			Settlement: result.Settlement,
		})
	}
}
