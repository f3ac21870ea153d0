package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// OrderAdminService is what staff tooling may do to a placed order.
type OrderAdminService interface {
	orderReader
	ListOrders(ctx context.Context, filter orders.ListFilter) (orders.OrderPage, error)
	MarkDispatched(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// PaymentAdminService records manual settlement and reports balances.
type PaymentAdminService interface {
	RecordPaymentOutcome(ctx context.Context, outcome payments.Outcome) (*payments.Result, error)
	Summary(ctx context.Context, orderID uuid.UUID) (payments.Settlement, error)
}

type orderListResponse struct {
	Orders     []orderResponse `json:"orders"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// AdminListOrders pages through placed orders. Query: status,
// payment_status, customer_id, limit, cursor.
func AdminListOrders(svc OrderAdminService, shop config.ShopConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		filter, err := listFilterFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListOrders(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp := orderListResponse{Orders: make([]orderResponse, 0, len(page.Orders)), NextCursor: page.NextCursor}
		for i := range page.Orders {
			resp.Orders = append(resp.Orders, newOrderResponse(&page.Orders[i], shop))
		}
		responses.WriteSuccess(w, resp)
	}
}

func listFilterFromQuery(r *http.Request) (orders.ListFilter, error) {
	q := r.URL.Query()
	filter := orders.ListFilter{Cursor: q.Get("cursor")}
	if raw := q.Get("status"); raw != "" {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		filter.Status = status
	}
	if raw := q.Get("payment_status"); raw != "" {
		status, err := enums.ParsePaymentStatus(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment_status")
		}
		filter.PaymentStatus = status
	}
	customerID, err := validators.QueryUUID(r, "customer_id")
	if err != nil {
		return filter, err
	}
	filter.CustomerID = customerID
	if filter.Limit, err = validators.QueryInt(r, "limit"); err != nil {
		return filter, err
	}
	return filter, nil
}

// AdminGetOrder returns any order together with its settlement.
func AdminGetOrder(orderSvc OrderAdminService, paySvc PaymentAdminService, shop config.ShopConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if orderSvc == nil || paySvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		orderID, err := validators.UUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := orderSvc.GetOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		settlement, err := paySvc.Summary(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, settlementResponse{Order: newOrderResponse(order, shop), Settlement: settlement})
	}
}

type recordPaymentRequest struct {
	Amount           decimal.Decimal `json:"amount" validate:"required"`
	Currency         string          `json:"currency" validate:"required,len=3"`
	Status           string          `json:"status" validate:"required,oneof=pending success failure"`
	Method           string          `json:"method" validate:"required,oneof=cheque square"`
	GatewayReference string          `json:"gateway_reference,omitempty" validate:"max=255"`
	PayerReference   string          `json:"payer_reference,omitempty" validate:"max=255"`
	Message          string          `json:"message,omitempty" validate:"max=1000"`
}

// AdminRecordPayment enters a settlement outcome by hand, typically a
// received cheque. A repeated gateway reference updates the earlier row.
func AdminRecordPayment(svc PaymentAdminService, shop config.ShopConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		orderID, err := validators.UUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload recordPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !payload.Amount.IsPositive() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive"))
			return
		}
		currency, err := enums.ParseCurrency(payload.Currency)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported currency"))
			return
		}
		status, err := enums.ParsePaymentOutcome(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}
		method, err := enums.ParsePaymentMethod(payload.Method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid method"))
			return
		}

		result, err := svc.RecordPaymentOutcome(r.Context(), payments.Outcome{
			OrderID:          orderID,
			Amount:           payload.Amount,
			Currency:         currency,
			Status:           status,
			Method:           method,
			GatewayReference: payload.GatewayReference,
			PayerReference:   payload.PayerReference,
			Message:          payload.Message,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, settlementResponse{
			Order:      newOrderResponse(result.Order, shop),
			Payment:    newPaymentResponse(result.Payment),
			Settlement: result.Settlement,
		})
	}
}

func AdminDispatchOrder(svc OrderAdminService, shop config.ShopConfig, logg *logger.Logger) http.HandlerFunc {
	return orderTransition(svc, shop, logg, OrderAdminService.MarkDispatched)
}

func AdminCancelOrder(svc OrderAdminService, shop config.ShopConfig, logg *logger.Logger) http.HandlerFunc {
	return orderTransition(svc, shop, logg, OrderAdminService.Cancel)
}

func orderTransition(svc OrderAdminService, shop config.ShopConfig, logg *logger.Logger, transition func(OrderAdminService, context.Context, uuid.UUID) (*models.Order, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		orderID, err := validators.UUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := transition(svc, r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order, shop))
	}
}
