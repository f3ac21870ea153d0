package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type stubCheckoutService struct {
	input  *checkoutsvc.SubmitInput
	result *checkoutsvc.SubmitResult
	err    error
}

func (s *stubCheckoutService) Submit(_ context.Context, input checkoutsvc.SubmitInput) (*checkoutsvc.SubmitResult, error) {
	s.input = &input
	return s.result, s.err
}

const checkoutBody = `{
	"customer": {"email": "ada@example.com", "first_name": "Ada", "surname": "Lovelace"},
	"billing": {"first_name": "Ada", "surname": "Lovelace", "address": "1 Analytical Way", "city": "London", "postal_code": "N1", "country_code": "GB"},
	"modifiers": [{"type": "shipping", "option": "rate-1"}],
	"notes": "leave at door",
	"payment_method": "cheque"
}`

func placedOrder(owner *uuid.UUID) *models.Order {
	order := sampleOrder(owner)
	order.Status = enums.OrderStatusPending
	return order
}

func TestCheckoutSuccess(t *testing.T) {
	t.Parallel()

	cart := sampleOrder(nil)
	placed := placedOrder(nil)
	placed.ID = cart.ID
	svc := &stubCheckoutService{result: &checkoutsvc.SubmitResult{
		Order: placed,
		Payment: &models.Payment{
			ID:       uuid.New(),
			OrderID:  cart.ID,
			Amount:   decimal.RequireFromString("25.00"),
			Currency: enums.CurrencyUSD,
			Status:   enums.PaymentOutcomePending,
			Method:   enums.PaymentMethodCheque,
		},
		Settlement: payments.Settlement{
			TotalPaid:        types.ZeroMoney(enums.CurrencyUSD),
			TotalOutstanding: types.ZeroMoney(enums.CurrencyUSD),
		},
	}}

	rec := httptest.NewRecorder()
	req := newRequest(http.MethodPost, "/", checkoutBody, map[string]string{"orderID": cart.ID.String()}, nil, "")
	Checkout(svc, &stubCartService{order: cart}, testShop, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.input == nil {
		t.Fatalf("expected submit to be called")
	}
	if svc.input.OrderID != cart.ID || svc.input.CustomerID != nil {
		t.Fatalf("unexpected identity: %+v", svc.input)
	}
	if svc.input.PaymentMethod != enums.PaymentMethodCheque || svc.input.Notes != "leave at door" {
		t.Fatalf("unexpected submit input: %+v", svc.input)
	}
	if svc.input.Addresses.Billing == nil || svc.input.Addresses.Shipping != nil {
		t.Fatalf("unexpected addresses: %+v", svc.input.Addresses)
	}
	if len(svc.input.Modifiers) != 1 || svc.input.Modifiers[0].OptionRef != "rate-1" {
		t.Fatalf("unexpected modifiers: %+v", svc.input.Modifiers)
	}

	var resp settlementResponse
	decodeData(t, rec, &resp)
	if resp.Order.Status != "pending" {
		t.Fatalf("expected pending order, got %q", resp.Order.Status)
	}
	if resp.Payment == nil || resp.Payment.Status != "pending" {
		t.Fatalf("unexpected payment: %+v", resp.Payment)
	}
}

func TestCheckoutLeavesModifiersAloneWhenOmitted(t *testing.T) {
	t.Parallel()

	cart := sampleOrder(nil)
	svc := &stubCheckoutService{result: &checkoutsvc.SubmitResult{Order: placedOrder(nil)}}
	body := `{
		"customer": {"email": "ada@example.com", "first_name": "Ada", "surname": "Lovelace"},
		"billing": {"first_name": "Ada", "surname": "Lovelace", "address": "1 Way", "city": "London", "postal_code": "N1", "country_code": "GB"},
		"payment_method": "cheque"
	}`
	rec := httptest.NewRecorder()
	Checkout(svc, &stubCartService{order: cart}, testShop, testLogger()).ServeHTTP(rec, newRequest(http.MethodPost, "/", body, map[string]string{"orderID": cart.ID.String()}, nil, ""))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.input.Modifiers != nil {
		t.Fatalf("expected nil modifiers, got %+v", svc.input.Modifiers)
	}
}

func TestCheckoutPassesSignedInCustomer(t *testing.T) {
	t.Parallel()

	customerID := uuid.New()
	cart := sampleOrder(&customerID)
	svc := &stubCheckoutService{result: &checkoutsvc.SubmitResult{Order: placedOrder(&customerID)}}
	rec := httptest.NewRecorder()
	req := newRequest(http.MethodPost, "/", checkoutBody, map[string]string{"orderID": cart.ID.String()}, &customerID, enums.CustomerRoleCustomer)
	Checkout(svc, &stubCartService{order: cart}, testShop, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.input.CustomerID == nil || *svc.input.CustomerID != customerID {
		t.Fatalf("expected customer %s, got %v", customerID, svc.input.CustomerID)
	}
}

func TestCheckoutRejectsInvalidPayload(t *testing.T) {
	t.Parallel()

	cart := sampleOrder(nil)
	params := map[string]string{"orderID": cart.ID.String()}
	cases := map[string]string{
		"unknown method":  `{"customer":{"email":"ada@example.com","first_name":"A","surname":"L"},"billing":{"first_name":"A","surname":"L","address":"x","city":"y","postal_code":"z","country_code":"GB"},"payment_method":"bitcoin"}`,
		"missing email":   `{"customer":{"first_name":"A","surname":"L"},"billing":{"first_name":"A","surname":"L","address":"x","city":"y","postal_code":"z","country_code":"GB"},"payment_method":"cheque"}`,
		"card no source":  `{"customer":{"email":"ada@example.com","first_name":"A","surname":"L"},"billing":{"first_name":"A","surname":"L","address":"x","city":"y","postal_code":"z","country_code":"GB"},"payment_method":"square"}`,
		"missing billing": `{"customer":{"email":"ada@example.com","first_name":"A","surname":"L"},"payment_method":"cheque"}`,
	}
	for name, body := range cases {
		body := body
		t.Run(name, func(t *testing.T) {
			svc := &stubCheckoutService{}
			rec := httptest.NewRecorder()
			Checkout(svc, &stubCartService{order: cart}, testShop, testLogger()).ServeHTTP(rec, newRequest(http.MethodPost, "/", body, params, nil, ""))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
			}
			if svc.input != nil {
				t.Fatalf("submit should not run")
			}
		})
	}
}

func TestCheckoutSettlementFailure(t *testing.T) {
	t.Parallel()

	cart := sampleOrder(nil)
	svc := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodeSettlement, "card declined")}
	rec := httptest.NewRecorder()
	Checkout(svc, &stubCartService{order: cart}, testShop, testLogger()).ServeHTTP(rec, newRequest(http.MethodPost, "/", checkoutBody, map[string]string{"orderID": cart.ID.String()}, nil, ""))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("settlement failures should be retryable")
	}
}

func TestCheckoutHidesForeignCart(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	cart := sampleOrder(&owner)
	svc := &stubCheckoutService{}
	rec := httptest.NewRecorder()
	Checkout(svc, &stubCartService{order: cart}, testShop, testLogger()).ServeHTTP(rec, newRequest(http.MethodPost, "/", checkoutBody, map[string]string{"orderID": cart.ID.String()}, nil, ""))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if svc.input != nil {
		t.Fatalf("submit should not run for a foreign cart")
	}
}
