package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

var testShop = config.ShopConfig{Currency: "USD", DownloadLimit: 3}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "controllers-test", Output: io.Discard})
}

// newRequest builds a request carrying chi path params and, when customer is
// set, an authenticated identity.
func newRequest(method, target, body string, params map[string]string, customer *uuid.UUID, role enums.CustomerRole) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if customer != nil {
		ctx = middleware.WithCustomer(ctx, *customer, string(role))
	}
	return req.WithContext(ctx)
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, rec.Body.String())
	}
	return envelope.Error.Code
}

func sampleOrder(owner *uuid.UUID) *models.Order {
	orderID := uuid.New()
	return &models.Order{
		ID:             orderID,
		CustomerID:     owner,
		Status:         enums.OrderStatusCart,
		PaymentStatus:  enums.PaymentStatusUnpaid,
		Currency:       enums.CurrencyUSD,
		SubtotalAmount: decimal.RequireFromString("20.00"),
		TotalAmount:    decimal.RequireFromString("25.00"),
		Items: []models.Item{{
			ID:            uuid.New(),
			OrderID:       orderID,
			ObjectID:      uuid.New(),
			ObjectType:    enums.ObjectTypeProduct,
			ObjectVersion: 1,
			Amount:        decimal.RequireFromString("10.00"),
			Currency:      enums.CurrencyUSD,
			Quantity:      2,
		}},
		Modifications: []models.Modification{{
			OrderID:      orderID,
			ModifierType: "shipping",
			OptionRef:    uuid.NewString(),
			Amount:       decimal.RequireFromString("5.00"),
			Currency:     enums.CurrencyUSD,
			Description:  "Shipping to US",
		}},
	}
}
