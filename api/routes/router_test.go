package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	squarewebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/square"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubOrders struct{}

func (stubOrders) GetOrder(context.Context, uuid.UUID) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (stubOrders) CreateCart(_ context.Context, customerID *uuid.UUID) (*models.Order, error) {
	return &models.Order{ID: uuid.New(), CustomerID: customerID, Status: enums.OrderStatusCart, Currency: enums.CurrencyUSD}, nil
}

func (stubOrders) AddItem(context.Context, uuid.UUID, orders.AddItemInput) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (stubOrders) RemoveItem(context.Context, uuid.UUID, orders.RemoveItemInput) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (stubOrders) SetQuantity(context.Context, uuid.UUID, uuid.UUID, int) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (stubOrders) ApplyModifiers(context.Context, uuid.UUID, []orders.ModifierSelection) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (stubOrders) SetAddresses(context.Context, uuid.UUID, orders.AddressesInput) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (stubOrders) ValidateForCheckout(context.Context, uuid.UUID) (orders.CheckoutValidation, error) {
	return orders.CheckoutValidation{}, nil
}

func (stubOrders) MarkDispatched(context.Context, uuid.UUID) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (stubOrders) ListOrders(context.Context, orders.ListFilter) (orders.OrderPage, error) {
	return orders.OrderPage{}, nil
}

func (stubOrders) Cancel(context.Context, uuid.UUID) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

type stubPayments struct{}

func (stubPayments) RecordPaymentOutcome(context.Context, payments.Outcome) (*payments.Result, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (stubPayments) Summary(context.Context, uuid.UUID) (payments.Settlement, error) {
	return payments.Settlement{}, nil
}

type stubCheckout struct{}

func (stubCheckout) Submit(context.Context, checkout.SubmitInput) (*checkout.SubmitResult, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 10}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redis.New(context.Background(), config.RedisConfig{Address: mr.Addr()}, nil)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	logg := logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard})
	guard, err := idempotency.NewManager(client, time.Hour)
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	webhookSvc, err := squarewebhook.NewService(stubPayments{}, logg)
	if err != nil {
		t.Fatalf("webhook service: %v", err)
	}
	reg := prometheus.NewRegistry()
	metrics.NewOrderMetrics(reg)

	cfg := &config.Config{
		App:       config.AppConfig{Env: "test", CORSOrigins: []string{"https://shop.example.com"}},
		JWT:       testJWT,
		RateLimit: config.RateLimitConfig{Window: time.Minute, IPLimit: 100, EmailLimit: 100},
		Square:    config.SquareConfig{WebhookSecret: "whsec", WebhookURL: "https://shop.example.com/api/v1/webhooks/square"},
	}
	return NewRouter(RouterParams{
		Config:        cfg,
		Logger:        logg,
		DB:            stubPinger{},
		Redis:         client,
		Registry:      reg,
		Orders:        stubOrders{},
		OrderAdmin:    stubOrders{},
		Payments:      stubPayments{},
		Checkout:      stubCheckout{},
		SquareWebhook: webhookSvc,
		WebhookGuard:  guard,
	})
}

func bearer(t *testing.T, role enums.CustomerRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(testJWT, time.Now(), pkgAuth.AccessTokenPayload{CustomerID: uuid.New(), Email: "a@example.com", Role: role})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func serve(router http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthRoutes(t *testing.T) {
	router := newTestRouter(t)

	if rec := serve(router, http.MethodGet, "/health/live", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("live: expected 200, got %d", rec.Code)
	}
	if rec := serve(router, http.MethodGet, "/health/ready", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("ready: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestMetricsRoute(t *testing.T) {
	router := newTestRouter(t)

	rec := serve(router, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	router := newTestRouter(t)

	rec := serve(router, http.MethodGet, "/health/live", "", map[string]string{"X-Request-Id": "req-123"})
	if got := rec.Header().Get("X-Request-Id"); got != "req-123" {
		t.Fatalf("expected request id echoed, got %q", got)
	}
}

func TestCartRoutesAllowAnonymous(t *testing.T) {
	router := newTestRouter(t)

	rec := serve(router, http.MethodPost, "/api/v1/carts", "", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	rec = serve(router, http.MethodGet, "/api/v1/carts/"+uuid.NewString(), "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown cart, got %d", rec.Code)
	}
}

func TestCartRoutesRejectBadToken(t *testing.T) {
	router := newTestRouter(t)

	rec := serve(router, http.MethodPost, "/api/v1/carts", "", map[string]string{"Authorization": "Bearer nope"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCheckoutRequiresIdempotencyKey(t *testing.T) {
	router := newTestRouter(t)

	rec := serve(router, http.MethodPost, "/api/v1/carts/"+uuid.NewString()+"/checkout", `{}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without Idempotency-Key, got %d", rec.Code)
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	router := newTestRouter(t)
	path := "/api/admin/v1/orders/" + uuid.NewString() + "/dispatch"

	if rec := serve(router, http.MethodPost, path, "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401, got %d", rec.Code)
	}
	customer := map[string]string{"Authorization": bearer(t, enums.CustomerRoleCustomer)}
	if rec := serve(router, http.MethodPost, path, "", customer); rec.Code != http.StatusForbidden {
		t.Fatalf("customer: expected 403, got %d", rec.Code)
	}
	admin := map[string]string{"Authorization": bearer(t, enums.CustomerRoleAdmin)}
	if rec := serve(router, http.MethodPost, path, "", admin); rec.Code != http.StatusNotFound {
		t.Fatalf("admin: expected handler 404, got %d", rec.Code)
	}
}

func TestAdminOrderListing(t *testing.T) {
	router := newTestRouter(t)
	admin := map[string]string{"Authorization": bearer(t, enums.CustomerRoleAdmin)}

	if rec := serve(router, http.MethodGet, "/api/admin/v1/orders?status=pending&limit=10", "", admin); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if rec := serve(router, http.MethodGet, "/api/admin/v1/orders?limit=-1", "", admin); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative limit, got %d", rec.Code)
	}
}

func TestAdminPaymentRequiresIdempotencyKey(t *testing.T) {
	router := newTestRouter(t)
	path := "/api/admin/v1/orders/" + uuid.NewString() + "/payments"
	admin := map[string]string{"Authorization": bearer(t, enums.CustomerRoleAdmin)}

	if rec := serve(router, http.MethodPost, path, `{}`, admin); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without Idempotency-Key, got %d", rec.Code)
	}
}

func TestSquareWebhookRouteVerifiesSignature(t *testing.T) {
	router := newTestRouter(t)

	rec := serve(router, http.MethodPost, "/api/v1/webhooks/square", `{"event_id":"evt"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t)

	rec := serve(router, http.MethodOptions, "/api/v1/carts", "", map[string]string{
		"Origin":                        "https://shop.example.com",
		"Access-Control-Request-Method": http.MethodPost,
	})
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://shop.example.com" {
		t.Fatalf("expected allowed origin, got %q", got)
	}
}
