package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	squarewebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/square"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// RouterParams carries everything the HTTP surface depends on.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    *redis.Client
	Registry prometheus.Gatherer

	Orders        controllers.CartService
	OrderAdmin    controllers.OrderAdminService
	Payments      controllers.PaymentAdminService
	Customers     controllers.CustomerService
	CatalogReader controllers.CatalogReader
	CatalogAdmin  controllers.CatalogAdmin
	Checkout      checkoutsvc.Service

	SquareWebhook *squarewebhook.Service
	WebhookGuard  *idempotency.Manager
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	idem := func(ttl time.Duration) func(http.Handler) http.Handler {
		if p.Redis == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return middleware.Idempotency(p.Redis, ttl, logg)
	}
	authLimit := func(name string) func(http.Handler) http.Handler {
		if p.Redis == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return middleware.AuthRateLimit(name, cfg.RateLimit, p.Redis, logg)
	}
	var cache redis.Pinger
	if p.Redis != nil {
		cache = p.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, p.DB, cache, logg))
	})
	if p.Registry != nil {
		r.Handle("/metrics", metrics.Handler(p.Registry))
	}

	if p.SquareWebhook != nil && p.WebhookGuard != nil {
		r.Post("/api/v1/webhooks/square", webhookcontrollers.SquareWebhook(p.SquareWebhook, cfg.Square, p.WebhookGuard, logg))
	}

	r.Route("/api/v1/customers", func(r chi.Router) {
		r.With(
			authLimit("register"),
			idem(middleware.DefaultIdempotencyTTL),
		).Post("/register", controllers.RegisterCustomer(p.Customers, logg))
		r.With(authLimit("login")).Post("/login", controllers.LoginCustomer(p.Customers, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, logg))

		r.Get("/products/{productID}", controllers.GetProduct(p.CatalogReader, logg))
		r.Get("/shipping-rates", controllers.ListShippingRates(p.CatalogReader, logg))

		r.Route("/carts", func(r chi.Router) {
			r.Post("/", controllers.CreateCart(p.Orders, cfg.Shop, logg))
			r.Route("/{orderID}", func(r chi.Router) {
				r.Get("/", controllers.GetCart(p.Orders, cfg.Shop, logg))
				r.Post("/items", controllers.AddCartItem(p.Orders, cfg.Shop, logg))
				r.Post("/items/remove", controllers.RemoveCartItem(p.Orders, cfg.Shop, logg))
				r.Patch("/items/{itemID}", controllers.SetCartItemQuantity(p.Orders, cfg.Shop, logg))
				r.Put("/addresses", controllers.SetCartAddresses(p.Orders, cfg.Shop, logg))
				r.Put("/modifiers", controllers.SetCartModifiers(p.Orders, cfg.Shop, logg))
				r.Get("/validation", controllers.ValidateCart(p.Orders, logg))
				r.With(idem(middleware.CriticalIdempotencyTTL)).Post("/checkout", controllers.Checkout(p.Checkout, p.Orders, cfg.Shop, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.CustomerRoleAdmin, logg))

		r.Get("/orders", controllers.AdminListOrders(p.OrderAdmin, cfg.Shop, logg))
		r.Route("/orders/{orderID}", func(r chi.Router) {
			r.Get("/", controllers.AdminGetOrder(p.OrderAdmin, p.Payments, cfg.Shop, logg))
			r.With(idem(middleware.CriticalIdempotencyTTL)).Post("/payments", controllers.AdminRecordPayment(p.Payments, cfg.Shop, logg))
			r.Post("/dispatch", controllers.AdminDispatchOrder(p.OrderAdmin, cfg.Shop, logg))
			r.Post("/cancel", controllers.AdminCancelOrder(p.OrderAdmin, cfg.Shop, logg))
		})
		r.Route("/products", func(r chi.Router) {
			r.With(idem(middleware.DefaultIdempotencyTTL)).Post("/", controllers.AdminCreateProduct(p.CatalogAdmin, logg))
			r.Patch("/{productID}/price", controllers.AdminChangePrice(p.CatalogAdmin, logg))
			r.Put("/{productID}/published", controllers.AdminSetPublished(p.CatalogAdmin, logg))
		})
		r.Post("/shipping-rates", controllers.AdminCreateShippingRate(p.CatalogAdmin, logg))
		r.Post("/tax-rates", controllers.AdminCreateTaxRate(p.CatalogAdmin, logg))
		r.Post("/discount-codes", controllers.AdminCreateDiscountCode(p.CatalogAdmin, logg))
	})

	return r
}
