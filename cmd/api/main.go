package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/customers"
	"github.com/angelmondragon/storefront-backend/internal/modifiers"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	squarewebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/square"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/env"
	"github.com/angelmondragon/storefront-backend/pkg/instance"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/security"
	"github.com/angelmondragon/storefront-backend/pkg/square"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	orderMetrics := metrics.NewOrderMetrics(prometheus.DefaultRegisterer)
	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	customerSvc, err := customers.NewService(customers.ServiceParams{
		Repo:   customers.NewRepository(dbClient.DB()),
		DB:     dbClient,
		Outbox: outboxSvc,
		Hasher: security.NewHasher(cfg.Password),
		JWT:    cfg.JWT,
		Logger: logg,
	})
	mustBuild(logg, "customer service", err)

	catalogSvc, err := catalog.NewService(catalog.NewRepository(dbClient.DB()), dbClient)
	mustBuild(logg, "catalog service", err)

	orderSvc, err := orders.NewService(
		orders.NewRepository(dbClient.DB()),
		dbClient,
		outboxSvc,
		catalogSvc,
		modifiers.NewDefaultRegistry(catalogSvc, time.Now),
		cfg.Shop,
		logg,
	)
	mustBuild(logg, "order service", err)

	notifier, err := notifications.NewNotifier(customerSvc, outboxSvc, cfg.Shop, logg)
	mustBuild(logg, "notifier", err)

	paymentSvc, err := payments.NewService(
		payments.NewRepository(dbClient.DB()),
		orders.NewRepository(dbClient.DB()),
		dbClient,
		outboxSvc,
		notifier,
		orderMetrics,
		logg,
	)
	mustBuild(logg, "payment service", err)

	gateways := []payments.Gateway{payments.ChequeGateway{}}
	if cfg.Square.Enabled() {
		squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
		mustBuild(logg, "square client", err)
		gateways = append(gateways, payments.NewSquareGateway(squareClient))
	} else {
		logg.Warn(context.Background(), "square access token not set; card payments disabled")
	}

	checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
		DB:        dbClient,
		Orders:    orderSvc,
		Customers: customerSvc,
		Gateways:  payments.NewGatewayRegistry(gateways...),
		Payments:  paymentSvc,
		Metrics:   orderMetrics,
		Logger:    logg,
	})
	mustBuild(logg, "checkout service", err)

	webhookSvc, err := squarewebhook.NewService(paymentSvc, logg)
	mustBuild(logg, "square webhook service", err)

	webhookGuard, err := idempotency.NewManager(redisClient, cfg.Square.WebhookIdempotencyTTL)
	mustBuild(logg, "webhook idempotency guard", err)

	addr := ":" + env.Port(cfg.App.Port)
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Registry:      prometheus.DefaultGatherer,
			Orders:        orderSvc,
			OrderAdmin:    orderSvc,
			Payments:      paymentSvc,
			Customers:     customerSvc,
			CatalogReader: catalogSvc,
			CatalogAdmin:  catalogSvc,
			Checkout:      checkoutSvc,
			SquareWebhook: webhookSvc,
			WebhookGuard:  webhookGuard,
		}),
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func mustBuild(logg *logger.Logger, name string, err error) {
	if err != nil {
		logg.Error(context.Background(), "failed to create "+name, err)
		os.Exit(1)
	}
}
