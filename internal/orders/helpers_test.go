package orders

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/modifiers"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

var testNow = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

type harness struct {
	db      *gorm.DB
	svc     *service
	catalog *catalog.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.Wrap(conn)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	cat, err := catalog.NewService(catalog.NewRepository(conn), client)
	require.NoError(t, err)

	registry := modifiers.NewDefaultRegistry(cat, func() time.Time { return testNow })
	pub := outbox.NewService(outbox.NewRepository(conn), logg)

	svc, err := NewService(NewRepository(conn), client, pub, cat, registry, config.ShopConfig{Currency: "USD"}, logg)
	require.NoError(t, err)
	impl := svc.(*service)
	impl.now = func() time.Time { return testNow }

	return &harness{db: conn, svc: impl, catalog: cat}
}

func (h *harness) product(t *testing.T, price string, variations ...string) *models.Product {
	t.Helper()
	input := catalog.CreateProductInput{
		Title:     "Product " + uuid.NewString()[:8],
		Price:     decimal.RequireFromString(price),
		Currency:  enums.CurrencyUSD,
		Published: true,
	}
	for _, v := range variations {
		input.RequiresVariation = true
		input.Variations = append(input.Variations, catalog.VariationInput{
			Description: "Variation " + v,
			Price:       decimal.RequireFromString(v),
			Published:   true,
		})
	}
	p, err := h.catalog.CreateProduct(context.Background(), input)
	require.NoError(t, err)
	return p
}

func (h *harness) cart(t *testing.T) *models.Order {
	t.Helper()
	order, err := h.svc.CreateCart(context.Background(), nil)
	require.NoError(t, err)
	return order
}

func (h *harness) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func (h *harness) setStatus(t *testing.T, orderID uuid.UUID, status enums.OrderStatus, payment enums.PaymentStatus) {
	t.Helper()
	require.NoError(t, h.db.Model(&models.Order{}).Where("id = ?", orderID).
		Updates(map[string]any{"status": status, "payment_status": payment}).Error)
}
