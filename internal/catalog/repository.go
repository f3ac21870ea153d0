package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository reads and writes catalog rows: products, their variations and
// the rate tables the modifiers price against. Finders return (nil, nil)
// when the row does not exist.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	return first(r.db.WithContext(ctx).Where("id = ?", id), &product)
}

func (r *Repository) FindVariation(ctx context.Context, id uuid.UUID) (*models.ProductVariation, error) {
	var variation models.ProductVariation
	return first(r.db.WithContext(ctx).Where("id = ?", id), &variation)
}

func (r *Repository) ListVariations(ctx context.Context, productID uuid.UUID) ([]models.ProductVariation, error) {
	var rows []models.ProductVariation
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("description ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	for i := range product.Variations {
		if product.Variations[i].ID == uuid.Nil {
			product.Variations[i].ID = uuid.New()
		}
	}
	return r.db.WithContext(ctx).Create(product).Error
}

// UpdateProductPrice stores a new price and bumps the version so existing
// order lines keep the snapshot they captured.
func (r *Repository) UpdateProductPrice(ctx context.Context, product *models.Product) error {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND version = ?", product.ID, product.Version).
		Updates(map[string]any{
			"price":   product.Price,
			"version": gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	product.Version++
	return nil
}

func (r *Repository) SetPublished(ctx context.Context, productID uuid.UUID, published bool) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Update("published", published).Error
}

func (r *Repository) FindShippingRate(ctx context.Context, id uuid.UUID) (*models.FlatFeeShippingRate, error) {
	var rate models.FlatFeeShippingRate
	return first(r.db.WithContext(ctx).Where("id = ?", id), &rate)
}

func (r *Repository) ListShippingRates(ctx context.Context) ([]models.FlatFeeShippingRate, error) {
	var rows []models.FlatFeeShippingRate
	err := r.db.WithContext(ctx).Order("country_name ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) CreateShippingRate(ctx context.Context, rate *models.FlatFeeShippingRate) error {
	if rate.ID == uuid.Nil {
		rate.ID = uuid.New()
	}
	rate.CountryCode = strings.ToUpper(strings.TrimSpace(rate.CountryCode))
	return r.db.WithContext(ctx).Create(rate).Error
}

func (r *Repository) FindTaxRate(ctx context.Context, id uuid.UUID) (*models.TaxRate, error) {
	var rate models.TaxRate
	return first(r.db.WithContext(ctx).Where("id = ?", id), &rate)
}

func (r *Repository) CreateTaxRate(ctx context.Context, rate *models.TaxRate) error {
	if rate.ID == uuid.Nil {
		rate.ID = uuid.New()
	}
	rate.CountryCode = strings.ToUpper(strings.TrimSpace(rate.CountryCode))
	return r.db.WithContext(ctx).Create(rate).Error
}

// FindDiscountCode matches codes case-insensitively.
func (r *Repository) FindDiscountCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	var discount models.DiscountCode
	return first(r.db.WithContext(ctx).Where("UPPER(code) = ?", strings.ToUpper(strings.TrimSpace(code))), &discount)
}

func (r *Repository) CreateDiscountCode(ctx context.Context, discount *models.DiscountCode) error {
	if discount.ID == uuid.Nil {
		discount.ID = uuid.New()
	}
	discount.Code = strings.ToUpper(strings.TrimSpace(discount.Code))
	return r.db.WithContext(ctx).Create(discount).Error
}

func first[T any](q *gorm.DB, dest *T) (*T, error) {
	if err := q.First(dest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return dest, nil
}
