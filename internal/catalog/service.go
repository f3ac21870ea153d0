package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes catalog lookups to the order engine and the admin
// operations that maintain products and rate tables.
//
// Lookups take the caller's transaction so reads made while an order row is
// locked observe the same snapshot; a nil tx falls back to the pool.
type Service struct {
	repo *Repository
	tx   txRunner
}

func NewService(repo *Repository, tx txRunner) (*Service, error) {
	if repo == nil {
		return nil, errors.New("catalog repository required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner required")
	}
	return &Service{repo: repo, tx: tx}, nil
}

func (s *Service) FindProduct(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.WithTx(tx).FindProduct(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func (s *Service) FindVariation(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.ProductVariation, error) {
	variation, err := s.repo.WithTx(tx).FindVariation(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product variation")
	}
	return variation, nil
}

func (s *Service) FindShippingRate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.FlatFeeShippingRate, error) {
	rate, err := s.repo.WithTx(tx).FindShippingRate(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipping rate")
	}
	return rate, nil
}

func (s *Service) FindTaxRate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.TaxRate, error) {
	rate, err := s.repo.WithTx(tx).FindTaxRate(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tax rate")
	}
	return rate, nil
}

func (s *Service) FindDiscountCode(ctx context.Context, tx *gorm.DB, code string) (*models.DiscountCode, error) {
	discount, err := s.repo.WithTx(tx).FindDiscountCode(ctx, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load discount code")
	}
	return discount, nil
}

func (s *Service) ListShippingRates(ctx context.Context) ([]models.FlatFeeShippingRate, error) {
	rates, err := s.repo.ListShippingRates(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list shipping rates")
	}
	return rates, nil
}

// GetProduct returns the product with its variations.
func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.FindProduct(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	variations, err := s.repo.ListVariations(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list product variations")
	}
	product.Variations = variations
	return product, nil
}

type VariationInput struct {
	Description string
	Price       decimal.Decimal
	Published   bool
}

type CreateProductInput struct {
	Title             string
	Price             decimal.Decimal
	Currency          enums.Currency
	RequiresVariation bool
	Published         bool
	Virtual           bool
	Variations        []VariationInput
}

func (s *Service) CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if !input.Currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "currency is invalid")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	if input.RequiresVariation && len(input.Variations) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product requires at least one variation")
	}

	product := &models.Product{
		ID:                uuid.New(),
		Title:             title,
		Version:           1,
		Price:             input.Price,
		Currency:          input.Currency,
		RequiresVariation: input.RequiresVariation,
		Published:         input.Published,
		Virtual:           input.Virtual,
	}
	for _, v := range input.Variations {
		desc := strings.TrimSpace(v.Description)
		if desc == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variation description is required")
		}
		if v.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variation price must not be negative")
		}
		product.Variations = append(product.Variations, models.ProductVariation{
			ID:          uuid.New(),
			ProductID:   product.ID,
			Version:     1,
			Description: desc,
			Price:       v.Price,
			Currency:    input.Currency,
			Published:   v.Published,
		})
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).CreateProduct(ctx, product)
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return product, nil
}

// ChangePrice sets a new product price. The version moves forward so carts
// holding the previous price keep it and new lines pin the new one.
func (s *Service) ChangePrice(ctx context.Context, productID uuid.UUID, price decimal.Decimal) (*models.Product, error) {
	if price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	var updated *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var product models.Product
		if err := db.ForUpdate(tx.WithContext(ctx)).Where("id = ?", productID).First(&product).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock product")
		}
		product.Price = price
		if err := repo.UpdateProductPrice(ctx, &product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product price")
		}
		updated = &product
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) SetPublished(ctx context.Context, productID uuid.UUID, published bool) error {
	product, err := s.FindProduct(ctx, nil, productID)
	if err != nil {
		return err
	}
	if product == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if err := s.repo.SetPublished(ctx, productID, published); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product visibility")
	}
	return nil
}

type ShippingRateInput struct {
	CountryCode string
	CountryName string
	Amount      decimal.Decimal
	Currency    enums.Currency
}

func (s *Service) CreateShippingRate(ctx context.Context, input ShippingRateInput) (*models.FlatFeeShippingRate, error) {
	if err := validateCountry(input.CountryCode); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.CountryName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "country name is required")
	}
	if !input.Currency.IsValid() || input.Amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping amount is invalid")
	}
	rate := &models.FlatFeeShippingRate{
		CountryCode: input.CountryCode,
		CountryName: strings.TrimSpace(input.CountryName),
		Amount:      input.Amount,
		Currency:    input.Currency,
	}
	if err := s.repo.CreateShippingRate(ctx, rate); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "shipping rate already exists for country")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create shipping rate")
	}
	return rate, nil
}

type TaxRateInput struct {
	CountryCode string
	Name        string
	Rate        decimal.Decimal
}

func (s *Service) CreateTaxRate(ctx context.Context, input TaxRateInput) (*models.TaxRate, error) {
	if err := validateCountry(input.CountryCode); err != nil {
		return nil, err
	}
	if input.Rate.IsNegative() || input.Rate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tax rate must be between 0 and 1")
	}
	rate := &models.TaxRate{
		CountryCode: input.CountryCode,
		Name:        strings.TrimSpace(input.Name),
		Rate:        input.Rate,
	}
	if err := s.repo.CreateTaxRate(ctx, rate); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "tax rate already exists for country")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create tax rate")
	}
	return rate, nil
}

type DiscountCodeInput struct {
	Code      string
	Amount    decimal.Decimal
	Currency  enums.Currency
	ExpiresAt *time.Time
}

func (s *Service) CreateDiscountCode(ctx context.Context, input DiscountCodeInput) (*models.DiscountCode, error) {
	if strings.TrimSpace(input.Code) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}
	if !input.Currency.IsValid() || !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount amount must be positive")
	}
	discount := &models.DiscountCode{
		Code:     input.Code,
		Amount:   input.Amount,
		Currency: input.Currency,
		Active:   true,
	}
	if input.ExpiresAt != nil {
		expires := input.ExpiresAt.UTC()
		discount.ExpiresAt = &expires
	}
	if err := s.repo.CreateDiscountCode(ctx, discount); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "discount code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create discount code")
	}
	return discount, nil
}

func validateCountry(code string) error {
	if len(strings.TrimSpace(code)) != 2 {
		return pkgerrors.New(pkgerrors.CodeValidation, "country code must be ISO-3166 alpha-2")
	}
	return nil
}
