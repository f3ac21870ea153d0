package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// CatalogReader serves the storefront's public catalog reads.
type CatalogReader interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListShippingRates(ctx context.Context) ([]models.FlatFeeShippingRate, error)
}

// CatalogAdmin maintains products and the modifier rate tables.
type CatalogAdmin interface {
	CreateProduct(ctx context.Context, input catalog.CreateProductInput) (*models.Product, error)
	ChangePrice(ctx context.Context, productID uuid.UUID, price decimal.Decimal) (*models.Product, error)
	SetPublished(ctx context.Context, productID uuid.UUID, published bool) error
	CreateShippingRate(ctx context.Context, input catalog.ShippingRateInput) (*models.FlatFeeShippingRate, error)
	CreateTaxRate(ctx context.Context, input catalog.TaxRateInput) (*models.TaxRate, error)
	CreateDiscountCode(ctx context.Context, input catalog.DiscountCodeInput) (*models.DiscountCode, error)
}

type variationResponse struct {
	ID          uuid.UUID   `json:"id"`
	Version     int         `json:"version"`
	Description string      `json:"description"`
	Price       types.Money `json:"price"`
	Published   bool        `json:"published"`
}

type productResponse struct {
	ID                uuid.UUID           `json:"id"`
	Title             string              `json:"title"`
	Version           int                 `json:"version"`
	Price             types.Money         `json:"price"`
	RequiresVariation bool                `json:"requires_variation"`
	Published         bool                `json:"published"`
	Virtual           bool                `json:"virtual"`
	Variations        []variationResponse `json:"variations"`
}

func newProductResponse(p *models.Product, publishedOnly bool) productResponse {
	resp := productResponse{
		ID:                p.ID,
		Title:             p.Title,
		Version:           p.Version,
		Price:             p.UnitPrice(),
		RequiresVariation: p.RequiresVariation,
		Published:         p.Published,
		Virtual:           p.Virtual,
		Variations:        make([]variationResponse, 0, len(p.Variations)),
	}
	for i := range p.Variations {
		v := &p.Variations[i]
		if publishedOnly && !v.Published {
			continue
		}
		resp.Variations = append(resp.Variations, variationResponse{
			ID:          v.ID,
			Version:     v.Version,
			Description: v.Description,
			Price:       v.UnitPrice(),
			Published:   v.Published,
		})
	}
	return resp
}

type shippingRateResponse struct {
	ID          uuid.UUID   `json:"id"`
	CountryCode string      `json:"country_code"`
	CountryName string      `json:"country_name"`
	Amount      types.Money `json:"amount"`
}

func newShippingRateResponse(rate *models.FlatFeeShippingRate) shippingRateResponse {
	return shippingRateResponse{
		ID:          rate.ID,
		CountryCode: rate.CountryCode,
		CountryName: rate.CountryName,
		Amount:      types.NewMoney(rate.Amount, rate.Currency),
	}
}

// GetProduct returns a published product. Unpublished products read as
// missing to shoppers.
func GetProduct(svc CatalogReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		productID, err := validators.UUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.GetProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !product.Published {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "product not found"))
			return
		}
		responses.WriteSuccess(w, newProductResponse(product, true))
	}
}

func ListShippingRates(svc CatalogReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		rates, err := svc.ListShippingRates(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]shippingRateResponse, 0, len(rates))
		for i := range rates {
			out = append(out, newShippingRateResponse(&rates[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

type variationRequest struct {
	Description string          `json:"description" validate:"required,max=255"`
	Price       decimal.Decimal `json:"price"`
	Published   bool            `json:"published"`
}

type createProductRequest struct {
	Title             string             `json:"title" validate:"required,max=255"`
	Price             decimal.Decimal    `json:"price"`
	Currency          string             `json:"currency" validate:"required,len=3"`
	RequiresVariation bool               `json:"requires_variation"`
	Published         bool               `json:"published"`
	Virtual           bool               `json:"virtual"`
	Variations        []variationRequest `json:"variations,omitempty" validate:"omitempty,dive"`
}

func AdminCreateProduct(svc CatalogAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		currency, err := enums.ParseCurrency(payload.Currency)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported currency"))
			return
		}
		input := catalog.CreateProductInput{
			Title:             validators.SanitizeString(payload.Title, 255),
			Price:             payload.Price,
			Currency:          currency,
			RequiresVariation: payload.RequiresVariation,
			Published:         payload.Published,
			Virtual:           payload.Virtual,
		}
		for _, v := range payload.Variations {
			input.Variations = append(input.Variations, catalog.VariationInput{
				Description: validators.SanitizeString(v.Description, 255),
				Price:       v.Price,
				Published:   v.Published,
			})
		}
		product, err := svc.CreateProduct(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, newProductResponse(product, false))
	}
}

type changePriceRequest struct {
	Price decimal.Decimal `json:"price"`
}

// AdminChangePrice reprices a product. Existing order lines keep the price
// of the version they captured.
func AdminChangePrice(svc CatalogAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		productID, err := validators.UUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload changePriceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.ChangePrice(r.Context(), productID, payload.Price)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newProductResponse(product, false))
	}
}

type publishRequest struct {
	Published *bool `json:"published" validate:"required"`
}

func AdminSetPublished(svc CatalogAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		productID, err := validators.UUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload publishRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.SetPublished(r.Context(), productID, *payload.Published); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"id": productID, "published": *payload.Published})
	}
}

type shippingRateRequest struct {
	CountryCode string          `json:"country_code" validate:"required,len=2"`
	CountryName string          `json:"country_name" validate:"required,max=100"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency" validate:"required,len=3"`
}

func AdminCreateShippingRate(svc CatalogAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		var payload shippingRateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		currency, err := enums.ParseCurrency(payload.Currency)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported currency"))
			return
		}
		rate, err := svc.CreateShippingRate(r.Context(), catalog.ShippingRateInput{
			CountryCode: payload.CountryCode,
			CountryName: validators.SanitizeString(payload.CountryName, 100),
			Amount:      payload.Amount,
			Currency:    currency,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, newShippingRateResponse(rate))
	}
}

type taxRateRequest struct {
	CountryCode string          `json:"country_code" validate:"required,len=2"`
	Name        string          `json:"name" validate:"required,max=100"`
	Rate        decimal.Decimal `json:"rate"`
}

func AdminCreateTaxRate(svc CatalogAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		var payload taxRateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rate, err := svc.CreateTaxRate(r.Context(), catalog.TaxRateInput{
			CountryCode: payload.CountryCode,
			Name:        payload.Name,
			Rate:        payload.Rate,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, map[string]any{
			"id":           rate.ID,
			"country_code": rate.CountryCode,
			"name":         rate.Name,
			"rate":         rate.Rate,
		})
	}
}

type discountCodeRequest struct {
	Code      string          `json:"code" validate:"required,max=64"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency" validate:"required,len=3"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

func AdminCreateDiscountCode(svc CatalogAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		var payload discountCodeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		currency, err := enums.ParseCurrency(payload.Currency)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported currency"))
			return
		}
		code, err := svc.CreateDiscountCode(r.Context(), catalog.DiscountCodeInput{
			Code:      validators.SanitizeString(payload.Code, 64),
			Amount:    payload.Amount,
			Currency:  currency,
			ExpiresAt: payload.ExpiresAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, map[string]any{
			"id":         code.ID,
			"code":       code.Code,
			"amount":     types.NewMoney(code.Amount, code.Currency),
			"active":     code.Active,
			"expires_at": code.ExpiresAt,
		})
	}
}
