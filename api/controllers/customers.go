package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/customers"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// CustomerService covers account registration and sign-in.
type CustomerService interface {
	Register(ctx context.Context, input customers.RegisterInput) (*models.Customer, error)
	Authenticate(ctx context.Context, email, password string) (*customers.LoginResult, error)
}

type registerRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	Surname   string `json:"surname" validate:"required,max=100"`
	Password  string `json:"password" validate:"required,min=8,max=128"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type customerResponse struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name"`
	Surname     string     `json:"surname"`
	Role        string     `json:"role"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

type loginResponse struct {
	AccessToken string           `json:"access_token"`
	TokenType   string           `json:"token_type"`
	Customer    customerResponse `json:"customer"`
}

func newCustomerResponse(c *models.Customer) customerResponse {
	return customerResponse{
		ID:          c.ID,
		Email:       c.Email,
		FirstName:   c.FirstName,
		Surname:     c.Surname,
		Role:        string(c.Role),
		LastLoginAt: c.LastLoginAt,
	}
}

// RegisterCustomer creates a password-protected account.
func RegisterCustomer(svc CustomerService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "customer service unavailable"))
			return
		}
		var payload registerRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		customer, err := svc.Register(r.Context(), customers.RegisterInput{
			Email:     payload.Email,
			FirstName: validators.SanitizeString(payload.FirstName, 100),
			Surname:   validators.SanitizeString(payload.Surname, 100),
			Password:  payload.Password,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, newCustomerResponse(customer))
	}
}

func LoginCustomer(svc CustomerService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "customer service unavailable"))
			return
		}
		var payload loginRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Authenticate(r.Context(), payload.Email, payload.Password)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, loginResponse{
			AccessToken: result.AccessToken,
			TokenType:   "Bearer",
			Customer:    newCustomerResponse(result.Customer),
		})
	}
}
