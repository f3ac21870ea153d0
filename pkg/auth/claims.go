package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	CustomerID uuid.UUID
	Email      string
	Role       enums.CustomerRole
}

// AccessTokenClaims is the typed JWT issued to shoppers and admins.
type AccessTokenClaims struct {
	CustomerID uuid.UUID          `json:"customer_id"`
	Email      string             `json:"email,omitempty"`
	Role       enums.CustomerRole `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the bearer may use the admin routes.
func (c *AccessTokenClaims) IsAdmin() bool {
	return c != nil && c.Role == enums.CustomerRoleAdmin
}
