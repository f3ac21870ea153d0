package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type orderResponse struct {
	ID            uuid.UUID              `json:"id"`
	CustomerID    *uuid.UUID             `json:"customer_id,omitempty"`
	Status        string                 `json:"status"`
	PaymentStatus string                 `json:"payment_status"`
	Subtotal      types.Money            `json:"subtotal"`
	Total         types.Money            `json:"total"`
	Notes         string                 `json:"notes,omitempty"`
	OrderedOn     *time.Time             `json:"ordered_on,omitempty"`
	LastActive    time.Time              `json:"last_active"`
	Items         []itemResponse         `json:"items"`
	Modifications []modificationResponse `json:"modifications"`
	Addresses     []addressResponse      `json:"addresses"`
}

type itemResponse struct {
	ID            uuid.UUID            `json:"id"`
	ProductID     uuid.UUID            `json:"product_id"`
	Version       int                  `json:"version"`
	UnitPrice     types.Money          `json:"unit_price"`
	Quantity      int                  `json:"quantity"`
	Virtual       bool                 `json:"virtual"`
	DownloadCount int                  `json:"download_count"`
	DownloadLimit int                  `json:"download_limit"`
	DownloadsLeft int                  `json:"downloads_remaining"`
	Options       []itemOptionResponse `json:"options"`
}

type itemOptionResponse struct {
	ID          uuid.UUID   `json:"id"`
	ObjectID    uuid.UUID   `json:"object_id"`
	Version     int         `json:"version"`
	Description string      `json:"description"`
	Price       types.Money `json:"price"`
}

type modificationResponse struct {
	Type            string      `json:"type"`
	Option          string      `json:"option"`
	Description     string      `json:"description"`
	Amount          types.Money `json:"amount"`
	AffectsSubtotal bool        `json:"affects_subtotal"`
}

type addressResponse struct {
	Kind         string `json:"kind"`
	FirstName    string `json:"first_name"`
	Surname      string `json:"surname"`
	Company      string `json:"company,omitempty"`
	Address      string `json:"address"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	PostalCode   string `json:"postal_code"`
	State        string `json:"state,omitempty"`
	CountryCode  string `json:"country_code"`
}

type paymentResponse struct {
	ID               uuid.UUID   `json:"id"`
	Status           string      `json:"status"`
	Method           string      `json:"method"`
	Amount           types.Money `json:"amount"`
	GatewayReference *string     `json:"gateway_reference,omitempty"`
	Message          string      `json:"message,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

// newOrderResponse renders order. Download allowances come from
// shop.DownloadLimit and stay zero until the order is paid.
func newOrderResponse(order *models.Order, shop config.ShopConfig) orderResponse {
	resp := orderResponse{
		ID:            order.ID,
		CustomerID:    order.CustomerID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		Subtotal:      order.Subtotal(),
		Total:         order.Total(),
		Notes:         order.Notes,
		OrderedOn:     order.OrderedOn,
		LastActive:    order.LastActive,
		Items:         make([]itemResponse, 0, len(order.Items)),
		Modifications: make([]modificationResponse, 0, len(order.Modifications)),
		Addresses:     make([]addressResponse, 0, len(order.Addresses)),
	}
	for i := range order.Items {
		item := &order.Items[i]
		ir := itemResponse{
			ID:            item.ID,
			ProductID:     item.ObjectID,
			Version:       item.ObjectVersion,
			UnitPrice:     item.Price(),
			Quantity:      item.Quantity,
			Virtual:       item.Virtual,
			DownloadCount: item.DownloadCount,
			DownloadLimit: orders.DownloadLimit(item, order, shop.DownloadLimit),
			DownloadsLeft: orders.DownloadsRemaining(item, order, shop.DownloadLimit),
			Options:       make([]itemOptionResponse, 0, len(item.Options)),
		}
		for j := range item.Options {
			opt := &item.Options[j]
			ir.Options = append(ir.Options, itemOptionResponse{
				ID:          opt.ID,
				ObjectID:    opt.ObjectID,
				Version:     opt.ObjectVersion,
				Description: opt.Description,
				Price:       opt.Price(),
			})
		}
		resp.Items = append(resp.Items, ir)
	}
	for i := range order.Modifications {
		mod := &order.Modifications[i]
		resp.Modifications = append(resp.Modifications, modificationResponse{
			Type:            mod.ModifierType,
			Option:          mod.OptionRef,
			Description:     mod.Description,
			Amount:          mod.Money(),
			AffectsSubtotal: mod.AffectsSubtotal,
		})
	}
	for _, addr := range order.Addresses {
		resp.Addresses = append(resp.Addresses, addressResponse{
			Kind:         string(addr.Kind),
			FirstName:    addr.FirstName,
			Surname:      addr.Surname,
			Company:      addr.Company,
			Address:      addr.Address,
			AddressLine2: addr.AddressLine2,
			City:         addr.City,
			PostalCode:   addr.PostalCode,
			State:        addr.State,
			CountryCode:  addr.CountryCode,
		})
	}
	return resp
}

func newPaymentResponse(p *models.Payment) *paymentResponse {
	if p == nil {
		return nil
	}
	return &paymentResponse{
		ID:               p.ID,
		Status:           string(p.Status),
		Method:           string(p.Method),
		Amount:           p.Money(),
		GatewayReference: p.GatewayReference,
		Message:          p.Message,
		CreatedAt:        p.CreatedAt,
	}
}

type settlementResponse struct {
	Order      orderResponse       `json:"order"`
	Payment    *paymentResponse    `json:"payment,omitempty"`
	Settlement payments.Settlement `json:"settlement"`
}
