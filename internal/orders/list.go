package orders

import (
	"context"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// ListOrders pages through placed orders for the merchant, newest first.
func (s *service) ListOrders(ctx context.Context, filter ListFilter) (OrderPage, error) {
	if filter.Status == enums.OrderStatusCart {
		return OrderPage{}, pkgerrors.New(pkgerrors.CodeValidation, "carts are not listed")
	}
	after, err := pagination.ParseCursor(filter.Cursor)
	if err != nil {
		return OrderPage{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.List(ctx, filter, after)
	if err != nil {
		return OrderPage{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	rows, next := pagination.Trim(rows, filter.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return OrderPage{Orders: rows, NextCursor: next}, nil
}
