package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

const abandonReason = "cart_timeout"

var errNoLongerAbandoned = errors.New("order no longer abandoned")

// DeleteAbandoned removes carts idle for longer than timeout that never saw a
// payment. Each cart is deleted in its own transaction; a cart that fails is
// reported and left intact while the sweep moves on. Only a failure to
// select candidates is returned as an error.
func (s *service) DeleteAbandoned(ctx context.Context, now time.Time, timeout time.Duration) (AbandonReport, error) {
	var report AbandonReport
	cutoff := now.UTC().Add(-timeout)

	ids, err := s.repo.ListAbandonedIDs(ctx, cutoff)
	if err != nil {
		return report, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list abandoned carts")
	}
	report.Candidates = len(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.deleteAbandoned(ctx, tx, id, cutoff)
		})
		switch {
		case err == nil:
			report.Deleted = append(report.Deleted, id)
		case errors.Is(err, errNoLongerAbandoned):
			report.Skipped = append(report.Skipped, id)
		default:
			wrapped := pkgerrors.Wrap(pkgerrors.CodeConsistency, err, "delete abandoned cart "+id.String())
			s.logg.Error(s.logg.WithOrderID(ctx, id.String()), "abandoned cart deletion rolled back", wrapped)
			report.Failures = append(report.Failures, AbandonFailure{OrderID: id, Err: wrapped})
		}
	}
	return report, nil
}

func (s *service) deleteAbandoned(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, cutoff time.Time) error {
	repo := s.repo.WithTx(tx)
	order, err := repo.LockByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errNoLongerAbandoned
		}
		return err
	}
	// the cart may have been touched or paid since it was selected
	if order.Status != enums.OrderStatusCart || !order.LastActive.Before(cutoff) {
		return errNoLongerAbandoned
	}
	paid, err := repo.HasPayments(ctx, orderID)
	if err != nil {
		return err
	}
	if paid {
		return errNoLongerAbandoned
	}

	released := make([]payloads.LineRef, 0, len(order.Items))
	for i := range order.Items {
		ref := lineRef(&order.Items[i])
		ref.QuantityDelta = order.Items[i].Quantity
		released = append(released, ref)
	}

	if err := repo.DeleteCascade(ctx, orderID); err != nil {
		return err
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderDeleted,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Data: payloads.OrderDeletedEvent{
			OrderID:       orderID,
			Reason:        abandonReason,
			LastActive:    order.LastActive,
			ReleasedLines: released,
		},
	})
}
